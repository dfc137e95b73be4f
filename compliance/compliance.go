// Package compliance screens Bitcoin addresses against the OFAC sanctioned
// address list. The list is the consolidated sanctions file published by the
// US Treasury in advanced XML format; sanctioned Bitcoin addresses appear in
// it as Feature elements with the digital-currency feature type.
package compliance

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sigma0-xyz/zkbitcoin/logger"
)

// DefaultSourceURL is the published OFAC consolidated sanctions list.
const DefaultSourceURL = "https://www.treasury.gov/ofac/downloads/sanctions/1.0/sdn_advanced.xml"

// featureTypeBTC tags "Digital Currency Address - XBT" features in the list
const featureTypeBTC = "344"

// headSize is how much of the document is read to extract the publish date
const headSize = 1024

// Verifier holds the synced sanctioned-address set and answers screening
// queries against it. The zero set screens nothing: call Sync or Start first.
type Verifier struct {
	// SourceURL is the sanctions list location, DefaultSourceURL unless
	// overridden
	SourceURL string
	Client    *http.Client

	mu          sync.RWMutex
	sanctioned  map[string]struct{}
	lastPublish time.Time

	log zerolog.Logger
}

func NewVerifier() *Verifier {
	return &Verifier{
		SourceURL:  DefaultSourceURL,
		Client:     http.DefaultClient,
		sanctioned: make(map[string]struct{}),
		log:        logger.Logger(),
	}
}

// publishDate reads the first bytes of the remote document and extracts the
// publish date, so an unchanged list can be skipped without parsing the full
// XML, which is slow.
func (v *Verifier) publishDate(ctx context.Context) (time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.SourceURL, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("error creating request: %v", err)
	}
	res, err := v.Client.Do(req)
	if err != nil {
		return time.Time{}, fmt.Errorf("error fetching %s: %v", v.SourceURL, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return time.Time{}, fmt.Errorf("error fetching %s: http status %d",
			v.SourceURL, res.StatusCode)
	}
	head := make([]byte, headSize)
	n, err := io.ReadFull(res.Body, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		return time.Time{}, fmt.Errorf("error reading document head: %v", err)
	}
	head = head[:n]

	year, err := extractTag(head, "Year")
	if err != nil {
		return time.Time{}, err
	}
	month, err := extractTag(head, "Month")
	if err != nil {
		return time.Time{}, err
	}
	day, err := extractTag(head, "Day")
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
}

func extractTag(head []byte, tag string) (int, error) {
	re := regexp.MustCompile(`<` + tag + `>\s*(\w+)\s*</` + tag + `>`)
	m := re.FindSubmatch(head)
	if m == nil {
		return 0, fmt.Errorf("no %s tag in document head", tag)
	}
	value, err := strconv.Atoi(string(m[1]))
	if err != nil {
		return 0, fmt.Errorf("error parsing %s tag: %v", tag, err)
	}
	return value, nil
}

// Sync downloads the sanctions list and replaces the in-memory address set.
// When the document's publish date is not newer than the last synced one the
// download and parse are skipped.
func (v *Verifier) Sync(ctx context.Context) error {
	published, err := v.publishDate(ctx)
	if err != nil {
		return fmt.Errorf("error reading list publish date: %v", err)
	}
	v.mu.RLock()
	upToDate := !published.After(v.lastPublish)
	v.mu.RUnlock()
	if upToDate {
		v.log.Debug().Msg("sanctions list is up to date")
		return nil
	}

	v.log.Info().Msg("syncing sanctions list")
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.SourceURL, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %v", err)
	}
	res, err := v.Client.Do(req)
	if err != nil {
		return fmt.Errorf("error fetching %s: %v", v.SourceURL, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("error fetching %s: http status %d",
			v.SourceURL, res.StatusCode)
	}
	addresses, err := parseAddresses(res.Body)
	if err != nil {
		return fmt.Errorf("error parsing sanctions list: %v", err)
	}

	v.mu.Lock()
	v.sanctioned = addresses
	v.lastPublish = published
	v.mu.Unlock()
	v.log.Info().Int("addresses", len(addresses)).
		Dur("took", time.Since(start)).Msg("sanctions list synced")
	return nil
}

// parseAddresses stream-parses the advanced XML format, collecting the
// version detail values of every Feature carrying the Bitcoin address
// feature type.
func parseAddresses(r io.Reader) (map[string]struct{}, error) {
	addresses := make(map[string]struct{})
	dec := xml.NewDecoder(r)
	insideFeature := false
	insideDetail := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "Feature":
				for _, attr := range t.Attr {
					if attr.Name.Local == "FeatureTypeID" &&
						attr.Value == featureTypeBTC {
						insideFeature = true
					}
				}
			case "VersionDetail":
				if insideFeature {
					insideDetail = true
				}
			}
		case xml.CharData:
			if insideDetail {
				if addr := strings.TrimSpace(string(t)); addr != "" {
					addresses[addr] = struct{}{}
				}
			}
		case xml.EndElement:
			if t.Name.Local == "VersionDetail" && insideFeature {
				insideFeature = false
				insideDetail = false
			}
		}
	}
	return addresses, nil
}

// IsSanctioned reports whether the address appears on the synced list.
func (v *Verifier) IsSanctioned(address string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.sanctioned[address]
	return ok
}

// Count returns the number of addresses on the synced list.
func (v *Verifier) Count() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.sanctioned)
}

// Start syncs the list immediately and then again every interval, until ctx
// is cancelled. Sync errors are logged and the loop keeps going.
func (v *Verifier) Start(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		if err := v.Sync(ctx); err != nil {
			v.log.Error().Err(err).Msg("sanctions list sync failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
