package compliance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleList = `<?xml version="1.0" encoding="utf-8"?>
<Sanctions>
  <DateOfIssue>
    <Year>2024</Year>
    <Month>5</Month>
    <Day>17</Day>
  </DateOfIssue>
  <DistinctParty>
    <Feature FeatureTypeID="344">
      <FeatureVersion>
        <VersionDetail>bc1qsanctionedexampleaddress000000000000000</VersionDetail>
      </FeatureVersion>
    </Feature>
    <Feature FeatureTypeID="25">
      <FeatureVersion>
        <VersionDetail>Some Street 1</VersionDetail>
      </FeatureVersion>
    </Feature>
    <Feature FeatureTypeID="344">
      <FeatureVersion>
        <VersionDetail>1SanctionedLegacyExampleAddr00000</VersionDetail>
      </FeatureVersion>
    </Feature>
  </DistinctParty>
</Sanctions>
`

func testVerifier(t *testing.T, body string) (*Verifier, *int) {
	t.Helper()
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			requests++
			w.Write([]byte(body))
		}))
	t.Cleanup(srv.Close)
	v := NewVerifier()
	v.SourceURL = srv.URL
	return v, &requests
}

func TestSyncAndScreen(t *testing.T) {
	v, _ := testVerifier(t, sampleList)
	require.NoError(t, v.Sync(context.Background()))

	require.Equal(t, 2, v.Count())
	require.True(t,
		v.IsSanctioned("bc1qsanctionedexampleaddress000000000000000"))
	require.True(t, v.IsSanctioned("1SanctionedLegacyExampleAddr00000"))
	// other feature types must not be screened
	require.False(t, v.IsSanctioned("Some Street 1"))
	require.False(t, v.IsSanctioned("bc1qunlistedaddress"))
}

func TestSyncSkipsUnchangedList(t *testing.T) {
	v, requests := testVerifier(t, sampleList)

	// first sync reads the head for the date, then the full document
	require.NoError(t, v.Sync(context.Background()))
	require.Equal(t, 2, *requests)

	// the publish date has not moved, so the second sync stops after the
	// date check
	require.NoError(t, v.Sync(context.Background()))
	require.Equal(t, 3, *requests)
	require.Equal(t, 2, v.Count())
}

func TestSyncRejectsMissingDate(t *testing.T) {
	v, _ := testVerifier(t, `<?xml version="1.0"?><Sanctions></Sanctions>`)
	err := v.Sync(context.Background())
	require.ErrorContains(t, err, "no Year tag")
}

func TestSyncPropagatesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "gone", http.StatusNotFound)
		}))
	t.Cleanup(srv.Close)
	v := NewVerifier()
	v.SourceURL = srv.URL

	err := v.Sync(context.Background())
	require.ErrorContains(t, err, "http status 404")
}

func TestParseAddressesRejectsMalformedXML(t *testing.T) {
	_, err := parseAddresses(strings.NewReader("<Sanctions><unclosed"))
	require.Error(t, err)
}
