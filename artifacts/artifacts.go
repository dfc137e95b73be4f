// Package artifacts fetches and caches the remote ceremony files the pipeline
// setup step depends on, keyed by their sha256 hash. Fetching is idempotent:
// a cached file whose hash matches is never downloaded again.
package artifacts

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/sigma0-xyz/zkbitcoin/logger"
)

// CheckHashes determines if artifact hashes are verified on load and
// download. It can be disabled by setting the ZKBITCOIN_CHECK_HASHES
// environment variable to false or 0, useful when mirroring ceremony files
// whose published digests use a different hash function.
var CheckHashes = true

// BaseDir is the local artifact cache. It defaults to the
// ZKBITCOIN_CACHE_DIR environment variable or the user cache directory.
var BaseDir string

func init() {
	if check := os.Getenv("ZKBITCOIN_CHECK_HASHES"); check != "" {
		if strings.ToLower(check) == "false" || check == "0" {
			CheckHashes = false
		}
	}
	if dir := os.Getenv("ZKBITCOIN_CACHE_DIR"); dir != "" {
		BaseDir = dir
	} else {
		home, err := os.UserHomeDir()
		if err != nil || home == "" {
			BaseDir = filepath.Join(os.TempDir(), "zkbitcoin-artifacts")
		} else {
			BaseDir = filepath.Join(home, ".cache", "zkbitcoin")
		}
	}
}

// Artifact is a remote file the pipeline depends on: a name for the local
// cache entry, the URL to download it from, and optionally the hex sha256
// digest of its content.
type Artifact struct {
	Name      string
	RemoteURL string
	Hash      string
}

// PowersOfTau returns the artifact for the perpetual powers-of-tau ceremony
// file of the given power, as published by the hermez project for snarkjs.
func PowersOfTau(power uint8) Artifact {
	return Artifact{
		Name: fmt.Sprintf("powersOfTau28_hez_final_%02d.ptau", power),
		RemoteURL: fmt.Sprintf("https://storage.googleapis.com/zkevm/ptau/"+
			"powersOfTau28_hez_final_%02d.ptau", power),
	}
}

// Path returns the local cache path of the artifact.
func (a Artifact) Path() string {
	return filepath.Join(BaseDir, a.Name)
}

// Cached reports whether the artifact is present in the local cache with a
// matching hash (when hash checking is enabled and a hash is set).
func (a Artifact) Cached() (bool, error) {
	path := a.Path()
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("error checking %s: %v", path, err)
	}
	if !CheckHashes || a.Hash == "" {
		return true, nil
	}
	ok, err := a.verify(path)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Fetch returns the local path of the artifact, downloading and caching it
// first if needed. Fetching an already cached artifact does no network
// access, making the setup step safe to re-run.
func (a Artifact) Fetch(ctx context.Context) (string, error) {
	cached, err := a.Cached()
	if err != nil {
		return "", err
	}
	if cached {
		return a.Path(), nil
	}
	if a.RemoteURL == "" {
		return "", fmt.Errorf("artifact %s not cached and no remote URL "+
			"provided", a.Name)
	}
	if err := a.download(ctx); err != nil {
		return "", err
	}
	return a.Path(), nil
}

func (a Artifact) verify(path string) (bool, error) {
	expected, err := hex.DecodeString(a.Hash)
	if err != nil {
		return false, fmt.Errorf("invalid hash for %s: %v", a.Name, err)
	}
	file, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("error opening %s: %v", path, err)
	}
	defer file.Close()
	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return false, fmt.Errorf("error hashing %s: %v", path, err)
	}
	return bytes.Equal(hasher.Sum(nil), expected), nil
}

// download fetches the artifact to a .partial file, verifies its hash and
// renames it into place so the cache never holds a truncated entry under the
// final name.
func (a Artifact) download(ctx context.Context) error {
	log := logger.Logger()
	if err := os.MkdirAll(BaseDir, 0o755); err != nil {
		return fmt.Errorf("error creating cache directory: %v", err)
	}
	path := a.Path()
	partialPath := path + ".partial"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.RemoteURL, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %v", err)
	}
	log.Info().Str("url", a.RemoteURL).Msg("downloading artifact")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("error downloading %s: %v", a.RemoteURL, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("error downloading %s: http status %d",
			a.RemoteURL, res.StatusCode)
	}

	fd, err := os.Create(partialPath)
	if err != nil {
		return fmt.Errorf("error creating %s: %v", partialPath, err)
	}
	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(fd, hasher), res.Body); err != nil {
		fd.Close()
		return fmt.Errorf("error writing %s: %v", partialPath, err)
	}
	if err := fd.Close(); err != nil {
		return fmt.Errorf("error closing %s: %v", partialPath, err)
	}

	sum := hex.EncodeToString(hasher.Sum(nil))
	if CheckHashes && a.Hash != "" && sum != a.Hash {
		os.Remove(partialPath)
		return fmt.Errorf("hash mismatch for %s: expected %s, got %s",
			a.Name, a.Hash, sum)
	}
	if err := os.Rename(partialPath, path); err != nil {
		return fmt.Errorf("error moving %s into place: %v", partialPath, err)
	}
	log.Info().Str("file", path).Str("sha256", sum).Msg("artifact cached")
	return nil
}
