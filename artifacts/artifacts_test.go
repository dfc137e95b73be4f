package artifacts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testArtifact(t *testing.T, content []byte, handler http.HandlerFunc) (
	Artifact, *int) {
	t.Helper()
	oldDir := BaseDir
	BaseDir = t.TempDir()
	t.Cleanup(func() { BaseDir = oldDir })

	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			requests++
			handler(w, r)
		}))
	t.Cleanup(srv.Close)

	sum := sha256.Sum256(content)
	return Artifact{
		Name:      "test.ptau",
		RemoteURL: srv.URL,
		Hash:      hex.EncodeToString(sum[:]),
	}, &requests
}

func TestFetchDownloadsAndCaches(t *testing.T) {
	content := []byte("ceremony parameters")
	art, requests := testArtifact(t, content,
		func(w http.ResponseWriter, r *http.Request) {
			w.Write(content)
		})

	path, err := art.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, filepath.Join(BaseDir, "test.ptau"), path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, content, got)
	require.Equal(t, 1, *requests)

	// a second fetch is served from the cache
	_, err = art.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, *requests)
}

func TestFetchRejectsHashMismatch(t *testing.T) {
	art, _ := testArtifact(t, []byte("expected content"),
		func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("tampered content"))
		})

	_, err := art.Fetch(context.Background())
	require.ErrorContains(t, err, "hash mismatch")
	// no partial or final file must survive a failed download
	_, statErr := os.Stat(art.Path())
	require.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(art.Path() + ".partial")
	require.True(t, os.IsNotExist(statErr))
}

func TestFetchPropagatesHTTPErrors(t *testing.T) {
	art, _ := testArtifact(t, []byte("content"),
		func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "gone", http.StatusNotFound)
		})

	_, err := art.Fetch(context.Background())
	require.ErrorContains(t, err, "http status 404")
}

func TestFetchWithoutRemoteURL(t *testing.T) {
	oldDir := BaseDir
	BaseDir = t.TempDir()
	t.Cleanup(func() { BaseDir = oldDir })

	art := Artifact{Name: "missing.ptau"}
	_, err := art.Fetch(context.Background())
	require.ErrorContains(t, err, "no remote URL")
}

func TestPowersOfTau(t *testing.T) {
	art := PowersOfTau(14)
	require.Equal(t, "powersOfTau28_hez_final_14.ptau", art.Name)
	require.Contains(t, art.RemoteURL, "powersOfTau28_hez_final_14.ptau")
}
