package common

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDownloadToFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("archive bytes"))
	}))
	t.Cleanup(srv.Close)

	dest := filepath.Join(t.TempDir(), "sub", "lz4.tar.gz")
	n, err := DownloadToFile(context.Background(), srv.URL, dest)
	require.NoError(t, err)
	require.Equal(t, int64(len("archive bytes")), n)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, "archive bytes", string(data))
}

func TestDownloadToFileNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	// 404 is not transient, fails without retrying
	_, err := DownloadToFile(context.Background(), srv.URL, filepath.Join(t.TempDir(), "x"))
	require.Error(t, err)
	var herr HttpError
	require.ErrorAs(t, err, &herr)
	require.Equal(t, http.StatusNotFound, herr.Code())
}

func TestDownloadRetriesTransient(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)

	n, err := DownloadToFile(context.Background(), srv.URL, filepath.Join(t.TempDir(), "x"))
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
	require.Equal(t, 2, hits)
}
