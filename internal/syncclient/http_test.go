package syncclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/opensync/syftsync/internal/syncmeta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_GetRemoteState_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/sync/state", r.URL.Path)
		assert.Equal(t, "alice@example.com", r.URL.Query().Get("datasite"))
		_ = json.NewEncoder(w).Encode([]RemoteFile{{Path: "a.txt", Hash: "h1"}})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "alice@example.com")
	files, err := c.GetRemoteState(context.Background(), "alice@example.com")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.txt", files[0].Path)
}

func TestHTTPClient_GetMetadata_PermissionDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(apiError{Error: "no write access"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "alice@example.com")
	_, err := c.GetMetadata(context.Background(), "a.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPermission)
}

func TestHTTPClient_Upload_ValidationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		_ = json.NewEncoder(w).Encode(apiError{Error: "too large"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "alice@example.com")
	_, err := c.Upload(context.Background(), "a.txt", bytesReader("hello"), syncmeta.RollingSignature{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestHTTPClient_Download_StreamsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("file contents"))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "alice@example.com")
	rc, err := c.Download(context.Background(), "a.txt")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "file contents", string(data))
}

func TestHTTPClient_Delete_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(apiError{Error: "boom"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "alice@example.com")
	err := c.Delete(context.Background(), "a.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServer)
}

type stringReader struct{ s string }

func bytesReader(s string) io.Reader { return &stringReader{s: s} }

func (r *stringReader) Read(p []byte) (int, error) {
	n := copy(p, r.s)
	r.s = r.s[n:]
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}
