package syncclient

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/imroc/req/v3"
	"github.com/opensync/syftsync/internal/syncmeta"
	"github.com/opensync/syftsync/internal/version"
)

// deviceID is a stable, unlinkable-to-other-apps hardware identifier sent
// on every request so the server can correlate retries from the same node.
func deviceID() string {
	id, err := machineid.ProtectedID("syftsync")
	if err != nil {
		return "unknown"
	}
	return id
}

const (
	pathRemoteState = "/api/v1/sync/state"
	pathMetadata    = "/api/v1/sync/metadata"
	pathDownload    = "/api/v1/sync/download"
	pathDownloadAll = "/api/v1/sync/download_bulk"
	pathUpload      = "/api/v1/sync/upload"
	pathDelete      = "/api/v1/sync/delete"
)

// apiError is the JSON error body the server returns alongside a non-2xx status.
type apiError struct {
	Error string `json:"error"`
}

// HTTPClient is the concrete default Client implementation, talking to the
// server over HTTPS with connection pooling and up to three retries of a
// request that fails with a transport error; a 5xx response is not retried.
type HTTPClient struct {
	req   *req.Client
	email string
}

// NewHTTPClient builds an HTTPClient rooted at baseURL, authenticating as email.
func NewHTTPClient(baseURL, email string) *HTTPClient {
	c := req.C().
		SetBaseURL(baseURL).
		SetTLSClientConfig(&tls.Config{MinVersion: tls.VersionTLS12}).
		SetCommonRetryCount(3).
		SetCommonRetryFixedInterval(time.Second).
		SetUserAgent("syftsync/" + version.Version).
		SetCommonHeader("X-Syft-Device-Id", deviceID()).
		SetCommonHeader("X-Syft-User", email).
		SetCommonQueryParam("user", email)

	return &HTTPClient{req: c, email: email}
}

func readAPIError(body io.Reader) apiError {
	var apiErr apiError
	data, err := io.ReadAll(body)
	if err != nil {
		return apiErr
	}
	_ = json.Unmarshal(data, &apiErr)
	return apiErr
}

func mapStatus(statusCode int, body apiError) error {
	switch {
	case statusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrPermission, body.Error)
	case statusCode == http.StatusRequestEntityTooLarge:
		return fmt.Errorf("%w: %s", ErrValidation, body.Error)
	case statusCode >= 500:
		return fmt.Errorf("%w: status %d: %s", ErrServer, statusCode, body.Error)
	default:
		return fmt.Errorf("syncclient: unexpected status %d: %s", statusCode, body.Error)
	}
}

func (c *HTTPClient) GetRemoteState(ctx context.Context, datasite string) ([]RemoteFile, error) {
	var files []RemoteFile
	var apiErr apiError

	resp, err := c.req.R().
		SetContext(ctx).
		SetQueryParam("datasite", datasite).
		SetSuccessResult(&files).
		SetErrorResult(&apiErr).
		Get(pathRemoteState)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNetwork, err)
	}
	if resp.IsErrorState() {
		return nil, mapStatus(resp.GetStatusCode(), apiErr)
	}
	return files, nil
}

func (c *HTTPClient) GetMetadata(ctx context.Context, path string) (*syncmeta.FileMetadata, error) {
	var meta syncmeta.FileMetadata
	var apiErr apiError

	resp, err := c.req.R().
		SetContext(ctx).
		SetQueryParam("path", path).
		SetSuccessResult(&meta).
		SetErrorResult(&apiErr).
		Get(pathMetadata)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNetwork, err)
	}
	if resp.IsErrorState() {
		return nil, mapStatus(resp.GetStatusCode(), apiErr)
	}
	return &meta, nil
}

func (c *HTTPClient) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	resp, err := c.req.R().
		DisableAutoReadResponse().
		SetContext(ctx).
		SetQueryParam("path", path).
		Get(pathDownload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNetwork, err)
	}
	if resp.IsErrorState() {
		defer resp.Body.Close()
		return nil, mapStatus(resp.GetStatusCode(), readAPIError(resp.Body))
	}
	return resp.Body, nil
}

func (c *HTTPClient) DownloadBulk(ctx context.Context, paths []string) (io.ReadCloser, error) {
	resp, err := c.req.R().
		DisableAutoReadResponse().
		SetContext(ctx).
		SetBody(map[string][]string{"paths": paths}).
		Post(pathDownloadAll)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNetwork, err)
	}
	if resp.IsErrorState() {
		defer resp.Body.Close()
		return nil, mapStatus(resp.GetStatusCode(), readAPIError(resp.Body))
	}
	return resp.Body, nil
}

func (c *HTTPClient) Upload(ctx context.Context, path string, content io.Reader, signature syncmeta.RollingSignature) (*syncmeta.FileMetadata, error) {
	var meta syncmeta.FileMetadata
	var apiErr apiError

	resp, err := c.req.R().
		SetContext(ctx).
		SetQueryParam("path", path).
		SetFileReader("file", path, content).
		SetFileBytes("signature", path+".sig", signature.Marshal()).
		SetSuccessResult(&meta).
		SetErrorResult(&apiErr).
		Put(pathUpload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNetwork, err)
	}
	if resp.IsErrorState() {
		return nil, mapStatus(resp.GetStatusCode(), apiErr)
	}
	return &meta, nil
}

func (c *HTTPClient) Delete(ctx context.Context, path string) error {
	var apiErr apiError

	resp, err := c.req.R().
		SetContext(ctx).
		SetQueryParam("path", path).
		SetErrorResult(&apiErr).
		Delete(pathDelete)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNetwork, err)
	}
	if resp.IsErrorState() {
		return mapStatus(resp.GetStatusCode(), apiErr)
	}
	return nil
}

var _ Client = (*HTTPClient)(nil)
