// Package syncclient is the external collaborator boundary: the HTTP
// contract to the server that stores blobs and metadata. Only the Client
// interface matters to the rest of this module; HTTPClient is one concrete,
// swappable implementation of it.
package syncclient

import (
	"context"
	"io"

	"github.com/opensync/syftsync/internal/syncmeta"
)

// RemoteFile is one entry of a datasite's authoritative remote file list.
type RemoteFile struct {
	Path         string
	Hash         string
	FileSize     int64
	LastModified int64 // unix seconds, as the wire format carries it
}

// Client is the six-method contract every sync component talks to instead
// of the concrete transport. Swappable for tests via a fake.
type Client interface {
	// GetRemoteState lists every file the server has for a datasite.
	GetRemoteState(ctx context.Context, datasite string) ([]RemoteFile, error)

	// GetMetadata fetches the server's current metadata for a single path.
	GetMetadata(ctx context.Context, path string) (*syncmeta.FileMetadata, error)

	// Download streams the content bytes for path.
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// DownloadBulk requests a zip archive of every path listed, for the
	// bulk-bootstrap fallback described in the sync loop.
	DownloadBulk(ctx context.Context, paths []string) (io.ReadCloser, error)

	// Upload sends path's content and rolling signature to the server,
	// returning the metadata the server recorded for it.
	Upload(ctx context.Context, path string, content io.Reader, signature syncmeta.RollingSignature) (*syncmeta.FileMetadata, error)

	// Delete removes path from the server.
	Delete(ctx context.Context, path string) error
}
