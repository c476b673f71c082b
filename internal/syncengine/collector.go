package syncengine

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/opensync/syftsync/internal/syncclient"
	"github.com/opensync/syftsync/internal/syncignore"
	"github.com/opensync/syftsync/internal/syncmeta"
)

// Collector gathers the two sides of the three-way diff: a walk of the
// local datasite directory, and the server's authoritative remote listing.
// Local scans are cache-aware by size+mtime, same as a file server's ETag
// cache, so an unmodified tree costs a stat pass rather than a rehash.
type Collector struct {
	root     string
	datasite string
	client   syncclient.Client
	ignore   *syncignore.List

	mu        sync.Mutex
	lastLocal map[string]*syncmeta.FileMetadata
}

// NewCollector creates a Collector rooted at root (the local directory for
// datasite), talking to client for the remote side.
func NewCollector(root, datasite string, client syncclient.Client, ignore *syncignore.List) *Collector {
	return &Collector{
		root:      root,
		datasite:  datasite,
		client:    client,
		ignore:    ignore,
		lastLocal: make(map[string]*syncmeta.FileMetadata),
	}
}

// ScanLocal walks root and returns metadata keyed by slash-separated
// relative path. A file whose size and modification time match the
// previous scan reuses its cached hash and signature instead of rereading
// the content.
func (c *Collector) ScanLocal() (map[string]*syncmeta.FileMetadata, error) {
	c.mu.Lock()
	prev := c.lastLocal
	c.mu.Unlock()

	next := make(map[string]*syncmeta.FileMetadata)

	err := filepath.WalkDir(c.root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("walk %s: %w", path, walkErr)
		}
		if d.IsDir() {
			return nil
		}
		if c.ignore != nil && c.ignore.ShouldIgnore(path) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			slog.Warn("collector: stat failed, skipping", "path", path, "error", err)
			return nil
		}

		rel := filepath.ToSlash(mustRel(c.root, path))

		if cached, ok := prev[rel]; ok && cached.FileSize == info.Size() && cached.LastModified.Equal(info.ModTime().UTC()) {
			next[rel] = cached
			return nil
		}

		meta, err := syncmeta.HashFile(path, c.root)
		if err != nil {
			slog.Warn("collector: hash failed, skipping", "path", path, "error", err)
			return nil
		}
		next[rel] = meta
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("local scan failed: %w", err)
	}

	c.mu.Lock()
	c.lastLocal = next
	c.mu.Unlock()

	return next, nil
}

// FetchRemote lists the datasite's authoritative remote state from the
// server and converts it to the same metadata shape as ScanLocal, so the
// two can be diffed directly.
func (c *Collector) FetchRemote(ctx context.Context) (map[string]*syncmeta.FileMetadata, error) {
	files, err := c.client.GetRemoteState(ctx, c.datasite)
	if err != nil {
		return nil, fmt.Errorf("fetch remote state for %s: %w", c.datasite, err)
	}

	state := make(map[string]*syncmeta.FileMetadata, len(files))
	for _, f := range files {
		if c.ignore != nil && c.ignore.ShouldIgnore(filepath.Join(c.root, filepath.FromSlash(f.Path))) {
			continue
		}
		state[f.Path] = &syncmeta.FileMetadata{
			Path:         f.Path,
			Hash:         f.Hash,
			FileSize:     f.FileSize,
			LastModified: time.Unix(f.LastModified, 0).UTC(),
		}
	}
	return state, nil
}

func mustRel(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return rel
}
