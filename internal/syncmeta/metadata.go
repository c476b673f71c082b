// Package syncmeta computes the per-file metadata the sync engine diffs
// against: a content hash, a delta-transfer rolling signature, size, and
// modification time.
package syncmeta

import "time"

// FileMetadata describes one file's content identity at a point in time.
type FileMetadata struct {
	Path         string
	Hash         string
	Signature    RollingSignature
	FileSize     int64
	LastModified time.Time
}

// HashEqual reports whether two metadata values refer to the same content,
// ignoring path and timestamp.
func (m *FileMetadata) HashEqual(other *FileMetadata) bool {
	if m == nil || other == nil {
		return m == other
	}
	return m.Hash == other.Hash
}

// Newer reports whether m was last modified strictly after other.
func (m *FileMetadata) Newer(other *FileMetadata) bool {
	if m == nil || other == nil {
		return false
	}
	return m.LastModified.After(other.LastModified)
}
