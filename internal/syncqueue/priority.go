package syncqueue

import (
	"time"

	"github.com/opensync/syftsync/internal/permspec"
)

// Side identifies which replica last observed a change.
type Side int

const (
	Local Side = iota
	Remote
)

// FileChangeInfo describes one pending sync item.
type FileChangeInfo struct {
	Path             string
	SideLastModified Side
	DateLastModified time.Time
	FileSize         int64
}

// Priority returns the queue priority for path: 0 for permission files so
// they're always evaluated before content actions in the same cycle, else
// max(1, fileSize) so small files are preferred over large ones.
func Priority(path string, fileSize int64) int {
	if permspec.IsFileName(path) {
		return 0
	}
	if fileSize < 1 {
		return 1
	}
	return int(fileSize)
}
