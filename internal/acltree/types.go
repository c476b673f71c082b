// Package acltree merges permission files from a datasite root down to a
// target path into a single effective permission set.
package acltree

import "path/filepath"

var pathSep = string(filepath.Separator)

// User identifies the caller a permission check is evaluated for. The owner
// of a datasite bypasses all rule checks within it.
type User struct {
	Email   string
	IsOwner bool
}
