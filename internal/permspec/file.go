package permspec

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// FileName is the fixed permission-file name per path directory.
	FileName = "_.syftperm"

	// AllFiles is the catch-all glob pattern.
	AllFiles = "**"
)

// File is a permission file: an ordered list of rules governing the
// directory it lives in (Dir) and, absent a closer override, its
// descendants.
type File struct {
	Rules []*Rule `json:"-"`
	Dir   string  `json:"-"`
}

// NewFile builds a File for dir with the given rules. If no rule matches
// AllFiles, a private default (no grants) is appended, matching the
// behavior of the teacher's legacy rule-set loader.
func NewFile(dir string, rules ...*Rule) *File {
	f := &File{Dir: WithoutFileName(dir), Rules: rules}
	f.ensureDefault()
	return f
}

func (f *File) ensureDefault() {
	for _, r := range f.Rules {
		if r.PathGlob == AllFiles {
			return
		}
	}
	f.Rules = append(f.Rules, NewRule(AllFiles, Everyone))
}

// IsFileName reports whether path's base name is the permission file name.
func IsFileName(path string) bool {
	return filepath.Base(path) == FileName
}

// AsFilePath converts a directory path to the exact permission-file path.
func AsFilePath(path string) string {
	if IsFileName(path) {
		return path
	}
	return filepath.Join(path, FileName)
}

// WithoutFileName truncates the permission file name from path, leaving the
// containing directory.
func WithoutFileName(path string) string {
	return strings.TrimSuffix(path, FileName)
}

// Exists reports whether a non-empty permission file exists at path (a
// directory or the file path itself).
func Exists(path string) bool {
	filePath := AsFilePath(path)
	stat, err := os.Stat(filePath)
	if err != nil {
		return false
	}
	return stat.Size() > 0
}

// LoadFromFile reads and parses the permission file governing dir.
func LoadFromFile(dir string) (*File, error) {
	filePath := AsFilePath(dir)
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return LoadFromBytes(dir, data)
}

// LoadFromBytes parses a JSON rule array into a File rooted at dir.
func LoadFromBytes(dir string, data []byte) (*File, error) {
	var rules []*Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse permission file %s: %w", AsFilePath(dir), err)
	}
	for _, r := range rules {
		if r.PathGlob == "" {
			return nil, fmt.Errorf("permission rule in %s: empty path glob", AsFilePath(dir))
		}
		if r.User == "" {
			return nil, fmt.Errorf("permission rule in %s: empty user", AsFilePath(dir))
		}
	}
	f := &File{Dir: WithoutFileName(dir), Rules: rules}
	f.ensureDefault()
	return f, nil
}

// Save writes the permission file atomically (temp file + rename) to its
// directory.
func (f *File) Save() error {
	data, err := json.MarshalIndent(f.Rules, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal permission file %s: %w", f.Dir, err)
	}

	filePath := AsFilePath(f.Dir)
	tmp, err := os.CreateTemp(filepath.Dir(filePath), ".tmp-"+FileName+"-*")
	if err != nil {
		return fmt.Errorf("create temp permission file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp permission file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp permission file: %w", err)
	}
	if err := os.Rename(tmpPath, filePath); err != nil {
		return fmt.Errorf("rename permission file into place: %w", err)
	}
	return nil
}

// PrivateFile returns a File with a single deny-all default rule.
func PrivateFile(dir string) *File {
	return NewFile(dir, NewRule(AllFiles, Everyone))
}
