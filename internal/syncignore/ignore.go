// Package syncignore filters paths out of sync consideration using
// gitignore-style patterns, same as a repository's .gitignore.
package syncignore

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/opensync/syftsync/internal/utils"
	gitignore "github.com/sabhiram/go-gitignore"
)

// FileName is the name of the optional user-supplied ignore file, read from
// the datasites root alongside the default rule set below.
const FileName = ".syftignore"

var defaultIgnoreLines = []string{
	// our own bookkeeping
	".syftignore",
	"**/*.syftconflict.*",
	"**/*.syftrejected.*",
	"*.syft.tmp.*",
	".syftkeep",
	// python
	".ipynb_checkpoints/",
	"__pycache__/",
	"*.py[cod]",
	"dist/",
	"venv/",
	".venv/",
	// IDE/editor
	".vscode",
	".idea",
	// general
	".git",
	"*.tmp",
	"*.log",
	"logs/",
	// OS-specific
	".DS_Store",
	"Thumbs.db",
	"Icon",
}

// List matches paths against the default ignore rules plus any rules a
// user has added in a .syftignore file at the datasites root.
type List struct {
	baseDir string
	ignore  *gitignore.GitIgnore
}

// New creates a List rooted at baseDir. Call Load before ShouldIgnore.
func New(baseDir string) *List {
	return &List{baseDir: baseDir}
}

// Load compiles the default rules plus baseDir/.syftignore, if present.
func (l *List) Load() {
	ignorePath := filepath.Join(l.baseDir, FileName)
	lines := defaultIgnoreLines

	if utils.FileExists(ignorePath) {
		custom, err := readIgnoreFile(ignorePath)
		if err != nil {
			slog.Warn("failed to read ignore file", "path", ignorePath, "error", err)
		} else if len(custom) > 0 {
			lines = append(lines, custom...)
			slog.Info("loaded ignore file", "path", ignorePath, "rules", len(custom))
		}
	}

	l.ignore = gitignore.CompileIgnoreLines(lines...)
}

// ShouldIgnore reports whether the absolute path abs should be excluded
// from sync consideration. A path outside the base directory is never
// ignored.
func (l *List) ShouldIgnore(abs string) bool {
	rel, err := filepath.Rel(l.baseDir, abs)
	if err != nil {
		return false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return l.ignore.MatchesPath(rel)
}

func readIgnoreFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ignore file: %w", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.Contains(line, "\x00") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ignore file: %w", err)
	}
	return lines, nil
}
