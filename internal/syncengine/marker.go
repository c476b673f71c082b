package syncengine

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/opensync/syftsync/internal/utils"
)

// MarkerType names a dot-suffix tag applied to a file instead of a regular
// write, used when a server-rejected action needs to preserve the local
// copy a user would otherwise lose.
type MarkerType string

const (
	// Rejected marks a file the server refused to accept.
	Rejected MarkerType = ".syftrejected"
	// Conflict marks a file that lost a last-writer-wins resolution.
	Conflict MarkerType = ".syftconflict"
)

var allMarkers = []MarkerType{Rejected, Conflict}

const (
	timeFormat       = "20060102150405"
	timestampPattern = `\d{14}`
)

var markerRegexes = make(map[MarkerType]*regexp.Regexp)

func init() {
	for _, marker := range allMarkers {
		pattern := fmt.Sprintf(`%s(\.%s)?`, regexp.QuoteMeta(string(marker)), timestampPattern)
		markerRegexes[marker] = regexp.MustCompile(pattern)
	}
}

// SetMarker renames path to carry mtype, rotating any existing marked file
// aside by timestamp first. Returns the new path.
func SetMarker(path string, mtype MarkerType) (string, error) {
	if !utils.FileExists(path) {
		return "", fmt.Errorf("mark file: source does not exist: %s", path)
	}

	markedPath := asMarkedPath(path, mtype)

	if utils.FileExists(markedPath) {
		rotatedPath := asRotatedPath(markedPath, time.Now())
		if err := os.Rename(markedPath, rotatedPath); err != nil {
			return "", fmt.Errorf("rotate existing marked file %s to %s: %w", markedPath, rotatedPath, err)
		}
		slog.Debug("rotated marked file", "from", markedPath, "to", rotatedPath)
	}

	if err := os.Rename(path, markedPath); err != nil {
		return "", fmt.Errorf("mark file %s to %s: %w", path, markedPath, err)
	}
	return markedPath, nil
}

// IsMarkedPath reports whether path carries any known marker.
func IsMarkedPath(path string) bool {
	return strings.Contains(path, string(Conflict)) || strings.Contains(path, string(Rejected))
}

// IsConflictPath reports whether path is specifically marked as a conflict.
func IsConflictPath(path string) bool {
	return slices.Contains(GetMarkers(path), Conflict)
}

// IsRejectedPath reports whether path is specifically marked as rejected.
func IsRejectedPath(path string) bool {
	return slices.Contains(GetMarkers(path), Rejected)
}

// GetUnmarkedPath strips every known marker (and rotation timestamp) from path.
func GetUnmarkedPath(path string) string {
	unmarked := path
	for _, marker := range allMarkers {
		unmarked = markerRegexes[marker].ReplaceAllString(unmarked, "")
	}
	return unmarked
}

// GetMarkers lists every marker found in path.
func GetMarkers(path string) []MarkerType {
	var found []MarkerType
	for _, marker := range allMarkers {
		if markerRegexes[marker].MatchString(path) {
			found = append(found, marker)
		}
	}
	return found
}

func asMarkedPath(path string, marker MarkerType) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	return base + string(marker) + ext
}

func asRotatedPath(path string, t time.Time) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	return fmt.Sprintf("%s.%s%s", base, t.Format(timeFormat), ext)
}
