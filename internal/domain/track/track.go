// Package track provides the Track domain entity.
package track

import (
	"path/filepath"
	"strings"
	"time"
)

// Track represents one audio file in the library.
type Track struct {
	Name     string        // File name, relative to the library directory
	Size     int64         // Size in bytes
	Duration time.Duration // Measured duration (0 if unknown)
}

// HasExtension reports whether name ends with ext, ignoring case.
// An empty ext matches every name.
func HasExtension(name, ext string) bool {
	if ext == "" {
		return true
	}
	return strings.EqualFold(filepath.Ext(name), ext)
}

// ValidName reports whether name can be used to address a file directly
// inside the library directory without escaping it.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.ContainsRune(name, 0)
}

// PositionAt estimates the playback position after offset bytes.
// Chunking is byte oriented, so this assumes a constant bit rate.
func (t *Track) PositionAt(offset int64) time.Duration {
	if t.Size <= 0 || t.Duration <= 0 || offset <= 0 {
		return 0
	}
	if offset >= t.Size {
		return t.Duration
	}
	return time.Duration(float64(t.Duration) * float64(offset) / float64(t.Size))
}
