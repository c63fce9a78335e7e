// Package ingest discovers invoice files on disk, either by walking the
// given paths once or by watching directories for new arrivals.
package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

// File is one discovered input.
type File struct {
	Path    string
	HashHex string
	// DuplicateOf names the earlier file with the same content, if any.
	DuplicateOf string
}

// Stats summarizes a scan.
type Stats struct {
	Scanned    uint32
	Matched    uint32
	Duplicates uint32
	Failed     uint32
}

// AllowedExt checks if a file extension is one the engine can extract.
func AllowedExt(ext string) bool {
	_, ok := constants.AllowedExtensions[constants.NormalizeExt(ext)]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return base != "." && base != ".." && strings.HasPrefix(base, ".")
}
