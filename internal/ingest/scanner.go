package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// Scanner expands files and directories into the PDFs they contain.
type Scanner struct {
	SkipHidden bool
	logger     *slog.Logger
}

func NewScanner(skipHidden bool, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{SkipHidden: skipHidden, logger: logger}
}

// Scan walks inputs and returns the supported files sorted by path. Files
// whose bytes match an earlier file are returned with DuplicateOf set so
// callers can skip them. A missing input is an error; unreadable entries
// below a directory are logged and counted as failed.
func (s *Scanner) Scan(ctx context.Context, inputs []string) ([]File, Stats, error) {
	var stats Stats
	seen := map[string]struct{}{}
	var paths []string

	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			return nil, stats, fmt.Errorf("input %s: %w", in, err)
		}
		if !info.IsDir() {
			stats.Scanned++
			if AllowedExt(filepath.Ext(in)) {
				paths = appendUnique(paths, seen, in)
			}
			continue
		}
		err = filepath.WalkDir(in, func(path string, d fs.DirEntry, walkErr error) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if walkErr != nil {
				s.logger.Warn("skipping unreadable path", "path", path, "error", walkErr)
				stats.Failed++
				return nil
			}
			if s.SkipHidden && path != in && IsHidden(path) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			stats.Scanned++
			if AllowedExt(filepath.Ext(path)) {
				paths = appendUnique(paths, seen, path)
			}
			return nil
		})
		if err != nil {
			return nil, stats, fmt.Errorf("walk %s: %w", in, err)
		}
	}
	sort.Strings(paths)

	files := make([]File, 0, len(paths))
	byHash := map[string]string{}
	for _, path := range paths {
		sum, err := HashFile(path)
		if err != nil {
			s.logger.Warn("hash failed", "path", path, "error", err)
			stats.Failed++
			continue
		}
		stats.Matched++
		f := File{Path: path, HashHex: sum}
		if first, ok := byHash[sum]; ok {
			f.DuplicateOf = first
			stats.Duplicates++
			s.logger.Info("duplicate content", "path", path, "duplicate_of", first)
		} else {
			byHash[sum] = path
		}
		files = append(files, f)
	}
	return files, stats, nil
}

func appendUnique(paths []string, seen map[string]struct{}, p string) []string {
	key := filepath.Clean(p)
	if _, ok := seen[key]; ok {
		return paths
	}
	seen[key] = struct{}{}
	return append(paths, p)
}

// HashFile returns the hex SHA-256 of the file's contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
