package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/boardingpass-tracker/constants"
)

// Scanner walks directories for supported documents.
type Scanner struct {
	SkipHidden bool
	// Dedupe drops files whose content matches an earlier file.
	Dedupe bool
	logger *slog.Logger
}

func NewScanner(skipHidden, dedupe bool, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{SkipHidden: skipHidden, Dedupe: dedupe, logger: logger}
}

// Inspect stats and hashes a single file.
func (s *Scanner) Inspect(path string) (Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Document{}, fmt.Errorf("abs path: %w", err)
	}
	ext := constants.NormalizeExt(filepath.Ext(abs))
	if ext == "" || !AllowedExt(ext) {
		return Document{}, fmt.Errorf("unsupported or missing extension: %q", ext)
	}

	f, err := os.Open(abs)
	if err != nil {
		return Document{}, fmt.Errorf("open: %w", err)
	}
	defer func(f *os.File) {
		if err := f.Close(); err != nil {
			s.logger.Warn("ingest.close.failed", "path", abs, "error", err)
		}
	}(f)

	info, err := f.Stat()
	if err != nil {
		return Document{}, fmt.Errorf("stat: %w", err)
	}
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return Document{}, fmt.Errorf("hash: %w", err)
	}
	return Document{
		Path:     abs,
		MimeType: constants.MimeFromExt(abs),
		Size:     info.Size(),
		ModTime:  info.ModTime().UTC(),
		HashHex:  hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// Discover walks root and returns every supported document in walk order.
// Unreadable entries are reported in the results and do not stop the walk.
func (s *Scanner) Discover(ctx context.Context, root string) ([]Document, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var results []Document
	var stats DirStats
	seen := map[string]string{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, Document{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if s.SkipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		doc, err := s.Inspect(path)
		if err != nil {
			results = append(results, Document{Path: path, Err: err.Error()})
			stats.Failed++
			return nil
		}
		if first, dup := seen[doc.HashHex]; dup {
			stats.Deduplicated++
			if s.Dedupe {
				s.logger.Debug("ingest.duplicate.skipped", "path", doc.Path, "duplicate_of", first)
				return nil
			}
			doc.DuplicateOf = first
		} else {
			seen[doc.HashHex] = doc.Path
		}
		results = append(results, doc)
		stats.Succeeded++
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}

	s.logger.Info("ingest.discover.done",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)
	return results, stats, nil
}
