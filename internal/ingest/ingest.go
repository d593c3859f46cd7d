// Package ingest finds boarding-pass documents on disk, either by walking a
// directory once or by watching it for new files.
package ingest

import (
	"time"
)

// Document is one discovered file.
type Document struct {
	Path     string
	MimeType string
	Size     int64
	ModTime  time.Time
	HashHex  string
	// DuplicateOf is the first path seen with the same content, if any.
	DuplicateOf string
	Err         string
}

// DirStats summarizes a directory walk.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}
