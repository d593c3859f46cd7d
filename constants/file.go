package constants

import (
	"path/filepath"
	"strings"
)

// Format is the coarse document family used to pick extraction strategies.
type Format string

const (
	PDF   Format = "PDF"
	IMAGE Format = "IMAGE"
)

// MIME types accepted by the extraction pipeline.
const (
	MimePDF  = "application/pdf"
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
)

// AllowedExtensions holds the file extensions picked up by batch runs.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

// MaxVisionMBDefault caps the document size sent to the vision model.
const MaxVisionMBDefault = 15

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// NormalizeMime lowercases a MIME type and drops parameters ("; charset=...").
func NormalizeMime(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	mime = strings.ToLower(strings.TrimSpace(mime))
	if mime == "image/jpg" {
		return MimeJPEG
	}
	return mime
}

// MapMimeToFormat returns "" for unsupported MIME types.
func MapMimeToFormat(mime string) Format {
	switch NormalizeMime(mime) {
	case MimePDF:
		return PDF
	case MimeJPEG, MimePNG:
		return IMAGE
	default:
		return ""
	}
}

// MimeFromExt guesses the MIME type from a file name. Returns "" when unknown.
func MimeFromExt(path string) string {
	switch NormalizeExt(filepath.Ext(path)) {
	case "pdf":
		return MimePDF
	case "jpg", "jpeg":
		return MimeJPEG
	case "png":
		return MimePNG
	default:
		return ""
	}
}
