package metadata

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// jpegWithExif builds the smallest JPEG goexif accepts: an APP1 segment with
// IFD0 -> Exif IFD -> DateTimeOriginal.
func jpegWithExif(t *testing.T, date string) string {
	t.Helper()
	require.Len(t, date, 19)

	le := binary.LittleEndian
	var tiff bytes.Buffer
	tiff.WriteString("II")
	_ = binary.Write(&tiff, le, uint16(42))
	_ = binary.Write(&tiff, le, uint32(8))
	// IFD0 at 8: one entry pointing at the Exif IFD at 26
	_ = binary.Write(&tiff, le, uint16(1))
	_ = binary.Write(&tiff, le, []uint16{0x8769, 4})
	_ = binary.Write(&tiff, le, []uint32{1, 26, 0})
	// Exif IFD at 26: DateTimeOriginal, ASCII[20] stored at 44
	_ = binary.Write(&tiff, le, uint16(1))
	_ = binary.Write(&tiff, le, []uint16{0x9003, 2})
	_ = binary.Write(&tiff, le, []uint32{20, 44, 0})
	tiff.WriteString(date + "\x00")

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)
	var jpg bytes.Buffer
	jpg.Write([]byte{0xFF, 0xD8, 0xFF, 0xE1})
	_ = binary.Write(&jpg, binary.BigEndian, uint16(len(payload)+2))
	jpg.Write(payload)
	jpg.Write([]byte{0xFF, 0xD9})

	path := filepath.Join(t.TempDir(), "photo.jpg")
	require.NoError(t, os.WriteFile(path, jpg.Bytes(), 0o600))
	return path
}

var (
	now      = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	fallback = time.Date(2025, 6, 20, 9, 0, 0, 0, time.UTC)
)

func newExtractor() *Extractor {
	return New(nil, WithClock(func() time.Time { return now }))
}

func TestExifDate(t *testing.T) {
	d, err := ExifDate(jpegWithExif(t, "2024:03:05 10:20:30"))
	require.NoError(t, err)
	assert.Equal(t, 2024, d.Year())
	assert.Equal(t, time.March, d.Month())
	assert.Equal(t, 5, d.Day())
}

func TestCaptureDate(t *testing.T) {
	photo := jpegWithExif(t, "2025:06:12 08:00:00")
	plain := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, os.WriteFile(plain, []byte("\x89PNG"), 0o600))

	recent := time.Date(2025, 6, 13, 22, 0, 0, 0, time.UTC)
	ancient := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	future := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	edge := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		path   string
		mime   string
		client *time.Time
		source Source
		day    int
	}{
		{"client wins", photo, "image/jpeg", &recent, SourceClient, 13},
		{"client two years back", plain, "image/png", &edge, SourceClient, 1},
		{"old client falls to exif", photo, "image/jpeg", &ancient, SourceEXIF, 12},
		{"future client falls to exif", photo, "image/jpg", &future, SourceEXIF, 12},
		{"no client uses exif", photo, "image/jpeg", nil, SourceEXIF, 12},
		{"png never reads exif", plain, "image/png", nil, SourceFallback, 20},
		{"jpeg without exif", plain, "image/jpeg", nil, SourceFallback, 20},
		{"missing file", filepath.Join(t.TempDir(), "gone.jpg"), "image/jpeg", nil, SourceFallback, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newExtractor().CaptureDate(tt.path, tt.mime, tt.client, fallback)
			assert.Equal(t, tt.source, h.Source)
			assert.Equal(t, tt.day, h.Date.Day())
		})
	}
}

func TestCaptureDate_FutureExifIgnored(t *testing.T) {
	photo := jpegWithExif(t, "2030:01:01 00:00:00")
	h := newExtractor().CaptureDate(photo, "image/jpeg", nil, fallback)
	assert.Equal(t, SourceFallback, h.Source)
}
