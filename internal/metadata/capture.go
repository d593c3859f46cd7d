// Package metadata works out when a boarding-pass document was captured. The
// capture date is the hint used to resolve years the document itself omits.
package metadata

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/joseph-ayodele/boardingpass-tracker/constants"
)

// Source names where a capture date came from.
type Source string

const (
	SourceClient   Source = "client_last_modified"
	SourceEXIF     Source = "exif"
	SourceFallback Source = "fallback"
)

// Hint is a capture date with its provenance.
type Hint struct {
	Date   time.Time
	Source Source
}

// clientYearsBack bounds how old a client-reported timestamp may be.
const clientYearsBack = 2

type Extractor struct {
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Extractor)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

func New(logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Extractor{logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CaptureDate picks, in order: the client's lastModified timestamp when its
// year is within the last two years, the JPEG EXIF date, then fallback.
// Screenshots rarely carry EXIF, so the client timestamp goes first.
func (e *Extractor) CaptureDate(path, mime string, clientLastModified *time.Time, fallback time.Time) Hint {
	now := e.now()
	if clientLastModified != nil {
		y := clientLastModified.UTC().Year()
		if y >= now.Year()-clientYearsBack && y <= now.Year() {
			return Hint{Date: clientLastModified.UTC(), Source: SourceClient}
		}
		e.logger.Warn("metadata.client_date.out_of_range",
			"last_modified", clientLastModified.UTC().Format(time.RFC3339),
			"min_year", now.Year()-clientYearsBack,
			"max_year", now.Year(),
		)
	}

	if constants.NormalizeMime(mime) == constants.MimeJPEG && path != "" {
		t, err := ExifDate(path)
		switch {
		case err != nil:
			e.logger.Debug("metadata.exif.unavailable", "path", path, "error", err)
		case t.After(now):
			e.logger.Warn("metadata.exif.future_date", "path", path, "date", t.Format(time.RFC3339))
		default:
			return Hint{Date: t, Source: SourceEXIF}
		}
	}

	return Hint{Date: fallback, Source: SourceFallback}
}

// ExifDate returns DateTimeOriginal, or DateTime when the original is missing.
func ExifDate(path string) (time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode exif: %w", err)
	}
	t, err := x.DateTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("exif date: %w", err)
	}
	return t, nil
}
