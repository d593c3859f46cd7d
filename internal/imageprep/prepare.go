// Package imageprep turns one boarding-pass image into an ordered set of
// derived candidates for barcode decoding. Candidates live in a private temp
// directory that is removed by Set.Close.
package imageprep

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
)

// DefaultMaxPixels bounds the decoded source before any variant is derived.
const DefaultMaxPixels = 12_000_000

type Config struct {
	// Variants defaults to DefaultVariants.
	Variants []Variant
	// MaxPixels downsizes larger sources first; default DefaultMaxPixels.
	MaxPixels int
	// TempDir is the parent of each set's directory; default os.TempDir().
	TempDir string
}

// Candidate is one derived image on disk.
type Candidate struct {
	Name string
	Path string
}

// Set owns the candidate files of one Prepare call.
type Set struct {
	dir        string
	candidates []Candidate
}

// Paths returns candidate paths in decode order.
func (s *Set) Paths() []string {
	out := make([]string, len(s.candidates))
	for i, c := range s.candidates {
		out[i] = c.Path
	}
	return out
}

func (s *Set) Candidates() []Candidate { return s.candidates }

// Close removes every derived file. The source is never touched. Safe to call
// more than once.
func (s *Set) Close() error {
	if s == nil || s.dir == "" {
		return nil
	}
	dir := s.dir
	s.dir = ""
	return os.RemoveAll(dir)
}

type Preprocessor struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Preprocessor {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Variants) == 0 {
		cfg.Variants = DefaultVariants
	}
	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = DefaultMaxPixels
	}
	return &Preprocessor{cfg: cfg, logger: logger}
}

// Prepare decodes sourcePath and writes one PNG per variant. On any error the
// partial set is removed before returning.
func (p *Preprocessor) Prepare(ctx context.Context, sourcePath string) (_ *Set, err error) {
	start := time.Now()
	src, err := imaging.Open(sourcePath, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	src = p.bound(src)

	dir, err := os.MkdirTemp(p.cfg.TempDir, "bp-prep-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	// the named result is nil on error returns, so cleanup holds its own reference
	set := &Set{dir: dir}
	defer func() {
		if err != nil {
			if rmErr := set.Close(); rmErr != nil {
				p.logger.Warn("imageprep.cleanup.failed", "dir", dir, "error", rmErr)
			}
		}
	}()

	for i, v := range p.cfg.Variants {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if v.Apply == nil {
			set.candidates = append(set.candidates, Candidate{Name: v.Name, Path: sourcePath})
			continue
		}
		out, err := apply(v, src)
		if err != nil {
			p.logger.Warn("imageprep.variant.failed", "variant", v.Name, "error", err)
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("%02d_%s.png", i, v.Name))
		if err := imaging.Save(out, path); err != nil {
			return nil, fmt.Errorf("save variant %s: %w", v.Name, err)
		}
		set.candidates = append(set.candidates, Candidate{Name: v.Name, Path: path})
	}

	p.logger.Debug("imageprep.prepared",
		"source", sourcePath,
		"candidates", len(set.candidates),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return set, nil
}

// bound downsizes sources above MaxPixels, keeping the aspect ratio.
func (p *Preprocessor) bound(img image.Image) image.Image {
	b := img.Bounds()
	px := b.Dx() * b.Dy()
	if px <= p.cfg.MaxPixels {
		return img
	}
	ratio := math.Sqrt(float64(p.cfg.MaxPixels) / float64(px))
	w := int(float64(b.Dx()) * ratio)
	p.logger.Debug("imageprep.downscale", "from_w", b.Dx(), "to_w", w)
	return imaging.Resize(img, w, 0, imaging.Lanczos)
}

var errEmptyVariant = errors.New("variant produced an empty image")

// apply isolates a misbehaving variant so one bad transform does not abort
// the set.
func apply(v Variant, src image.Image) (out image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("variant %s panicked: %v", v.Name, r)
		}
	}()
	out = v.Apply(src)
	if out == nil || out.Bounds().Empty() {
		return nil, errEmptyVariant
	}
	return out, nil
}
