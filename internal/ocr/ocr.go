// Package ocr turns PDFs and images into plain text: embedded PDF text first,
// then page rendering and text recognition.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/boardingpass-tracker/constants"
)

// ErrNoText is returned when an engine ran but produced nothing usable.
var ErrNoText = errors.New("ocr: no text extracted")

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng+spa"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	MaxPages      int    // 0 = no limit

	TessdataDir         string
	EnableTSVConfidence bool

	PSM int // e.g., 6 is good for uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default

	// Timeout bounds each external command; default 30s.
	Timeout time.Duration
}

type ExtractionResult struct {
	Text       string
	Pages      int
	SourceType constants.Format
	Method     string // "pdftotext" | "pdf-go" | "pdf-ocr" | "image-ocr"
	Engine     string // recognizer name for OCR methods
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float32
}

// Recognizer turns a single raster image into text. conf is in 0..1, or 0
// when the engine does not report one.
type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, imagePath string) (text string, conf float32, err error)
}

type Extractor struct {
	cfg        Config
	runner     Runner
	recognizer Recognizer
	logger     *slog.Logger
}

type Option func(*Extractor)

// WithRunner replaces the command runner (tests).
func WithRunner(r Runner) Option {
	return func(e *Extractor) { e.runner = r }
}

// WithRecognizer replaces the default tesseract recognizer.
func WithRecognizer(r Recognizer) Option {
	return func(e *Extractor) { e.recognizer = r }
}

func NewExtractor(cfg Config, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng+spa"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	e := &Extractor{cfg: cfg, runner: ExecRunner{}, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	if e.recognizer == nil {
		e.recognizer = &Tesseract{cfg: e.cfg, runner: e.runner, logger: logger}
	}
	return e
}

// Runner exposes the command runner so sibling engines share it.
func (e *Extractor) Runner() Runner { return e.runner }

// Extract picks a strategy based on file extension: embedded text for PDFs
// with a recognition fallback, recognition for images.
func (e *Extractor) Extract(ctx context.Context, path string) (ExtractionResult, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	e.logger.Debug("starting ocr extraction", "path", path, "method", "auto", "ext", ext)
	switch constants.MapMimeToFormat(constants.MimeFromExt(path)) {
	case constants.PDF:
		res, err := e.PDFText(ctx, path)
		if err == nil {
			res.Duration = time.Since(start)
			return res, nil
		}
		e.logger.Debug("pdf has no embedded text, rendering", "path", path, "error", err)
		res, err = e.Recognize(ctx, path, constants.PDF)
		res.Duration = time.Since(start)
		return res, err
	case constants.IMAGE:
		res, err := e.Recognize(ctx, path, constants.IMAGE)
		res.Duration = time.Since(start)
		return res, err
	default:
		e.logger.Error("unsupported ocr extension", "extension", ext)
		return ExtractionResult{}, fmt.Errorf("unsupported extension: %q", ext)
	}
}

// Recognize runs the configured recognizer over an image, or over each
// rendered page of a PDF. Rendered pages are removed before returning.
func (e *Extractor) Recognize(ctx context.Context, path string, format constants.Format) (ExtractionResult, error) {
	start := time.Now()
	if format == constants.IMAGE {
		res, err := e.recognizeImage(ctx, path)
		res.Duration = time.Since(start)
		return res, err
	}

	tmpDir, err := os.MkdirTemp("", "bp-ocr-*")
	if err != nil {
		return ExtractionResult{SourceType: constants.PDF}, err
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			e.logger.Warn("failed to remove temp dir", "dir", path, "error", err)
		}
	}(tmpDir)

	res, err := e.pdfToOCR(ctx, path, tmpDir)
	res.Duration = time.Since(start)
	return res, err
}

func (e *Extractor) recognizeImage(ctx context.Context, path string) (ExtractionResult, error) {
	cctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	txt, engineConf, err := e.recognizer.Recognize(cctx, path)
	res := ExtractionResult{
		SourceType: constants.IMAGE,
		Method:     "image-ocr",
		Engine:     e.recognizer.Name(),
		Language:   e.cfg.TesseractLang,
		Pages:      1,
	}
	if err != nil {
		return res, fmt.Errorf("%s: %w", e.recognizer.Name(), err)
	}
	res.Text = Normalize(txt)
	if res.Text == "" {
		return res, ErrNoText
	}
	res.Confidence = blend(engineConf, heuristicConfidence(res.Text))
	return res, nil
}
