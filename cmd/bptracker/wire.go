package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joseph-ayodele/boardingpass-tracker/constants"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/airports"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/barcode"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/common"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/core"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/imageprep"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/llm/gemini"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/metadata"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/metrics"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/ocr"
	repo "github.com/joseph-ayodele/boardingpass-tracker/internal/repository"
)

// stack is everything one command needs to run extractions.
type stack struct {
	processor *core.Processor
	text      *ocr.Extractor
	airports  airports.Directory
	registry  *prometheus.Registry
	metadata  *metadata.Extractor

	closers []func()
}

func (s *stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func (a *app) dbConfig() repo.Config {
	d := a.cfg.Database
	return repo.Config{
		Driver:           d.Driver,
		DSN:              d.DSN,
		MaxConns:         d.MaxConns,
		MinConns:         d.MinConns,
		MaxConnLifetime:  d.MaxConnLifetime,
		MaxConnIdleTime:  d.MaxConnIdleTime,
		DialTimeout:      d.DialTimeout,
		StatementTimeout: d.StatementTimeout,
	}
}

// loadAirports snapshots the airport store. Extraction never depends on the
// database being up: any failure falls back to the embedded directory.
func (a *app) loadAirports(ctx context.Context) airports.Directory {
	fallback := airports.Default()
	db, err := repo.Open(ctx, a.dbConfig(), a.logger)
	if err != nil {
		a.logger.Warn("airports.store.unavailable", "error", err, "fallback", "embedded")
		return fallback
	}
	defer db.Close()
	return repo.LoadDirectory(ctx, repo.NewAirportStore(db.Driver, a.logger), fallback, a.logger)
}

func (a *app) textExtractor(ctx context.Context) (*ocr.Extractor, func(), error) {
	c := a.cfg.OCR
	cfg := ocr.Config{
		Pdftotext:           c.Pdftotext,
		Pdftoppm:            c.Pdftoppm,
		Tesseract:           c.Tesseract,
		TesseractLang:       c.TesseractLang,
		TessdataDir:         c.TessdataDir,
		DPI:                 c.DPI,
		MaxPages:            c.MaxPages,
		EnableTSVConfidence: true,
		PSM:                 6,
		Timeout:             c.Timeout,
	}
	if c.Engine != "vision" {
		return ocr.NewExtractor(cfg, a.logger), func() {}, nil
	}
	rec, err := ocr.NewVisionRecognizer(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("vision ocr: %w", err)
	}
	closeFn := func() {
		if err := rec.Close(); err != nil {
			a.logger.Warn("ocr.vision.close_failed", "error", err)
		}
	}
	return ocr.NewExtractor(cfg, a.logger, ocr.WithRecognizer(rec)), closeFn, nil
}

func (a *app) geminiClient() *gemini.Client {
	l := a.cfg.LLM
	return gemini.NewClient(gemini.Config{
		APIKey:      l.APIKey,
		BaseURL:     l.BaseURL,
		Model:       l.Model,
		Temperature: l.Temperature,
		Timeout:     l.Timeout,
		MaxMB:       constants.MaxVisionMBDefault,
	}, a.logger)
}

// buildStack wires the processor from configuration.
func (a *app) buildStack(ctx context.Context) (*stack, error) {
	s := &stack{registry: prometheus.NewRegistry(), metadata: metadata.New(a.logger)}

	text, closeText, err := a.textExtractor(ctx)
	if err != nil {
		return nil, err
	}
	s.text = text
	s.closers = append(s.closers, closeText)

	s.airports = a.loadAirports(ctx)

	b := a.cfg.Barcode
	decoder := barcode.NewDecoder(barcode.Config{
		ZXingReader:   b.ZXingReader,
		Zbarimg:       b.Zbarimg,
		NativeTimeout: b.NativeTimeout,
		CLITimeout:    b.CLITimeout,
		TotalTimeout:  b.TotalTimeout,
		Accept:        core.AcceptBCBP,
	}, a.logger, barcode.WithRunner(text.Runner()))

	obs, err := metrics.NewExtraction(s.registry)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("metrics: %w", err)
	}

	comps := core.Components{
		Preparer: imageprep.New(imageprep.Config{}, a.logger),
		Barcode:  decoder,
		Text:     text,
		Airports: s.airports,
		Observer: obs,
	}
	// a nil *gemini.Client would make a non-nil interface
	if a.cfg.AIEnabled() {
		comps.AI = a.geminiClient()
		a.logger.Info("ai.fallback.enabled", "model", a.cfg.LLM.Model)
	} else {
		a.logger.Warn("ai.fallback.disabled", "reason", "GEMINI_API_KEY not set")
	}

	s.processor = core.NewProcessor(core.Config{
		RunTimeout:  a.cfg.Pipeline.RunTimeout,
		MatchWindow: a.cfg.Pipeline.MetadataMatchWindow,
	}, comps, a.logger)
	return s, nil
}

// request builds a run request for path, taking the capture date from the
// flag when given and otherwise from the file's mtime or EXIF data.
func (s *stack) request(path, mime string, modTime time.Time, captureFlag *time.Time, year int) core.Request {
	req := core.Request{FilePath: path, MimeType: mime, SelectedYear: year}
	if captureFlag != nil {
		req.CaptureDate = captureFlag
		return req
	}
	var client *time.Time
	if !modTime.IsZero() {
		client = &modTime
	}
	if mime == "" {
		mime = constants.MimeFromExt(path)
	}
	hint := s.metadata.CaptureDate(path, mime, client, time.Time{})
	if hint.Source != metadata.SourceFallback {
		d := hint.Date
		req.CaptureDate = &d
	}
	return req
}

// parseDateFlag accepts YYYY-MM-DD or RFC 3339.
func parseDateFlag(name, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: --%s %q, use YYYY-MM-DD", common.ErrInvalidInput, name, v)
}
