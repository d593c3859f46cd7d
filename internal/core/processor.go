// Package core runs one boarding-pass extraction: barcode first, then PDF text,
// then OCR, then the AI vision fallback, scoring every candidate on the way.
package core

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/boardingpass-tracker/constants"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/airports"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/barcode"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/bcbp"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/common"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/confidence"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/imageprep"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/llm"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/ocr"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/textparse"
)

// Preparer derives barcode candidates from one image.
type Preparer interface {
	Prepare(ctx context.Context, sourcePath string) (*imageprep.Set, error)
}

// BarcodeDecoder returns the first accepted payload among candidates.
type BarcodeDecoder interface {
	Decode(ctx context.Context, candidates []string) (barcode.Result, bool)
}

// TextExtractor is the text side of the ocr package.
type TextExtractor interface {
	PDFText(ctx context.Context, path string) (ocr.ExtractionResult, error)
	RenderPDF(ctx context.Context, path, dir string) ([]string, error)
	Recognize(ctx context.Context, path string, format constants.Format) (ocr.ExtractionResult, error)
}

// Observer receives run and attempt measurements.
type Observer interface {
	ObserveAttempt(engine, outcome string, d time.Duration)
	ObserveRun(status string, d time.Duration)
}

type noopObserver struct{}

func (noopObserver) ObserveAttempt(string, string, time.Duration) {}
func (noopObserver) ObserveRun(string, time.Duration)             {}

type Config struct {
	// RunTimeout bounds a whole run; default 2m.
	RunTimeout time.Duration
	// MatchWindow is how close a capture date must be to trust the year; default 72h.
	MatchWindow time.Duration
	// TempDir is the parent of per-run scratch directories; default os.TempDir().
	TempDir string
}

// Components are the engines a Processor drives. Preparer, Barcode and Text
// are required. AI is optional; a nil AI disables the fallback.
type Components struct {
	Preparer Preparer
	Barcode  BarcodeDecoder
	Text     TextExtractor
	AI       llm.FieldExtractor
	Airports airports.Directory
	Observer Observer
}

// Processor coordinates barcode, text, OCR and AI extraction for one document
// at a time. It holds no per-run state and is safe for concurrent use.
type Processor struct {
	cfg      Config
	logger   *slog.Logger
	prep     Preparer
	decoder  BarcodeDecoder
	text     TextExtractor
	ai       llm.FieldExtractor
	dir      airports.Directory
	calc     *confidence.Calculator
	resolver bcbp.Resolver
	pdfParse *textparse.Parser
	ocrParse *textparse.Parser
	observer Observer
}

func NewProcessor(cfg Config, c Components, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 2 * time.Minute
	}
	if cfg.MatchWindow <= 0 {
		cfg.MatchWindow = bcbp.DefaultMatchWindow
	}
	dir := c.Airports
	if dir == nil {
		dir = airports.Default()
	}
	obs := c.Observer
	if obs == nil {
		obs = noopObserver{}
	}
	return &Processor{
		cfg:      cfg,
		logger:   logger,
		prep:     c.Preparer,
		decoder:  c.Barcode,
		text:     c.Text,
		ai:       c.AI,
		dir:      dir,
		calc:     confidence.NewCalculator(dir),
		resolver: bcbp.NewResolver(cfg.MatchWindow),
		pdfParse: textparse.NewParser(textparse.PDFText, dir),
		ocrParse: textparse.NewParser(textparse.OCR, dir),
		observer: obs,
	}
}

// AcceptBCBP is a barcode.Config.Accept filter: only payloads that parse as
// boarding passes end the barcode search.
func AcceptBCBP(text string) bool {
	_, ok := bcbp.Parse(text)
	return ok
}

// run is the state of one Run call.
type run struct {
	p      *Processor
	req    Request
	format constants.Format
	log    *slog.Logger
	res    *Result
	best   *candidate
	aiErr  error
}

// Run extracts flight data from one document. Engines run strictly in
// priority order; a higher-priority success skips the rest. The returned
// error is an *ExtractionError.
func (p *Processor) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	runID := uuid.New().String()
	ctx = common.WithRunID(ctx, runID)
	ctx = common.WithFilePath(ctx, req.FilePath)
	ctx, cancel := common.WithTimeout(ctx, p.cfg.RunTimeout)
	defer cancel()

	r := &run{
		p:   p,
		req: req,
		log: p.logger.With("run_id", runID, "file", filepath.Base(req.FilePath)),
		res: &Result{RunID: runID, States: []State{StateNotStarted}},
	}
	r.log.Info("processor.run.start", "mime_type", req.MimeType, "selected_year", req.SelectedYear, "has_capture_date", req.CaptureDate != nil)

	format, err := validateInput(req)
	if err != nil {
		r.log.Warn("processor.run.invalid_input", "error", err)
		return nil, r.fail(KindInvalidInput, err, start)
	}
	r.format = format

	if r.barcodeStage(ctx) {
		return r.resolve(start), nil
	}
	if r.textStage(ctx) {
		return r.resolve(start), nil
	}
	r.aiStage(ctx)

	if r.best == nil {
		if r.aiErr != nil {
			return nil, r.fail(KindExternal, r.aiErr, start)
		}
		if ctx.Err() != nil {
			return nil, r.fail(KindExhausted, errors.Join(ErrNoExtraction, ctx.Err()), start)
		}
		return nil, r.fail(KindExhausted, ErrNoExtraction, start)
	}
	return r.resolve(start), nil
}

func (r *run) enter(s State) {
	r.res.States = append(r.res.States, s)
}

func (r *run) record(a Attempt) {
	r.res.Provenance.Attempts = append(r.res.Provenance.Attempts, a)
	r.p.observer.ObserveAttempt(a.Engine, a.Outcome, a.Duration)
	r.log.Debug("processor.attempt",
		"engine", a.Engine,
		"outcome", a.Outcome,
		"status", a.Status,
		"detail", a.Detail,
		"elapsed_ms", a.Duration.Milliseconds(),
	)
}

// offer keeps c when it ranks strictly above the current best, or equal when
// orEqual is set.
func (r *run) offer(c *candidate, orEqual bool) bool {
	if r.best == nil || c.rank() > r.best.rank() || (orEqual && c.rank() == r.best.rank()) {
		r.best = c
		return true
	}
	return false
}

func (r *run) warn(w string) {
	for _, have := range r.res.Warnings {
		if have == w {
			return
		}
	}
	r.res.Warnings = append(r.res.Warnings, w)
}

func (r *run) resolve(start time.Time) *Result {
	res := r.res
	res.Fields = r.best.fields
	res.Outcome = r.best.outcome
	res.Status = r.best.outcome.Status
	res.DateStatus = r.best.fields.YearSource
	res.Provenance.Engine = r.best.engine
	if c, ok := r.p.dir.CountryOf(res.Fields.DepartureAirport); ok {
		res.DepartureCountry = c
	}
	if c, ok := r.p.dir.CountryOf(res.Fields.ArrivalAirport); ok {
		res.ArrivalCountry = c
	}
	if r.aiErr != nil {
		res.FallbackErr = r.aiErr
		r.warn(WarningAIFallbackFailed)
	}
	r.enter(StateResolved)
	res.Duration = time.Since(start)
	r.p.observer.ObserveRun(string(res.Status), res.Duration)

	r.log.Info("processor.run.resolved",
		"engine", res.Provenance.Engine,
		"status", res.Status,
		"level", res.Outcome.Level,
		"issues", res.Outcome.Issues,
		"date_status", res.DateStatus,
		"warnings", res.Warnings,
		"attempts", len(res.Provenance.Attempts),
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res
}

func (r *run) fail(kind Kind, err error, start time.Time) error {
	r.enter(StateFailed)
	d := time.Since(start)
	r.p.observer.ObserveRun(string(StateFailed), d)
	r.log.Error("processor.run.failed",
		"kind", kind,
		"error", err,
		"attempts", len(r.res.Provenance.Attempts),
		"elapsed_ms", d.Milliseconds(),
	)
	return &ExtractionError{Kind: kind, RunID: r.res.RunID, Provenance: r.res.Provenance, Err: err}
}

// targetYear is the year used for dates printed without one.
func (r *run) targetYear() int {
	if r.req.SelectedYear > 0 {
		return r.req.SelectedYear
	}
	if r.req.CaptureDate != nil {
		return r.req.CaptureDate.Year()
	}
	return 0
}
