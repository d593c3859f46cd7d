// Package barcode finds and decodes the boarding-pass barcode in a list of
// candidate images, bounding every attempt and the whole search in time.
package barcode

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/boardingpass-tracker/internal/ocr"
)

type Config struct {
	ZXingReader   string
	Zbarimg       string
	NativeTimeout time.Duration // default 4s
	CLITimeout    time.Duration // default 8s
	TotalTimeout  time.Duration // default 30s
	// Accept filters decoded text; rejected payloads do not stop the search.
	// Nil accepts any non-empty text.
	Accept func(text string) bool
}

// Result is the first accepted decode.
type Result struct {
	Text      string
	Engine    string
	Candidate string
	Attempts  int
	Elapsed   time.Duration
}

type attemptEngine struct {
	Engine
	timeout time.Duration
}

type Decoder struct {
	cfg     Config
	engines []attemptEngine
	runner  ocr.Runner
	logger  *slog.Logger
}

type Option func(*Decoder)

// WithEngine appends an engine with its own per-attempt timeout. Passing any
// engine replaces the defaults.
func WithEngine(e Engine, timeout time.Duration) Option {
	return func(d *Decoder) { d.engines = append(d.engines, attemptEngine{Engine: e, timeout: timeout}) }
}

// WithRunner sets the command runner of the default CLI engines.
func WithRunner(r ocr.Runner) Option {
	return func(d *Decoder) { d.runner = r }
}

func NewDecoder(cfg Config, logger *slog.Logger, opts ...Option) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.NativeTimeout <= 0 {
		cfg.NativeTimeout = 4 * time.Second
	}
	if cfg.CLITimeout <= 0 {
		cfg.CLITimeout = 8 * time.Second
	}
	if cfg.TotalTimeout <= 0 {
		cfg.TotalTimeout = 30 * time.Second
	}
	d := &Decoder{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(d)
	}
	if len(d.engines) == 0 {
		d.engines = []attemptEngine{
			{Engine: NewNative(), timeout: cfg.NativeTimeout},
			{Engine: NewZXingCLI(cfg.ZXingReader, d.runner, logger), timeout: cfg.CLITimeout},
			{Engine: NewCLI(cfg.Zbarimg, d.runner, logger), timeout: cfg.CLITimeout},
		}
	}
	return d
}

// Decode tries every engine on every candidate, in order, and returns the
// first accepted text. Failures and timeouts are logged and skipped; ok is
// false when the candidates are exhausted or the total budget runs out.
func (d *Decoder) Decode(ctx context.Context, candidates []string) (Result, bool) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, d.cfg.TotalTimeout)
	defer cancel()

	attempts := 0
	for _, path := range candidates {
		for _, e := range d.engines {
			if err := ctx.Err(); err != nil {
				d.logger.Info("barcode.decode.budget_exhausted",
					"attempts", attempts,
					"elapsed_ms", time.Since(start).Milliseconds(),
					"error", err,
				)
				return Result{Attempts: attempts, Elapsed: time.Since(start)}, false
			}
			attempts++
			txt, err := d.attempt(ctx, e, path)
			if err != nil {
				d.logger.Debug("barcode.attempt.failed", "engine", e.Name(), "candidate", path, "error", err)
				continue
			}
			if strings.TrimSpace(txt) == "" {
				continue
			}
			if d.cfg.Accept != nil && !d.cfg.Accept(txt) {
				d.logger.Debug("barcode.attempt.rejected", "engine", e.Name(), "candidate", path, "bytes", len(txt))
				continue
			}
			res := Result{Text: txt, Engine: e.Name(), Candidate: path, Attempts: attempts, Elapsed: time.Since(start)}
			d.logger.Info("barcode.decode.ok",
				"engine", res.Engine,
				"attempts", attempts,
				"elapsed_ms", res.Elapsed.Milliseconds(),
			)
			return res, true
		}
	}
	d.logger.Info("barcode.decode.not_found", "attempts", attempts, "elapsed_ms", time.Since(start).Milliseconds())
	return Result{Attempts: attempts, Elapsed: time.Since(start)}, false
}

var errAttemptTimeout = errors.New("barcode: attempt timed out")

type outcome struct {
	text string
	err  error
}

// attempt runs one engine call in its own goroutine so that an engine that
// ignores its context cannot hold the search past the attempt deadline. The
// result channel is buffered; an abandoned call finishes and exits on its own.
func (d *Decoder) attempt(ctx context.Context, e attemptEngine, path string) (string, error) {
	actx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("barcode.engine.panic", "engine", e.Name(), "panic", r)
				ch <- outcome{err: errors.New("engine panicked")}
			}
		}()
		txt, err := e.Decode(actx, path)
		ch <- outcome{text: txt, err: err}
	}()

	select {
	case o := <-ch:
		return o.text, o.err
	case <-actx.Done():
		if errors.Is(actx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", errAttemptTimeout
		}
		return "", actx.Err()
	}
}
