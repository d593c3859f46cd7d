package async

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/boardingpass-tracker/internal/core"
)

// BatchStats summarizes a batch by final status.
type BatchStats struct {
	Total    int
	Resolved int
	Failed   int
	ByStatus map[string]int
}

// RunBatch extracts every request with at most workers runs in flight and
// returns outcomes in request order. A failed document never stops the batch;
// only ctx does, and requests not started by then are left out.
func RunBatch(ctx context.Context, runner Runner, reqs []core.Request, workers int, logger *slog.Logger) ([]Outcome, BatchStats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = 4
	}
	start := time.Now()
	out := make([]Outcome, len(reqs))
	scheduled := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, req := range reqs {
		if gctx.Err() != nil {
			break
		}
		job := NewJob(req)
		scheduled++
		g.Go(func() error {
			t := time.Now()
			res, err := runner.Run(gctx, job.Request)
			out[i] = Outcome{Job: job, Result: res, Err: err, Elapsed: time.Since(t)}
			if err != nil {
				logger.Warn("batch.document.failed", "file", req.FilePath, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	out = out[:scheduled]

	stats := BatchStats{Total: len(out), ByStatus: map[string]int{}}
	for _, o := range out {
		if o.Err != nil {
			stats.Failed++
			continue
		}
		stats.Resolved++
		stats.ByStatus[string(o.Result.Status)]++
	}
	logger.Info("batch.done",
		"documents", len(reqs),
		"resolved", stats.Resolved,
		"failed", stats.Failed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, stats, ctx.Err()
}
