package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/boardingpass-tracker/internal/async"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/core"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/ingest"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/metrics"
)

type watchOpts struct {
	workers     int
	initialScan bool
	skipHidden  bool
	debounce    time.Duration
	drain       time.Duration
	year        int
	metricsFile string
	healthAddr  string
}

func newWatchCmd(a *app) *cobra.Command {
	var o watchOpts
	cmd := &cobra.Command{
		Use:   "watch <dir> [dir...]",
		Short: "Extract boarding passes as they appear in watched directories",
		Long: `watch prints one JSON line per extracted document on stdout until
interrupted. Documents already queued are finished before exit.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runWatch(cmd, args, o)
		},
	}
	cmd.Flags().IntVar(&o.workers, "workers", 0, "concurrent extractions (default BATCH_WORKERS)")
	cmd.Flags().BoolVar(&o.initialScan, "initial-scan", false, "also process files already present")
	cmd.Flags().BoolVar(&o.skipHidden, "skip-hidden", true, "ignore dot files and directories")
	cmd.Flags().DurationVar(&o.debounce, "debounce", 500*time.Millisecond, "wait this long after the last write to a file")
	cmd.Flags().DurationVar(&o.drain, "drain-timeout", time.Minute, "how long to wait for queued documents on exit")
	cmd.Flags().IntVar(&o.year, "year", 0, "year under review, applied to every document")
	cmd.Flags().StringVar(&o.metricsFile, "metrics-file", "", "write Prometheus textfile metrics here on exit")
	cmd.Flags().StringVar(&o.healthAddr, "health-addr", "", "serve the gRPC health protocol here, e.g. :8081")
	return cmd
}

func (a *app) runWatch(cmd *cobra.Command, roots []string, o watchOpts) error {
	ctx := cmd.Context()
	logger := a.logger
	if o.workers <= 0 {
		o.workers = a.cfg.Pipeline.Workers
	}

	s, err := a.buildStack(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	var outMu sync.Mutex
	enc := json.NewEncoder(cmd.OutOrStdout())
	sink := func(oc async.Outcome) {
		var line any
		var ee *core.ExtractionError
		switch {
		case oc.Err == nil:
			r := resultJSON(oc.Result)
			r.File = oc.Job.Request.FilePath
			line = r
		case errors.As(oc.Err, &ee):
			f := failureJSON(ee)
			f.File = oc.Job.Request.FilePath
			line = f
		default:
			line = failure{File: oc.Job.Request.FilePath, Error: oc.Err.Error()}
		}
		outMu.Lock()
		defer outMu.Unlock()
		if err := enc.Encode(line); err != nil {
			logger.Error("watch.output.failed", "error", err)
		}
	}

	// Run timeouts are enforced by the processor; the queue bound only
	// catches a run that ignores its context.
	q := async.NewProcessorQueue(s.processor, logger,
		async.WithWorkers(o.workers),
		async.WithProcessTimeout(a.cfg.Pipeline.RunTimeout+30*time.Second),
		async.WithSink(sink),
	)

	hs, err := startHealth(o.healthAddr, logger)
	if err != nil {
		q.Shutdown(context.Background())
		return err
	}
	defer hs.stop()

	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       roots,
		InitialScan: o.initialScan,
		SkipHidden:  o.skipHidden,
		Debounce:    o.debounce,
	}, logger)
	if err != nil {
		q.Shutdown(context.Background())
		return err
	}
	logger.Info("watch.started", "roots", roots, "workers", o.workers)

	scanner := ingest.NewScanner(o.skipHidden, false, logger)
	for events != nil || errs != nil {
		select {
		case p, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			doc, err := scanner.Inspect(p)
			if err != nil {
				// usually a file that vanished between the event and now
				logger.Warn("watch.inspect.failed", "path", p, "error", err)
				continue
			}
			job := async.NewJob(s.request(doc.Path, doc.MimeType, doc.ModTime, nil, o.year))
			if err := q.Enqueue(ctx, job); err != nil {
				logger.Warn("watch.enqueue.failed", "path", doc.Path, "error", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("watch.error", "error", err)
		}
	}

	hs.draining()
	// ctx is done by now; draining gets its own deadline
	drainCtx, cancel := context.WithTimeout(context.Background(), o.drain)
	defer cancel()
	q.Shutdown(drainCtx)

	if o.metricsFile != "" {
		if err := metrics.WriteTextfile(o.metricsFile, s.registry); err != nil {
			logger.Warn("watch.metrics.write_failed", "path", o.metricsFile, "error", err)
		}
	}
	logger.Info("watch.stopped")
	return nil
}

// healthServer answers grpc.health.v1 checks while watch runs. The zero value
// (no address) does nothing.
type healthServer struct {
	srv    *grpc.Server
	health *health.Server
	addr   string
}

func startHealth(addr string, logger *slog.Logger) (*healthServer, error) {
	if addr == "" {
		return &healthServer{}, nil
	}
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	h := &healthServer{srv: grpc.NewServer(), health: health.NewServer(), addr: lis.Addr().String()}
	grpc_health_v1.RegisterHealthServer(h.srv, h.health)
	h.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	go func() {
		logger.Info("watch.health.listening", "addr", lis.Addr().String())
		if err := h.srv.Serve(lis); err != nil {
			logger.Error("watch.health.serve_failed", "error", err)
		}
	}()
	return h, nil
}

// draining reports NOT_SERVING while queued documents finish.
func (h *healthServer) draining() {
	if h.health != nil {
		h.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	}
}

func (h *healthServer) stop() {
	if h.srv == nil {
		return
	}
	h.health.Shutdown()
	h.srv.GracefulStop()
}
