package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/boardingpass-tracker/internal/async"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/core"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/export"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/ingest"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/metrics"
)

type batchOpts struct {
	out         string
	workers     int
	metricsFile string
	year        int
	skipHidden  bool
	keepDupes   bool
}

func newBatchCmd(a *app) *cobra.Command {
	var o batchOpts
	cmd := &cobra.Command{
		Use:   "batch <dir>",
		Short: "Extract every boarding pass under a directory into an XLSX report",
		Example: `  bptracker batch ~/trips/2025 --year 2025
  bptracker batch ./passes --xlsx flights.xlsx --workers 8 --metrics-file bptracker.prom`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBatch(cmd, args[0], o)
		},
	}
	cmd.Flags().StringVar(&o.out, "xlsx", "", "output XLSX path (default <parent of dir>/boardingpasses.xlsx)")
	cmd.Flags().IntVar(&o.workers, "workers", 0, "concurrent extractions (default BATCH_WORKERS)")
	cmd.Flags().StringVar(&o.metricsFile, "metrics-file", "", "write Prometheus textfile metrics here on exit")
	cmd.Flags().IntVar(&o.year, "year", 0, "year under review, applied to every document")
	cmd.Flags().BoolVar(&o.skipHidden, "skip-hidden", true, "skip dot files and directories")
	cmd.Flags().BoolVar(&o.keepDupes, "keep-duplicates", false, "process files whose content was already seen")
	return cmd
}

func (a *app) runBatch(cmd *cobra.Command, dir string, o batchOpts) error {
	ctx := cmd.Context()
	logger := a.logger

	if o.out == "" {
		o.out = filepath.Join(filepath.Dir(filepath.Clean(dir)), "boardingpasses.xlsx")
	}
	if o.workers <= 0 {
		o.workers = a.cfg.Pipeline.Workers
	}

	s, err := a.buildStack(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	docs, stats, err := ingest.NewScanner(o.skipHidden, !o.keepDupes, logger).Discover(ctx, dir)
	if err != nil {
		return fmt.Errorf("discover %s: %w", dir, err)
	}
	logger.Info("batch.discovered",
		"dir", dir,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)

	var reqs []core.Request
	var rows []export.Row
	for _, d := range docs {
		if d.Err != "" {
			rows = append(rows, export.Row{Path: d.Path, Err: fmt.Errorf("ingest: %s", d.Err)})
			continue
		}
		reqs = append(reqs, s.request(d.Path, d.MimeType, d.ModTime, nil, o.year))
	}

	outcomes, bstats, runErr := async.RunBatch(ctx, s.processor, reqs, o.workers, logger)
	for _, oc := range outcomes {
		rows = append(rows, export.Row{Path: oc.Job.Request.FilePath, Result: oc.Result, Err: oc.Err})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Path < rows[j].Path })

	f, err := os.Create(o.out)
	if err != nil {
		return fmt.Errorf("create %s: %w", o.out, err)
	}
	if err := export.NewWriter(logger).WriteXLSX(f, rows); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", o.out, err)
	}

	if o.metricsFile != "" {
		if err := metrics.WriteTextfile(o.metricsFile, s.registry); err != nil {
			logger.Warn("batch.metrics.write_failed", "path", o.metricsFile, "error", err)
		}
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Batch processing complete!\n")
	fmt.Fprintf(w, "- Documents found: %d\n", len(docs))
	fmt.Fprintf(w, "- Resolved: %d\n", bstats.Resolved)
	statuses := make([]string, 0, len(bstats.ByStatus))
	for st := range bstats.ByStatus {
		statuses = append(statuses, st)
	}
	sort.Strings(statuses)
	for _, st := range statuses {
		fmt.Fprintf(w, "    %s: %d\n", st, bstats.ByStatus[st])
	}
	fmt.Fprintf(w, "- Failed: %d\n", bstats.Failed)
	fmt.Fprintf(w, "- Output: %s\n", o.out)

	if runErr != nil {
		return fmt.Errorf("batch interrupted after %d of %d documents: %w", bstats.Total, len(reqs), runErr)
	}
	return nil
}
