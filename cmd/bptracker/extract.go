package main

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/boardingpass-tracker/internal/core"
)

type extractOpts struct {
	year        int
	captureDate string
	mime        string
}

func newExtractCmd(a *app) *cobra.Command {
	var o extractOpts
	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Extract flight data from one boarding pass",
		Example: `  bptracker extract pass.pdf
  bptracker extract screenshot.png --year 2025
  bptracker extract scan.jpg --capture-date 2025-06-10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runExtract(cmd, args[0], o)
		},
	}
	cmd.Flags().IntVar(&o.year, "year", 0, "year under review; confirms barcode years and fills day-month dates")
	cmd.Flags().StringVar(&o.captureDate, "capture-date", "", "when the document was captured (YYYY-MM-DD); default file mtime or EXIF")
	cmd.Flags().StringVar(&o.mime, "mime", "", "MIME type; default guessed from the extension")
	return cmd
}

func (a *app) runExtract(cmd *cobra.Command, path string, o extractOpts) error {
	capture, err := parseDateFlag("capture-date", o.captureDate)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	s, err := a.buildStack(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	req := s.request(path, o.mime, statModTime(path), capture, o.year)
	res, runErr := s.processor.Run(ctx, req)
	if runErr != nil {
		var ee *core.ExtractionError
		if errors.As(runErr, &ee) {
			_ = writeJSON(cmd.OutOrStdout(), failureJSON(ee))
		}
		return runErr
	}
	return writeJSON(cmd.OutOrStdout(), resultJSON(res))
}

// result is the JSON shape printed by extract and watch.
type result struct {
	File string `json:"file,omitempty"`
	*core.Result
	FallbackError string `json:"fallback_error,omitempty"`
}

type failure struct {
	File       string          `json:"file,omitempty"`
	RunID      string          `json:"run_id,omitempty"`
	Kind       core.Kind       `json:"kind,omitempty"`
	Error      string          `json:"error"`
	Provenance core.Provenance `json:"provenance"`
}

func resultJSON(r *core.Result) result {
	out := result{Result: r}
	if r.FallbackErr != nil {
		out.FallbackError = r.FallbackErr.Error()
	}
	return out
}

func failureJSON(ee *core.ExtractionError) failure {
	return failure{RunID: ee.RunID, Kind: ee.Kind, Error: ee.Err.Error(), Provenance: ee.Provenance}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func statModTime(path string) (t time.Time) {
	if info, err := os.Stat(path); err == nil {
		t = info.ModTime()
	}
	return t
}
