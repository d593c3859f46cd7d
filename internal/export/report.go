// Package export writes batch extraction results as an XLSX workbook.
package export

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/boardingpass-tracker/internal/core"
)

const (
	flightsSheet  = "Flights"
	attemptsSheet = "Attempts"
)

// Row is one document of a batch. Result is nil when Err is set.
type Row struct {
	Path   string
	Result *core.Result
	Err    error
}

var flightHeaders = []string{
	"File",
	"Status",
	"Flight Date",
	"Date Status",
	"Flight",
	"Airline",
	"From",
	"From Country",
	"To",
	"To Country",
	"Passenger",
	"Seat",
	"Cabin",
	"Engine",
	"Issues",
	"Warnings",
	"Error",
}

// Writer renders rows into a workbook.
type Writer struct {
	logger *slog.Logger
}

func NewWriter(logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{logger: logger}
}

// WriteXLSX writes a Flights sheet (one row per document) and an Attempts
// sheet (one row per engine attempt).
func (w *Writer) WriteXLSX(out io.Writer, rows []Row) error {
	start := time.Now()

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			w.logger.Warn("export.xlsx.close_failed", "error", err)
		}
	}()

	if err := f.SetSheetName("Sheet1", flightsSheet); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}
	if _, err := f.NewSheet(attemptsSheet); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}
	if idx, err := f.GetSheetIndex(flightsSheet); err == nil {
		f.SetActiveSheet(idx)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("xlsx style: %w", err)
	}

	if err := writeRow(f, flightsSheet, 1, toAny(flightHeaders)); err != nil {
		return err
	}
	_ = f.SetRowStyle(flightsSheet, 1, 1, bold)
	for i, r := range rows {
		if err := writeRow(f, flightsSheet, i+2, flightRow(r)); err != nil {
			return err
		}
	}

	attemptHeaders := []string{"File", "Run ID", "Engine", "Outcome", "Status", "Detail", "Duration (ms)"}
	if err := writeRow(f, attemptsSheet, 1, toAny(attemptHeaders)); err != nil {
		return err
	}
	_ = f.SetRowStyle(attemptsSheet, 1, 1, bold)
	line := 2
	for _, r := range rows {
		runID, prov := provenance(r)
		for _, a := range prov.Attempts {
			vals := []any{r.Path, runID, a.Engine, a.Outcome, string(a.Status), truncate(a.Detail, 200), a.Duration.Milliseconds()}
			if err := writeRow(f, attemptsSheet, line, vals); err != nil {
				return err
			}
			line++
		}
	}

	// Widen a few columns
	_ = f.SetColWidth(flightsSheet, "A", "A", 48)
	_ = f.SetColWidth(flightsSheet, "B", "D", 16)
	_ = f.SetColWidth(flightsSheet, "K", "K", 28)
	_ = f.SetColWidth(flightsSheet, "O", "Q", 36)
	_ = f.SetColWidth(attemptsSheet, "A", "B", 40)
	_ = f.SetColWidth(attemptsSheet, "F", "F", 60)
	_ = f.SetPanes(flightsSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	if err := f.Write(out); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	w.logger.Info("export.xlsx.ok",
		"rows", len(rows),
		"attempts", line-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func flightRow(r Row) []any {
	if r.Result == nil {
		msg := "no result"
		if r.Err != nil {
			msg = r.Err.Error()
		}
		status := "failed"
		var ee *core.ExtractionError
		if errors.As(r.Err, &ee) {
			status = "failed: " + string(ee.Kind)
		}
		vals := make([]any, len(flightHeaders))
		for i := range vals {
			vals[i] = ""
		}
		vals[0], vals[1], vals[len(vals)-1] = r.Path, status, truncate(msg, 300)
		return vals
	}
	res := r.Result
	fl := res.Fields
	errMsg := ""
	if res.FallbackErr != nil {
		errMsg = truncate(res.FallbackErr.Error(), 300)
	}
	return []any{
		r.Path,
		string(res.Status),
		fl.FlightDateString(),
		string(res.DateStatus),
		fl.FlightNumber,
		fl.Airline,
		fl.DepartureAirport,
		res.DepartureCountry,
		fl.ArrivalAirport,
		res.ArrivalCountry,
		fl.PassengerName,
		fl.Seat,
		string(fl.Cabin),
		res.Provenance.Engine,
		strings.Join(res.Outcome.Issues, ", "),
		strings.Join(res.Warnings, ", "),
		errMsg,
	}
}

func provenance(r Row) (string, core.Provenance) {
	if r.Result != nil {
		return r.Result.RunID, r.Result.Provenance
	}
	var ee *core.ExtractionError
	if errors.As(r.Err, &ee) {
		return ee.RunID, ee.Provenance
	}
	return "", core.Provenance{}
}

func writeRow(f *excelize.File, sheet string, row int, vals []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
		return fmt.Errorf("xlsx row %d: %w", row, err)
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
