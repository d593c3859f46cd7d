package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joseph-ayodele/boardingpass-tracker/constants"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/barcode"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/bcbp"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/entity"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/llm"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/ocr"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/textparse"
)

// barcodeStage decodes a boarding pass barcode. A parsed barcode is always
// final, whatever its score.
func (r *run) barcodeStage(ctx context.Context) bool {
	r.enter(StateBarcodeAttempted)
	start := time.Now()

	dec, found, err := r.decode(ctx)
	if err != nil {
		r.record(Attempt{Engine: constants.EngineBarcode, Outcome: OutcomeError, Detail: err.Error(), Duration: time.Since(start)})
		return false
	}
	if !found {
		r.record(Attempt{Engine: constants.EngineBarcode, Outcome: OutcomeNotFound, Duration: time.Since(start)})
		return false
	}

	rec, ok := bcbp.Parse(dec.Text)
	if !ok {
		r.record(Attempt{Engine: constants.EngineBarcode, Outcome: OutcomeNotFound, Detail: "payload is not a boarding pass", Duration: time.Since(start)})
		return false
	}

	res := r.p.resolver.Resolve(rec, r.req.CaptureDate)
	fields := barcodeFields(rec, res)
	if res.Status == constants.DateNeedsReview && r.req.SelectedYear > 0 {
		r.crossCheckYear(ctx, &fields)
	}

	c := &candidate{fields: fields, outcome: r.p.calc.Calculate(fields), engine: constants.EngineBarcode}
	r.best = c
	r.record(Attempt{
		Engine:   constants.EngineBarcode,
		Outcome:  OutcomeOK,
		Status:   c.outcome.Status,
		Detail:   fmt.Sprintf("%s via %s (%s)", rec.Strategy, dec.Engine, fields.YearSource),
		Duration: time.Since(start),
	})
	return true
}

// decode runs the decoder over the prepared variants of the image, or of each
// rendered page of a PDF in order.
func (r *run) decode(ctx context.Context) (barcode.Result, bool, error) {
	if r.format == constants.IMAGE {
		return r.decodeImage(ctx, r.req.FilePath)
	}

	dir, err := os.MkdirTemp(r.p.cfg.TempDir, "bp-pages-*")
	if err != nil {
		return barcode.Result{}, false, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			r.log.Warn("processor.cleanup.failed", "dir", dir, "error", err)
		}
	}()

	pages, err := r.p.text.RenderPDF(ctx, r.req.FilePath, dir)
	if err != nil {
		return barcode.Result{}, false, err
	}
	for _, page := range pages {
		if ctx.Err() != nil {
			return barcode.Result{}, false, ctx.Err()
		}
		res, ok, err := r.decodeImage(ctx, page)
		if err != nil {
			r.log.Debug("barcode.page.skipped", "page", page, "error", err)
			continue
		}
		if ok {
			return res, true, nil
		}
	}
	return barcode.Result{}, false, nil
}

func (r *run) decodeImage(ctx context.Context, path string) (barcode.Result, bool, error) {
	set, err := r.p.prep.Prepare(ctx, path)
	if err != nil {
		return barcode.Result{}, false, err
	}
	defer func() {
		if err := set.Close(); err != nil {
			r.log.Warn("processor.cleanup.failed", "error", err)
		}
	}()
	res, ok := r.p.decoder.Decode(ctx, set.Paths())
	return res, ok, nil
}

func barcodeFields(rec *bcbp.Record, res bcbp.DateResolution) entity.ExtractedFields {
	f := entity.ExtractedFields{
		FlightNumber:     rec.Flight(),
		Airline:          rec.AirlineCode,
		DepartureAirport: rec.DepartureAirport,
		ArrivalAirport:   rec.ArrivalAirport,
		PassengerName:    rec.PassengerName,
		Seat:             rec.Seat,
		FlightDate:       res.FlightDate,
		YearSource:       res.Status,
	}
	if cabin, ok := constants.CabinFromCompartment(rec.Compartment); ok {
		f.Cabin = cabin
	}
	f.SetConfidence(constants.FieldDepartureAirport, constants.LevelHigh)
	f.SetConfidence(constants.FieldArrivalAirport, constants.LevelHigh)
	f.SetConfidence(constants.FieldFlightNumber, constants.LevelHigh)
	f.SetConfidence(constants.FieldAirline, constants.LevelHigh)
	switch res.Status {
	case constants.DateExplicit, constants.DateMetadataMatch:
		f.SetConfidence(constants.FieldFlightDate, constants.LevelHigh)
	case constants.DateNeedsReview:
		f.SetConfidence(constants.FieldFlightDate, constants.LevelMedium)
		f.YearRequiresVerification = true
	default:
		f.SetConfidence(constants.FieldFlightDate, constants.LevelLow)
	}
	if f.PassengerName != "" {
		f.SetConfidence(constants.FieldPassengerName, constants.LevelHigh)
	}
	f.Normalize()
	return f
}

// crossCheckYear looks for the barcode's day and month in the document text
// printed with the selected year. A match confirms the year.
func (r *run) crossCheckYear(ctx context.Context, f *entity.ExtractedFields) {
	if f.FlightDate == nil {
		return
	}
	text := r.documentText(ctx)
	want := time.Date(r.req.SelectedYear, f.FlightDate.Month(), f.FlightDate.Day(), 0, 0, 0, 0, time.UTC)
	if want.Month() == f.FlightDate.Month() {
		for _, d := range textparse.FullDates(text) {
			if d.Equal(want) {
				f.FlightDate = &want
				f.YearSource = constants.DateMetadataMatch
				f.YearRequiresVerification = false
				f.SetConfidence(constants.FieldFlightDate, constants.LevelHigh)
				r.log.Info("barcode.year.confirmed", "year", want.Year())
				return
			}
		}
	}
	r.warn(WarningYearMismatch)
	r.log.Info("barcode.year.unconfirmed", "selected_year", r.req.SelectedYear, "barcode_date", f.FlightDateString())
}

// documentText is the embedded PDF text, or recognized text, or "".
func (r *run) documentText(ctx context.Context) string {
	if r.format == constants.PDF {
		if res, err := r.p.text.PDFText(ctx, r.req.FilePath); err == nil {
			return res.Text
		}
	}
	res, err := r.p.text.Recognize(ctx, r.req.FilePath, r.format)
	if err != nil {
		r.log.Debug("processor.crosscheck.no_text", "error", err)
		return ""
	}
	return res.Text
}

// textStage parses the embedded PDF text, then recognized text. It returns
// true once a record is auto-verified.
func (r *run) textStage(ctx context.Context) bool {
	r.enter(StateTextAttempted)

	if r.format == constants.PDF {
		start := time.Now()
		res, err := r.p.text.PDFText(ctx, r.req.FilePath)
		if r.parseText(constants.EnginePDFText, r.p.pdfParse, res, err, start) {
			return true
		}
	}
	if ctx.Err() != nil {
		return false
	}

	start := time.Now()
	res, err := r.p.text.Recognize(ctx, r.req.FilePath, r.format)
	return r.parseText(constants.EngineOCR, r.p.ocrParse, res, err, start)
}

func (r *run) parseText(engine string, parser *textparse.Parser, res ocr.ExtractionResult, err error, start time.Time) bool {
	if err != nil {
		outcome := OutcomeError
		if errors.Is(err, ocr.ErrNoText) {
			outcome = OutcomeNotFound
		}
		r.record(Attempt{Engine: engine, Outcome: outcome, Detail: err.Error(), Duration: time.Since(start)})
		return false
	}
	fields, ok := parser.Parse(res.Text, r.targetYear(), r.req.CaptureDate)
	if !ok {
		r.record(Attempt{Engine: engine, Outcome: OutcomeNotFound, Duration: time.Since(start)})
		return false
	}
	c := &candidate{fields: fields, outcome: r.p.calc.Calculate(fields), engine: engine}
	kept := r.offer(c, false)
	detail := res.Method
	if !kept {
		detail += "; outranked"
	}
	r.record(Attempt{Engine: engine, Outcome: OutcomeOK, Status: c.outcome.Status, Detail: detail, Duration: time.Since(start)})
	return kept && c.outcome.Status == constants.StatusAutoVerified
}

// aiStage asks the vision model when nothing local is usable.
func (r *run) aiStage(ctx context.Context) {
	if r.best != nil && r.best.outcome.Status != constants.StatusManualRequired {
		return
	}
	if r.p.ai == nil {
		r.record(Attempt{Engine: constants.EngineAI, Outcome: OutcomeSkipped, Detail: "disabled"})
		return
	}
	if ctx.Err() != nil {
		r.record(Attempt{Engine: constants.EngineAI, Outcome: OutcomeSkipped, Detail: ctx.Err().Error()})
		return
	}
	r.enter(StateAiAttempted)
	start := time.Now()

	doc, err := os.ReadFile(r.req.FilePath)
	if err != nil {
		r.record(Attempt{Engine: constants.EngineAI, Outcome: OutcomeError, Detail: err.Error(), Duration: time.Since(start)})
		return
	}
	mime := constants.NormalizeMime(r.req.MimeType)
	if mime == "" {
		mime = constants.MimeFromExt(r.req.FilePath)
	}
	out, _, err := r.p.ai.ExtractFields(ctx, llm.ExtractRequest{
		Document:    doc,
		MimeType:    mime,
		TargetYear:  r.targetYear(),
		CaptureDate: r.req.CaptureDate,
	})
	if err != nil {
		// only a failed call to the service fails the run; malformed answers
		// and local rejections (size, mime, missing key) stay attempt-local
		var he *llm.HTTPError
		if errors.As(err, &he) {
			r.aiErr = err
		}
		r.record(Attempt{Engine: constants.EngineAI, Outcome: OutcomeError, Detail: err.Error(), Duration: time.Since(start)})
		return
	}

	fields := out.ToEntity()
	c := &candidate{fields: fields, outcome: r.p.calc.Calculate(fields), engine: constants.EngineAI}
	detail := ""
	if !r.offer(c, true) {
		detail = "outranked"
	}
	r.record(Attempt{Engine: constants.EngineAI, Outcome: OutcomeOK, Status: c.outcome.Status, Detail: detail, Duration: time.Since(start)})
}
