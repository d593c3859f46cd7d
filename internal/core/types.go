package core

import (
	"time"

	"github.com/joseph-ayodele/boardingpass-tracker/constants"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/confidence"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/entity"
)

// State is a step of the extraction state machine.
type State string

const (
	StateNotStarted       State = "not_started"
	StateBarcodeAttempted State = "barcode_attempted"
	StateTextAttempted    State = "text_attempted"
	StateAiAttempted      State = "ai_attempted"
	StateResolved         State = "resolved"
	StateFailed           State = "failed"
)

// Request is one document to extract.
type Request struct {
	FilePath string
	MimeType string
	// CaptureDate disambiguates years the document does not print.
	CaptureDate *time.Time
	// SelectedYear is the year the user is reviewing, 0 when unknown. It
	// confirms barcode years and fills day-month dates in text.
	SelectedYear int
}

// Attempt outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
	OutcomeSkipped  = "skipped"
)

// Attempt records one engine run.
type Attempt struct {
	Engine   string           `json:"engine"`
	Outcome  string           `json:"outcome"`
	Status   constants.Status `json:"status,omitempty"`
	Detail   string           `json:"detail,omitempty"`
	Duration time.Duration    `json:"duration_ns"`
}

// Provenance names the engine whose data won and lists every attempt.
type Provenance struct {
	Engine   string    `json:"engine,omitempty"`
	Attempts []Attempt `json:"attempts"`
}

// Warnings attached to results.
const (
	WarningYearMismatch     = "year_mismatch"
	WarningAIFallbackFailed = "ai_fallback_failed"
)

// Result is a resolved run.
type Result struct {
	RunID            string                 `json:"run_id"`
	Status           constants.Status       `json:"status"`
	Fields           entity.ExtractedFields `json:"fields"`
	Outcome          confidence.Outcome     `json:"confidence"`
	DateStatus       constants.DateStatus   `json:"date_status"`
	DepartureCountry string                 `json:"departure_country,omitempty"`
	ArrivalCountry   string                 `json:"arrival_country,omitempty"`
	Provenance       Provenance             `json:"provenance"`
	Warnings         []string               `json:"warnings,omitempty"`
	States           []State                `json:"states"`
	Duration         time.Duration          `json:"duration_ns"`
	// FallbackErr is the AI fallback failure when a local candidate was still
	// returned. Callers may retry the run if it is retryable.
	FallbackErr error `json:"-"`
}

// candidate is the best record found so far.
type candidate struct {
	fields  entity.ExtractedFields
	outcome confidence.Outcome
	engine  string
}

func (c *candidate) rank() int {
	if c == nil {
		return 0
	}
	return c.outcome.Status.Rank()
}
