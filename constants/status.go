package constants

// Status is the lifecycle state a flight record reaches after extraction.
type Status string

// Stable values (store these exact strings).
const (
	StatusAutoVerified   Status = "auto_verified"
	StatusNeedsReview    Status = "needs_review"
	StatusManualRequired Status = "manual_required"
)

// Rank orders statuses by trust: auto_verified > needs_review > manual_required.
func (s Status) Rank() int {
	switch s {
	case StatusAutoVerified:
		return 3
	case StatusNeedsReview:
		return 2
	case StatusManualRequired:
		return 1
	default:
		return 0
	}
}

// Level is a categorical trust tag, used per field and for whole records.
type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
)

// ParseLevel maps free-form input to a Level; unknown values become low.
func ParseLevel(s string) Level {
	switch Level(s) {
	case LevelHigh, LevelMedium, LevelLow:
		return Level(s)
	default:
		return LevelLow
	}
}

// DateStatus records how the flight year was obtained.
type DateStatus string

const (
	DateExplicit      DateStatus = "explicit"
	DateMetadataMatch DateStatus = "metadata_match"
	DateNeedsReview   DateStatus = "needs_review"
	DateEstimated     DateStatus = "estimated"
	DateUnknown       DateStatus = "unknown"
)

// Engine names recorded in provenance.
const (
	EngineBarcode = "barcode"
	EnginePDFText = "pdf_text"
	EngineOCR     = "ocr"
	EngineAI      = "ai_vision"
)

// Names of scored fields, used as confidence map keys and issue names.
const (
	FieldFlightNumber     = "flight_number"
	FieldAirline          = "airline"
	FieldDepartureAirport = "departure_airport"
	FieldArrivalAirport   = "arrival_airport"
	FieldFlightDate       = "flight_date"
	FieldArrivalTime      = "arrival_time"
	FieldPassengerName    = "passenger_name"
)

// IssueYearRequiresVerification is raised when the source itself doubts the year.
const IssueYearRequiresVerification = "year_requires_verification"
