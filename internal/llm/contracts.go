package llm

import (
	"context"
	"strings"
	"time"

	"github.com/joseph-ayodele/boardingpass-tracker/constants"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/entity"
)

// FlightFields is the normalized shape we want from the vision model.
type FlightFields struct {
	FlightNumber     string `json:"flight_number,omitempty"`
	Airline          string `json:"airline,omitempty"`
	DepartureAirport string `json:"departure_airport,omitempty"` // IATA
	ArrivalAirport   string `json:"arrival_airport,omitempty"`   // IATA
	FlightDate       string `json:"flight_date,omitempty"`       // YYYY-MM-DD
	FlightDateRaw    string `json:"flight_date_raw,omitempty"`   // kept when flight_date did not validate
	ArrivalTime      string `json:"arrival_time,omitempty"`      // HH:MM
	PassengerName    string `json:"passenger_name,omitempty"`

	Confidence               map[string]string `json:"confidence,omitempty"` // field -> high|medium|low
	YearSource               string            `json:"year_source,omitempty"`
	YearRequiresVerification bool              `json:"year_requires_verification,omitempty"`
}

type ExtractRequest struct {
	Document []byte
	MimeType string

	// TargetYear is used for dates printed without a year; 0 means unknown.
	TargetYear  int
	CaptureDate *time.Time
}

// FieldExtractor is the interface the pipeline depends on.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, req ExtractRequest) (FlightFields, []byte /*rawJSON*/, error)
}

// ToEntity converts model output into pipeline fields. A flight_date that does
// not parse is kept as FlightDateRaw so scoring can flag it.
func (f FlightFields) ToEntity() entity.ExtractedFields {
	out := entity.ExtractedFields{
		FlightNumber:             f.FlightNumber,
		Airline:                  f.Airline,
		DepartureAirport:         f.DepartureAirport,
		ArrivalAirport:           f.ArrivalAirport,
		FlightDateRaw:            f.FlightDateRaw,
		ArrivalTime:              f.ArrivalTime,
		PassengerName:            f.PassengerName,
		YearRequiresVerification: f.YearRequiresVerification,
	}
	if s := strings.TrimSpace(f.FlightDate); s != "" {
		if d, err := time.Parse(entity.DateLayout, s); err == nil {
			out.FlightDate = &d
		} else if out.FlightDateRaw == "" {
			out.FlightDateRaw = s
		}
	}
	for field, level := range f.Confidence {
		out.SetConfidence(field, constants.ParseLevel(strings.ToLower(strings.TrimSpace(level))))
	}

	switch ds := constants.DateStatus(f.YearSource); ds {
	case constants.DateExplicit, constants.DateMetadataMatch, constants.DateNeedsReview,
		constants.DateEstimated, constants.DateUnknown:
		out.YearSource = ds
	default:
		if out.FlightDate != nil {
			out.YearSource = constants.DateEstimated
		} else {
			out.YearSource = constants.DateUnknown
		}
	}
	out.Normalize()
	return out
}
