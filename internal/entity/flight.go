package entity

import (
	"strings"
	"time"

	"github.com/joseph-ayodele/boardingpass-tracker/constants"
)

// DateLayout is the wire format for flight dates.
const DateLayout = "2006-01-02"

// ExtractedFields is the flight data produced by any extraction engine.
type ExtractedFields struct {
	FlightNumber     string     `json:"flight_number,omitempty"`
	Airline          string     `json:"airline,omitempty"`
	DepartureAirport string     `json:"departure_airport,omitempty"`
	ArrivalAirport   string     `json:"arrival_airport,omitempty"`
	FlightDate       *time.Time `json:"flight_date,omitempty"`
	// FlightDateRaw keeps a date string the source produced but that did not parse.
	FlightDateRaw string          `json:"flight_date_raw,omitempty"`
	ArrivalTime   string          `json:"arrival_time,omitempty"`
	PassengerName string          `json:"passenger_name,omitempty"`
	Seat          string          `json:"seat,omitempty"`
	Cabin         constants.Cabin `json:"cabin,omitempty"`

	Confidence               map[string]constants.Level `json:"confidence,omitempty"`
	YearSource               constants.DateStatus       `json:"year_source,omitempty"`
	YearRequiresVerification bool                       `json:"year_requires_verification,omitempty"`
}

// Normalize trims every text field and upper-cases codes. Invalid airport values
// are kept as-is so that scoring can flag them.
func (f *ExtractedFields) Normalize() {
	f.FlightNumber = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(f.FlightNumber), " ", ""))
	f.Airline = strings.TrimSpace(f.Airline)
	f.DepartureAirport = strings.ToUpper(strings.TrimSpace(f.DepartureAirport))
	f.ArrivalAirport = strings.ToUpper(strings.TrimSpace(f.ArrivalAirport))
	f.FlightDateRaw = strings.TrimSpace(f.FlightDateRaw)
	f.ArrivalTime = strings.TrimSpace(f.ArrivalTime)
	f.PassengerName = strings.TrimSpace(f.PassengerName)
	f.Seat = strings.TrimSpace(f.Seat)
	if f.FlightDate != nil {
		d := DateOnly(*f.FlightDate)
		f.FlightDate = &d
	}
}

// SetConfidence records a per-field confidence, allocating the map on first use.
func (f *ExtractedFields) SetConfidence(field string, level constants.Level) {
	if f.Confidence == nil {
		f.Confidence = make(map[string]constants.Level, 4)
	}
	f.Confidence[field] = level
}

// ConfidenceOf returns the declared confidence for a field, or "" if none was declared.
func (f *ExtractedFields) ConfidenceOf(field string) constants.Level {
	if f.Confidence == nil {
		return ""
	}
	return f.Confidence[field]
}

// FlightDateString formats the flight date, falling back to the raw value.
func (f *ExtractedFields) FlightDateString() string {
	if f.FlightDate != nil {
		return f.FlightDate.Format(DateLayout)
	}
	return f.FlightDateRaw
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// OrdinalDate builds the date for the given day-of-year. ok is false when the
// day does not exist in that year (366 in a common year, 0, ...).
func OrdinalDate(year, dayOfYear int) (time.Time, bool) {
	if dayOfYear < 1 || dayOfYear > 366 {
		return time.Time{}, false
	}
	d := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, dayOfYear-1)
	if d.Year() != year {
		return time.Time{}, false
	}
	return d, true
}
