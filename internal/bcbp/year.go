package bcbp

import (
	"time"

	"github.com/joseph-ayodele/boardingpass-tracker/constants"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/entity"
)

// DefaultMatchWindow is how far a capture date may sit from the flight for the
// year to be trusted. People photograph boarding passes around travel days;
// this is a tunable heuristic, not a domain rule.
const DefaultMatchWindow = 72 * time.Hour

// ResolveYear returns the most recent year <= ref whose last digit is digit.
// It assumes boarding passes are never more than 10 years old.
func ResolveYear(digit, ref int) int {
	diff := ((ref%10-digit)%10 + 10) % 10
	return ref - diff
}

// DateResolution is the flight date inferred for a record and how it was obtained.
type DateResolution struct {
	FlightDate *time.Time
	Status     constants.DateStatus
}

// Resolver turns a record plus an optional capture-date hint into a DateResolution.
type Resolver struct {
	MatchWindow time.Duration
	Now         func() time.Time
}

// NewResolver applies defaults for zero values.
func NewResolver(window time.Duration) Resolver {
	if window <= 0 {
		window = DefaultMatchWindow
	}
	return Resolver{MatchWindow: window, Now: time.Now}
}

// Resolve computes the flight date. A year digit printed on the pass is
// authoritative; otherwise the hint's year is used and the result is only
// trusted when the hint falls within MatchWindow of the candidate date.
func (r Resolver) Resolve(rec *Record, hint *time.Time) DateResolution {
	if rec == nil {
		return DateResolution{Status: constants.DateUnknown}
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	if rec.YearDigit != nil {
		ref := now().Year()
		if hint != nil {
			ref = hint.Year()
		}
		year := ResolveYear(*rec.YearDigit, ref)
		// issued late in the year for a flight early next year
		if rec.IssueJulian > 0 && rec.JulianDay < rec.IssueJulian {
			year++
		}
		d, ok := entity.OrdinalDate(year, rec.JulianDay)
		if !ok {
			return DateResolution{Status: constants.DateUnknown}
		}
		return DateResolution{FlightDate: &d, Status: constants.DateExplicit}
	}

	if hint == nil {
		return DateResolution{Status: constants.DateUnknown}
	}
	candidate, ok := entity.OrdinalDate(hint.Year(), rec.JulianDay)
	if !ok {
		return DateResolution{Status: constants.DateUnknown}
	}
	gap := entity.DateOnly(*hint).Sub(candidate)
	if gap < 0 {
		gap = -gap
	}
	status := constants.DateNeedsReview
	if gap <= r.window() {
		status = constants.DateMetadataMatch
	}
	return DateResolution{FlightDate: &candidate, Status: status}
}

func (r Resolver) window() time.Duration {
	if r.MatchWindow <= 0 {
		return DefaultMatchWindow
	}
	return r.MatchWindow
}
