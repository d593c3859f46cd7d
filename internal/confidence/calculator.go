// Package confidence scores extracted flight fields into a trust level and a
// lifecycle status.
package confidence

import (
	"regexp"
	"sort"

	"github.com/joseph-ayodele/boardingpass-tracker/constants"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/airports"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/entity"
)

// maxReviewIssues is the largest issue count still routed to review rather
// than manual entry.
const maxReviewIssues = 2

var reIATA = regexp.MustCompile(`^[A-Z]{3}$`)

var criticalFields = []string{
	constants.FieldDepartureAirport,
	constants.FieldArrivalAirport,
	constants.FieldFlightDate,
}

// Outcome is the scored result. Issues is a sorted set of field names (plus
// year_requires_verification).
type Outcome struct {
	Level          constants.Level  `json:"level"`
	Status         constants.Status `json:"status"`
	Issues         []string         `json:"issues"`
	LaunchReviewUI bool             `json:"launch_review_ui"`
	HasValidDate   bool             `json:"has_valid_date"`
}

// Calculator is stateless apart from the optional airport directory; when one
// is set, codes it does not know are flagged.
type Calculator struct {
	airports airports.Directory
}

func NewCalculator(dir airports.Directory) *Calculator {
	return &Calculator{airports: dir}
}

// Calculate is pure and deterministic.
func (c *Calculator) Calculate(f entity.ExtractedFields) Outcome {
	issues := make(map[string]struct{}, 4)
	flag := func(field string) { issues[field] = struct{}{} }

	values := map[string]string{
		constants.FieldDepartureAirport: f.DepartureAirport,
		constants.FieldArrivalAirport:   f.ArrivalAirport,
		constants.FieldFlightDate:       f.FlightDateString(),
	}

	// missing critical fields
	for _, field := range criticalFields {
		if values[field] == "" {
			flag(field)
		}
	}

	// airport shape, then directory membership
	for _, field := range []string{constants.FieldDepartureAirport, constants.FieldArrivalAirport} {
		v := values[field]
		if v == "" {
			continue
		}
		if !reIATA.MatchString(v) {
			flag(field)
			continue
		}
		if c != nil && c.airports != nil && !c.airports.Exists(v) {
			flag(field)
		}
	}

	// declared confidence on critical fields
	for _, field := range criticalFields {
		if f.ConfidenceOf(field) != constants.LevelHigh {
			flag(field)
		}
	}

	if f.YearRequiresVerification {
		flag(constants.IssueYearRequiresVerification)
	}

	_, depBad := issues[constants.FieldDepartureAirport]
	_, arrBad := issues[constants.FieldArrivalAirport]
	airportsOK := !depBad && !arrBad

	hasValidDate := f.FlightDate != nil && !f.FlightDate.IsZero()
	if !hasValidDate {
		flag(constants.FieldFlightDate)
	}

	out := Outcome{HasValidDate: hasValidDate}
	switch {
	case len(issues) == 0 && airportsOK && hasValidDate:
		out.Level = constants.LevelHigh
		out.Status = constants.StatusAutoVerified
		out.Issues = []string{}
		out.LaunchReviewUI = false
		return out
	case len(issues) <= maxReviewIssues:
		out.Level = constants.LevelMedium
		out.Status = constants.StatusNeedsReview
		out.LaunchReviewUI = launchReview(f)
	default:
		out.Level = constants.LevelLow
		out.Status = constants.StatusManualRequired
		out.LaunchReviewUI = launchReview(f)
	}

	out.Issues = make([]string, 0, len(issues))
	for k := range issues {
		out.Issues = append(out.Issues, k)
	}
	sort.Strings(out.Issues)
	return out
}

// launchReview forces the review prompt unless the route is certain and the
// date is at least plausible.
func launchReview(f entity.ExtractedFields) bool {
	routeCertain := f.ConfidenceOf(constants.FieldDepartureAirport) == constants.LevelHigh &&
		f.ConfidenceOf(constants.FieldArrivalAirport) == constants.LevelHigh
	dateConf := f.ConfidenceOf(constants.FieldFlightDate)
	datePlausible := dateConf == constants.LevelHigh || dateConf == constants.LevelMedium
	return !(routeCertain && datePlausible)
}

// RankStatus orders statuses for candidate replacement: auto_verified >
// needs_review > manual_required.
func RankStatus(s constants.Status) int { return s.Rank() }
