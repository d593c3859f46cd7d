package bcbp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/boardingpass-tracker/constants"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestResolveYear(t *testing.T) {
	tests := []struct {
		digit, ref, want int
	}{
		{6, 2026, 2026},
		{5, 2026, 2025},
		{1, 2026, 2021},
		{9, 2026, 2019},
		{0, 2026, 2020},
		{0, 2030, 2030},
		{9, 2030, 2029},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveYear(tt.digit, tt.ref), "digit=%d ref=%d", tt.digit, tt.ref)
	}
}

func TestResolveYear_Properties(t *testing.T) {
	for ref := 1990; ref <= 2099; ref++ {
		for d := 0; d <= 9; d++ {
			y := ResolveYear(d, ref)
			require.Equal(t, d, y%10)
			require.LessOrEqual(t, y, ref)
			require.Greater(t, y, ref-10)
			require.Equal(t, y, ResolveYear(d, y), "idempotent")
		}
	}
}

func TestResolver_ExplicitYearDigit(t *testing.T) {
	r := NewResolver(0)
	r.Now = fixedNow(date(2026, time.October, 19))

	rec, ok := Parse(sampleWithYear)
	require.True(t, ok)

	res := r.Resolve(rec, nil)
	assert.Equal(t, constants.DateExplicit, res.Status)
	require.NotNil(t, res.FlightDate)
	assert.Equal(t, date(2026, time.November, 22), *res.FlightDate)

	// a distant hint sets the reference year but is never cross-checked
	hint := date(2016, time.May, 1)
	res = r.Resolve(rec, &hint)
	assert.Equal(t, constants.DateExplicit, res.Status)
	assert.Equal(t, date(2016, time.November, 21), *res.FlightDate)
}

func TestResolver_ExplicitDigitFive(t *testing.T) {
	r := NewResolver(0)
	r.Now = fixedNow(date(2026, time.October, 19))
	five := 5

	res := r.Resolve(&Record{JulianDay: 165, YearDigit: &five}, nil)
	assert.Equal(t, constants.DateExplicit, res.Status)
	assert.Equal(t, date(2025, time.June, 14), *res.FlightDate)
}

func TestResolver_IssueRollover(t *testing.T) {
	r := NewResolver(0)
	r.Now = fixedNow(date(2026, time.January, 10))
	five := 5

	res := r.Resolve(&Record{JulianDay: 3, YearDigit: &five, IssueJulian: 360}, nil)
	assert.Equal(t, constants.DateExplicit, res.Status)
	assert.Equal(t, date(2026, time.January, 3), *res.FlightDate)
}

// The 3 day window is a heuristic; these cases pin its current value.
func TestResolver_CaptureHintWindow(t *testing.T) {
	rec := &Record{DepartureAirport: "PMI", ArrivalAirport: "LHR", JulianDay: 165}
	r := NewResolver(DefaultMatchWindow)

	tests := []struct {
		name string
		hint time.Time
		want constants.DateStatus
	}{
		{"two days after", date(2025, time.June, 16), constants.DateMetadataMatch},
		{"same day with clock time", time.Date(2025, time.June, 14, 22, 15, 0, 0, time.UTC), constants.DateMetadataMatch},
		{"three days before", date(2025, time.June, 11), constants.DateMetadataMatch},
		{"six days after", date(2025, time.June, 20), constants.DateNeedsReview},
		{"months later", date(2025, time.December, 1), constants.DateNeedsReview},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hint := tt.hint
			res := r.Resolve(rec, &hint)
			assert.Equal(t, tt.want, res.Status)
			require.NotNil(t, res.FlightDate)
			assert.Equal(t, date(2025, time.June, 14), *res.FlightDate)
		})
	}
}

func TestResolver_Unknown(t *testing.T) {
	r := NewResolver(0)

	res := r.Resolve(&Record{JulianDay: 165}, nil)
	assert.Equal(t, constants.DateUnknown, res.Status)
	assert.Nil(t, res.FlightDate)

	// day 366 does not exist in 2025
	hint := date(2025, time.December, 30)
	res = r.Resolve(&Record{JulianDay: 366}, &hint)
	assert.Equal(t, constants.DateUnknown, res.Status)
	assert.Nil(t, res.FlightDate)

	assert.Equal(t, constants.DateUnknown, r.Resolve(nil, &hint).Status)
}
