package bcbp

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// issued 2x6 day 325, flight day 326, unique conditional block of 0x18 bytes
const sampleWithYear = "M1DESMARAIS/LUC       EABC123 YULFRAAC 0834 326J001A0025 14D>1181W 6325BAC 0014123456002A0141234567 0"

func mandatory(name, pnr, from, to, carrier, flight, julian, tail string) string {
	return fmt.Sprintf("M1%-20sE%-7s%-3s%-3s%-3s%-5s%3s%s", name, pnr, from, to, carrier, flight, julian, tail)
}

func TestParse_RigidLayoutWithIssueDate(t *testing.T) {
	rec, ok := Parse(sampleWithYear)
	require.True(t, ok)

	assert.Equal(t, "DESMARAIS/LUC", rec.PassengerName)
	assert.Equal(t, "ABC123", rec.PNR)
	assert.Equal(t, "YUL", rec.DepartureAirport)
	assert.Equal(t, "FRA", rec.ArrivalAirport)
	assert.Equal(t, "AC", rec.AirlineCode)
	assert.Equal(t, "0834", rec.FlightNumber)
	assert.Equal(t, "AC834", rec.Flight())
	assert.Equal(t, 326, rec.JulianDay)
	assert.Equal(t, "J", rec.Compartment)
	assert.Equal(t, "1A", rec.Seat)
	assert.Equal(t, StrategyPattern, rec.Strategy)
	require.NotNil(t, rec.YearDigit)
	assert.Equal(t, 6, *rec.YearDigit)
	assert.Equal(t, 325, rec.IssueJulian)
}

func TestParse_ShiftedPayloadIgnoresYearDigit(t *testing.T) {
	// one stray byte before the route pushes every later item off its rigid
	// offset, including the conditional block carrying issue date 5165
	payload := "M1GARCIA/JUAN         EABCDEF  PMILHRIB 6048 165Y012C0042 15D>5180OO5165BIB"
	rec, ok := Parse(payload)
	require.True(t, ok)

	assert.Equal(t, StrategyPattern, rec.Strategy)
	assert.Equal(t, "PMI", rec.DepartureAirport)
	assert.Equal(t, "LHR", rec.ArrivalAirport)
	assert.Equal(t, "IB", rec.AirlineCode)
	assert.Equal(t, "6048", rec.FlightNumber)
	assert.Equal(t, 165, rec.JulianDay)
	assert.Equal(t, "GARCIA/JUAN", rec.PassengerName)
	assert.Nil(t, rec.YearDigit)
	assert.Zero(t, rec.IssueJulian)
	assert.Empty(t, rec.Compartment)
}

func TestParse_RigidRouteKeepsFullNameField(t *testing.T) {
	// a 19-character name plus an 8-wide PNR still puts the route at the rigid
	// offset, so the name item is read at its full 20 characters
	rec, ok := Parse("M1GARCIA/JUAN        EABCDEF XPMILHRIB 6048 165 Y")
	require.True(t, ok)
	assert.Equal(t, "PMI", rec.DepartureAirport)
	assert.Equal(t, "GARCIA/JUAN        E", rec.PassengerName)
	assert.Nil(t, rec.YearDigit)
}

func TestParse_LeadingFramingJunk(t *testing.T) {
	for _, prefix := range []string{"\x1d", "]L2", " \r\n]Q1", "\uFEFF"} {
		t.Run(fmt.Sprintf("%q", prefix), func(t *testing.T) {
			rec, ok := Parse(prefix + sampleWithYear)
			require.True(t, ok)
			assert.Equal(t, "YUL", rec.DepartureAirport)
			assert.Equal(t, "FRA", rec.ArrivalAirport)
			assert.Equal(t, 326, rec.JulianDay)
			require.NotNil(t, rec.YearDigit, "rigid offsets survive cleaning")
		})
	}
}

func TestParse_IrregularPadding(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		carrier string
		flight  string
		julian  int
	}{
		{"short fields", "M1SMITH/JOHN EABC123 JFKLAXAA12 045Y", "AA", "12", 45},
		{"no padding at all", "M1SMITH/JOHN EABC123 JFKLAXAA1234045Y", "AA", "1234", 45},
		{"three letter carrier", mandatory("ROSSI/ANNA", "XYZ789", "FCO", "CDG", "AZA", "345", "200", "Y"), "AZA", "345", 200},
		{"flight suffix", mandatory("LEE/KIM", "QWE456", "ICN", "NRT", "KE", "703A", "012", "Y"), "KE", "703A", 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := Parse(tt.raw)
			require.True(t, ok)
			assert.Equal(t, tt.carrier, rec.AirlineCode)
			assert.Equal(t, tt.flight, rec.FlightNumber)
			assert.Equal(t, tt.julian, rec.JulianDay)
		})
	}
}

func TestParse_FixedOffsetFallback(t *testing.T) {
	raw := mandatory("DOE/JANE", "ABC123", "MAD", "BCN", "VY", "1234", " 45", "Y012A0001 100")

	rec, ok := Parse(raw)
	require.True(t, ok)
	assert.Equal(t, StrategyFixed, rec.Strategy)
	assert.Equal(t, "MAD", rec.DepartureAirport)
	assert.Equal(t, "BCN", rec.ArrivalAirport)
	assert.Equal(t, "VY", rec.AirlineCode)
	assert.Equal(t, "1234", rec.FlightNumber)
	assert.Equal(t, 45, rec.JulianDay)
	assert.Equal(t, "DOE/JANE", rec.PassengerName)
	assert.Equal(t, "12A", rec.Seat)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"short", "M1SHORT"},
		{"wrong format code", "X1GARCIA/JUAN        EABCDEF PMILHRIB 6048 165Y019Y0100 100"},
		{"julian out of range", mandatory("DOE/JANE", "ABC123", "MAD", "BCN", "VY", "1234", "400", "Y")},
		{"julian zero", mandatory("DOE/JANE", "ABC123", "MAD", "BCN", "VY", "1234", "000", "Y")},
		{"no route", "M1" + fmt.Sprintf("%-60s", "DOE/JANE")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := Parse(tt.raw)
			assert.False(t, ok)
			assert.Nil(t, rec)
		})
	}
}

func TestParse_YearDigitRequiresConditionalStructure(t *testing.T) {
	base := mandatory("DESMARAIS/LUC", "ABC123", "YUL", "FRA", "AC", "0834", "326", "J001A0025 14D")
	tests := []struct {
		name string
		tail string
	}{
		{"no conditional marker", "<1181W 6325BAC"},
		{"bad hex size", ">1ZZ1W 6325BAC"},
		{"unique block too small", ">1061W 6325BAC"},
		{"non digit issue date", ">1181W 6A25BAC"},
		{"truncated", ">1181W 63"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := Parse(base + tt.tail)
			require.True(t, ok)
			assert.Nil(t, rec.YearDigit)
			assert.Zero(t, rec.IssueJulian)
		})
	}
}

func TestParse_RecoversRouteForGeneratedPayloads(t *testing.T) {
	routes := [][2]string{{"MAD", "JFK"}, {"LHR", "DXB"}, {"SYD", "AKL"}, {"GRU", "EZE"}}
	carriers := []string{"IB", "BA", "QF", "LA", "U2", "EK"}
	junk := []string{"", "\x02", "]L2", "  "}
	for i, r := range routes {
		for j, c := range carriers {
			julian := (i*97 + j*31) % 366
			if julian == 0 {
				julian = 1
			}
			flight := fmt.Sprintf("%d", 10+i*123+j*7)
			raw := junk[(i+j)%len(junk)] + mandatory("TEST/PAX", "PNR001", r[0], r[1], c, flight, fmt.Sprintf("%03d", julian), "Y")

			rec, ok := Parse(raw)
			require.True(t, ok, raw)
			assert.Equal(t, r[0], rec.DepartureAirport, raw)
			assert.Equal(t, r[1], rec.ArrivalAirport, raw)
			assert.Equal(t, c, rec.AirlineCode, raw)
			assert.Equal(t, flight, rec.FlightNumber, raw)
			assert.Equal(t, julian, rec.JulianDay, raw)
		}
	}
}
