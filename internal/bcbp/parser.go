// Package bcbp decodes the mandatory items of IATA Bar-Coded Boarding Pass
// strings and resolves the flight date they encode.
package bcbp

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Rigid offsets of the mandatory items block (format M, first leg).
const (
	offName        = 2
	lenName        = 20
	offOrigin      = 30
	offDestination = 33
	offCarrier     = 36
	offFlight      = 39
	offJulian      = 44
	offCompartment = 47
	offSeat        = 48
	lenSeat        = 4
	minFixedLen    = 48

	// conditional items, only trusted when the block sits at the rigid offsets
	offConditional = 60
	offUniqueSize  = 62
	offIssueDate   = 67
	minUniqueSize  = 7
)

// Strategy names which parsing path produced a record.
type Strategy string

const (
	StrategyPattern Strategy = "pattern"
	StrategyRelaxed Strategy = "relaxed"
	StrategyFixed   Strategy = "fixed"
)

// Record is the parsed mandatory data of one boarding pass leg.
type Record struct {
	PassengerName    string
	PNR              string
	DepartureAirport string
	ArrivalAirport   string
	AirlineCode      string
	FlightNumber     string
	JulianDay        int
	Compartment      string
	Seat             string

	// YearDigit is the last digit of the boarding pass issue year, when present.
	YearDigit *int
	// IssueJulian is the issue day-of-year that accompanies YearDigit.
	IssueJulian int

	Strategy Strategy
}

// Flight returns the display flight number, e.g. "AC834".
func (r *Record) Flight() string {
	n := strings.TrimLeft(r.FlightNumber, "0")
	if n == "" || !unicode.IsDigit(rune(n[0])) {
		n = "0" + n
	}
	return r.AirlineCode + n
}

var (
	// origin, destination, carrier (3 wide), flight (5 wide), julian
	rePattern = regexp.MustCompile(`([A-Z]{3})([A-Z]{3})([A-Z0-9]{2}[A-Z ])([A-Z0-9 ]{5})(\d{3})`)
	// issuers that do not pad fields to their nominal width; an unpadded flight
	// number must be separated from the day-of-year unless it has all 4 digits
	reRelaxed = []*regexp.Regexp{
		regexp.MustCompile(`([A-Z]{3})([A-Z]{3})([A-Z0-9]{2}[A-Z]?) *(\d{1,4}[A-Z]?) +(\d{3})(?:\D|$)`),
		regexp.MustCompile(`([A-Z]{3})([A-Z]{3})([A-Z0-9]{2}[A-Z]?) *(\d{4}[A-Z]?)(\d{3})(?:\D|$)`),
	}

	reFlight    = regexp.MustCompile(`^\d{1,4}[A-Z]?$`)
	reAirport   = regexp.MustCompile(`^[A-Z]{3}$`)
	reCarrier   = regexp.MustCompile(`^[A-Z0-9]{2}[A-Z]?$`)
	reAIMPrefix = regexp.MustCompile(`^\][A-Za-z][0-9A-Za-z]`)
)

// Parse extracts the mandatory items from a decoded barcode payload. It returns
// false unless the payload carries format code M and a complete route with a
// valid day-of-year.
func Parse(raw string) (*Record, bool) {
	s := clean(raw)
	if !strings.HasPrefix(s, "M") {
		return nil, false
	}

	if rec, ok := scan(s, rePattern, StrategyPattern); ok {
		return rec, true
	}
	for _, re := range reRelaxed {
		if rec, ok := scan(s, re, StrategyRelaxed); ok {
			return rec, true
		}
	}
	return fixed(s)
}

// clean strips framing that decoders prepend: whitespace, control bytes, symbols
// and AIM symbology identifiers (e.g. "]L2" for PDF417). Trailing spaces are
// kept since they belong to padded fields.
func clean(raw string) string {
	s := raw
	for s != "" {
		if reAIMPrefix.MatchString(s) {
			s = s[3:]
			continue
		}
		r, size := utf8.DecodeRuneInString(s)
		if r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			break
		}
		s = s[size:]
	}
	return strings.TrimRightFunc(s, func(r rune) bool { return r != ' ' && (unicode.IsSpace(r) || unicode.IsControl(r)) })
}

// scan tries every match position left to right; the leftmost candidate whose
// fields validate wins.
func scan(s string, re *regexp.Regexp, strategy Strategy) (*Record, bool) {
	for from := 2; from < len(s); {
		loc := re.FindStringSubmatchIndex(s[from:])
		if loc == nil {
			return nil, false
		}
		start := from + loc[0]
		sub := func(i int) string { return s[from+loc[2*i] : from+loc[2*i+1]] }

		origin, dest := sub(1), sub(2)
		carrier := strings.TrimSpace(sub(3))
		flight := strings.TrimSpace(sub(4))
		julian, _ := strconv.Atoi(sub(5))

		if reCarrier.MatchString(carrier) && reFlight.MatchString(flight) && validJulian(julian) && origin != dest {
			rec := &Record{
				DepartureAirport: origin,
				ArrivalAirport:   dest,
				AirlineCode:      carrier,
				FlightNumber:     flight,
				JulianDay:        julian,
				Strategy:         strategy,
			}
			rec.PassengerName, rec.PNR = nameAndPNR(s, start)
			if start == offOrigin {
				readRigidTail(s, rec)
			}
			return rec, true
		}
		from = start + 1
	}
	return nil, false
}

// fixed slices the rigid layout; used only when both patterns fail.
func fixed(s string) (*Record, bool) {
	if len(s) < minFixedLen {
		return nil, false
	}
	origin := strings.ToUpper(strings.TrimSpace(s[offOrigin : offOrigin+3]))
	dest := strings.ToUpper(strings.TrimSpace(s[offDestination : offDestination+3]))
	carrier := strings.TrimSpace(s[offCarrier : offCarrier+3])
	flight := strings.TrimSpace(s[offFlight : offFlight+5])
	julian, err := strconv.Atoi(strings.TrimSpace(s[offJulian : offJulian+3]))
	if err != nil || !validJulian(julian) {
		return nil, false
	}
	if !reAirport.MatchString(origin) || !reAirport.MatchString(dest) || carrier == "" || flight == "" {
		return nil, false
	}
	rec := &Record{
		PassengerName:    strings.TrimSpace(s[offName : offName+lenName]),
		PNR:              strings.TrimSpace(s[offName+lenName+1 : offOrigin]),
		DepartureAirport: origin,
		ArrivalAirport:   dest,
		AirlineCode:      carrier,
		FlightNumber:     flight,
		JulianDay:        julian,
		Strategy:         StrategyFixed,
	}
	readRigidTail(s, rec)
	return rec, true
}

// nameAndPNR reads the passenger name and booking reference preceding the route.
// The route is preceded by the e-ticket flag and the 7 character PNR.
func nameAndPNR(s string, routeStart int) (string, string) {
	nameEnd := routeStart - 8
	if nameEnd > offName+lenName {
		nameEnd = offName + lenName
	}
	var name, pnr string
	if nameEnd > offName {
		name = strings.TrimSpace(s[offName:nameEnd])
	}
	if routeStart-7 >= offName {
		pnr = strings.TrimSpace(s[routeStart-7 : routeStart])
	}
	return name, pnr
}

// readRigidTail fills the items that only have meaning at the rigid offsets:
// compartment, seat and the issue date from the conditional block.
func readRigidTail(s string, rec *Record) {
	if len(s) > offCompartment {
		c := s[offCompartment : offCompartment+1]
		if c != " " {
			rec.Compartment = c
		}
	}
	if len(s) >= offSeat+lenSeat {
		seat := strings.TrimLeft(strings.TrimSpace(s[offSeat:offSeat+lenSeat]), "0")
		rec.Seat = seat
	}
	rec.YearDigit, rec.IssueJulian = issueDate(s)
}

// issueDate reads the "date of issue of boarding pass" item (year digit plus
// day-of-year). Carriers disagree on the conditional block, so every
// structural precondition must hold or the year digit is treated as absent.
func issueDate(s string) (*int, int) {
	if len(s) < offIssueDate+4 || s[offConditional] != '>' {
		return nil, 0
	}
	size, err := strconv.ParseUint(s[offUniqueSize:offUniqueSize+2], 16, 8)
	if err != nil || size < minUniqueSize {
		return nil, 0
	}
	field := s[offIssueDate : offIssueDate+4]
	for _, r := range field {
		if r < '0' || r > '9' {
			return nil, 0
		}
	}
	digit := int(field[0] - '0')
	julian, _ := strconv.Atoi(field[1:])
	if !validJulian(julian) {
		return nil, 0
	}
	return &digit, julian
}

func validJulian(d int) bool {
	return d >= 1 && d <= 366
}
