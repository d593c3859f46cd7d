// Package textparse pulls flight fields out of free text produced by PDF text
// extraction or OCR. It is the fallback when no barcode could be read.
package textparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/boardingpass-tracker/constants"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/airports"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/entity"
)

// Mode selects the heuristics for the text source.
type Mode int

const (
	// PDFText is embedded text of a digital PDF; layout is reliable, labels are
	// often separated from values, so only the positional airport scan runs.
	PDFText Mode = iota
	// OCR text is noisier but keeps labels next to values, so keyword context
	// is tried first.
	OCR
)

func (m Mode) String() string {
	if m == OCR {
		return "ocr"
	}
	return "pdf_text"
}

// Printed years outside [minYear, now+maxYearAhead] are read as something else
// (a departure time, a reference number). With a target year the window
// narrows to targetYear±targetYearSlack.
const (
	minYear         = 1990
	maxYearAhead    = 1
	targetYearSlack = 1
)

var now = time.Now

// hintWindow bounds how far an estimated day-month date may sit from the
// capture date and still be trusted.
const hintWindow = 30 * 24 * time.Hour

var months = map[string]time.Month{
	"JAN": time.January, "ENE": time.January,
	"FEB": time.February,
	"MAR": time.March,
	"APR": time.April, "ABR": time.April,
	"MAY": time.May,
	"JUN": time.June,
	"JUL": time.July,
	"AUG": time.August, "AGO": time.August,
	"SEP": time.September,
	"OCT": time.October,
	"NOV": time.November,
	"DEC": time.December, "DIC": time.December,
}

const monthAlt = `JAN|ENE|FEB|MAR|APR|ABR|MAY|JUN|JUL|AUG|AGO|SEP|OCT|NOV|DEC|DIC`

var (
	reDeparture = regexp.MustCompile(`(?i:\b(?:FROM|ORIGIN|ORIGEN|DEPARTURE|SALIDA|DEP)\b)[:.\s]*([A-Z]{3})\b`)
	reArrival   = regexp.MustCompile(`(?i:\b(?:TO|DESTINATION|DESTINO|ARRIVAL|LLEGADA|ARR)\b)[:.\s]*([A-Z]{3})\b`)
	reIATAToken = regexp.MustCompile(`\b[A-Z]{3}\b`)
	reFlight    = regexp.MustCompile(`\b([A-Z0-9]{2}|[A-Z]{3})\s?(\d{1,4}[A-Z]?)\b`)
	reSeat      = regexp.MustCompile(`(?i:\b(?:SEAT|ASIENTO)\b)[:.\s]*0*(\d{1,3}[A-K])\b`)

	reISODate  = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	// A year group followed by ":45" or ".45" is a clock time, captured so it
	// can be rejected.
	reFullDate = regexp.MustCompile(`(?i)\b(\d{1,2})[/\-.\s]?(` + monthAlt + `)[A-Z]{0,6}[/\-.\s]?((?:19|20)\d{2}|\d{2})\b([:.]\d)?|\b(\d{1,2})[/\-.](\d{1,2})[/\-.]((?:19|20)\d{2}|\d{2})\b([:.]\d)?`)
	reDayMonth = regexp.MustCompile(`(?i)\b(\d{1,2})[/\-.\s]?(` + monthAlt + `)[A-Z]{0,6}\b|\b(\d{1,2})/(\d{1,2})\b`)
)

// Parser extracts fields from text. The zero value uses PDFText mode and the
// embedded airport directory.
type Parser struct {
	Mode     Mode
	Airports airports.Directory
}

func NewParser(mode Mode, dir airports.Directory) *Parser {
	return &Parser{Mode: mode, Airports: dir}
}

func (p *Parser) directory() airports.Directory {
	if p.Airports != nil {
		return p.Airports
	}
	return airports.Default()
}

// Parse returns ok=false for blank text. targetYear (0 for none) and
// fullDateHint qualify day-month dates that carry no year.
func (p *Parser) Parse(text string, targetYear int, fullDateHint *time.Time) (entity.ExtractedFields, bool) {
	if strings.TrimSpace(text) == "" {
		return entity.ExtractedFields{}, false
	}

	var f entity.ExtractedFields
	dir := p.directory()

	dep, arr, depConf, arrConf := p.airports(text, dir)
	f.DepartureAirport, f.ArrivalAirport = dep, arr
	f.SetConfidence(constants.FieldDepartureAirport, depConf)
	f.SetConfidence(constants.FieldArrivalAirport, arrConf)

	if code, num, ok := flightNumber(text, dir); ok {
		f.FlightNumber = code + num
		f.Airline = code
		f.SetConfidence(constants.FieldFlightNumber, constants.LevelMedium)
		f.SetConfidence(constants.FieldAirline, constants.LevelMedium)
	}

	if m := reSeat.FindStringSubmatch(text); m != nil {
		f.Seat = strings.ToUpper(m[1])
	}

	d := parseDate(text, targetYear, fullDateHint)
	f.FlightDate = d.date
	f.YearSource = d.source
	f.YearRequiresVerification = d.verify
	f.SetConfidence(constants.FieldFlightDate, d.conf)

	f.Normalize()
	return f, true
}

func (p *Parser) airports(text string, dir airports.Directory) (dep, arr string, depConf, arrConf constants.Level) {
	depConf, arrConf = constants.LevelLow, constants.LevelLow

	if p.Mode == OCR {
		if code := firstKnown(reDeparture, text, dir, ""); code != "" {
			dep, depConf = code, constants.LevelHigh
		}
		if code := firstKnown(reArrival, text, dir, dep); code != "" {
			arr, arrConf = code, constants.LevelHigh
		}
	}
	if dep != "" && arr != "" {
		return
	}

	seen := map[string]bool{dep: true, arr: true}
	for _, code := range reIATAToken.FindAllString(text, -1) {
		if seen[code] || !dir.Exists(code) {
			continue
		}
		seen[code] = true
		switch {
		case dep == "":
			dep, depConf = code, constants.LevelMedium
		case arr == "":
			arr, arrConf = code, constants.LevelMedium
		}
		if dep != "" && arr != "" {
			break
		}
	}
	return
}

func firstKnown(re *regexp.Regexp, text string, dir airports.Directory, exclude string) string {
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		if code := m[1]; code != exclude && dir.Exists(code) {
			return code
		}
	}
	return ""
}

// flightNumber skips matches that are really an airport code, a month or a
// label followed by digits ("MAD 12", "JUN 2025", "ROW 14").
func flightNumber(text string, dir airports.Directory) (string, string, bool) {
	for _, m := range reFlight.FindAllStringSubmatch(text, -1) {
		code, num := m[1], m[2]
		if _, isMonth := months[code]; isMonth {
			continue
		}
		if len(code) == 3 && dir.Exists(code) {
			continue
		}
		if _, isLabel := labels[code]; isLabel || isDigits(code) {
			continue
		}
		if num = strings.TrimLeft(num, "0"); num == "" {
			continue
		}
		return code, num, true
	}
	return "", "", false
}

// printed labels that precede a number and look like a carrier code
var labels = map[string]struct{}{
	"ROW": {}, "SEQ": {}, "NO": {}, "NR": {}, "NUM": {}, "PAG": {}, "TEL": {}, "PNR": {},
}

type dateInfo struct {
	date   *time.Time
	conf   constants.Level
	source constants.DateStatus
	verify bool
}

func parseDate(text string, targetYear int, hint *time.Time) dateInfo {
	for _, d := range FullDates(text) {
		if targetYear > 0 && abs(d.Year()-targetYear) > targetYearSlack {
			continue
		}
		return dateInfo{date: &d, conf: constants.LevelHigh, source: constants.DateExplicit}
	}

	if targetYear > 0 {
		for _, m := range reDayMonth.FindAllStringSubmatch(text, -1) {
			var day, month int
			if m[1] != "" {
				day, month = atoi(m[1]), int(months[strings.ToUpper(m[2])])
			} else {
				day, month = atoi(m[3]), atoi(m[4])
			}
			d, ok := makeDate(targetYear, month, day)
			if !ok {
				continue
			}
			if hint != nil && absDuration(d.Sub(entity.DateOnly(*hint))) <= hintWindow {
				return dateInfo{date: &d, conf: constants.LevelMedium, source: constants.DateMetadataMatch}
			}
			return dateInfo{date: &d, conf: constants.LevelLow, source: constants.DateEstimated, verify: true}
		}
	}

	return dateInfo{conf: constants.LevelLow, source: constants.DateUnknown, verify: true}
}

// FullDates returns every valid date that carries a plausible year of its
// own, ISO dates first, in text order.
func FullDates(text string) []time.Time {
	var out []time.Time
	for _, m := range reISODate.FindAllStringSubmatch(text, -1) {
		if d, ok := makeDate(atoi(m[1]), atoi(m[2]), atoi(m[3])); ok && plausibleYear(d.Year()) {
			out = append(out, d)
		}
	}
	for _, m := range reFullDate.FindAllStringSubmatch(text, -1) {
		var day, month, year int
		switch {
		case m[4] != "" || m[8] != "":
			continue
		case m[1] != "":
			day, month, year = atoi(m[1]), int(months[strings.ToUpper(m[2])]), atoi(m[3])
		default:
			day, month, year = atoi(m[5]), atoi(m[6]), atoi(m[7])
		}
		if year < 100 {
			year += 2000
		}
		if !plausibleYear(year) {
			continue
		}
		if d, ok := makeDate(year, month, day); ok {
			out = append(out, d)
		}
	}
	return out
}

func plausibleYear(y int) bool {
	return y >= minYear && y <= now().Year()+maxYearAhead
}

// makeDate rejects out-of-range parts instead of letting time.Date normalise them.
func makeDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day || int(d.Month()) != month {
		return time.Time{}, false
	}
	return d, true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
