package llm

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/joseph-ayodele/boardingpass-tracker/constants"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/entity"
)

var (
	reAirport      = regexp.MustCompile(patternAirport)
	reAirportInner = regexp.MustCompile(`\b[A-Z]{3}\b`)
	reTime         = regexp.MustCompile(patternTime)
	reFlightNumber = regexp.MustCompile(patternFlightNumber)
)

// SanitizeOptionalFields removes or normalizes fields that don't meet the stricter schema,
// so the overall document can still validate. A missing field is scored as an issue
// later, which is what an invalid one deserves anyway.
func SanitizeOptionalFields(doc []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, nil, err
	}

	var dropped []string
	drop := func(k string) {
		delete(m, k)
		dropped = append(dropped, k)
	}

	// airports: "Madrid (MAD)" -> "MAD" when exactly one code is inside
	for _, k := range []string{"departure_airport", "arrival_airport"} {
		v, ok := m[k]
		if !ok {
			continue
		}
		s, isStr := v.(string)
		if !isStr {
			drop(k)
			continue
		}
		s = strings.ToUpper(strings.TrimSpace(s))
		if reAirport.MatchString(s) {
			m[k] = s
			continue
		}
		if codes := reAirportInner.FindAllString(s, -1); len(codes) == 1 {
			m[k] = codes[0]
			continue
		}
		drop(k)
	}

	// flight_date: invalid dates survive as flight_date_raw
	if v, ok := m["flight_date"]; ok {
		s, _ := v.(string)
		if _, err := time.Parse(entity.DateLayout, s); err != nil {
			delete(m, "flight_date")
			if s != "" {
				m["flight_date_raw"] = s
			}
			dropped = append(dropped, "flight_date")
		}
	}
	if v, ok := m["flight_date_raw"]; ok {
		if _, isStr := v.(string); !isStr {
			drop("flight_date_raw")
		}
	}

	stringMatching := func(k string, re *regexp.Regexp) {
		if v, ok := m[k]; ok {
			if s, isStr := v.(string); !isStr || !re.MatchString(s) {
				drop(k)
			}
		}
	}
	stringMatching("arrival_time", reTime)
	stringMatching("flight_number", reFlightNumber)

	for _, k := range []string{"airline", "passenger_name"} {
		if v, ok := m[k]; ok {
			if s, isStr := v.(string); !isStr || strings.TrimSpace(s) == "" {
				drop(k)
			}
		}
	}

	if v, ok := m["year_source"]; ok {
		s, _ := v.(string)
		switch constants.DateStatus(s) {
		case constants.DateExplicit, constants.DateMetadataMatch, constants.DateNeedsReview,
			constants.DateEstimated, constants.DateUnknown:
		default:
			drop("year_source")
		}
	}
	if v, ok := m["year_requires_verification"]; ok {
		if _, isBool := v.(bool); !isBool {
			drop("year_requires_verification")
		}
	}

	// unknown levels are dropped; the field then counts as not high
	if c, ok := m["confidence"].(map[string]any); ok {
		for k, v := range c {
			s, _ := v.(string)
			switch constants.Level(s) {
			case constants.LevelHigh, constants.LevelMedium, constants.LevelLow:
			default:
				delete(c, k)
				dropped = append(dropped, "confidence."+k)
			}
		}
	} else {
		m["confidence"] = map[string]any{}
	}

	b, err := json.Marshal(m)
	if err != nil {
		return nil, nil, err
	}
	return b, dropped, nil
}
