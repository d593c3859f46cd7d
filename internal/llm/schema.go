package llm

import "github.com/joseph-ayodele/boardingpass-tracker/constants"

// Patterns enforced by the schema; the lenient pass drops optionals that miss them.
const (
	patternAirport      = `^[A-Z]{3}$`
	patternDate         = `^\d{4}-\d{2}-\d{2}$`
	patternTime         = `^([01]\d|2[0-3]):[0-5]\d$`
	patternFlightNumber = `^[A-Z0-9]{2,3}\d{1,4}[A-Z]?$`
)

// ConfidenceFields are the keys the model may score.
var ConfidenceFields = []string{
	constants.FieldFlightNumber,
	constants.FieldAirline,
	constants.FieldDepartureAirport,
	constants.FieldArrivalAirport,
	constants.FieldFlightDate,
	constants.FieldArrivalTime,
	constants.FieldPassengerName,
}

// BuildFlightJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// It is used locally to validate model output; only the confidence map is required.
func BuildFlightJSONSchema() map[string]any {
	levels := map[string]any{
		"type": "string",
		"enum": []string{string(constants.LevelHigh), string(constants.LevelMedium), string(constants.LevelLow)},
	}
	confProps := make(map[string]any, len(ConfidenceFields))
	for _, f := range ConfidenceFields {
		confProps[f] = levels
	}

	props := map[string]any{
		"flight_number":     map[string]any{"type": "string", "pattern": patternFlightNumber},
		"airline":           map[string]any{"type": "string", "minLength": 1},
		"departure_airport": map[string]any{"type": "string", "pattern": patternAirport},
		"arrival_airport":   map[string]any{"type": "string", "pattern": patternAirport},
		"flight_date":       map[string]any{"type": "string", "pattern": patternDate},
		"flight_date_raw":   map[string]any{"type": "string"},
		"arrival_time":      map[string]any{"type": "string", "pattern": patternTime},
		"passenger_name":    map[string]any{"type": "string", "minLength": 1},
		"confidence": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties":           confProps,
		},
		"year_source": map[string]any{
			"type": "string",
			"enum": []string{
				string(constants.DateExplicit), string(constants.DateMetadataMatch),
				string(constants.DateNeedsReview), string(constants.DateEstimated), string(constants.DateUnknown),
			},
		},
		"year_requires_verification": map[string]any{"type": "boolean"},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             []string{"confidence"},
	}
}
