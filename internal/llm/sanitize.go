package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"slices"
	"strings"
)

var reFence = regexp.MustCompile("(?s)^\\s*```(?:json|JSON)?\\s*(.*?)\\s*```\\s*$")

// StripFences removes a markdown code fence the model sometimes adds despite
// being told not to.
func StripFences(s string) string {
	if m := reFence.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(s)
}

var allowedKeys = map[string]struct{}{
	"flight_number": {}, "airline": {}, "departure_airport": {}, "arrival_airport": {},
	"flight_date": {}, "flight_date_raw": {}, "arrival_time": {}, "passenger_name": {},
	"confidence": {}, "year_source": {}, "year_requires_verification": {},
}

// NormalizeAndSanitizeJSON
// - Renames known synonyms (origin -> departure_airport)
// - Drops null/empty values
// - Upper-cases codes and lower-cases confidence levels
// - Removes unknown keys (strict additionalProperties = false friendliness)
func NormalizeAndSanitizeJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	dropped := make([]string, 0, 8)
	renamed := func(from, to string) {
		if v, ok := m[from]; ok {
			// don't overwrite existing value if already present
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			dropped = append(dropped, from+"->"+to)
		}
	}

	// 1) rename synonyms to the schema
	renamed("origin", "departure_airport")
	renamed("from", "departure_airport")
	renamed("destination", "arrival_airport")
	renamed("to", "arrival_airport")
	renamed("flight", "flight_number")
	renamed("date", "flight_date")
	renamed("passenger", "passenger_name")
	renamed("name", "passenger_name")

	// 2) drop null / "" everywhere
	for k, v := range maps.Clone(m) {
		switch t := v.(type) {
		case nil:
			delete(m, k)
			dropped = append(dropped, k+"(null)")
		case string:
			s := strings.TrimSpace(t)
			if s == "" || strings.EqualFold(s, "null") {
				delete(m, k)
				dropped = append(dropped, k+"(empty)")
			} else {
				m[k] = s
			}
		}
	}

	// 3) normalize codes
	for _, k := range []string{"departure_airport", "arrival_airport"} {
		if v, ok := m[k].(string); ok {
			m[k] = strings.ToUpper(v)
		}
	}
	if v, ok := m["flight_number"].(string); ok {
		m["flight_number"] = strings.ToUpper(strings.NewReplacer(" ", "", "-", "").Replace(v))
	}
	if v, ok := m["year_source"].(string); ok {
		m["year_source"] = strings.ToLower(v)
	}
	if v, ok := m["year_requires_verification"].(string); ok {
		switch strings.ToLower(v) {
		case "true", "yes":
			m["year_requires_verification"] = true
		case "false", "no":
			m["year_requires_verification"] = false
		}
	}

	// 4) confidence map: lower-case levels, drop anything that is not a scored field
	conf := map[string]any{}
	if c, ok := m["confidence"].(map[string]any); ok {
		for k, v := range c {
			s, isStr := v.(string)
			if !isStr || !slices.Contains(ConfidenceFields, k) {
				dropped = append(dropped, "confidence."+k)
				continue
			}
			conf[k] = strings.ToLower(strings.TrimSpace(s))
		}
	} else if _, present := m["confidence"]; present {
		dropped = append(dropped, "confidence(type)")
	}
	m["confidence"] = conf

	// 5) remove unknown keys
	for k := range maps.Clone(m) {
		if _, ok := allowedKeys[k]; !ok {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "dropped", dropped)
	}
	return out, dropped, nil
}
