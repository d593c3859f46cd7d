package llm

import (
	"strconv"
	"strings"

	"github.com/joseph-ayodele/boardingpass-tracker/internal/entity"
)

const basePrompt = `Extract data from this airline boarding pass or ticket.
Return ONLY valid JSON, no extra text:
{
  "flight_number": "airline IATA code + number e.g. IB3456, or null",
  "airline": "string or null",
  "departure_airport": "IATA 3-letter uppercase code or null",
  "arrival_airport": "IATA 3-letter uppercase code or null",
  "flight_date": "date in YYYY-MM-DD format or null",
  "arrival_time": "HH:MM in local time or null",
  "passenger_name": "string or null",
  "confidence": {
    "flight_number": "high|medium|low",
    "airline": "high|medium|low",
    "departure_airport": "high|medium|low",
    "arrival_airport": "high|medium|low",
    "flight_date": "high|medium|low",
    "arrival_time": "high|medium|low",
    "passenger_name": "high|medium|low"
  },
  "year_source": "explicit|estimated|unknown",
  "year_requires_verification": true or false
}
Separate date and time fields - they are easier to read independently.`

// BuildPrompt composes the instruction text sent with the document. Hints are
// only added when known.
func BuildPrompt(req ExtractRequest) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n")
	b.WriteString("Set year_source to \"explicit\" only if the year is printed on the document.\n")
	if req.TargetYear > 0 {
		b.WriteString("If the printed date has no year, use ")
		b.WriteString(strconv.Itoa(req.TargetYear))
		b.WriteString(", set year_source to \"estimated\" and year_requires_verification to true.\n")
	} else {
		b.WriteString("If the printed date has no year, set year_requires_verification to true.\n")
	}
	if req.CaptureDate != nil {
		b.WriteString("The document was captured on ")
		b.WriteString(req.CaptureDate.Format(entity.DateLayout))
		b.WriteString("; the flight is usually close to that date.\n")
	}
	b.WriteString("Never guess airport codes. Never output null: omit unknown fields instead.\n")
	b.WriteString("Return ONLY the JSON object, nothing else.")
	return b.String()
}
