package airports

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/joseph-ayodele/boardingpass-tracker/internal/common"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/entity"
)

// ImportStats summarises a CSV import.
type ImportStats struct {
	Rows     int
	Imported int
	Skipped  int
}

// accepted header names, first match wins; covers the OurAirports dump and the
// compact seed format (iata_code,name,municipality,iso_country)
var columns = map[string][]string{
	"iata":    {"iata_code", "iata"},
	"name":    {"name"},
	"city":    {"municipality", "city"},
	"country": {"iso_country", "country_code", "country"},
	"type":    {"type"},
	"service": {"scheduled_service"},
}

var commercialTypes = map[string]struct{}{
	"large_airport":  {},
	"medium_airport": {},
	"small_airport":  {},
}

// ReadCSV parses an airports CSV with a header row. Rows without a valid IATA
// code or country, closed fields, and OurAirports rows without scheduled
// service are skipped.
func ReadCSV(r io.Reader) ([]entity.Airport, ImportStats, error) {
	var stats ImportStats
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, stats, fmt.Errorf("read header: %w", err)
	}
	pos := make(map[string]int, len(columns))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")))
		for key, names := range columns {
			for _, n := range names {
				if h == n {
					if _, seen := pos[key]; !seen {
						pos[key] = i
					}
				}
			}
		}
	}
	if _, ok := pos["iata"]; !ok {
		return nil, stats, common.NewAppError("CSV_HEADER", "missing iata_code column", common.ErrInvalidInput)
	}
	if _, ok := pos["country"]; !ok {
		return nil, stats, common.NewAppError("CSV_HEADER", "missing iso_country column", common.ErrInvalidInput)
	}

	get := func(rec []string, key string) string {
		i, ok := pos[key]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []entity.Airport
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out, stats, fmt.Errorf("read row %d: %w", stats.Rows+1, err)
		}
		stats.Rows++

		a := entity.Airport{
			IATACode:    strings.ToUpper(get(rec, "iata")),
			Name:        get(rec, "name"),
			City:        get(rec, "city"),
			CountryCode: strings.ToUpper(get(rec, "country")),
			Type:        get(rec, "type"),
		}
		if a.Type != "" {
			if _, ok := commercialTypes[a.Type]; !ok {
				stats.Skipped++
				continue
			}
		}
		if svc := get(rec, "service"); svc != "" && !strings.EqualFold(svc, "yes") {
			stats.Skipped++
			continue
		}
		v := common.NewValidator().
			Field("iata_code", a.IATACode, common.Required, common.IATACode).
			Field("iso_country", a.CountryCode, common.CountryCode).
			Field("name", a.Name, common.MaxLength(200))
		if v.HasErrors() {
			stats.Skipped++
			continue
		}
		out = append(out, a)
		stats.Imported++
	}
	return out, stats, nil
}
