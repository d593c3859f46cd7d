package entity

// Airport is a row of the known-airport directory.
type Airport struct {
	IATACode    string `json:"iata_code"`
	Name        string `json:"name"`
	City        string `json:"city,omitempty"`
	CountryCode string `json:"country_code"`
	Type        string `json:"type,omitempty"`
}
