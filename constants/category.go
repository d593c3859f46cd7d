package constants

import (
	"strings"
)

// Cabin is the booked travel class, derived from the BCBP compartment code.
type Cabin string

const (
	CabinFirst          Cabin = "First"
	CabinBusiness       Cabin = "Business"
	CabinPremiumEconomy Cabin = "PremiumEconomy"
	CabinEconomy        Cabin = "Economy"
	CabinOther          Cabin = "Other"
)

var allCabins = []Cabin{
	CabinFirst,
	CabinBusiness,
	CabinPremiumEconomy,
	CabinEconomy,
	CabinOther,
}

func CabinsAsStringSlice() []string {
	result := make([]string, len(allCabins))
	for i, c := range allCabins {
		result[i] = string(c)
	}
	return result
}

// CabinFromCompartment maps an IATA compartment (booking class) code.
// Airlines reuse letters freely, so only the widely shared ones are mapped.
func CabinFromCompartment(code string) (Cabin, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 1 {
		return CabinOther, false
	}
	switch code {
	case "F", "A", "P":
		return CabinFirst, true
	case "J", "C", "D", "I", "Z", "R":
		return CabinBusiness, true
	case "W", "E":
		return CabinPremiumEconomy, true
	case "Y", "B", "H", "K", "L", "M", "N", "Q", "S", "T", "V", "X", "G", "O", "U":
		return CabinEconomy, true
	}
	return CabinOther, false
}

// CanonicalizeCabin normalizes a free-form cabin label (e.g. from the vision model).
func CanonicalizeCabin(input string) (Cabin, bool) {
	if input == "" {
		return CabinOther, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	synonyms := map[string]Cabin{
		"first":           CabinFirst,
		"first class":     CabinFirst,
		"business":        CabinBusiness,
		"business class":  CabinBusiness,
		"premium economy": CabinPremiumEconomy,
		"premium":         CabinPremiumEconomy,
		"economy":         CabinEconomy,
		"coach":           CabinEconomy,
		"turista":         CabinEconomy,
	}
	if c, ok := synonyms[normalized]; ok {
		return c, true
	}

	for _, c := range allCabins {
		if normalized == strings.ToLower(string(c)) {
			return c, true
		}
	}
	return CabinFromCompartment(input)
}
