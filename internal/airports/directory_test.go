package airports

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/boardingpass-tracker/internal/common"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/entity"
)

func TestDefaultDirectory(t *testing.T) {
	d := Default()
	require.Greater(t, d.Len(), 50)

	assert.True(t, d.Exists("MAD"))
	assert.True(t, d.Exists(" lhr "))
	assert.False(t, d.Exists("XYZ"))

	c, ok := d.CountryOf("YUL")
	require.True(t, ok)
	assert.Equal(t, "CA", c)

	_, ok = d.CountryOf("XYZ")
	assert.False(t, ok)
}

func TestStaticLoadSkipsInvalidCodes(t *testing.T) {
	d := NewStatic([]entity.Airport{
		{IATACode: "pmi", CountryCode: "es"},
		{IATACode: "TOOLONG", CountryCode: "ES"},
		{IATACode: "", CountryCode: "ES"},
	})
	assert.Equal(t, 1, d.Len())
	c, ok := d.CountryOf("PMI")
	require.True(t, ok)
	assert.Equal(t, "ES", c)

	d.Load(nil)
	assert.False(t, d.Exists("PMI"))
}

const ourAirportsSample = `"id","ident","type","name","latitude_deg","longitude_deg","elevation_ft","continent","iso_country","iso_region","municipality","scheduled_service","gps_code","iata_code","local_code","home_link","wikipedia_link","keywords"
4330,"LEPA","large_airport","Palma De Mallorca Airport",39.551701,2.73881,27,"EU","ES","ES-PM","Palma De Mallorca","yes","LEPA","PMI",,,,
2434,"EGLL","large_airport","London Heathrow Airport",51.4706,-0.461941,83,"EU","GB","GB-ENG","London","yes","EGLL","LHR",,,,
6523,"00A","heliport","Total Rf Heliport",40.070985,-74.933689,11,"NA","US","US-PA","Bensalem","no","K00A",,"00A",,,
9999,"XXXX","closed","Old Field",0,0,0,"EU","ES","ES-M","Nowhere","no",,"OLD",,,,
7777,"YYYY","small_airport","Strip Without Service",0,0,0,"EU","FR","FR-X","Somewhere","no",,"SWS",,,,
`

func TestReadCSV_OurAirportsFormat(t *testing.T) {
	list, stats, err := ReadCSV(strings.NewReader(ourAirportsSample))
	require.NoError(t, err)

	assert.Equal(t, 5, stats.Rows)
	assert.Equal(t, 2, stats.Imported)
	assert.Equal(t, 3, stats.Skipped)
	require.Len(t, list, 2)
	assert.Equal(t, entity.Airport{
		IATACode:    "PMI",
		Name:        "Palma De Mallorca Airport",
		City:        "Palma De Mallorca",
		CountryCode: "ES",
		Type:        "large_airport",
	}, list[0])
}

func TestReadCSV_MissingColumns(t *testing.T) {
	_, _, err := ReadCSV(strings.NewReader("name,city\nFoo,Bar\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestReadCSV_ByteOrderMark(t *testing.T) {
	list, stats, err := ReadCSV(strings.NewReader("\uFEFFiata_code,name,municipality,iso_country\nOPO,Porto Airport,Porto,PT\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Imported)
	require.Len(t, list, 1)
	assert.Equal(t, "OPO", list[0].IATACode)
}
