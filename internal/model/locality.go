package model

import (
	"fmt"
	"strconv"
)

// Locality is one gazetteer place (city, town, village) keyed by its
// Who's On First id. Every field except WOFID is nullable.
type Locality struct {
	WOFID               int64    `json:"wof_id"`
	WOFRegionID         *int64   `json:"wof_region_id,omitempty"`
	DBpediaID           *string  `json:"dbpedia_id,omitempty"`
	FreebaseID          *string  `json:"freebase_id,omitempty"`
	FactualID           *string  `json:"factual_id,omitempty"`
	FIPSCode            *string  `json:"fips_code,omitempty"`
	GeonamesID          *int64   `json:"geonames_id,omitempty"`
	GeoplanetID         *int64   `json:"geoplanet_id,omitempty"`
	LibraryOfCongressID *string  `json:"library_of_congress_id,omitempty"`
	NewYorkTimesID      *string  `json:"new_york_times_id,omitempty"`
	QuattroshapesID     *int64   `json:"quattroshapes_id,omitempty"`
	WikidataID          *string  `json:"wikidata_id,omitempty"`
	WikipediaPage       *string  `json:"wikipedia_page,omitempty"`
	Name                *string  `json:"name,omitempty"`
	CountryISO          *string  `json:"country_iso,omitempty"`
	NameA0              *string  `json:"name_a0,omitempty"`
	NameA1              *string  `json:"name_a1,omitempty"`
	Latitude            *float64 `json:"latitude,omitempty"`
	Longitude           *float64 `json:"longitude,omitempty"`
	Population          *int64   `json:"population,omitempty"`
	WikipediaWordcount  *int64   `json:"wikipedia_wordcount,omitempty"`
	Elevation           *int64   `json:"elevation,omitempty"`
	AreaM2              *float64 `json:"area_m2,omitempty"`
	Geometry            []byte   `json:"-"` // EWKB, SRID 4326
}

// LocalityColumns lists the locality table columns in the order used by
// Values and ScanTargets.
var LocalityColumns = []string{
	"wof_id",
	"wof_region_id",
	"dbpedia_id",
	"freebase_id",
	"factual_id",
	"fips_code",
	"geonames_id",
	"geoplanet_id",
	"library_of_congress_id",
	"new_york_times_id",
	"quattroshapes_id",
	"wikidata_id",
	"wikipedia_page",
	"name",
	"country_iso",
	"name_a0",
	"name_a1",
	"latitude",
	"longitude",
	"population",
	"wikipedia_wordcount",
	"elevation",
	"area_m2",
	"geom",
}

// IdentifierColumns lists the external identifier columns a locality can
// share with another locality describing the same place.
var IdentifierColumns = []string{
	"dbpedia_id",
	"freebase_id",
	"factual_id",
	"fips_code",
	"geonames_id",
	"geoplanet_id",
	"library_of_congress_id",
	"new_york_times_id",
	"quattroshapes_id",
	"wikidata_id",
	"wikipedia_page",
}

// DefaultDedupColumns is the ordered list of identifier columns the
// deduplicator checks when none are configured.
var DefaultDedupColumns = []string{
	"dbpedia_id",
	"freebase_id",
	"factual_id",
	"fips_code",
	"geonames_id",
	"wikipedia_page",
	"wikidata_id",
}

// IsIdentifierColumn reports whether col is an external identifier column.
func IsIdentifierColumn(col string) bool {
	for _, c := range IdentifierColumns {
		if c == col {
			return true
		}
	}
	return false
}

// Values returns the column values in LocalityColumns order. Nil pointers
// and an empty geometry map to SQL NULL.
func (l *Locality) Values() []any {
	var g any
	if len(l.Geometry) > 0 {
		g = l.Geometry
	}
	return []any{
		l.WOFID,
		l.WOFRegionID,
		l.DBpediaID,
		l.FreebaseID,
		l.FactualID,
		l.FIPSCode,
		l.GeonamesID,
		l.GeoplanetID,
		l.LibraryOfCongressID,
		l.NewYorkTimesID,
		l.QuattroshapesID,
		l.WikidataID,
		l.WikipediaPage,
		l.Name,
		l.CountryISO,
		l.NameA0,
		l.NameA1,
		l.Latitude,
		l.Longitude,
		l.Population,
		l.WikipediaWordcount,
		l.Elevation,
		l.AreaM2,
		g,
	}
}

// ScanTargets returns pointers to the fields in LocalityColumns order.
func (l *Locality) ScanTargets() []any {
	return []any{
		&l.WOFID,
		&l.WOFRegionID,
		&l.DBpediaID,
		&l.FreebaseID,
		&l.FactualID,
		&l.FIPSCode,
		&l.GeonamesID,
		&l.GeoplanetID,
		&l.LibraryOfCongressID,
		&l.NewYorkTimesID,
		&l.QuattroshapesID,
		&l.WikidataID,
		&l.WikipediaPage,
		&l.Name,
		&l.CountryISO,
		&l.NameA0,
		&l.NameA1,
		&l.Latitude,
		&l.Longitude,
		&l.Population,
		&l.WikipediaWordcount,
		&l.Elevation,
		&l.AreaM2,
		&l.Geometry,
	}
}

// Completeness counts the non-null persisted fields, the primary id
// included. It is computed on every call.
func (l *Locality) Completeness() int {
	n := 0
	for _, v := range l.Values() {
		if !isNull(v) {
			n++
		}
	}
	return n
}

// Identifier returns the value of an identifier column as a comparison
// key. The second return is false when the column is null or unknown.
func (l *Locality) Identifier(col string) (string, bool) {
	switch col {
	case "dbpedia_id":
		return str(l.DBpediaID)
	case "freebase_id":
		return str(l.FreebaseID)
	case "factual_id":
		return str(l.FactualID)
	case "fips_code":
		return str(l.FIPSCode)
	case "geonames_id":
		return integer(l.GeonamesID)
	case "geoplanet_id":
		return integer(l.GeoplanetID)
	case "library_of_congress_id":
		return str(l.LibraryOfCongressID)
	case "new_york_times_id":
		return str(l.NewYorkTimesID)
	case "quattroshapes_id":
		return integer(l.QuattroshapesID)
	case "wikidata_id":
		return str(l.WikidataID)
	case "wikipedia_page":
		return str(l.WikipediaPage)
	}
	return "", false
}

func (l *Locality) String() string {
	name := "<nil>"
	if l.Name != nil {
		name = *l.Name
	}
	return fmt.Sprintf("Locality<%s, wof:%d>", name, l.WOFID)
}

// Deref returns the pointed-to string, or "" for nil. Handy for log fields.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func isNull(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case *int64:
		return x == nil
	case *string:
		return x == nil
	case *float64:
		return x == nil
	case []byte:
		return len(x) == 0
	}
	return false
}

func str(s *string) (string, bool) {
	if s == nil {
		return "", false
	}
	return *s, true
}

func integer(i *int64) (string, bool) {
	if i == nil {
		return "", false
	}
	return strconv.FormatInt(*i, 10), true
}
