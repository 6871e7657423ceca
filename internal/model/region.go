package model

import "fmt"

// Region is an administrative subdivision (state, province) that
// localities reference through WOFRegionID.
type Region struct {
	WOFID        int64    `json:"wof_id"`
	WOFCountryID *int64   `json:"wof_country_id,omitempty"`
	FIPSCode     *string  `json:"fips_code,omitempty"`
	GeonamesID   *int64   `json:"geonames_id,omitempty"`
	GeoplanetID  *int64   `json:"geoplanet_id,omitempty"`
	ISOID        *string  `json:"iso_id,omitempty"`
	WikidataID   *string  `json:"wikidata_id,omitempty"`
	Name         *string  `json:"name,omitempty"`
	NameAbbr     *string  `json:"name_abbr,omitempty"`
	CountryISO   *string  `json:"country_iso,omitempty"`
	NameA0       *string  `json:"name_a0,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	Population   *int64   `json:"population,omitempty"`
	AreaM2       *float64 `json:"area_m2,omitempty"`
}

// RegionColumns lists the region table columns in Values order.
var RegionColumns = []string{
	"wof_id",
	"wof_country_id",
	"fips_code",
	"geonames_id",
	"geoplanet_id",
	"iso_id",
	"wikidata_id",
	"name",
	"name_abbr",
	"country_iso",
	"name_a0",
	"latitude",
	"longitude",
	"population",
	"area_m2",
}

// Values returns the column values in RegionColumns order.
func (r *Region) Values() []any {
	return []any{
		r.WOFID,
		r.WOFCountryID,
		r.FIPSCode,
		r.GeonamesID,
		r.GeoplanetID,
		r.ISOID,
		r.WikidataID,
		r.Name,
		r.NameAbbr,
		r.CountryISO,
		r.NameA0,
		r.Latitude,
		r.Longitude,
		r.Population,
		r.AreaM2,
	}
}

func (r *Region) String() string {
	return fmt.Sprintf("Region<%s, %s, wof:%d>", Deref(r.Name), Deref(r.NameA0), r.WOFID)
}
