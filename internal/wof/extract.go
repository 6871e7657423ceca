package wof

import (
	"go.uber.org/zap"

	"github.com/sells-group/gazetteer/internal/model"
)

const concordances = "wof:concordances"

// Candidate source paths, highest priority first.
var (
	nameFields = []Field[string]{
		Str("name:eng_x_preferred", "0"),
		Str("wof:name"),
		Str("qs_pg:name"),
	}

	nameA0Fields = []Field[string]{
		Str("qs:a0"),
		Str("qs:adm0"),
		Str("ne:SOV0NAME"),
		Str("qs_pg:name_adm0"),
		Str("woe:name_adm0"),
	}

	nameA1Fields = []Field[string]{
		StrFrom(1, "qs:a1"),
		Str("ne:ADM1NAME"),
		Str("qs_pg:name_adm1"),
		Str("woe:name_adm1"),
	}

	populationFields = []Field[int64]{
		Int("gn:population"),
		Int("wof:population"),
		Int("wk:population"),
	}

	elevationFields = []Field[int64]{
		Int("gn:elevation"),
		Int("ne:ELEVATION"),
	}

	nameAbbrFields = []Field[string]{
		Str("wof:shortcode"),
		Str("wof:abbreviation"),
	}

	isoIDFields = []Field[string]{
		Str(concordances, "iso:id"),
		Str("iso:id"),
	}
)

// ExtractLocality maps a document onto a Locality. Absent source fields
// leave the corresponding field nil; extraction itself never fails.
func ExtractLocality(d *Document) model.Locality {
	loc := model.Locality{
		WOFID:               d.ID,
		WOFRegionID:         First(d, PositiveInt("wof:hierarchy", "0", "region_id")),
		DBpediaID:           First(d, Str(concordances, "dbp:id")),
		FreebaseID:          First(d, Str(concordances, "fb:id")),
		FactualID:           First(d, Str(concordances, "fct:id")),
		FIPSCode:            First(d, Str(concordances, "fips:code")),
		GeonamesID:          First(d, Int(concordances, "gn:id")),
		GeoplanetID:         First(d, Int(concordances, "gp:id")),
		LibraryOfCongressID: First(d, Str(concordances, "loc:id")),
		NewYorkTimesID:      First(d, Str(concordances, "nyt:id")),
		QuattroshapesID:     First(d, Int(concordances, "qs:id")),
		WikidataID:          First(d, Str(concordances, "wd:id")),
		WikipediaPage:       First(d, Str(concordances, "wk:page")),
		Name:                First(d, nameFields...),
		CountryISO:          First(d, Str("iso:country")),
		NameA0:              First(d, nameA0Fields...),
		NameA1:              First(d, nameA1Fields...),
		Latitude:            First(d, Float("geom:latitude")),
		Longitude:           First(d, Float("geom:longitude")),
		Population:          First(d, populationFields...),
		WikipediaWordcount:  First(d, Int("wk:wordcount")),
		Elevation:           First(d, elevationFields...),
		AreaM2:              First(d, Float("geom:area_square_m")),
	}
	loc.Geometry = geometry(d)
	return loc
}

// ExtractRegion maps a region document onto a Region.
func ExtractRegion(d *Document) model.Region {
	return model.Region{
		WOFID:        d.ID,
		WOFCountryID: First(d, PositiveInt("wof:hierarchy", "0", "country_id")),
		FIPSCode:     First(d, Str(concordances, "fips:code")),
		GeonamesID:   First(d, Int(concordances, "gn:id")),
		GeoplanetID:  First(d, Int(concordances, "gp:id")),
		ISOID:        First(d, isoIDFields...),
		WikidataID:   First(d, Str(concordances, "wd:id")),
		Name:         First(d, nameFields...),
		NameAbbr:     First(d, nameAbbrFields...),
		CountryISO:   First(d, Str("iso:country")),
		NameA0:       First(d, nameA0Fields...),
		Latitude:     First(d, Float("geom:latitude")),
		Longitude:    First(d, Float("geom:longitude")),
		Population:   First(d, populationFields...),
		AreaM2:       First(d, Float("geom:area_square_m")),
	}
}

// geometry treats an undecodable geometry as absent.
func geometry(d *Document) []byte {
	data, err := d.GeometryEWKB()
	if err != nil {
		zap.L().Debug("wof: dropping undecodable geometry",
			zap.Int64("wof_id", d.ID),
			zap.Error(err),
		)
		return nil
	}
	return data
}
