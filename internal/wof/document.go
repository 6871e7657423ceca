// Package wof reads Who's On First GeoJSON documents and extracts
// gazetteer fields from them.
package wof

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// SRID is the spatial reference of every stored geometry.
const SRID = 4326

// Document is one parsed GeoJSON feature. It is immutable once parsed.
type Document struct {
	ID    int64
	Path  string
	raw   []byte
	props gjson.Result
}

// ParseFile reads and parses the document at path.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "wof: read %s", path)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, eris.Wrapf(err, "wof: parse %s", path)
	}
	doc.Path = path
	return doc, nil
}

// Parse parses a GeoJSON feature. The feature must carry a numeric id.
func Parse(data []byte) (*Document, error) {
	if !gjson.ValidBytes(data) {
		return nil, eris.New("wof: invalid json")
	}
	id := gjson.GetBytes(data, "id")
	if id.Type != gjson.Number {
		return nil, eris.New("wof: missing numeric id")
	}
	return &Document{
		ID:    id.Int(),
		raw:   data,
		props: gjson.GetBytes(data, "properties"),
	}, nil
}

func (d *Document) String() string {
	return fmt.Sprintf("Document<%d>", d.ID)
}

// Property looks up a nested value under properties. keys are literal
// property names or array indexes; no path syntax is interpreted.
func (d *Document) Property(keys ...string) gjson.Result {
	return d.props.Get(path(keys))
}

// Placetype returns wof:placetype, or "" when absent.
func (d *Document) Placetype() string {
	return d.Property("wof:placetype").String()
}

// Geometry decodes the GeoJSON geometry member.
func (d *Document) Geometry() (geom.T, error) {
	raw := gjson.GetBytes(d.raw, "geometry")
	if !raw.Exists() || raw.Type == gjson.Null {
		return nil, nil
	}
	var g geom.T
	if err := geojson.Unmarshal([]byte(raw.Raw), &g); err != nil {
		return nil, eris.Wrap(err, "wof: decode geometry")
	}
	return g, nil
}

// GeometryEWKB encodes the geometry as little-endian EWKB with SRID 4326.
// A missing geometry yields nil.
func (d *Document) GeometryEWKB() ([]byte, error) {
	g, err := d.Geometry()
	if err != nil || g == nil {
		return nil, err
	}
	g = withSRID(g)
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "wof: encode geometry")
	}
	return data, nil
}

func withSRID(g geom.T) geom.T {
	switch t := g.(type) {
	case *geom.Point:
		return t.SetSRID(SRID)
	case *geom.MultiPoint:
		return t.SetSRID(SRID)
	case *geom.LineString:
		return t.SetSRID(SRID)
	case *geom.MultiLineString:
		return t.SetSRID(SRID)
	case *geom.Polygon:
		return t.SetSRID(SRID)
	case *geom.MultiPolygon:
		return t.SetSRID(SRID)
	case *geom.GeometryCollection:
		return t.SetSRID(SRID)
	}
	return g
}

// path joins keys into a gjson path, escaping path syntax characters.
func path(keys []string) string {
	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('.')
		}
		for _, r := range k {
			switch r {
			case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%':
				sb.WriteByte('\\')
			}
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
