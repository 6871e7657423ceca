package store

import (
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

// validGeometry reports whether b decodes as EWKB to a non-empty geometry
// whose linestrings have two or more points and whose polygon rings are
// closed with four or more points. It is the subset of ST_IsValid that
// SQLite can enforce on insert.
func validGeometry(b []byte) bool {
	g, err := ewkb.Unmarshal(b)
	if err != nil || g.Empty() {
		return false
	}
	switch t := g.(type) {
	case *geom.LineString:
		return t.NumCoords() >= 2
	case *geom.Polygon:
		return validPolygon(t)
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			if !validPolygon(t.Polygon(i)) {
				return false
			}
		}
	}
	return true
}

func validPolygon(p *geom.Polygon) bool {
	for i := 0; i < p.NumLinearRings(); i++ {
		r := p.LinearRing(i)
		n := r.NumCoords()
		if n < 4 {
			return false
		}
		first, last := r.Coord(0), r.Coord(n-1)
		if first.X() != last.X() || first.Y() != last.Y() {
			return false
		}
	}
	return true
}
