package geometry

import (
	"github.com/peterstace/simplefeatures/geom"
)

// Intersects reports whether the two geometries intersect.
//
// A cheap bounding box test runs first; only candidates that pass are
// handed to the exact predicate.
func Intersects(a, b Geometry) (bool, error) {
	if !a.Bounds().Intersects(b.Bounds()) {
		return false, nil
	}
	ga, err := a.exact()
	if err != nil {
		return false, err
	}
	gb, err := b.exact()
	if err != nil {
		return false, err
	}
	return geom.Intersects(ga, gb), nil
}

func (g Geometry) exact() (geom.Geometry, error) {
	data, err := g.MarshalGeoJSON()
	if err != nil {
		return geom.Geometry{}, err
	}
	return geom.UnmarshalGeoJSON(data)
}
