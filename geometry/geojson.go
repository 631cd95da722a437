package geometry

import (
	"encoding/json"
	"fmt"
)

type geoJSON struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// MarshalGeoJSON returns the GeoJSON encoding of the geometry.
func (g Geometry) MarshalGeoJSON() ([]byte, error) {
	var coordinates any
	switch g.Kind {
	case KindPoint:
		coordinates = encodePosition(g.Paths[0][0])
	case KindLine:
		coordinates = encodePath(g.Paths[0])
	case KindPolygon:
		rings := make([][][2]float64, len(g.Paths))
		for i, ring := range g.Paths {
			rings[i] = encodePath(ring)
		}
		coordinates = rings
	default:
		return nil, fmt.Errorf("invalid geometry kind %q", g.Kind)
	}
	coords, err := json.Marshal(coordinates)
	if err != nil {
		return nil, err
	}
	return json.Marshal(geoJSON{Type: geoJSONType(g.Kind), Coordinates: coords})
}

// UnmarshalGeoJSON parses a GeoJSON geometry object.
func UnmarshalGeoJSON(data []byte) (Geometry, error) {
	var raw geoJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return Geometry{}, fmt.Errorf("invalid geojson geometry: %w", err)
	}
	var g Geometry
	switch raw.Type {
	case "Point":
		var p [2]float64
		if err := json.Unmarshal(raw.Coordinates, &p); err != nil {
			return Geometry{}, fmt.Errorf("invalid point coordinates: %w", err)
		}
		g = Point(p[0], p[1])
	case "LineString":
		var path [][2]float64
		if err := json.Unmarshal(raw.Coordinates, &path); err != nil {
			return Geometry{}, fmt.Errorf("invalid line coordinates: %w", err)
		}
		g = Line(decodePath(path)...)
	case "Polygon":
		var rings [][][2]float64
		if err := json.Unmarshal(raw.Coordinates, &rings); err != nil {
			return Geometry{}, fmt.Errorf("invalid polygon coordinates: %w", err)
		}
		decoded := make([][]Position, len(rings))
		for i, ring := range rings {
			decoded[i] = decodePath(ring)
		}
		g = Polygon(decoded...)
	default:
		return Geometry{}, fmt.Errorf("unsupported geojson type %q", raw.Type)
	}
	if err := g.Validate(); err != nil {
		return Geometry{}, err
	}
	return g, nil
}

// FromValue parses a geometry from a decoded JSON value, such as the
// geometry member of a feature that was unmarshaled into a map.
func FromValue(value any) (Geometry, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return Geometry{}, fmt.Errorf("invalid geometry value: %w", err)
	}
	return UnmarshalGeoJSON(data)
}

func geoJSONType(kind Kind) string {
	switch kind {
	case KindPoint:
		return "Point"
	case KindLine:
		return "LineString"
	default:
		return "Polygon"
	}
}

func encodePosition(p Position) [2]float64 {
	return [2]float64{p.X, p.Y}
}

func encodePath(path []Position) [][2]float64 {
	out := make([][2]float64, len(path))
	for i, p := range path {
		out[i] = encodePosition(p)
	}
	return out
}

func decodePath(path [][2]float64) []Position {
	out := make([]Position, len(path))
	for i, p := range path {
		out[i] = Position{X: p[0], Y: p[1]}
	}
	return out
}
