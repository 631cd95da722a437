package geometry

import (
	"fmt"
	"math"
)

// Kind is the geometry kind of a layer or record.
type Kind string

const (
	KindPoint   Kind = "point"
	KindLine    Kind = "line"
	KindPolygon Kind = "polygon"
)

// ParseKind returns the Kind matching the given name.
func ParseKind(name string) (Kind, error) {
	switch Kind(name) {
	case KindPoint, KindLine, KindPolygon:
		return Kind(name), nil
	default:
		return "", fmt.Errorf("invalid geometry kind %q", name)
	}
}

// Position is a single coordinate pair.
type Position struct {
	X float64
	Y float64
}

// Geometry is a single point, line, or polygon.
//
// Paths holds the coordinate paths: a point has one path of one position,
// a line has one path, and a polygon has one or more rings where the first
// ring is the exterior.
type Geometry struct {
	Kind  Kind
	Paths [][]Position
}

// Point returns a point geometry at the given position.
func Point(x, y float64) Geometry {
	return Geometry{Kind: KindPoint, Paths: [][]Position{{{X: x, Y: y}}}}
}

// Line returns a line geometry through the given positions.
func Line(positions ...Position) Geometry {
	return Geometry{Kind: KindLine, Paths: [][]Position{positions}}
}

// Polygon returns a polygon geometry with the given rings.
func Polygon(rings ...[]Position) Geometry {
	return Geometry{Kind: KindPolygon, Paths: rings}
}

// Validate returns an error if the geometry shape does not match its kind.
func (g Geometry) Validate() error {
	switch g.Kind {
	case KindPoint:
		if len(g.Paths) != 1 || len(g.Paths[0]) != 1 {
			return fmt.Errorf("point must have exactly one position")
		}
	case KindLine:
		if len(g.Paths) != 1 || len(g.Paths[0]) < 2 {
			return fmt.Errorf("line must have one path of at least two positions")
		}
	case KindPolygon:
		if len(g.Paths) == 0 {
			return fmt.Errorf("polygon must have at least one ring")
		}
		for _, ring := range g.Paths {
			if len(ring) < 4 {
				return fmt.Errorf("polygon ring must have at least four positions")
			}
			if ring[0] != ring[len(ring)-1] {
				return fmt.Errorf("polygon ring must be closed")
			}
		}
	default:
		return fmt.Errorf("invalid geometry kind %q", g.Kind)
	}
	return nil
}

// Rounded returns a copy of the geometry with every coordinate rounded to
// the given number of decimal places.
func (g Geometry) Rounded(decimals int) Geometry {
	scale := math.Pow10(decimals)
	paths := make([][]Position, len(g.Paths))
	for i, path := range g.Paths {
		paths[i] = make([]Position, len(path))
		for j, p := range path {
			paths[i][j] = Position{
				X: math.Round(p.X*scale) / scale,
				Y: math.Round(p.Y*scale) / scale,
			}
		}
	}
	return Geometry{Kind: g.Kind, Paths: paths}
}

// Bounds returns the bounding box of the geometry.
func (g Geometry) Bounds() Bounds {
	b := EmptyBounds()
	for _, path := range g.Paths {
		for _, p := range path {
			b = b.Extend(p)
		}
	}
	return b
}

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// EmptyBounds returns a bounds value that contains no positions.
func EmptyBounds() Bounds {
	return Bounds{
		MinX: math.Inf(1),
		MinY: math.Inf(1),
		MaxX: math.Inf(-1),
		MaxY: math.Inf(-1),
	}
}

// IsEmpty returns true if the bounds contain no positions.
func (b Bounds) IsEmpty() bool {
	return b.MinX > b.MaxX || b.MinY > b.MaxY
}

// Extend returns the bounds grown to include the given position.
func (b Bounds) Extend(p Position) Bounds {
	return Bounds{
		MinX: math.Min(b.MinX, p.X),
		MinY: math.Min(b.MinY, p.Y),
		MaxX: math.Max(b.MaxX, p.X),
		MaxY: math.Max(b.MaxY, p.Y),
	}
}

// Union returns the smallest bounds containing both bounds.
func (b Bounds) Union(other Bounds) Bounds {
	return Bounds{
		MinX: math.Min(b.MinX, other.MinX),
		MinY: math.Min(b.MinY, other.MinY),
		MaxX: math.Max(b.MaxX, other.MaxX),
		MaxY: math.Max(b.MaxY, other.MaxY),
	}
}

// Intersects returns true if the two bounds overlap.
func (b Bounds) Intersects(other Bounds) bool {
	if b.IsEmpty() || other.IsEmpty() {
		return false
	}
	return b.MinX <= other.MaxX && other.MinX <= b.MaxX &&
		b.MinY <= other.MaxY && other.MinY <= b.MaxY
}

// Polygon returns the bounds as a closed polygon geometry.
func (b Bounds) Polygon() Geometry {
	return Polygon([]Position{
		{X: b.MinX, Y: b.MaxY},
		{X: b.MaxX, Y: b.MaxY},
		{X: b.MaxX, Y: b.MinY},
		{X: b.MinX, Y: b.MinY},
		{X: b.MinX, Y: b.MaxY},
	})
}
