package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	assert.NoError(t, Point(1, 2).Validate())
	assert.NoError(t, Line(Position{0, 0}, Position{1, 1}).Validate())
	assert.NoError(t, Polygon([]Position{{0, 0}, {1, 0}, {1, 1}, {0, 0}}).Validate())

	assert.Error(t, Line(Position{0, 0}).Validate())
	assert.Error(t, Polygon([]Position{{0, 0}, {1, 0}, {1, 1}}).Validate())
	assert.Error(t, Polygon([]Position{{0, 0}, {1, 0}, {1, 1}, {2, 2}}).Validate())
	assert.Error(t, Geometry{Kind: "circle"}.Validate())
}

func TestGeoJSONRoundTrip(t *testing.T) {
	line := Line(Position{-122.4, 37.7}, Position{-122.3, 37.8})
	data, err := line.MarshalGeoJSON()
	require.NoError(t, err)

	parsed, err := UnmarshalGeoJSON(data)
	require.NoError(t, err)
	assert.Equal(t, line, parsed)
}

func TestUnmarshalGeoJSONUnsupportedType(t *testing.T) {
	_, err := UnmarshalGeoJSON([]byte(`{"type":"MultiPoint","coordinates":[[1,2]]}`))
	assert.Error(t, err)
}

func TestBounds(t *testing.T) {
	line := Line(Position{0, 0}, Position{2, 3})
	b := line.Bounds()
	assert.Equal(t, Bounds{MinX: 0, MinY: 0, MaxX: 2, MaxY: 3}, b)

	assert.True(t, b.Intersects(Point(1, 1).Bounds()))
	assert.False(t, b.Intersects(Point(5, 5).Bounds()))
	assert.False(t, EmptyBounds().Intersects(b))
}

func TestIntersects(t *testing.T) {
	square := Polygon([]Position{{0, 0}, {4, 0}, {4, 4}, {0, 4}, {0, 0}})

	inside, err := Intersects(square, Point(2, 2))
	require.NoError(t, err)
	assert.True(t, inside)

	outside, err := Intersects(square, Point(9, 9))
	require.NoError(t, err)
	assert.False(t, outside)

	crossing, err := Intersects(square, Line(Position{-1, 2}, Position{5, 2}))
	require.NoError(t, err)
	assert.True(t, crossing)
}

func TestRounded(t *testing.T) {
	a := Point(1.00000004, 2.00000006).Rounded(7)
	b := Point(1.0, 2.0000001).Rounded(7)
	assert.Equal(t, Position{1, 2.0000001}, b.Paths[0][0])
	assert.Equal(t, Position{1, 2.0000001}, a.Paths[0][0])
}
