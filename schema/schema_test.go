package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	s, err := Parse(`type Road { name: String! lanes: Int surface: String }`)
	require.NoError(t, err)
	assert.Equal(t, "Road", s.Name())

	_, err = Parse(`type A { x: Int } type B { y: Int }`)
	assert.Error(t, err)

	_, err = Parse(`enum Color { RED }`)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	s, err := Parse(`type Road { name: String! lanes: Int paved: Boolean width: Float tags: [String] }`)
	require.NoError(t, err)

	assert.NoError(t, s.Validate(map[string]any{"name": "Main St"}))
	assert.NoError(t, s.Validate(map[string]any{"name": "Main St", "lanes": float64(2), "paved": true}))
	assert.NoError(t, s.Validate(map[string]any{"name": "Main St", "width": 3.5, "tags": []any{"arterial"}}))
	assert.NoError(t, s.Validate(map[string]any{"name": "Main St", "extra": "ignored"}))

	assert.Error(t, s.Validate(map[string]any{"lanes": float64(2)}))
	assert.Error(t, s.Validate(map[string]any{"name": "Main St", "lanes": 2.5}))
	assert.Error(t, s.Validate(map[string]any{"name": "Main St", "paved": "yes"}))
	assert.Error(t, s.Validate(map[string]any{"name": "Main St", "tags": []any{int64(1)}}))
}
