package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rillworks/dataswale/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
name: mosswood
crs: EPSG:4326
bbox: {west: -123.0, south: 37.0, east: -122.0, north: 38.0}
layers:
  - name: roads
    kind: line
    access: public
    schema: |
      type Road { name: String }
  - name: pois
    kind: point
    identity_field: poi_id
    join_strictness: unique
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(testConfig), "swale.yaml")
	require.NoError(t, err)

	assert.Equal(t, "mosswood", cfg.Name)
	assert.Equal(t, geometry.Bounds{MinX: -123, MinY: 37, MaxX: -122, MaxY: 38}, cfg.BBox.Bounds())

	roads, ok := cfg.Layer("roads")
	require.True(t, ok)
	assert.Equal(t, geometry.KindLine, roads.Kind)
	assert.Equal(t, JoinMergeAll, roads.JoinStrictness)
	require.NotNil(t, roads.PropertySchema())
	assert.Equal(t, "Road", roads.PropertySchema().Name())

	pois, ok := cfg.Layer("pois")
	require.True(t, ok)
	assert.Equal(t, AccessInternal, pois.Access)
	assert.Equal(t, JoinUnique, pois.JoinStrictness)
	assert.Equal(t, "poi_id", pois.IdentityField)

	_, ok = cfg.Layer("missing")
	assert.False(t, ok)
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse([]byte(`name: x
layers:
  - name: a
    kind: circle`), "swale.yaml")
	assert.Error(t, err)

	_, err = Parse([]byte(`name: x
layers:
  - name: a
    kind: point
  - name: a
    kind: line`), "swale.yaml")
	assert.Error(t, err)

	_, err = Parse([]byte(`layers: []`), "swale.yaml")
	assert.Error(t, err)
}

func TestInterpolation(t *testing.T) {
	dir := t.TempDir()
	secondary := filepath.Join(dir, "site.yaml")
	require.NoError(t, os.WriteFile(secondary, []byte("store_name: mosswood\n"), 0o644))

	primary := filepath.Join(dir, "swale.yaml")
	require.NoError(t, os.WriteFile(primary, []byte(`
name: $site::store_name
config_sources:
  site: site.yaml
layers:
  - name: roads
    kind: line
`), 0o644))

	cfg, err := Load(primary)
	require.NoError(t, err)
	assert.Equal(t, "mosswood", cfg.Name)
}

func TestInterpolationMissingKey(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "site.yaml"), []byte("a: 1\n"), 0o644))
	primary := filepath.Join(dir, "swale.yaml")
	require.NoError(t, os.WriteFile(primary, []byte(`
name: $site::missing
config_sources:
  site: site.yaml
layers: []
`), 0o644))

	_, err := Load(primary)
	assert.Error(t, err)
}
