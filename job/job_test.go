package job

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rillworks/dataswale"
	"github.com/rillworks/dataswale/config"
	"github.com/rillworks/dataswale/geometry"
	"github.com/rillworks/dataswale/queue"
	"github.com/rillworks/dataswale/storage"
)

const poiFile = `{
	"type": "FeatureCollection",
	"features": [
		{
			"type": "Feature",
			"geometry": {"type": "Point", "coordinates": [1, 1]},
			"properties": {"name": "bench", "rank": 1}
		},
		{
			"type": "Feature",
			"geometry": {"type": "Point", "coordinates": [2, 2]},
			"properties": {"name": "fountain", "rank": 5}
		}
	]
}`

func openSwale(t *testing.T, jobs []config.Job) *dataswale.Swale {
	cfg := &config.Config{
		Name: "mosswood",
		Layers: []*config.Layer{
			{Name: "pois", Kind: geometry.KindPoint},
			{Name: "pois_public", Kind: geometry.KindPoint, Access: config.AccessPublic},
		},
		Jobs: jobs,
	}
	require.NoError(t, cfg.Validate())

	q, err := queue.Open(":memory:", cfg, nil)
	require.NoError(t, err)

	s := dataswale.Open(cfg, storage.NewMemory(), q, nil)
	t.Cleanup(func() { s.Close() })
	return s
}

func featureCount(t *testing.T, data []byte) int {
	var fc struct {
		Features []json.RawMessage `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &fc))
	return len(fc.Features)
}

func TestGeoJSONFileInlet(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "pois.geojson")
	require.NoError(t, os.WriteFile(path, []byte(poiFile), 0o644))

	s := openSwale(t, []config.Job{{
		Name:      "import-pois",
		FetchType: "geojson_file",
		Config:    map[string]any{"path": path, "layer": "pois", "annotation_type": "create"},
	}})

	require.NoError(t, Run(ctx, s, "import-pois", nil))

	data, err := s.ExportLayer(ctx, "pois", dataswale.StagingVersion, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, featureCount(t, data))
}

func TestFilterEddy(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "pois.geojson")
	require.NoError(t, os.WriteFile(path, []byte(poiFile), 0o644))

	s := openSwale(t, []config.Job{
		{
			Name:      "import-pois",
			FetchType: "geojson_file",
			Config:    map[string]any{"path": path, "layer": "pois", "annotation_type": "create"},
		},
		{
			Name:      "drop-low-rank",
			FetchType: "filter",
			Config:    map[string]any{"layer": "pois", "predicate": "rank >= 3"},
		},
	})

	require.NoError(t, Run(ctx, s, "import-pois", nil))
	require.NoError(t, Run(ctx, s, "drop-low-rank", nil))

	data, err := s.ExportLayer(ctx, "pois", dataswale.StagingVersion, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, featureCount(t, data))
}

func TestFilterEddyDerivedLayer(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "pois.geojson")
	require.NoError(t, os.WriteFile(path, []byte(poiFile), 0o644))

	s := openSwale(t, []config.Job{
		{
			Name:      "import-pois",
			FetchType: "geojson_file",
			Config:    map[string]any{"path": path, "layer": "pois", "annotation_type": "create"},
		},
		{
			Name:      "derive-public",
			FetchType: "filter",
			Config:    map[string]any{"layer": "pois", "target": "pois_public", "predicate": "rank >= 3"},
		},
	})

	require.NoError(t, Run(ctx, s, "import-pois", nil))
	require.NoError(t, Run(ctx, s, "derive-public", nil))

	// the source layer keeps everything, the derived layer only matches
	data, err := s.ExportLayer(ctx, "pois", dataswale.StagingVersion, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, featureCount(t, data))

	data, err = s.ExportLayer(ctx, "pois_public", dataswale.StagingVersion, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, featureCount(t, data))
}

func TestGeoJSONExportOutlet(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	in := filepath.Join(dir, "in.geojson")
	out := filepath.Join(dir, "out.geojson")
	require.NoError(t, os.WriteFile(in, []byte(poiFile), 0o644))

	s := openSwale(t, []config.Job{
		{
			Name:      "import-pois",
			FetchType: "geojson_file",
			Config:    map[string]any{"path": in, "layer": "pois", "annotation_type": "create"},
		},
		{
			Name:      "export-pois",
			FetchType: "geojson_export",
			Config:    map[string]any{"layer": "pois", "path": out, "version": "staging"},
		},
	})

	require.NoError(t, Run(ctx, s, "import-pois", nil))
	require.NoError(t, Run(ctx, s, "export-pois", nil))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, 2, featureCount(t, data))
}

func TestUnknownJob(t *testing.T) {
	s := openSwale(t, nil)
	require.Error(t, Run(context.Background(), s, "nope", nil))
}

func TestUnknownFetchType(t *testing.T) {
	_, err := New(config.Job{Name: "x", FetchType: "carrier_pigeon"})
	require.Error(t, err)
}
