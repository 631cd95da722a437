package version

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rillworks/dataswale/config"
	"github.com/rillworks/dataswale/geometry"
	"github.com/rillworks/dataswale/object"
	"github.com/rillworks/dataswale/storage"
)

func testConfig(t *testing.T) *config.Config {
	cfg := &config.Config{
		Name: "mosswood",
		Layers: []*config.Layer{
			{Name: "pois", Kind: geometry.KindPoint},
			{Name: "roads", Kind: geometry.KindLine},
			{Name: "parks", Kind: geometry.KindPolygon},
		},
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func stagePoint(t *testing.T, m *Manager, name string) {
	ctx := context.Background()
	store, err := m.Staging(ctx, "pois")
	require.NoError(t, err)
	record := object.NewRecord(
		geometry.Point(1, 2),
		map[string]any{"name": name},
	)
	require.NoError(t, store.Put(ctx, name, record))
	require.NoError(t, m.SaveStaging(ctx, store))
}

func TestPublishAndRead(t *testing.T) {
	ctx := context.Background()
	m := NewManager(testConfig(t), storage.NewMemory(), nil)

	stagePoint(t, m, "first")
	v1, err := m.Publish(ctx)
	require.NoError(t, err)

	stagePoint(t, m, "second")
	v2, err := m.Publish(ctx)
	require.NoError(t, err)

	// v1 is immutable: it does not see the second record
	old, err := m.Read(ctx, v1.ID, "pois")
	require.NoError(t, err)
	assert.Equal(t, 1, old.Len())
	assert.True(t, old.ReadOnly())

	current, err := m.Read(ctx, "", "pois")
	require.NoError(t, err)
	assert.Equal(t, 2, current.Len())

	infos, err := m.Versions(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, []Info{v1, v2}, infos)
	// ulid ids sort in publish order
	assert.Less(t, v1.ID, v2.ID)

	latest, ok, err := m.Latest(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, v2, latest)
}

func TestReadUnknownVersion(t *testing.T) {
	ctx := context.Background()
	m := NewManager(testConfig(t), storage.NewMemory(), nil)

	_, err := m.Read(ctx, "", "pois")
	require.ErrorIs(t, err, ErrUnknownVersion)

	stagePoint(t, m, "first")
	_, err = m.Publish(ctx)
	require.NoError(t, err)

	_, err = m.Read(ctx, "01BX5ZZKBKACTAV9WEVGEMMVRZ", "pois")
	require.ErrorIs(t, err, ErrUnknownVersion)
}

func TestPublishEmptyLayers(t *testing.T) {
	ctx := context.Background()
	m := NewManager(testConfig(t), storage.NewMemory(), nil)

	info, err := m.Publish(ctx)
	require.NoError(t, err)

	store, err := m.Read(ctx, info.ID, "roads")
	require.NoError(t, err)
	assert.Zero(t, store.Len())
}

func TestClearStaging(t *testing.T) {
	ctx := context.Background()
	m := NewManager(testConfig(t), storage.NewMemory(), nil)

	stagePoint(t, m, "first")
	v1, err := m.Publish(ctx)
	require.NoError(t, err)

	require.NoError(t, m.ClearStaging(ctx, "pois"))
	staging, err := m.Staging(ctx, "pois")
	require.NoError(t, err)
	assert.Zero(t, staging.Len())

	// the published version still has the record
	published, err := m.Read(ctx, v1.ID, "pois")
	require.NoError(t, err)
	assert.Equal(t, 1, published.Len())
}

// failingStorage errors on the first Put of a key matching the prefix and
// records every version key written.
type failingStorage struct {
	storage.Storage
	prefix      string
	failed      bool
	versionKeys []string
}

func (f *failingStorage) Put(ctx context.Context, key string, value []byte) error {
	if !f.failed && strings.HasPrefix(key, f.prefix) {
		f.failed = true
		return assert.AnError
	}
	if strings.HasPrefix(key, versionKeyPrefix) {
		f.versionKeys = append(f.versionKeys, key)
	}
	return f.Storage.Put(ctx, key, value)
}

func TestPublishFailureLeavesNoPartialVersion(t *testing.T) {
	ctx := context.Background()
	backing := &failingStorage{Storage: storage.NewMemory(), prefix: versionsKey}
	m := NewManager(testConfig(t), backing, nil)

	stagePoint(t, m, "first")
	_, err := m.Publish(ctx)
	require.ErrorIs(t, err, ErrPublishFailure)

	infos, err := m.Versions(ctx)
	require.NoError(t, err)
	assert.Empty(t, infos)

	_, err = m.Read(ctx, "", "pois")
	require.ErrorIs(t, err, ErrUnknownVersion)

	// the next publish succeeds and captures the staged state
	info, err := m.Publish(ctx)
	require.NoError(t, err)
	store, err := m.Read(ctx, info.ID, "pois")
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())
}

func TestAbortedPublishVersionNotReadable(t *testing.T) {
	ctx := context.Background()
	backing := &failingStorage{Storage: storage.NewMemory(), prefix: versionsKey}
	m := NewManager(testConfig(t), backing, nil)

	stagePoint(t, m, "first")
	_, err := m.Publish(ctx)
	require.ErrorIs(t, err, ErrPublishFailure)

	// the version key written before the index append failed must not
	// resolve, not even by its exact id
	require.Len(t, backing.versionKeys, 1)
	orphan := strings.TrimPrefix(backing.versionKeys[0], versionKeyPrefix)
	_, err = m.Read(ctx, orphan, "pois")
	require.ErrorIs(t, err, ErrUnknownVersion)

	ok, err := backing.Has(ctx, backing.versionKeys[0])
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPublishProgress(t *testing.T) {
	ctx := context.Background()
	m := NewManager(testConfig(t), storage.NewMemory(), nil)

	var captured []string
	m.Progress = func(layer string, done, total int) {
		captured = append(captured, layer)
		assert.Equal(t, len(captured), done)
		assert.Equal(t, 3, total)
	}
	_, err := m.Publish(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"pois", "roads", "parks"}, captured)
}
