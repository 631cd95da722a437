package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rillworks/dataswale/config"
	"github.com/rillworks/dataswale/delta"
	"github.com/rillworks/dataswale/geometry"
)

func testConfig(t *testing.T) *config.Config {
	cfg := &config.Config{
		Name: "mosswood",
		Layers: []*config.Layer{
			{Name: "pois", Kind: geometry.KindPoint},
			{
				Name: "roads",
				Kind: geometry.KindLine,
				Transforms: []config.TransformRule{{
					Rename: map[string]string{"nm": "name"},
					Coerce: map[string]string{"lanes": "int"},
					Set:    map[string]string{"source": `"import"`},
				}},
			},
		},
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func openQueue(t *testing.T) *Queue {
	q, err := Open(":memory:", testConfig(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })
	return q
}

func pointDelta(ts int64, name string) *delta.Delta {
	return &delta.Delta{
		Layer:     "pois",
		Timestamp: ts,
		Records: []delta.Record{{
			Geometry:   geometry.Point(1, 2),
			Properties: map[string]any{"name": name},
			Type:       delta.TypeCreate,
			Join:       delta.JoinGeometry,
		}},
	}
}

func drainAll(t *testing.T, q *Queue, layer string) []Item {
	t.Helper()
	ctx := context.Background()
	release, err := q.Lock(ctx, layer)
	require.NoError(t, err)
	defer release()

	items, err := q.Pending(ctx, layer)
	require.NoError(t, err)
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	require.NoError(t, q.Archive(ctx, ids))
	return items
}

func TestEnqueuePendingOrder(t *testing.T) {
	ctx := context.Background()
	q := openQueue(t)

	// enqueue out of timestamp order
	_, err := q.Enqueue(ctx, pointDelta(200, "second"), "")
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, pointDelta(100, "first"), "")
	require.NoError(t, err)

	count, err := q.PendingCount(ctx, "pois")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	var names []string
	for _, item := range drainAll(t, q, "pois") {
		names = append(names, item.Record.Properties["name"].(string))
	}
	assert.Equal(t, []string{"first", "second"}, names)

	count, err = q.PendingCount(ctx, "pois")
	require.NoError(t, err)
	assert.Zero(t, count)

	// archived rows are not delivered again
	assert.Empty(t, drainAll(t, q, "pois"))
}

func TestPendingUntilArchived(t *testing.T) {
	ctx := context.Background()
	q := openQueue(t)

	_, err := q.Enqueue(ctx, pointDelta(1, "a"), "")
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, pointDelta(2, "b"), "")
	require.NoError(t, err)

	// reading pending rows does not consume them
	items, err := q.Pending(ctx, "pois")
	require.NoError(t, err)
	require.Len(t, items, 2)

	count, err := q.PendingCount(ctx, "pois")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// archiving one row leaves the other pending
	require.NoError(t, q.Archive(ctx, []int64{items[0].ID}))
	remaining, err := q.Pending(ctx, "pois")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, items[1].ID, remaining[0].ID)
}

func TestLockSerializesDrains(t *testing.T) {
	ctx := context.Background()
	q := openQueue(t)

	release, err := q.Lock(ctx, "pois")
	require.NoError(t, err)

	// a second drain cannot start until the first releases
	blocked, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = q.Lock(blocked, "pois")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// other layers are independent
	other, err := q.Lock(ctx, "roads")
	require.NoError(t, err)
	other()

	release()
	again, err := q.Lock(ctx, "pois")
	require.NoError(t, err)
	again()
}

func TestEnqueueUnknownLayer(t *testing.T) {
	q := openQueue(t)
	d := pointDelta(1, "x")
	d.Layer = "nope"
	_, err := q.Enqueue(context.Background(), d, "")
	var verr *delta.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestEnqueueIdempotent(t *testing.T) {
	ctx := context.Background()
	q := openQueue(t)

	batch, err := q.Enqueue(ctx, pointDelta(1, "once"), "batch-1")
	require.NoError(t, err)
	assert.Equal(t, "batch-1", batch)

	// resubmitting the same batch id appends nothing
	_, err = q.Enqueue(ctx, pointDelta(1, "once"), "batch-1")
	require.NoError(t, err)

	count, err := q.PendingCount(ctx, "pois")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestReplay(t *testing.T) {
	ctx := context.Background()
	q := openQueue(t)

	batch, err := q.Enqueue(ctx, pointDelta(1, "replayed"), "")
	require.NoError(t, err)

	// nothing archived yet
	err = q.Replay(ctx, batch, func(Item) error {
		t.Fatal("unexpected delivery before archive")
		return nil
	})
	require.NoError(t, err)

	drainAll(t, q, "pois")

	var replayed int
	err = q.Replay(ctx, batch, func(item Item) error {
		replayed++
		assert.Equal(t, "replayed", item.Record.Properties["name"])
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, replayed)
}

func TestPendingAppliesTransforms(t *testing.T) {
	ctx := context.Background()
	q := openQueue(t)

	d := &delta.Delta{
		Layer:     "roads",
		Timestamp: 1,
		Records: []delta.Record{{
			Geometry:   geometry.Line(geometry.Position{X: 0, Y: 0}, geometry.Position{X: 1, Y: 1}),
			Properties: map[string]any{"nm": "Main St", "lanes": "2"},
			Type:       delta.TypeCreate,
			Join:       delta.JoinGeometry,
		}},
	}
	_, err := q.Enqueue(ctx, d, "")
	require.NoError(t, err)

	items, err := q.Pending(ctx, "roads")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Main St", items[0].Record.Properties["name"])
	assert.NotContains(t, items[0].Record.Properties, "nm")
	assert.Equal(t, int64(2), items[0].Record.Properties["lanes"])
	assert.Equal(t, "import", items[0].Record.Properties["source"])
}
