// Package resolve applies delta records to a layer store: it evaluates the
// record's join against the current layer contents and performs the
// creation, merge, or deletion the record asks for.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/rillworks/dataswale/config"
	"github.com/rillworks/dataswale/delta"
	"github.com/rillworks/dataswale/geometry"
	"github.com/rillworks/dataswale/identity"
	"github.com/rillworks/dataswale/layer"
	"github.com/rillworks/dataswale/object"
)

// ErrAmbiguousJoin is returned when a join matches more than one record on
// a layer configured with unique join strictness. The delta record is left
// unapplied.
var ErrAmbiguousJoin = errors.New("join matched more than one record")

// Outcome reports what applying one delta record did.
type Outcome struct {
	Type delta.Type
	// Affected lists the identities created, merged into, or deleted.
	Affected []string
	// NoMatch is set when an annotate or delete join found nothing; the
	// record is a reported no-op.
	NoMatch bool
}

// Apply resolves one delta record against the store.
func Apply(ctx context.Context, store *layer.Store, record delta.Record) (Outcome, error) {
	switch record.Type {
	case delta.TypeCreate:
		return applyCreate(ctx, store, record)
	case delta.TypeAnnotate:
		return applyAnnotate(ctx, store, record)
	case delta.TypeDelete:
		return applyDelete(ctx, store, record)
	default:
		return Outcome{}, fmt.Errorf("invalid annotation type %q", record.Type)
	}
}

// applyCreate inserts the record as new, bypassing the join. An existing
// record under the same identity is replaced.
func applyCreate(ctx context.Context, store *layer.Store, record delta.Record) (Outcome, error) {
	id, err := identity.Assign(store.Layer(), object.NewRecord(record.Geometry, record.Properties))
	if err != nil {
		return Outcome{}, err
	}
	err = store.Put(ctx, id, object.NewRecord(record.Geometry, record.Properties))
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Type: delta.TypeCreate, Affected: []string{id}}, nil
}

func applyAnnotate(ctx context.Context, store *layer.Store, record delta.Record) (Outcome, error) {
	matched, err := match(ctx, store, record)
	if err != nil {
		return Outcome{}, err
	}
	if len(matched) == 0 {
		return Outcome{Type: delta.TypeAnnotate, NoMatch: true}, nil
	}
	if len(matched) > 1 && store.Layer().JoinStrictness == config.JoinUnique {
		return Outcome{}, fmt.Errorf("%w: %d matches", ErrAmbiguousJoin, len(matched))
	}
	for _, id := range matched {
		target, err := store.Get(ctx, id)
		if err != nil {
			return Outcome{}, err
		}
		merged := maps.Clone(target.Properties)
		if merged == nil {
			merged = make(map[string]any)
		}
		maps.Copy(merged, record.Properties)
		geo := target.Geometry
		if record.ReplacementGeometry != nil {
			geo = *record.ReplacementGeometry
		}
		if err := store.Put(ctx, id, object.NewRecord(geo, merged)); err != nil {
			return Outcome{}, err
		}
	}
	return Outcome{Type: delta.TypeAnnotate, Affected: matched}, nil
}

func applyDelete(ctx context.Context, store *layer.Store, record delta.Record) (Outcome, error) {
	matched, err := match(ctx, store, record)
	if err != nil {
		return Outcome{}, err
	}
	if len(matched) == 0 {
		return Outcome{Type: delta.TypeDelete, NoMatch: true}, nil
	}
	if len(matched) > 1 && store.Layer().JoinStrictness == config.JoinUnique {
		return Outcome{}, fmt.Errorf("%w: %d matches", ErrAmbiguousJoin, len(matched))
	}
	for _, id := range matched {
		if err := store.Delete(id); err != nil {
			return Outcome{}, err
		}
	}
	return Outcome{Type: delta.TypeDelete, Affected: matched}, nil
}

// match returns the identities the record's join selects, in identity
// order.
func match(ctx context.Context, store *layer.Store, record delta.Record) ([]string, error) {
	switch record.Join {
	case delta.JoinGeometry:
		return matchGeometry(ctx, store, record)
	case delta.JoinProperty:
		return matchProperty(ctx, store, record)
	default:
		return nil, fmt.Errorf("invalid annotation join %q", record.Join)
	}
}

// matchGeometry selects records whose geometries intersect the delta
// geometry. A property match, when present, narrows the result.
func matchGeometry(ctx context.Context, store *layer.Store, record delta.Record) ([]string, error) {
	var matched []string
	for _, id := range store.Candidates(record.Geometry.Bounds()) {
		target, err := store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		ok, err := geometry.Intersects(record.Geometry, target.Geometry)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if record.PropertyMatch != nil && !propertiesMatch(target.Properties, record.PropertyMatch) {
			continue
		}
		matched = append(matched, id)
	}
	return matched, nil
}

func matchProperty(ctx context.Context, store *layer.Store, record delta.Record) ([]string, error) {
	if len(record.PropertyMatch) == 0 {
		return nil, fmt.Errorf("property match join requires match properties")
	}
	var matched []string
	err := store.ForEach(ctx, nil, func(id string, target object.Record) error {
		if propertiesMatch(target.Properties, record.PropertyMatch) {
			matched = append(matched, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matched, nil
}

// propertiesMatch reports whether every match property equals the
// corresponding target property. Integer and float forms of the same
// number compare equal.
func propertiesMatch(target, match map[string]any) bool {
	for key, want := range match {
		got, ok := target[key]
		if !ok || !valueEqual(got, want) {
			return false
		}
	}
	return true
}

func valueEqual(a, b any) bool {
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		return bok && af == bf
	}
	return a == b
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
