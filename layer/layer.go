// Package layer implements the typed record store for a single layer. A
// store wraps an in-memory layer root over content-addressed storage;
// mutations rewrite the root and Root persists it, so snapshots are just
// root hashes.
package layer

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/rillworks/dataswale/config"
	"github.com/rillworks/dataswale/geometry"
	"github.com/rillworks/dataswale/object"
	"github.com/rillworks/dataswale/storage"
)

var (
	// ErrReadOnly is returned by mutations on stores opened from a
	// published version.
	ErrReadOnly = errors.New("layer store is read only")
	// ErrSchemaViolation is returned when a record does not fit the layer
	// definition.
	ErrSchemaViolation = errors.New("record violates layer schema")
)

// Store is a handle on one layer's records.
type Store struct {
	layer    *config.Layer
	storage  storage.Storage
	root     *object.LayerRoot
	readOnly bool
}

// Open returns a store over the layer root with the given hash. A nil hash
// opens an empty layer.
func Open(ctx context.Context, store storage.Storage, layer *config.Layer, root object.Hash, readOnly bool) (*Store, error) {
	s := &Store{
		layer:    layer,
		storage:  store,
		root:     object.NewLayerRoot(),
		readOnly: readOnly,
	}
	if root != nil {
		loaded, err := storage.GetLayerRoot(ctx, store, root)
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", layer.Name, err)
		}
		s.root = loaded
	}
	return s, nil
}

// Name returns the layer name.
func (s *Store) Name() string {
	return s.layer.Name
}

// Layer returns the layer configuration.
func (s *Store) Layer() *config.Layer {
	return s.layer
}

// ReadOnly reports whether mutations are rejected.
func (s *Store) ReadOnly() bool {
	return s.readOnly
}

// Len returns the number of records in the layer.
func (s *Store) Len() int {
	return len(s.root.Records)
}

// Get returns the record with the given identity.
func (s *Store) Get(ctx context.Context, id string) (object.Record, error) {
	entry, ok := s.root.Records[id]
	if !ok {
		return object.Record{}, storage.ErrNotFound
	}
	return storage.GetRecord(ctx, s.storage, entry.Hash)
}

// Has reports whether a record with the given identity exists.
func (s *Store) Has(id string) bool {
	_, ok := s.root.Records[id]
	return ok
}

// Put writes the record under the given identity, replacing any existing
// record.
func (s *Store) Put(ctx context.Context, id string, record object.Record) error {
	if s.readOnly {
		return ErrReadOnly
	}
	if record.Geometry.Kind != s.layer.Kind {
		return fmt.Errorf("%w: geometry kind %q does not match layer kind %q",
			ErrSchemaViolation, record.Geometry.Kind, s.layer.Kind)
	}
	hash, err := storage.PutObject(ctx, s.storage, record)
	if err != nil {
		return err
	}
	s.root.Records[id] = object.RecordEntry{
		Hash:   hash,
		Bounds: record.Geometry.Bounds(),
	}
	return nil
}

// Delete removes the record with the given identity. Deleting an absent
// record is a no-op.
func (s *Store) Delete(id string) error {
	if s.readOnly {
		return ErrReadOnly
	}
	delete(s.root.Records, id)
	return nil
}

// ForEach calls fn for each record in identity order. A non-nil bounds
// filter skips records whose bounding boxes do not intersect it before
// loading the record.
func (s *Store) ForEach(ctx context.Context, filter *geometry.Bounds, fn func(id string, record object.Record) error) error {
	ids := slices.Sorted(maps.Keys(s.root.Records))
	for _, id := range ids {
		entry := s.root.Records[id]
		if filter != nil && !filter.Intersects(entry.Bounds) {
			continue
		}
		record, err := storage.GetRecord(ctx, s.storage, entry.Hash)
		if err != nil {
			return err
		}
		if err := fn(id, record); err != nil {
			return err
		}
	}
	return nil
}

// Candidates returns the identities whose bounding boxes intersect the
// given bounds, in identity order, without loading records.
func (s *Store) Candidates(bounds geometry.Bounds) []string {
	var ids []string
	for id, entry := range s.root.Records {
		if bounds.Intersects(entry.Bounds) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Root persists the current layer root and returns its hash.
func (s *Store) Root(ctx context.Context) (object.Hash, error) {
	return storage.PutObject(ctx, s.storage, s.root)
}
