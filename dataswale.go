// Package dataswale wires the delta queue, the annotation resolver, and
// the version manager into one versioned store of spatial layers.
package dataswale

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rillworks/dataswale/config"
	"github.com/rillworks/dataswale/delta"
	"github.com/rillworks/dataswale/geometry"
	"github.com/rillworks/dataswale/identity"
	"github.com/rillworks/dataswale/layer"
	"github.com/rillworks/dataswale/queue"
	"github.com/rillworks/dataswale/resolve"
	"github.com/rillworks/dataswale/storage"
	"github.com/rillworks/dataswale/version"
)

// Swale is an open store.
type Swale struct {
	cfg      *config.Config
	storage  storage.Storage
	queue    *queue.Queue
	versions *version.Manager
	log      *slog.Logger
}

// Open assembles a swale over the given storage and queue ledger.
func Open(cfg *config.Config, store storage.Storage, q *queue.Queue, log *slog.Logger) *Swale {
	if log == nil {
		log = slog.Default()
	}
	return &Swale{
		cfg:      cfg,
		storage:  store,
		queue:    q,
		versions: version.NewManager(cfg, store, log),
		log:      log,
	}
}

// Config returns the swale configuration.
func (s *Swale) Config() *config.Config {
	return s.cfg
}

// Versions returns the version manager.
func (s *Swale) Versions() *version.Manager {
	return s.versions
}

// Close releases the queue ledger and the storage backend.
func (s *Swale) Close() error {
	err := s.queue.Close()
	if closer, ok := s.storage.(interface{ Close() error }); ok {
		if cerr := closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Submit parses a GeoJSON feature collection as a delta batch for the
// named layer and enqueues it. The override type, when non-empty, replaces
// each record's annotation type. The returned batch id can be used for
// replay and for idempotent resubmission.
func (s *Swale) Submit(ctx context.Context, layerName string, payload []byte, override delta.Type, batchID string) (string, error) {
	d, err := delta.ParseFeatureCollection(layerName, payload, override)
	if err != nil {
		return "", err
	}
	return s.queue.Enqueue(ctx, d, batchID)
}

// RecordError reports a record that could not be applied.
type RecordError struct {
	ID    int64  `json:"id"`
	Error string `json:"error"`
}

// Report summarizes one apply pass over a layer.
type Report struct {
	Layer   string        `json:"layer"`
	Created int           `json:"created"`
	Merged  int           `json:"merged"`
	Deleted int           `json:"deleted"`
	NoMatch int           `json:"no_match"`
	Errors  []RecordError `json:"errors,omitempty"`
}

func (r *Report) count(outcome resolve.Outcome) {
	switch {
	case outcome.NoMatch:
		r.NoMatch++
	case outcome.Type == delta.TypeCreate:
		r.Created++
	case outcome.Type == delta.TypeAnnotate:
		r.Merged++
	case outcome.Type == delta.TypeDelete:
		r.Deleted++
	}
}

// recordError reports whether the error concerns only the one record, so
// the drain can archive it and continue.
func recordError(err error) bool {
	var verr *delta.ValidationError
	return errors.Is(err, resolve.ErrAmbiguousJoin) ||
		errors.Is(err, identity.ErrMissingIdentityField) ||
		errors.Is(err, layer.ErrSchemaViolation) ||
		errors.As(err, &verr)
}

// ApplyPending drains the named layer's queued records into its staging
// area. The whole cycle runs under the layer's drain lock: reading the
// staging root, applying the pending records, saving the root, and only
// then archiving the drained rows. Record-level failures are reported
// and skipped; a storage failure aborts the drain with every record left
// pending, since none of their effects were persisted.
func (s *Swale) ApplyPending(ctx context.Context, layerName string) (*Report, error) {
	if _, ok := s.cfg.Layer(layerName); !ok {
		return nil, &delta.ValidationError{Reason: "unknown layer " + layerName}
	}
	release, err := s.queue.Lock(ctx, layerName)
	if err != nil {
		return nil, err
	}
	defer release()

	store, err := s.versions.Staging(ctx, layerName)
	if err != nil {
		return nil, err
	}
	items, err := s.queue.Pending(ctx, layerName)
	if err != nil {
		return nil, err
	}
	report := &Report{Layer: layerName}
	drained := make([]int64, 0, len(items))
	for _, item := range items {
		outcome, err := resolve.Apply(ctx, store, item.Record)
		if err != nil {
			if recordError(err) {
				s.log.Warn("skipping delta record",
					"layer", layerName, "record", item.ID, "err", err)
				report.Errors = append(report.Errors, RecordError{ID: item.ID, Error: err.Error()})
				drained = append(drained, item.ID)
				continue
			}
			return report, fmt.Errorf("apply %q: record %d: %w", layerName, item.ID, err)
		}
		report.count(outcome)
		drained = append(drained, item.ID)
	}
	if err := s.versions.SaveStaging(ctx, store); err != nil {
		return report, err
	}
	if err := s.queue.Archive(ctx, drained); err != nil {
		return report, err
	}
	if len(drained) > 0 {
		s.log.Info("applied pending deltas", "layer", layerName, "records", len(drained))
	}
	return report, nil
}

// ApplyAll drains every layer in configuration order.
func (s *Swale) ApplyAll(ctx context.Context) ([]*Report, error) {
	reports := make([]*Report, 0, len(s.cfg.Layers))
	for _, l := range s.cfg.Layers {
		report, err := s.ApplyPending(ctx, l.Name)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// Publish drains all pending deltas and captures the staging areas as a
// new immutable version.
func (s *Swale) Publish(ctx context.Context) (version.Info, error) {
	if _, err := s.ApplyAll(ctx); err != nil {
		return version.Info{}, err
	}
	return s.versions.Publish(ctx)
}

// ClearLayer empties the named layer's staging area. Published versions
// are unaffected.
func (s *Swale) ClearLayer(ctx context.Context, layerName string) error {
	return s.versions.ClearStaging(ctx, layerName)
}

// Replay re-applies an archived batch to staging. Replaying a batch whose
// effects are already present converges to the same state.
func (s *Swale) Replay(ctx context.Context, batchID string) (*Report, error) {
	report := &Report{}
	stores := make(map[string]*layer.Store)
	err := s.queue.Replay(ctx, batchID, func(item queue.Item) error {
		store, ok := stores[item.Layer]
		if !ok {
			var err error
			store, err = s.versions.Staging(ctx, item.Layer)
			if err != nil {
				return err
			}
			stores[item.Layer] = store
		}
		outcome, err := resolve.Apply(ctx, store, item.Record)
		if err != nil {
			if recordError(err) {
				report.Errors = append(report.Errors, RecordError{ID: item.ID, Error: err.Error()})
				return nil
			}
			return err
		}
		report.count(outcome)
		return nil
	})
	if err != nil {
		return report, err
	}
	for _, store := range stores {
		if err := s.versions.SaveStaging(ctx, store); err != nil {
			return report, err
		}
	}
	return report, nil
}

// StagingVersion selects the mutable staging area in read operations that
// take a version id.
const StagingVersion = "staging"

// ExportLayer serializes a layer as GeoJSON. The version id selects a
// published version, with "" meaning the latest and StagingVersion the
// mutable staging area.
func (s *Swale) ExportLayer(ctx context.Context, layerName, versionID string, filter *geometry.Bounds) ([]byte, error) {
	var (
		store *layer.Store
		err   error
	)
	if versionID == StagingVersion {
		store, err = s.versions.Staging(ctx, layerName)
	} else {
		store, err = s.versions.Read(ctx, versionID, layerName)
	}
	if err != nil {
		return nil, err
	}
	return layer.Export(ctx, store, filter)
}
