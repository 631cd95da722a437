// Package queue implements the durable delta queue. Batches are exploded
// into per-record rows in a SQLite ledger; pending rows are delivered in
// timestamp order and archived instead of deleted, so batches can be
// replayed. The per-layer lock serializes whole drain-and-apply cycles,
// not just the ledger reads.
package queue

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/rillworks/dataswale/config"
	"github.com/rillworks/dataswale/delta"
)

//go:embed schema.sql
var schemaSQL string

// Queue is the durable delta ledger for one swale.
type Queue struct {
	db  *sql.DB
	cfg *config.Config
	log *slog.Logger

	mu           sync.Mutex
	locks        map[string]chan struct{}
	transformers map[string]*transformer
}

// Open creates or opens the queue ledger at the given path. Use ":memory:"
// for an ephemeral queue.
func Open(path string, cfg *config.Config, log *slog.Logger) (*Queue, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to queue: %w", err)
	}

	// SQLite supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply queue schema: %w", err)
	}

	transformers := make(map[string]*transformer, len(cfg.Layers))
	for _, l := range cfg.Layers {
		t, err := newTransformer(l.Transforms)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("layer %q: %w", l.Name, err)
		}
		transformers[l.Name] = t
	}

	if log == nil {
		log = slog.Default()
	}
	return &Queue{
		db:           db,
		cfg:          cfg,
		log:          log,
		locks:        make(map[string]chan struct{}),
		transformers: transformers,
	}, nil
}

// Close closes the queue ledger.
func (q *Queue) Close() error {
	if q.db == nil {
		return nil
	}
	return q.db.Close()
}

// Enqueue validates the delta against its target layer and appends its
// records to the ledger. The returned batch id identifies the batch for
// replay. Passing a previously used batch id is a no-op for rows already
// appended, making resubmission idempotent.
func (q *Queue) Enqueue(ctx context.Context, d *delta.Delta, batchID string) (string, error) {
	layer, ok := q.cfg.Layer(d.Layer)
	if !ok {
		return "", &delta.ValidationError{Reason: fmt.Sprintf("unknown layer %q", d.Layer)}
	}
	if err := d.Validate(layer); err != nil {
		return "", err
	}
	if batchID == "" {
		batchID = uuid.NewString()
	}
	if d.Timestamp == 0 {
		d.Timestamp = time.Now().UnixMilli()
	}

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	for i, r := range d.Records {
		payload, err := delta.EncodeRecord(r)
		if err != nil {
			return "", err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO deltas (batch_id, seq, layer, ts, record)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (batch_id, seq) DO NOTHING`,
			batchID, i, d.Layer, d.EffectiveTimestamp(r), payload)
		if err != nil {
			return "", err
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	q.log.Info("enqueued delta batch",
		"layer", d.Layer, "batch_id", batchID, "records", len(d.Records))
	return batchID, nil
}

// Item is one queued delta record, with layer transforms already applied.
type Item struct {
	ID        int64
	BatchID   string
	Layer     string
	Timestamp int64
	Record    delta.Record
}

// Pending returns the unarchived records for the layer in timestamp
// order. Call it under the layer lock so no other drain interleaves.
func (q *Queue) Pending(ctx context.Context, layer string) ([]Item, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, batch_id, layer, ts, record FROM deltas
		WHERE layer = ? AND archived_at IS NULL
		ORDER BY ts ASC, id ASC`, layer)
	if err != nil {
		return nil, err
	}
	return q.scanItems(rows)
}

// Archive marks the rows archived in a single transaction, removing them
// from future drains. Archive only after the rows' effects are durable;
// archived rows remain in the ledger for replay.
func (q *Queue) Archive(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`UPDATE deltas SET archived_at = ? WHERE id = ?`, now, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Replay redelivers the archived records of a batch in their original
// order. Rows stay archived; the caller decides what applying them again
// means.
func (q *Queue) Replay(ctx context.Context, batchID string, fn func(Item) error) error {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, batch_id, layer, ts, record FROM deltas
		WHERE batch_id = ? AND archived_at IS NOT NULL
		ORDER BY ts ASC, id ASC`, batchID)
	if err != nil {
		return err
	}
	items, err := q.scanItems(rows)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := fn(item); err != nil {
			return fmt.Errorf("replay %q: record %d: %w", batchID, item.ID, err)
		}
	}
	return nil
}

// PendingCount returns the number of unarchived records for the layer.
func (q *Queue) PendingCount(ctx context.Context, layer string) (int, error) {
	var count int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM deltas WHERE layer = ? AND archived_at IS NULL`,
		layer).Scan(&count)
	return count, err
}

func (q *Queue) scanItems(rows *sql.Rows) ([]Item, error) {
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var (
			item    Item
			payload []byte
		)
		if err := rows.Scan(&item.ID, &item.BatchID, &item.Layer, &item.Timestamp, &payload); err != nil {
			return nil, err
		}
		record, err := delta.DecodeRecord(payload)
		if err != nil {
			return nil, err
		}
		if t, ok := q.transformers[item.Layer]; ok {
			record, err = t.apply(record)
			if err != nil {
				return nil, fmt.Errorf("transform record %d: %w", item.ID, err)
			}
		}
		item.Record = record
		items = append(items, item)
	}
	return items, rows.Err()
}

// Lock acquires the layer's drain lock, respecting context cancellation.
// The caller holds it for the whole drain-and-apply cycle: reading
// pending rows, applying them, persisting the result, and archiving.
func (q *Queue) Lock(ctx context.Context, layer string) (func(), error) {
	q.mu.Lock()
	ch, ok := q.locks[layer]
	if !ok {
		ch = make(chan struct{}, 1)
		q.locks[layer] = ch
	}
	q.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
