// Package version manages the mutable staging area and the immutable
// published versions of a swale. Layer contents are content-addressed, so
// a published version is a set of layer root hashes; publishing appends to
// the version index in a single write, which is the commit point.
package version

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rillworks/dataswale/config"
	"github.com/rillworks/dataswale/layer"
	"github.com/rillworks/dataswale/object"
	"github.com/rillworks/dataswale/storage"
)

const (
	stagingKeyPrefix = "staging/"
	versionKeyPrefix = "version/"
	versionsKey      = "versions"
)

var (
	// ErrPublishFailure is returned when a publish cannot complete. No
	// partial version is ever visible.
	ErrPublishFailure = errors.New("publish failed")
	// ErrUnknownVersion is returned for reads of version ids that were
	// never published.
	ErrUnknownVersion = errors.New("unknown version")
)

// Info describes one published version.
type Info struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"created_at"`
}

// Manager owns the staging roots and the version ledger.
type Manager struct {
	cfg     *config.Config
	storage storage.Storage
	log     *slog.Logger

	// Progress, when set, is called after each layer is captured during
	// a publish.
	Progress func(layer string, captured, total int)

	mu sync.Mutex
}

// NewManager returns a manager over the given storage.
func NewManager(cfg *config.Config, store storage.Storage, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{cfg: cfg, storage: store, log: log}
}

// Staging opens a read-write store over the staging root of the named
// layer. Call SaveStaging to persist mutations.
func (m *Manager) Staging(ctx context.Context, name string) (*layer.Store, error) {
	cfg, ok := m.cfg.Layer(name)
	if !ok {
		return nil, fmt.Errorf("unknown layer %q", name)
	}
	root, err := m.stagingRoot(ctx, name)
	if err != nil {
		return nil, err
	}
	return layer.Open(ctx, m.storage, cfg, root, false)
}

// SaveStaging persists the store's current root as the layer's staging
// root.
func (m *Manager) SaveStaging(ctx context.Context, store *layer.Store) error {
	root, err := store.Root(ctx)
	if err != nil {
		return err
	}
	return m.storage.Put(ctx, stagingKeyPrefix+store.Name(), root)
}

// ClearStaging resets the named layer's staging area to empty. Published
// versions are unaffected.
func (m *Manager) ClearStaging(ctx context.Context, name string) error {
	if _, ok := m.cfg.Layer(name); !ok {
		return fmt.Errorf("unknown layer %q", name)
	}
	return m.storage.Delete(ctx, stagingKeyPrefix+name)
}

// Publish captures the staging roots of every layer as a new immutable
// version. The version becomes visible only when the final index write
// succeeds; any earlier failure leaves the version list unchanged.
func (m *Manager) Publish(ctx context.Context) (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ver := object.NewVersion()
	for i, l := range m.cfg.Layers {
		root, err := m.stagingRoot(ctx, l.Name)
		if err != nil {
			return Info{}, fmt.Errorf("%w: layer %q: %v", ErrPublishFailure, l.Name, err)
		}
		if root == nil {
			// empty layer: persist an empty root so reads resolve
			root, err = storage.PutObject(ctx, m.storage, object.NewLayerRoot())
			if err != nil {
				return Info{}, fmt.Errorf("%w: layer %q: %v", ErrPublishFailure, l.Name, err)
			}
		}
		ver.Layers[l.Name] = root
		if m.Progress != nil {
			m.Progress(l.Name, i+1, len(m.cfg.Layers))
		}
	}

	hash, err := storage.PutObject(ctx, m.storage, ver)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrPublishFailure, err)
	}

	info := Info{ID: ulid.Make().String(), CreatedAt: time.Now().UnixMilli()}
	key := versionKeyPrefix + info.ID
	if err := m.storage.Put(ctx, key, hash); err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrPublishFailure, err)
	}
	if err := m.appendIndex(ctx, info); err != nil {
		// the version key must not outlive an aborted publish
		m.storage.Delete(ctx, key)
		return Info{}, fmt.Errorf("%w: %v", ErrPublishFailure, err)
	}

	m.log.Info("published version", "version", info.ID, "layers", len(ver.Layers))
	return info, nil
}

// Versions lists the published versions in publish order.
func (m *Manager) Versions(ctx context.Context) ([]Info, error) {
	return m.readIndex(ctx)
}

// Latest returns the most recently published version.
func (m *Manager) Latest(ctx context.Context) (Info, bool, error) {
	infos, err := m.readIndex(ctx)
	if err != nil || len(infos) == 0 {
		return Info{}, false, err
	}
	return infos[len(infos)-1], true, nil
}

// Read opens a read-only store over the named layer at the given version.
// An empty version id reads the latest published version. Only versions
// recorded in the index are readable; a version key left behind by a
// crashed publish does not resolve.
func (m *Manager) Read(ctx context.Context, versionID, name string) (*layer.Store, error) {
	cfg, ok := m.cfg.Layer(name)
	if !ok {
		return nil, fmt.Errorf("unknown layer %q", name)
	}
	infos, err := m.readIndex(ctx)
	if err != nil {
		return nil, err
	}
	if versionID == "" {
		if len(infos) == 0 {
			return nil, fmt.Errorf("%w: nothing published", ErrUnknownVersion)
		}
		versionID = infos[len(infos)-1].ID
	} else if !slices.ContainsFunc(infos, func(i Info) bool { return i.ID == versionID }) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVersion, versionID)
	}
	hash, err := m.storage.Get(ctx, versionKeyPrefix+versionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVersion, versionID)
	}
	if err != nil {
		return nil, err
	}
	ver, err := storage.GetVersion(ctx, m.storage, hash)
	if err != nil {
		return nil, err
	}
	root, ok := ver.Layers[name]
	if !ok {
		return nil, fmt.Errorf("version %q has no layer %q", versionID, name)
	}
	return layer.Open(ctx, m.storage, cfg, root, true)
}

func (m *Manager) stagingRoot(ctx context.Context, name string) (object.Hash, error) {
	root, err := m.storage.Get(ctx, stagingKeyPrefix+name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return object.Hash(root), nil
}

func (m *Manager) appendIndex(ctx context.Context, info Info) error {
	infos, err := m.readIndex(ctx)
	if err != nil {
		return err
	}
	infos = append(infos, info)
	data, err := json.Marshal(infos)
	if err != nil {
		return err
	}
	return m.storage.Put(ctx, versionsKey, data)
}

func (m *Manager) readIndex(ctx context.Context) ([]Info, error) {
	data, err := m.storage.Get(ctx, versionsKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var infos []Info
	if err := json.Unmarshal(data, &infos); err != nil {
		return nil, err
	}
	return infos, nil
}
