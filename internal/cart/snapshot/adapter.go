// Package snapshot keeps a copy of each session's cart items outside the
// backend so a fresh store can render before its first fetch completes.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/NaveenV-27/MangaKart-ui/internal/cart"
	"github.com/NaveenV-27/MangaKart-ui/internal/debounce"
)

const (
	defaultWait         = time.Second
	defaultWriteTimeout = 5 * time.Second
)

// ErrNotFound is returned by Storage.Get for unknown keys.
var ErrNotFound = errors.New("snapshot: not found")

// Storage is a key/value store for serialised item arrays.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// AdapterDeps wires an Adapter.
type AdapterDeps struct {
	Storage Storage
	Wait    time.Duration
	Logger  *zap.Logger
}

// Adapter loads and saves cart snapshots. It satisfies cart.Snapshotter.
type Adapter struct {
	storage Storage
	wait    time.Duration
	logger  *zap.Logger
}

// NewAdapter constructs an Adapter. A nil storage falls back to memory.
func NewAdapter(deps AdapterDeps) *Adapter {
	storage := deps.Storage
	if storage == nil {
		storage = NewMemoryStorage()
	}
	wait := deps.Wait
	if wait <= 0 {
		wait = defaultWait
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{storage: storage, wait: wait, logger: logger}
}

// Load returns the snapshot for key with derived totals. Missing, empty or
// corrupt data yields an empty State; Load never fails.
func (a *Adapter) Load(ctx context.Context, key string) cart.State {
	raw, err := a.storage.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			a.logger.Warn("snapshot load failed", zap.Error(err))
		}
		return cart.NewState(nil)
	}
	if !json.Valid(raw) {
		a.logger.Warn("discarding corrupt cart snapshot", zap.Int("bytes", len(raw)))
		return cart.NewState(nil)
	}
	return cart.NewState(cart.NormalizeList(raw))
}

// Save writes only the item array of state. Totals are always recomputed on load.
func (a *Adapter) Save(ctx context.Context, key string, state cart.State) error {
	items := state.Items
	if items == nil {
		items = []cart.LineItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("snapshot: encode items: %w", err)
	}
	if err := a.storage.Put(ctx, key, raw); err != nil {
		return fmt.Errorf("snapshot: save: %w", err)
	}
	return nil
}

// Attach saves store's state for key one quiet period after each burst of
// changes. The returned detach flushes a pending write and stops saving.
func (a *Adapter) Attach(store *cart.Store, key string) func() {
	d := debounce.New(a.wait, func() {
		ctx, cancel := context.WithTimeout(context.Background(), defaultWriteTimeout)
		defer cancel()
		if err := a.Save(ctx, key, store.State()); err != nil {
			a.logger.Warn("snapshot save failed", zap.Error(err))
		}
	})
	unsubscribe := store.Subscribe(func(cart.State) { d.Trigger() })
	return func() {
		unsubscribe()
		d.Flush()
		d.Stop()
	}
}

// Close releases the underlying storage.
func (a *Adapter) Close() error {
	return a.storage.Close()
}
