package cart

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const defaultRegistrySize = 1024

// Snapshotter restores and persists cart snapshots for a session key.
type Snapshotter interface {
	Load(ctx context.Context, key string) State
	Attach(store *Store, key string) (detach func())
}

// RegistryDeps wires a Registry.
type RegistryDeps struct {
	Gateway   Gateway
	Ordering  Ordering
	Size      int
	Snapshots Snapshotter
	Logger    *zap.Logger
}

// Registry hands out one Store per session key, keeping the most recently used
// ones in memory. Evicted stores flush their pending snapshot writes.
type Registry struct {
	deps    RegistryDeps
	logger  *zap.Logger
	mu      sync.Mutex
	stores  *lru.Cache[string, *registryEntry]
	closing bool
}

type registryEntry struct {
	store  *Store
	detach func()
}

// NewRegistry constructs a Registry.
func NewRegistry(deps RegistryDeps) (*Registry, error) {
	size := deps.Size
	if size <= 0 {
		size = defaultRegistrySize
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{deps: deps, logger: logger}
	stores, err := lru.NewWithEvict[string, *registryEntry](size, r.onEvict)
	if err != nil {
		return nil, err
	}
	r.stores = stores
	return r, nil
}

// Get returns the Store for key, creating and hydrating it on first use. An
// empty key yields a throwaway store that is never cached. The snapshot load
// runs without r.mu held; when two callers race on a new key the first one
// cached wins and the other's store is discarded unattached.
func (r *Registry) Get(ctx context.Context, key string) *Store {
	if key == "" {
		return r.newStore()
	}

	r.mu.Lock()
	entry, ok := r.stores.Get(key)
	r.mu.Unlock()
	if ok {
		return entry.store
	}

	store := r.newStore()
	if r.deps.Snapshots != nil {
		if snapshot := r.deps.Snapshots.Load(ctx, key); !snapshot.Empty() {
			store.Hydrate(snapshot.Items)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if winner, ok := r.stores.Get(key); ok {
		return winner.store
	}
	entry = &registryEntry{store: store, detach: func() {}}
	if r.deps.Snapshots != nil {
		entry.detach = r.deps.Snapshots.Attach(store, key)
	}
	r.stores.Add(key, entry)
	return store
}

// Forget drops the store for key, as on logout. Pending snapshot writes are flushed.
func (r *Registry) Forget(key string) {
	if key == "" {
		return
	}
	r.mu.Lock()
	entry, ok := r.stores.Peek(key)
	if ok {
		r.closing = true
		r.stores.Remove(key)
		r.closing = false
	}
	r.mu.Unlock()
	if ok {
		entry.store.Reset()
		entry.detach()
	}
}

// Len reports how many stores are cached.
func (r *Registry) Len() int {
	return r.stores.Len()
}

// Close flushes every cached store's snapshot and empties the registry.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closing = true
	for _, key := range r.stores.Keys() {
		if entry, ok := r.stores.Peek(key); ok {
			entry.detach()
		}
	}
	r.stores.Purge()
	r.closing = false
}

func (r *Registry) newStore() *Store {
	return NewStore(StoreDeps{
		Gateway:  r.deps.Gateway,
		Ordering: r.deps.Ordering,
		Logger:   r.logger,
	})
}

// onEvict runs inside the cache with r.mu held.
func (r *Registry) onEvict(key string, entry *registryEntry) {
	if r.closing || entry == nil {
		return
	}
	r.logger.Debug("evicting cart store", zap.Int("cached", r.stores.Len()))
	go entry.detach()
}
