package snapshot

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NaveenV-27/MangaKart-ui/internal/cart"
	"github.com/NaveenV-27/MangaKart-ui/internal/platform/config"
)

func sampleItems() []cart.LineItem {
	return []cart.LineItem{
		{VolumeID: "V1", MangaTitle: "Dorohedoro", Kind: cart.KindVolume, UnitPrice: decimal.NewFromInt(250), Quantity: 2},
		{VolumeID: "C3", Kind: cart.KindChapter, UnitPrice: decimal.RequireFromString("4.75"), Quantity: 1},
	}
}

func storages(t *testing.T) map[string]Storage {
	t.Helper()
	sqlite, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "cart.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]Storage{
		"memory": NewMemoryStorage(),
		"sqlite": sqlite,
		"redis":  NewRedisStorage(client, time.Hour),
	}
}

func TestSaveAndLoadRecomputesTotals(t *testing.T) {
	for name, storage := range storages(t) {
		t.Run(name, func(t *testing.T) {
			adapter := NewAdapter(AdapterDeps{Storage: storage})
			ctx := context.Background()

			state := cart.NewState(sampleItems())
			state.Message = "Added to cart"
			require.NoError(t, adapter.Save(ctx, "user:abc", state))

			raw, err := storage.Get(ctx, "user:abc")
			require.NoError(t, err)
			assert.Equal(t, byte('['), raw[0], "only the item array is persisted")
			assert.NotContains(t, string(raw), "TotalAmount")

			loaded := adapter.Load(ctx, "user:abc")
			require.Len(t, loaded.Items, 2)
			assert.True(t, decimal.RequireFromString("504.75").Equal(loaded.TotalAmount))
			assert.Equal(t, 3, loaded.TotalCount)
			assert.Empty(t, loaded.Message)

			require.NoError(t, storage.Delete(ctx, "user:abc"))
			assert.True(t, adapter.Load(ctx, "user:abc").Empty())
		})
	}
}

func TestLoadSwallowsBadData(t *testing.T) {
	storage := NewMemoryStorage()
	adapter := NewAdapter(AdapterDeps{Storage: storage})
	ctx := context.Background()

	for _, raw := range []string{"", "[]", "{", "null", `{"items":[]}`, `[{"volume_id":"V1","quantity":0}]`} {
		require.NoError(t, storage.Put(ctx, "k", []byte(raw)))
		state := adapter.Load(ctx, "k")
		assert.True(t, state.Empty(), "payload %q", raw)
		assert.True(t, state.TotalAmount.IsZero())
	}
	assert.True(t, adapter.Load(ctx, "missing").Empty())
}

func TestRedisStorageAppliesTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	storage := NewRedisStorage(client, time.Minute)
	require.NoError(t, storage.Put(context.Background(), "user:1", []byte("[]")))
	assert.Equal(t, time.Minute, mr.TTL("mangakart:cart:user:1"))

	mr.FastForward(2 * time.Minute)
	_, err := storage.Get(context.Background(), "user:1")
	assert.ErrorIs(t, err, ErrNotFound)
}

type stubGateway struct {
	items []cart.LineItem
}

func (s *stubGateway) Fetch(context.Context) ([]cart.LineItem, error) { return s.items, nil }
func (s *stubGateway) Add(_ context.Context, item cart.LineItem, q int) ([]cart.LineItem, error) {
	item.Quantity = q
	s.items = append(s.items, item)
	return s.items, nil
}
func (s *stubGateway) UpdateQuantity(context.Context, string, cart.Kind, int) ([]cart.LineItem, error) {
	return s.items, nil
}
func (s *stubGateway) Remove(context.Context, string, cart.Kind) ([]cart.LineItem, error) {
	return s.items, nil
}
func (s *stubGateway) Clear(context.Context) ([]cart.LineItem, error) {
	s.items = nil
	return nil, nil
}

type countingStorage struct {
	*MemoryStorage
	puts atomic.Int32
}

func (c *countingStorage) Put(ctx context.Context, key string, value []byte) error {
	c.puts.Add(1)
	return c.MemoryStorage.Put(ctx, key, value)
}

func TestAttachDebouncesWrites(t *testing.T) {
	storage := &countingStorage{MemoryStorage: NewMemoryStorage()}
	adapter := NewAdapter(AdapterDeps{Storage: storage, Wait: 50 * time.Millisecond})
	store := cart.NewStore(cart.StoreDeps{Gateway: &stubGateway{}})
	detach := adapter.Attach(store, "user:1")
	defer detach()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.AddItem(ctx, cart.LineItem{VolumeID: "V" + string(rune('a'+i)), UnitPrice: decimal.NewFromInt(1)}, 1))
	}

	require.Eventually(t, func() bool { return storage.puts.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.EqualValues(t, 1, storage.puts.Load())
	assert.Len(t, adapter.Load(ctx, "user:1").Items, 5)
}

func TestDetachFlushesPendingWrite(t *testing.T) {
	storage := &countingStorage{MemoryStorage: NewMemoryStorage()}
	adapter := NewAdapter(AdapterDeps{Storage: storage, Wait: time.Hour})
	store := cart.NewStore(cart.StoreDeps{Gateway: &stubGateway{}})
	detach := adapter.Attach(store, "user:2")

	require.NoError(t, store.AddItem(context.Background(), cart.LineItem{VolumeID: "V1", UnitPrice: decimal.NewFromInt(9)}, 3))
	assert.EqualValues(t, 0, storage.puts.Load())

	detach()
	assert.EqualValues(t, 1, storage.puts.Load())
	assert.Equal(t, 3, adapter.Load(context.Background(), "user:2").TotalCount)

	require.NoError(t, store.ClearCart(context.Background()))
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 1, storage.puts.Load(), "detached store must not save")
}

func TestNewStorageFromConfig(t *testing.T) {
	s, err := NewStorage(config.SnapshotConfig{Backend: config.SnapshotNone})
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = NewStorage(config.SnapshotConfig{Backend: config.SnapshotMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStorage{}, s)

	s, err = NewStorage(config.SnapshotConfig{Backend: config.SnapshotSQLite, Path: filepath.Join(t.TempDir(), "c.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStorage{}, s)
	require.NoError(t, s.Close())

	_, err = NewStorage(config.SnapshotConfig{Backend: "s3"})
	assert.Error(t, err)
}
