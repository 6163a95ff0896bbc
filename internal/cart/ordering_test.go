package cart

import (
	"context"
	"runtime"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedGateway answers each update with a fixed list, but only once released.
type gatedGateway struct {
	fakeGateway
	mu    sync.Mutex
	gates map[int]chan struct{}
	ready chan int
}

func newGatedGateway() *gatedGateway {
	return &gatedGateway{gates: make(map[int]chan struct{}), ready: make(chan int, 8)}
}

func (g *gatedGateway) gate(quantity int) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[quantity]
	if !ok {
		ch = make(chan struct{})
		g.gates[quantity] = ch
	}
	return ch
}

func (g *gatedGateway) UpdateQuantity(_ context.Context, volumeID string, kind Kind, quantity int) ([]LineItem, error) {
	gate := g.gate(quantity)
	g.ready <- quantity
	<-gate
	return []LineItem{{VolumeID: volumeID, Kind: kind, UnitPrice: decimal.NewFromInt(10), Quantity: quantity}}, nil
}

// overlap issues update(first) then update(second), and lets the second
// response arrive before the first.
func overlap(t *testing.T, ordering Ordering, first, second int) State {
	t.Helper()
	gw := newGatedGateway()
	store := NewStore(StoreDeps{Gateway: gw, Ordering: ordering})
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, store.UpdateQuantity(ctx, "V1", KindVolume, first))
	}()
	require.Equal(t, first, <-gw.ready)

	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, store.UpdateQuantity(ctx, "V1", KindVolume, second))
	}()
	require.Equal(t, second, <-gw.ready)

	close(gw.gate(second))
	// Wait until the second response has been applied before releasing the first.
	for store.State().QuantityOf("V1", KindVolume) != second {
		runtime.Gosched()
	}
	close(gw.gate(first))
	wg.Wait()
	return store.State()
}

func TestLastRequestDiscardsStaleResponse(t *testing.T) {
	state := overlap(t, OrderingLastRequest, 2, 3)
	assert.Equal(t, 3, state.QuantityOf("V1", KindVolume))
	assert.Equal(t, 3, state.TotalCount)
	assert.True(t, decimal.NewFromInt(30).Equal(state.TotalAmount))
}

func TestLastResponseAppliesArrivalOrder(t *testing.T) {
	state := overlap(t, OrderingLastResponse, 2, 3)
	assert.Equal(t, 2, state.QuantityOf("V1", KindVolume))
	assert.Equal(t, 2, state.TotalCount)
}

func TestResetDiscardsInFlightResponses(t *testing.T) {
	gw := newGatedGateway()
	store := NewStore(StoreDeps{Gateway: gw})

	done := make(chan error, 1)
	go func() {
		done <- store.UpdateQuantity(context.Background(), "V1", KindVolume, 4)
	}()
	require.Equal(t, 4, <-gw.ready)
	store.Reset()
	close(gw.gate(4))
	require.NoError(t, <-done)

	assert.True(t, store.State().Empty())
}
