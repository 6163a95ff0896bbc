package cart

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NaveenV-27/MangaKart-ui/internal/backend"
)

type recordedCall struct {
	path    string
	body    map[string]any
	idemKey string
}

func newGatewayServer(t *testing.T, respond func(path string) string) (*HTTPGateway, func() []recordedCall) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []recordedCall
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		mu.Lock()
		calls = append(calls, recordedCall{path: r.URL.Path, body: body, idemKey: r.Header.Get("Idempotency-Key")})
		out := respond(r.URL.Path)
		mu.Unlock()
		_, _ = w.Write([]byte(out))
	}))
	t.Cleanup(srv.Close)

	client, err := backend.NewClient(backend.ClientDeps{BaseURL: srv.URL, HTTPClient: srv.Client()})
	require.NoError(t, err)
	return NewHTTPGateway(client), func() []recordedCall {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedCall(nil), calls...)
	}
}

func TestHTTPGatewayRequestShapes(t *testing.T) {
	gw, calls := newGatewayServer(t, func(string) string {
		return `{"apiSuccess":1,"data":[{"items":[{"volume_id":"V1","price":250}]}]}`
	})
	ctx := context.Background()

	item := LineItem{VolumeID: "V1", MangaTitle: "Berserk", VolumeTitle: "Vol. 1", Kind: KindVolume, CoverImageURL: "c.png", UnitPrice: decimal.NewFromInt(250)}
	added, err := gw.Add(ctx, item, 2)
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Equal(t, 1, added[0].Quantity, "a missing quantity defaults to 1")

	fetched, err := gw.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, fetched, 1, "fetch responses keep items without a quantity")
	assert.Equal(t, 1, fetched[0].Quantity)

	_, err = gw.UpdateQuantity(ctx, "V1", KindChapter, 4)
	require.NoError(t, err)
	_, err = gw.Remove(ctx, "V1", KindVolume)
	require.NoError(t, err)
	_, err = gw.Clear(ctx)
	require.NoError(t, err)

	got := calls()
	require.Len(t, got, 5)
	assert.Equal(t, EndpointAddItem, got[0].path)
	assert.Equal(t, map[string]any{
		"volume_id": "V1", "manga_title": "Berserk", "volume_title": "Vol. 1",
		"type": "volume", "cover_image": "c.png", "price": float64(250), "quantity": float64(2),
	}, got[0].body)
	assert.NotEmpty(t, got[0].idemKey)

	assert.Equal(t, EndpointGetCart, got[1].path)
	assert.Empty(t, got[1].body)
	assert.Empty(t, got[1].idemKey)

	assert.Equal(t, EndpointUpdateQuantity, got[2].path)
	assert.Equal(t, map[string]any{"volume_id": "V1", "type": "chapter", "quantity": float64(4)}, got[2].body)

	assert.Equal(t, EndpointRemoveItem, got[3].path)
	assert.Equal(t, map[string]any{"volume_id": "V1", "type": "volume"}, got[3].body)

	assert.Equal(t, EndpointClearCart, got[4].path)
}

func TestHTTPGatewayRejection(t *testing.T) {
	gw, _ := newGatewayServer(t, func(string) string {
		return `{"apiSuccess":0,"message":"Volume not found"}`
	})
	_, err := gw.Remove(context.Background(), "nope", KindVolume)
	require.Error(t, err)
	assert.Equal(t, "Volume not found", backend.Message(err, FailedRemove))
}

func TestStoreOverHTTPGateway(t *testing.T) {
	quantity := 0
	gw, _ := newGatewayServer(t, func(path string) string {
		if path == EndpointAddItem {
			quantity++
		}
		return `{"apiSuccess":1,"data":{"items":[{"volume_id":"V1","price":250,"quantity":` + strconv.Itoa(quantity) + `}]}}`
	})
	store := NewStore(StoreDeps{Gateway: gw})
	ctx := context.Background()

	require.NoError(t, store.AddItem(ctx, LineItem{VolumeID: "V1", UnitPrice: decimal.NewFromInt(250)}, 1))
	state := store.State()
	assert.Equal(t, 1, state.TotalCount)
	assert.True(t, decimal.NewFromInt(250).Equal(state.TotalAmount))

	require.NoError(t, store.AddItem(ctx, LineItem{VolumeID: "V1", UnitPrice: decimal.NewFromInt(250)}, 1))
	state = store.State()
	require.Len(t, state.Items, 1)
	assert.Equal(t, 2, state.TotalCount)
	assert.True(t, decimal.NewFromInt(500).Equal(state.TotalAmount))
}

func TestNilGateway(t *testing.T) {
	var gw *HTTPGateway
	_, err := gw.Fetch(context.Background())
	assert.ErrorIs(t, err, backend.ErrNotConfigured)
}
