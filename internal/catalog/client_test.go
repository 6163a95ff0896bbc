package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NaveenV-27/MangaKart-ui/internal/backend"
)

type backendStub struct {
	mu      sync.Mutex
	routes  map[string]func(body map[string]any) (int, string)
	calls   map[string]int
	methods map[string]string
	bodies  map[string]map[string]any
}

func newBackendStub(t *testing.T) (*backendStub, *backend.Client) {
	t.Helper()
	stub := &backendStub{
		routes:  make(map[string]func(map[string]any) (int, string)),
		calls:   make(map[string]int),
		methods: make(map[string]string),
		bodies:  make(map[string]map[string]any),
	}
	srv := httptest.NewServer(http.HandlerFunc(stub.serve))
	t.Cleanup(srv.Close)
	client, err := backend.NewClient(backend.ClientDeps{BaseURL: srv.URL, HTTPClient: srv.Client()})
	require.NoError(t, err)
	return stub, client
}

func (s *backendStub) on(path string, fn func(body map[string]any) (int, string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[path] = fn
}

func (s *backendStub) count(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

func (s *backendStub) method(path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.methods[path]
}

func (s *backendStub) sent(path, field string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bodies[path][field]
}

func (s *backendStub) serve(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{}
	_ = json.NewDecoder(r.Body).Decode(&body)
	s.mu.Lock()
	s.calls[r.URL.Path]++
	s.methods[r.URL.Path] = r.Method
	s.bodies[r.URL.Path] = body
	fn := s.routes[r.URL.Path]
	s.mu.Unlock()
	if fn == nil {
		http.NotFound(w, r)
		return
	}
	status, payload := fn(body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(payload))
}

func static(payload string) func(map[string]any) (int, string) {
	return func(map[string]any) (int, string) { return http.StatusOK, payload }
}

func TestFeaturedDecodesBareArray(t *testing.T) {
	stub, be := newBackendStub(t)
	stub.on(EndpointFeatured, static(`[
			{"_id":"x1","manga_id":"M1","title":"Berserk","authors":["Kentaro Miura"],"genres":["Action","Horror"],"cover_image":"b.jpg","rating":4.9},
			{"_id":"x2","title":"Vagabond","authors":"Takehiko Inoue","rating":"4.7"},
			42,
			{"manga_id":"M3"}
		]`))
	c := NewClient(ClientDeps{Backend: be})

	list, err := c.Featured(context.Background(), 0)
	require.NoError(t, err)
	assert.EqualValues(t, DefaultListLimit, stub.sent(EndpointFeatured, "limit"))
	require.Len(t, list, 2)
	assert.Equal(t, Manga{ID: "M1", Title: "Berserk", Authors: []string{"Kentaro Miura"}, Genres: []string{"Action", "Horror"}, CoverImage: "b.jpg", Rating: 4.9}, list[0])
	assert.Equal(t, "x2", list[1].ID, "falls back to the document id")
	assert.Equal(t, []string{"Takehiko Inoue"}, list[1].Authors)
	assert.InDelta(t, 4.7, list[1].Rating, 0.001)
}

func TestSeriesTranslatesSlug(t *testing.T) {
	stub, be := newBackendStub(t)
	stub.on(EndpointSeries, static(`{"manga_id":"M9","title":"Re:Zero Starting Life","description":"**Subaru** returns by death.","gallery":["a.jpg"]}`))
	c := NewClient(ClientDeps{Backend: be})

	m, err := c.Series(context.Background(), "Re%3AZero-Starting-Life")
	require.NoError(t, err)
	assert.Equal(t, "Re:Zero Starting Life", stub.sent(EndpointSeries, "manga"))
	assert.Equal(t, "M9", m.ID)
	assert.Equal(t, []string{"a.jpg"}, m.Gallery)
	assert.Equal(t, "Re:Zero-Starting-Life", m.Slug())
}

func TestSeriesNotFound(t *testing.T) {
	stub, be := newBackendStub(t)
	c := NewClient(ClientDeps{Backend: be})

	_, err := c.Series(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound, "404 from the backend")

	stub.on(EndpointSeries, static(`{}`))
	_, err = c.Series(context.Background(), "empty")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.Series(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSeriesPageSortsVolumesAndRendersSynopsis(t *testing.T) {
	stub, be := newBackendStub(t)
	stub.on(EndpointSeries, static(`{"manga_id":"M1","title":"Berserk","description":"A *dark* tale <script>alert(1)</script>"}`))
	stub.on(EndpointSeriesVolumes, static(`{"success":1,"volumes":[
			{"volume_id":"V2","volume_title":"Volume 2","volume_number":2,"price":"12.50"},
			{"volume_id":"V1","volume_title":"Volume 1","volume_number":"1","price":-3}
		]}`))
	c := NewClient(ClientDeps{Backend: be})

	page, err := c.SeriesPage(context.Background(), "Berserk")
	require.NoError(t, err)
	assert.Equal(t, "M1", stub.sent(EndpointSeriesVolumes, "manga_id"))
	require.Len(t, page.Volumes, 2)
	assert.Equal(t, "V1", page.Volumes[0].ID)
	assert.Equal(t, "M1", page.Volumes[0].MangaID)
	assert.True(t, page.Volumes[0].Price.IsZero(), "negative prices are clamped")
	assert.True(t, decimal.RequireFromString("12.5").Equal(page.Volumes[1].Price))
	assert.Contains(t, string(page.Synopsis), "<em>dark</em>")
	assert.NotContains(t, string(page.Synopsis), "<script>")
}

func TestSeriesPageKeepsMangaWhenVolumesFail(t *testing.T) {
	stub, be := newBackendStub(t)
	stub.on(EndpointSeries, static(`{"manga_id":"M1","title":"Berserk"}`))
	stub.on(EndpointSeriesVolumes, func(map[string]any) (int, string) {
		return http.StatusInternalServerError, `{"message":"db down"}`
	})
	c := NewClient(ClientDeps{Backend: be})

	page, err := c.SeriesPage(context.Background(), "Berserk")
	require.Error(t, err)
	assert.True(t, backend.IsKind(err, backend.KindStatus))
	assert.Equal(t, "Berserk", page.Manga.Title)
	assert.Empty(t, page.Volumes)
}

func TestVolumeAcceptsDataOrBareObject(t *testing.T) {
	stub, be := newBackendStub(t)
	c := NewClient(ClientDeps{Backend: be})

	stub.on(EndpointVolume, static(`{"apiSuccess":1,"data":{"volume_id":"V7","manga_id":"M1","manga_title":"Berserk","volume_title":"Vol. 7","price":9.99,"stock":"3"}}`))
	vol, err := c.Volume(context.Background(), "V7")
	require.NoError(t, err)
	assert.Equal(t, "Berserk", vol.MangaTitle)
	assert.Equal(t, 3, vol.Stock)
	assert.True(t, vol.InStock())

	stub.on(EndpointVolume, static(`{"_id":"V8","title":"Vol. 8","stock":0}`))
	vol, err = c.Volume(context.Background(), "V8")
	require.NoError(t, err)
	assert.Equal(t, "V8", vol.ID)
	assert.Equal(t, "Vol. 8", vol.Title)
	assert.False(t, vol.InStock())

	stub.on(EndpointVolume, static(`{"apiSuccess":0,"message":"Volume not found"}`))
	_, err = c.Volume(context.Background(), "V9")
	assert.Equal(t, "Volume not found", backend.Message(err, "fallback"))
}

func TestSearchNormalizesAndSkipsBlank(t *testing.T) {
	stub, be := newBackendStub(t)
	stub.on(EndpointSearch, static(`{"results":[{"manga_id":"M1","title":"Naruto"},{"manga_id":"M2"}]}`))
	c := NewClient(ClientDeps{Backend: be})

	results, err := c.Search(context.Background(), "  ＮＡＲＵＴＯ \t shippuden ")
	require.NoError(t, err)
	assert.Equal(t, "NARUTO shippuden", stub.sent(EndpointSearch, "search"))
	assert.Equal(t, []Title{{MangaID: "M1", Title: "Naruto"}}, results)

	results, err = c.Search(context.Background(), "   ")
	require.NoError(t, err)
	assert.Nil(t, results)
	assert.Equal(t, 1, stub.count(EndpointSearch))
}

func TestAllTitlesUsesGet(t *testing.T) {
	stub, be := newBackendStub(t)
	stub.on(EndpointAllTitles, static(`[{"manga_id":"M1","title":"Berserk"},{"title":"no id"}]`))
	c := NewClient(ClientDeps{Backend: be})

	titles, err := c.AllTitles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Title{{MangaID: "M1", Title: "Berserk"}}, titles)
	assert.Equal(t, http.MethodGet, stub.method(EndpointAllTitles))
}

func TestCacheServesRepeatsAndInvalidates(t *testing.T) {
	stub, be := newBackendStub(t)
	stub.on(EndpointByGenre, static(`[{"manga_id":"M1","title":"Berserk"}]`))
	c := NewClient(ClientDeps{Backend: be, CacheTTL: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		list, err := c.ByGenre(ctx, "Horror")
		require.NoError(t, err)
		require.Len(t, list, 1)
	}
	assert.Equal(t, 1, stub.count(EndpointByGenre))

	c.Invalidate()
	_, err := c.ByGenre(ctx, "horror")
	require.NoError(t, err)
	assert.Equal(t, 2, stub.count(EndpointByGenre))
}

func TestCacheDoesNotKeepFailures(t *testing.T) {
	stub, be := newBackendStub(t)
	var fail atomic.Bool
	fail.Store(true)
	stub.on(EndpointByGenre, func(map[string]any) (int, string) {
		if fail.Load() {
			return http.StatusBadGateway, `{}`
		}
		return http.StatusOK, `[{"manga_id":"M1","title":"Berserk"}]`
	})
	c := NewClient(ClientDeps{Backend: be, CacheTTL: time.Minute})

	_, err := c.ByGenre(context.Background(), "Horror")
	require.Error(t, err)
	fail.Store(false)
	list, err := c.ByGenre(context.Background(), "Horror")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

type blockingQuerier struct {
	calls   atomic.Int32
	release chan struct{}
}

func (b *blockingQuerier) Query(ctx context.Context, _, _ string, _ any, _ ...backend.RequestOption) (*backend.Envelope, error) {
	b.calls.Add(1)
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &backend.Envelope{Body: json.RawMessage(`[{"manga_id":"M1","title":"Berserk"}]`)}, nil
}

func TestConcurrentMissesShareOneCall(t *testing.T) {
	q := &blockingQuerier{release: make(chan struct{})}
	c := NewClient(ClientDeps{Backend: q, CacheTTL: time.Minute})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			list, err := c.Featured(context.Background(), 5)
			assert.NoError(t, err)
			assert.Len(t, list, 1)
		}()
	}
	require.Eventually(t, func() bool { return q.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(q.release)
	wg.Wait()
	assert.EqualValues(t, 1, q.calls.Load())
}

func TestCoalescedCallerSurvivesFirstCallerCancel(t *testing.T) {
	q := &blockingQuerier{release: make(chan struct{})}
	c := NewClient(ClientDeps{Backend: q, CacheTTL: time.Minute})

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.Featured(ctxA, 5)
		errA <- err
	}()
	require.Eventually(t, func() bool { return q.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		list []Manga
		err  error
	}
	resB := make(chan result, 1)
	go func() {
		list, err := c.Featured(context.Background(), 5)
		resB <- result{list, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(q.release)
	b := <-resB
	require.NoError(t, b.err)
	assert.Len(t, b.list, 1)
	assert.EqualValues(t, 1, q.calls.Load())
}

type failingQuerier struct{ endpoints sync.Map }

func (f *failingQuerier) Query(_ context.Context, _, endpoint string, _ any, _ ...backend.RequestOption) (*backend.Envelope, error) {
	f.endpoints.Store(endpoint, true)
	if endpoint == EndpointRandomVolumes {
		return nil, errors.New("boom")
	}
	return &backend.Envelope{Body: json.RawMessage(`[{"manga_id":"M1","title":"Berserk"}]`)}, nil
}

func TestHomeToleratesFailingShelf(t *testing.T) {
	q := &failingQuerier{}
	home := NewClient(ClientDeps{Backend: q}).Home(context.Background())

	assert.Len(t, home.Featured, 1)
	assert.Empty(t, home.Random)
	_, calledRandom := q.endpoints.Load(EndpointRandomVolumes)
	assert.True(t, calledRandom)
}

func TestNilBackend(t *testing.T) {
	_, err := NewClient(ClientDeps{}).Featured(context.Background(), 1)
	assert.ErrorIs(t, err, backend.ErrNotConfigured)
}

func TestRandomVolumesReadsVolumesKey(t *testing.T) {
	stub, be := newBackendStub(t)
	stub.on(EndpointRandomVolumes, static(`{"volumes":[{"volume_id":"V1","manga_id":"M1","volume_title":"One","description":"d","stock":2,"price":5}]}`))
	c := NewClient(ClientDeps{Backend: be, CacheTTL: time.Minute})

	for i := 0; i < 2; i++ {
		vols, err := c.RandomVolumes(context.Background(), 3)
		require.NoError(t, err)
		require.Len(t, vols, 1)
		assert.Equal(t, "d", vols[0].Description)
	}
	assert.Equal(t, 2, stub.count(EndpointRandomVolumes), "random picks bypass the cache")
}
