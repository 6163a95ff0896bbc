package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/NaveenV-27/MangaKart-ui/internal/account"
	"github.com/NaveenV-27/MangaKart-ui/internal/backend"
	"github.com/NaveenV-27/MangaKart-ui/internal/cart"
	"github.com/NaveenV-27/MangaKart-ui/internal/catalog"
	"github.com/NaveenV-27/MangaKart-ui/internal/content"
	mw "github.com/NaveenV-27/MangaKart-ui/internal/middleware"
	"github.com/NaveenV-27/MangaKart-ui/internal/web"
)

// fakeBackend is a stateful stand-in for the REST backend: one cart, one
// volume in stock and a single valid login.
type fakeBackend struct {
	mu       sync.Mutex
	items    []map[string]any
	calls    map[string]int
	bodies    map[string]map[string]any
	failCart  bool
	failFetch bool
}

func (f *fakeBackend) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakeBackend) sent(path string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[path]
}

func (f *fakeBackend) fail(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failCart = on
}

func (f *fakeBackend) failGets(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failFetch = on
}

func (f *fakeBackend) seed(quantity int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = []map[string]any{{
		"volume_id": "V1", "manga_title": "Berserk", "volume_title": "Volume 1",
		"type": "volume", "price": 250, "quantity": quantity,
	}}
}

func (f *fakeBackend) find(volumeID, kind string) int {
	if kind == "" {
		kind = "volume"
	}
	for i, item := range f.items {
		if item["volume_id"] == volumeID && item["type"] == kind {
			return i
		}
	}
	return -1
}

func (f *fakeBackend) cartJSON() string {
	raw, _ := json.Marshal(map[string]any{"apiSuccess": 1, "data": map[string]any{"items": f.items}})
	return string(raw)
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{}
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[r.URL.Path]++
	f.bodies[r.URL.Path] = body
	w.Header().Set("Content-Type", "application/json")

	if strings.HasPrefix(r.URL.Path, "/api/cart/") && r.URL.Path != "/api/cart/get_cart" && f.failCart {
		fmt.Fprint(w, `{"apiSuccess":0,"message":"Cart service down"}`)
		return
	}

	if r.URL.Path == "/api/cart/get_cart" && f.failFetch {
		fmt.Fprint(w, `{"apiSuccess":0,"message":"Cart service down"}`)
		return
	}

	switch r.URL.Path {
	case "/api/volumes/get_volume_details":
		if body["volume_id"] != "V1" {
			http.Error(w, `{"message":"no such volume"}`, http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{"apiSuccess":1,"data":{"volume_id":"V1","manga_id":"M1","manga_title":"Berserk","title":"Volume 1","volume_number":1,"price":250,"stock":3,"cover_image":"/c.jpg"}}`)
	case "/api/manga/get_all_titles":
		fmt.Fprint(w, `{"apiSuccess":1,"data":[{"manga_id":"M1","title":"Berserk"}]}`)
	case "/api/cart/get_cart":
		fmt.Fprint(w, f.cartJSON())
	case "/api/cart/add_item":
		id, kind := fmt.Sprint(body["volume_id"]), fmt.Sprint(body["type"])
		qty := int(body["quantity"].(float64))
		if at := f.find(id, kind); at >= 0 {
			f.items[at]["quantity"] = toInt(f.items[at]["quantity"]) + qty
		} else {
			body["quantity"] = qty
			f.items = append(f.items, body)
		}
		fmt.Fprint(w, f.cartJSON())
	case "/api/cart/update_quantity":
		if at := f.find(fmt.Sprint(body["volume_id"]), fmt.Sprint(body["type"])); at >= 0 {
			f.items[at]["quantity"] = int(body["quantity"].(float64))
		}
		fmt.Fprint(w, f.cartJSON())
	case "/api/cart/remove_item":
		if at := f.find(fmt.Sprint(body["volume_id"]), fmt.Sprint(body["type"])); at >= 0 {
			f.items = append(f.items[:at], f.items[at+1:]...)
		}
		fmt.Fprint(w, f.cartJSON())
	case "/api/cart/clear_cart":
		f.items = nil
		fmt.Fprint(w, f.cartJSON())
	case "/api/users/login":
		if body["password"] != "secret" {
			fmt.Fprint(w, `{"apiSuccess":0,"message":"Invalid password"}`)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "USER", Value: "tok1", Path: "/api"})
		http.SetCookie(w, &http.Cookie{Name: "tracking", Value: "x"})
		fmt.Fprint(w, `{"apiSuccess":1,"message":"Welcome"}`)
	case "/api/users/logout":
		fmt.Fprint(w, `{"apiSuccess":1}`)
	case "/api/admin/check_username":
		fmt.Fprintf(w, `{"apiSuccess":1,"isValid":%t}`, body["username"] != "taken")
	case "/api/manga/create_collection":
		fmt.Fprint(w, `{"apiSuccess":1,"message":"ok"}`)
	default:
		http.NotFound(w, r)
	}
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}

type harness struct {
	backend  *fakeBackend
	registry *cart.Registry
	router   http.Handler
	logs     *observer.ObservedLogs
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, func(*cart.RegistryDeps) {})
}

// newHarnessWith lets a test adjust the cart registry wiring.
func newHarnessWith(t *testing.T, adjust func(*cart.RegistryDeps)) *harness {
	t.Helper()
	fake := &fakeBackend{calls: map[string]int{}, bodies: map[string]map[string]any{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := backend.NewClient(backend.ClientDeps{BaseURL: srv.URL, HTTPClient: srv.Client()})
	require.NoError(t, err)
	cat := catalog.NewClient(catalog.ClientDeps{Backend: client})
	registryDeps := cart.RegistryDeps{Gateway: cart.NewHTTPGateway(client)}
	adjust(&registryDeps)
	registry, err := cart.NewRegistry(registryDeps)
	require.NoError(t, err)
	renderer, err := web.NewRenderer(web.RendererOptions{})
	require.NoError(t, err)
	core, logs := observer.New(zapcore.DebugLevel)

	h, err := New(Deps{
		Renderer: renderer,
		Catalog:  cat,
		Accounts: account.NewService(account.ServiceDeps{Backend: client}),
		Content:  content.NewService(content.ServiceDeps{Backend: client, OnChange: cat.Invalidate}),
		Carts:    registry,
		Logger:   zap.New(core),
	})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(mw.HTMX, mw.Session(mw.CookieNames{}))
	h.Mount(r)
	r.Route("/api/cart", h.MountAPI)
	return &harness{backend: fake, registry: registry, router: r, logs: logs}
}

type request struct {
	method  string
	path    string
	form    url.Values
	json    string
	user    bool
	htmx    bool
	headers map[string]string
}

func (h *harness) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	switch {
	case req.form != nil:
		r = httptest.NewRequest(req.method, req.path, strings.NewReader(req.form.Encode()))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	case req.json != "":
		r = httptest.NewRequest(req.method, req.path, strings.NewReader(req.json))
		r.Header.Set("Content-Type", "application/json")
	default:
		r = httptest.NewRequest(req.method, req.path, nil)
	}
	if req.user {
		r.AddCookie(&http.Cookie{Name: "USER", Value: "tok1"})
	}
	if req.htmx {
		r.Header.Set("HX-Request", "true")
	}
	for k, v := range req.headers {
		r.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, r)
	return rec
}

func parse(t *testing.T, rec *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rec.Body.String()))
	require.NoError(t, err)
	return doc
}

func TestNewReportsMissingDependencies(t *testing.T) {
	_, err := New(Deps{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Renderer, Catalog, Accounts, Content, Carts")
}

func TestCartAddUsesCataloguePrice(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, request{
		method: http.MethodPost, path: "/cart/add", user: true, htmx: true,
		form: url.Values{"volume_id": {"V1"}, "price": {"1"}},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	sent := h.backend.sent("/api/cart/add_item")
	assert.EqualValues(t, 250, sent["price"])
	assert.Equal(t, "Berserk", sent["manga_title"])
	assert.EqualValues(t, 1, sent["quantity"])

	doc := parse(t, rec)
	assert.Equal(t, 1, doc.Find("#cart-panel").Length())
	assert.NotContains(t, rec.Body.String(), "<html")
	assert.Equal(t, "1", doc.Find("#cart-count").Text())
	assert.Equal(t, "₹250.00", doc.Find(".subtotal").Text())
	assert.Equal(t, "₹255.00", doc.Find(".total").Text())
}

func TestCartAddRejectsQuantityAboveStock(t *testing.T) {
	h := newHarness(t)
	h.backend.seed(2)
	h.do(t, request{method: http.MethodGet, path: "/cart", user: true})
	rec := h.do(t, request{
		method: http.MethodPost, path: "/cart/add", user: true, htmx: true,
		form: url.Values{"volume_id": {"V1"}, "quantity": {"2"}},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Maximum stock available is 3.")
	assert.Zero(t, h.backend.count("/api/cart/add_item"))
}

func TestCartFailurePreservesItems(t *testing.T) {
	h := newHarness(t)
	h.backend.seed(1)
	ok := h.do(t, request{method: http.MethodGet, path: "/cart", user: true})
	require.Equal(t, http.StatusOK, ok.Code)

	h.backend.fail(true)
	rec := h.do(t, request{
		method: http.MethodPost, path: "/cart/update",
		form: url.Values{"volume_id": {"V1"}, "quantity": {"2"}}, user: true,
	})

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	doc := parse(t, rec)
	assert.Contains(t, doc.Find("#cart-panel").Text(), "Cart service down")
	assert.Contains(t, doc.Find("#cart-panel").Text(), "Volume 1")
	assert.Equal(t, "1", doc.Find(".count").Text())
}

func TestCartUpdateRequiresQuantity(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, request{
		method: http.MethodPost, path: "/cart/update", user: true,
		form: url.Values{"volume_id": {"V1"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), messageInvalidQuantity)
	assert.Zero(t, h.backend.count("/api/cart/update_quantity"))
}

func TestCartRedirectsAnonymousVisitors(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, request{method: http.MethodPost, path: "/cart/clear", form: url.Values{}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = h.do(t, request{method: http.MethodPost, path: "/cart/clear", form: url.Values{}, htmx: true})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("HX-Redirect"))
}

func TestCartSetReconcilesTowardsDesiredQuantity(t *testing.T) {
	h := newHarness(t)
	h.backend.seed(1)
	h.do(t, request{method: http.MethodGet, path: "/cart", user: true})

	rec := h.do(t, request{
		method: http.MethodPost, path: "/cart/set", user: true, htmx: true,
		form: url.Values{"volume_id": {"V1"}, "quantity": {"3"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, h.backend.sent("/api/cart/update_quantity")["quantity"])
	assert.Zero(t, h.backend.count("/api/cart/add_item"))
	assert.Contains(t, rec.Body.String(), "₹750.00")

	over := h.do(t, request{
		method: http.MethodPost, path: "/cart/set", user: true,
		form: url.Values{"volume_id": {"V1"}, "quantity": {"4"}},
	})
	assert.Equal(t, http.StatusConflict, over.Code)
	assert.Contains(t, over.Body.String(), "Maximum stock available is 3.")
}

func TestVolumePageUnknownIDIs404(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, request{method: http.MethodGet, path: "/volume/nope", user: true})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Volume not found.")
}

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) cartResponse {
	t.Helper()
	var out cartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func TestCartAPI(t *testing.T) {
	h := newHarness(t)

	anon := h.do(t, request{method: http.MethodGet, path: "/api/cart"})
	assert.Equal(t, http.StatusUnauthorized, anon.Code)
	assert.Contains(t, anon.Body.String(), `"error":"unauthenticated"`)

	plain := h.do(t, request{
		method: http.MethodPost, path: "/api/cart/items", user: true,
		headers: map[string]string{"Content-Type": "text/plain"},
	})
	assert.Equal(t, http.StatusUnsupportedMediaType, plain.Code)

	added := h.do(t, request{method: http.MethodPost, path: "/api/cart/items", user: true, json: `{"volume_id":"V1","quantity":2}`})
	require.Equal(t, http.StatusOK, added.Code, added.Body.String())
	got := decodeCart(t, added)
	want := []cart.LineItem{{
		VolumeID:      "V1",
		MangaTitle:    "Berserk",
		VolumeTitle:   "Volume 1",
		Kind:          cart.KindVolume,
		CoverImageURL: "/c.jpg",
		UnitPrice:     decimal.NewFromInt(250),
		Quantity:      2,
	}}
	if diff := cmp.Diff(want, got.Items, decimalEqual); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "500.00", got.TotalAmount.String())
	assert.Equal(t, 2, got.TotalCount)
	assert.Equal(t, cart.MessageAdded, got.Message)

	unknown := h.do(t, request{method: http.MethodPost, path: "/api/cart/items", user: true, json: `{"volume_id":"V1","qty":2}`})
	assert.Equal(t, http.StatusBadRequest, unknown.Code)

	cleared := h.do(t, request{method: http.MethodPatch, path: "/api/cart/items/V1", user: true, json: `{"quantity":0}`})
	require.Equal(t, http.StatusOK, cleared.Code)
	assert.Empty(t, decodeCart(t, cleared).Items)
	assert.Equal(t, 1, h.backend.count("/api/cart/remove_item"))
}

func TestCartAPIBackendFailureKeepsCart(t *testing.T) {
	h := newHarness(t)
	h.backend.seed(1)
	h.do(t, request{method: http.MethodGet, path: "/api/cart", user: true})
	h.backend.fail(true)

	rec := h.do(t, request{method: http.MethodDelete, path: "/api/cart", user: true})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var body struct {
		Error   string       `json:"error"`
		Message string       `json:"message"`
		Cart    cartResponse `json:"cart"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "cart_failed", body.Error)
	assert.Equal(t, "Cart service down", body.Message)
	assert.Len(t, body.Cart.Items, 1)
}

func TestCartAPIFailureFallsBackToOperationMessage(t *testing.T) {
	h := newHarnessWith(t, func(deps *cart.RegistryDeps) { deps.Gateway = nil })

	cases := []struct {
		method string
		want   string
	}{
		{http.MethodGet, "Failed to load cart"},
		{http.MethodDelete, "Failed to clear cart"},
	}
	for _, tc := range cases {
		rec := h.do(t, request{method: tc.method, path: "/api/cart", user: true})
		assert.Equal(t, http.StatusBadGateway, rec.Code, tc.method)
		var body struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "cart_failed", body.Error, tc.method)
		assert.Equal(t, tc.want, body.Message, tc.method)
	}
}

func TestCartPageLogsFailedLoad(t *testing.T) {
	h := newHarness(t)
	h.backend.seed(1)
	h.backend.failGets(true)

	rec := h.do(t, request{method: http.MethodGet, path: "/cart", user: true})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, parse(t, rec).Find("#cart-panel").Text(), "Cart service down")
	entries := h.logs.FilterMessage("cart fetch failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "/cart", entries[0].ContextMap()["path"])
	assert.Contains(t, entries[0].ContextMap()["error"], "Cart service down")
}

func TestLoginRelaysSessionCookie(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, request{
		method: http.MethodPost, path: "/login",
		form: url.Values{"identifier": {"naveen"}, "password": {"secret"}},
	})

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "USER", cookies[0].Name)
	assert.Equal(t, "tok1", cookies[0].Value)
	assert.Equal(t, "/", cookies[0].Path)
	assert.True(t, cookies[0].HttpOnly)
}

func TestLoginFailures(t *testing.T) {
	h := newHarness(t)
	missing := h.do(t, request{method: http.MethodPost, path: "/login", form: url.Values{"identifier": {"naveen"}}})
	assert.Equal(t, http.StatusBadRequest, missing.Code)
	assert.Contains(t, missing.Body.String(), messageMissingCredentials)
	assert.Zero(t, h.backend.count("/api/users/login"))

	wrong := h.do(t, request{
		method: http.MethodPost, path: "/login",
		form: url.Values{"identifier": {"naveen"}, "password": {"nope"}},
	})
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	doc := parse(t, wrong)
	assert.Equal(t, "Invalid password", strings.TrimSpace(doc.Find(".alert-error").Text()))
	value, _ := doc.Find(`input[name="identifier"]`).Attr("value")
	assert.Equal(t, "naveen", value)
}

func TestLogoutForgetsCartAndExpiresCookies(t *testing.T) {
	h := newHarness(t)
	h.do(t, request{method: http.MethodGet, path: "/cart", user: true})
	require.Equal(t, 1, h.registry.Len())

	rec := h.do(t, request{method: http.MethodPost, path: "/logout", form: url.Values{}, user: true})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.Zero(t, h.registry.Len())
	assert.Equal(t, 1, h.backend.count("/api/users/logout"))
	for _, c := range rec.Result().Cookies() {
		assert.Equal(t, -1, c.MaxAge, c.Name)
	}
}

func TestUsernameCheckFragment(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, request{method: http.MethodGet, path: "/admin/signup?username=taken", htmx: true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "<html")
	assert.Contains(t, rec.Body.String(), "already taken")

	page := h.do(t, request{method: http.MethodGet, path: "/admin/signup?username=taken"})
	assert.Contains(t, page.Body.String(), "<html")
}

func TestAdminCreateCollection(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, request{
		method: http.MethodPost, path: "/admin/add-collection",
		form: url.Values{"name": {"Shonen"}, "manga_ids": {"M1", "M1"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Collection &#39;Shonen&#39; created successfully!")
	assert.Equal(t, []any{"M1"}, h.backend.sent("/api/manga/create_collection")["manga_ids"])

	empty := h.do(t, request{method: http.MethodPost, path: "/admin/add-collection", form: url.Values{"name": {"Shonen"}}})
	assert.Equal(t, http.StatusBadRequest, empty.Code)
	assert.Contains(t, empty.Body.String(), content.MessageCollectionRequired)
}

func TestLegacyAdminPathsRedirect(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, request{method: http.MethodGet, path: "/admin/addManga"})
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/admin/add-manga", rec.Header().Get("Location"))
}
