package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/NaveenV-27/MangaKart-ui/internal/backend"
)

// Backend endpoints for catalog reads.
const (
	EndpointFeatured      = "/api/manga/manga_profile"
	EndpointSeries        = "/api/manga/get_single_manga"
	EndpointAllTitles     = "/api/manga/get_all_titles"
	EndpointByGenre       = "/api/manga/find_manga_by_genre"
	EndpointSearch        = "/api/manga/search_manga"
	EndpointRandomVolumes = "/api/volumes/get_random_volumes"
	EndpointSeriesVolumes = "/api/volumes/get_volumes_by_manga"
	EndpointVolume        = "/api/volumes/get_volume_details"
)

const (
	// DefaultListLimit is the page size the storefront asks for on the home page.
	DefaultListLimit = 10

	defaultCacheSize = 256

	// sharedLoadTimeout bounds a coalesced load, which outlives any single
	// caller's cancellation.
	sharedLoadTimeout = 15 * time.Second
)

// ErrNotFound is returned when the backend has no such manga or volume.
var ErrNotFound = errors.New("catalog: not found")

// Querier is the subset of the backend client used for catalog reads.
type Querier interface {
	Query(ctx context.Context, method, endpoint string, body any, opts ...backend.RequestOption) (*backend.Envelope, error)
}

// ClientDeps wires a catalog client. A non-positive CacheTTL disables caching.
type ClientDeps struct {
	Backend   Querier
	CacheTTL  time.Duration
	CacheSize int
	Logger    *zap.Logger
}

// Client reads the manga catalog with a short read-through cache. Concurrent
// misses for the same key share one backend call.
type Client struct {
	backend Querier
	cache   *expirable.LRU[string, any]
	group   singleflight.Group
	logger  *zap.Logger
}

// NewClient builds a catalog client.
func NewClient(deps ClientDeps) *Client {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{backend: deps.Backend, logger: logger}
	if deps.CacheTTL > 0 {
		size := deps.CacheSize
		if size <= 0 {
			size = defaultCacheSize
		}
		c.cache = expirable.NewLRU[string, any](size, nil, deps.CacheTTL)
	}
	return c
}

// Invalidate drops every cached response, e.g. after admin content changes.
func (c *Client) Invalidate() {
	if c != nil && c.cache != nil {
		c.cache.Purge()
	}
}

// Featured lists the manga shown in the home carousel.
func (c *Client) Featured(ctx context.Context, limit int) ([]Manga, error) {
	limit = clampLimit(limit)
	return cached(ctx, c, "featured:"+strconv.Itoa(limit), func(ctx context.Context) ([]Manga, error) {
		env, err := c.query(ctx, http.MethodPost, EndpointFeatured, map[string]any{"limit": limit})
		if err != nil {
			return nil, err
		}
		return decodeMangaList(env)
	})
}

// Series fetches one manga by its series path segment.
func (c *Client) Series(ctx context.Context, slug string) (Manga, error) {
	name := strings.TrimSpace(SeriesName(slug))
	if name == "" {
		return Manga{}, ErrNotFound
	}
	return cached(ctx, c, "series:"+strings.ToLower(name), func(ctx context.Context) (Manga, error) {
		env, err := c.query(ctx, http.MethodPost, EndpointSeries, map[string]any{"manga": name})
		if err != nil {
			if backend.IsStatus(err, http.StatusNotFound) {
				return Manga{}, ErrNotFound
			}
			return Manga{}, err
		}
		var wire mangaWire
		if !decodeObject(env, &wire) {
			return Manga{}, ErrNotFound
		}
		manga := wire.toManga()
		if manga.ID == "" && manga.Title == "" {
			return Manga{}, ErrNotFound
		}
		return manga, nil
	})
}

// AllTitles lists every manga id and title.
func (c *Client) AllTitles(ctx context.Context) ([]Title, error) {
	return cached(ctx, c, "titles", func(ctx context.Context) ([]Title, error) {
		env, err := c.query(ctx, http.MethodGet, EndpointAllTitles, nil)
		if err != nil {
			return nil, err
		}
		wires, err := decodeList[titleWire](env)
		if err != nil {
			return nil, err
		}
		out := make([]Title, 0, len(wires))
		for _, w := range wires {
			if t := w.toTitle(); t.MangaID != "" {
				out = append(out, t)
			}
		}
		return out, nil
	})
}

// ByGenre lists manga tagged with genre.
func (c *Client) ByGenre(ctx context.Context, genre string) ([]Manga, error) {
	genre = strings.TrimSpace(genre)
	if genre == "" {
		return nil, nil
	}
	return cached(ctx, c, "genre:"+strings.ToLower(genre), func(ctx context.Context) ([]Manga, error) {
		env, err := c.query(ctx, http.MethodPost, EndpointByGenre, map[string]any{"genre": genre})
		if err != nil {
			return nil, err
		}
		return decodeMangaList(env)
	})
}

// Search finds manga whose titles match query. Blank queries return nothing
// without calling the backend.
func (c *Client) Search(ctx context.Context, query string) ([]Title, error) {
	query = NormalizeQuery(query)
	if query == "" {
		return nil, nil
	}
	return cached(ctx, c, "search:"+strings.ToLower(query), func(ctx context.Context) ([]Title, error) {
		env, err := c.query(ctx, http.MethodPost, EndpointSearch, map[string]any{"search": query})
		if err != nil {
			return nil, err
		}
		wires, err := decodeList[titleWire](env, "results")
		if err != nil {
			return nil, err
		}
		out := make([]Title, 0, len(wires))
		for _, w := range wires {
			if t := w.toTitle(); t.Title != "" {
				out = append(out, t)
			}
		}
		return out, nil
	})
}

// RandomVolumes lists a random selection of volumes. Random picks are never cached.
func (c *Client) RandomVolumes(ctx context.Context, limit int) ([]Volume, error) {
	env, err := c.query(ctx, http.MethodPost, EndpointRandomVolumes, map[string]any{"limit": clampLimit(limit)})
	if err != nil {
		return nil, err
	}
	return decodeVolumeList(env)
}

// SeriesVolumes lists the volumes of a manga ordered by volume number.
func (c *Client) SeriesVolumes(ctx context.Context, mangaID string) ([]Volume, error) {
	mangaID = strings.TrimSpace(mangaID)
	if mangaID == "" {
		return nil, nil
	}
	return cached(ctx, c, "volumes:"+mangaID, func(ctx context.Context) ([]Volume, error) {
		env, err := c.query(ctx, http.MethodPost, EndpointSeriesVolumes, map[string]any{"manga_id": mangaID})
		if err != nil {
			return nil, err
		}
		vols, err := decodeVolumeList(env)
		if err != nil {
			return nil, err
		}
		for i := range vols {
			if vols[i].MangaID == "" {
				vols[i].MangaID = mangaID
			}
		}
		sortVolumes(vols)
		return vols, nil
	})
}

// Volume fetches one volume by id.
func (c *Client) Volume(ctx context.Context, volumeID string) (Volume, error) {
	volumeID = strings.TrimSpace(volumeID)
	if volumeID == "" {
		return Volume{}, ErrNotFound
	}
	return cached(ctx, c, "volume:"+volumeID, func(ctx context.Context) (Volume, error) {
		env, err := c.query(ctx, http.MethodPost, EndpointVolume, map[string]any{"volume_id": volumeID})
		if err != nil {
			if backend.IsStatus(err, http.StatusNotFound) {
				return Volume{}, ErrNotFound
			}
			return Volume{}, err
		}
		var wire volumeWire
		if !decodeObject(env, &wire) {
			return Volume{}, ErrNotFound
		}
		vol := wire.toVolume()
		if vol.ID == "" {
			vol.ID = volumeID
		}
		if vol.Title == "" && vol.MangaTitle == "" {
			return Volume{}, ErrNotFound
		}
		return vol, nil
	})
}

// Home is the data behind the landing page.
type Home struct {
	Featured []Manga
	Random   []Volume
}

// Home loads the featured carousel and the random volume shelf in parallel.
// A failing shelf is logged and left empty so the page still renders.
func (c *Client) Home(ctx context.Context) Home {
	var home Home
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		featured, err := c.Featured(gctx, DefaultListLimit)
		if err != nil {
			c.logger.Warn("featured manga unavailable", zap.Error(err))
			return nil
		}
		home.Featured = featured
		return nil
	})
	g.Go(func() error {
		random, err := c.RandomVolumes(gctx, DefaultListLimit)
		if err != nil {
			c.logger.Warn("random volumes unavailable", zap.Error(err))
			return nil
		}
		home.Random = random
		return nil
	})
	_ = g.Wait()
	return home
}

// SeriesPage is a manga together with its volumes.
type SeriesPage struct {
	Manga    Manga
	Volumes  []Volume
	Synopsis template.HTML
}

// SeriesPage loads a manga and then its volumes. A volume failure leaves the
// list empty and is reported through the returned error alongside the manga.
func (c *Client) SeriesPage(ctx context.Context, slug string) (SeriesPage, error) {
	manga, err := c.Series(ctx, slug)
	if err != nil {
		return SeriesPage{}, err
	}
	page := SeriesPage{Manga: manga, Synopsis: RenderSynopsis(manga.Description)}
	vols, err := c.SeriesVolumes(ctx, manga.ID)
	if err != nil {
		return page, fmt.Errorf("catalog: volumes of %s: %w", manga.ID, err)
	}
	page.Volumes = vols
	return page, nil
}

func (c *Client) query(ctx context.Context, method, endpoint string, body any) (*backend.Envelope, error) {
	if c == nil || c.backend == nil {
		return nil, backend.ErrNotConfigured
	}
	return c.backend.Query(ctx, method, endpoint, body)
}

func cached[T any](ctx context.Context, c *Client, key string, load func(context.Context) (T, error)) (T, error) {
	if c == nil || c.cache == nil {
		return load(ctx)
	}
	if v, ok := c.cache.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}
	ch := c.group.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLoadTimeout)
		defer cancel()
		loaded, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		c.cache.Add(key, loaded)
		return loaded, nil
	})
	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		if res.Shared {
			c.logger.Debug("catalog request coalesced", zap.String("key", key))
		}
		return res.Val.(T), nil
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > 100 {
		return 100
	}
	return limit
}

func decodeMangaList(env *backend.Envelope) ([]Manga, error) {
	wires, err := decodeList[mangaWire](env, "manga", "results")
	if err != nil {
		return nil, err
	}
	out := make([]Manga, 0, len(wires))
	for _, w := range wires {
		if m := w.toManga(); m.Title != "" {
			out = append(out, m)
		}
	}
	return out, nil
}

func decodeVolumeList(env *backend.Envelope) ([]Volume, error) {
	wires, err := decodeList[volumeWire](env, "volumes")
	if err != nil {
		return nil, err
	}
	out := make([]Volume, 0, len(wires))
	for _, w := range wires {
		if v := w.toVolume(); v.ID != "" {
			out = append(out, v)
		}
	}
	return out, nil
}

// decodeList reads a list that may be the whole body, the data field or one of
// keys inside the body. Elements that are not objects are skipped.
func decodeList[W any](env *backend.Envelope, keys ...string) ([]W, error) {
	raw := listPayload(env, keys)
	if raw == nil {
		return nil, nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, fmt.Errorf("catalog: decode list: %w", err)
	}
	out := make([]W, 0, len(elems))
	for _, elem := range elems {
		trimmed := bytes.TrimSpace(elem)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			continue
		}
		var w W
		if err := json.Unmarshal(trimmed, &w); err != nil {
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

func listPayload(env *backend.Envelope, keys []string) json.RawMessage {
	if env == nil {
		return nil
	}
	if isArray(env.Data) {
		return env.Data
	}
	body := bytes.TrimSpace(env.Body)
	if isArray(body) {
		return body
	}
	if len(body) == 0 || body[0] != '{' {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil
	}
	for _, key := range keys {
		if isArray(fields[key]) {
			return fields[key]
		}
	}
	if data, ok := fields["data"]; ok {
		var nested map[string]json.RawMessage
		if json.Unmarshal(data, &nested) == nil {
			for _, key := range keys {
				if isArray(nested[key]) {
					return nested[key]
				}
			}
		}
	}
	return nil
}

// decodeObject reads a single document from data (first element when it is an
// array) or from the body itself. It reports false when nothing usable was found.
func decodeObject(env *backend.Envelope, v any) bool {
	if env == nil {
		return false
	}
	candidates := []json.RawMessage{env.Data, env.Body}
	for _, raw := range candidates {
		raw = bytes.TrimSpace(raw)
		if isArray(raw) {
			var elems []json.RawMessage
			if json.Unmarshal(raw, &elems) != nil || len(elems) == 0 {
				continue
			}
			raw = bytes.TrimSpace(elems[0])
		}
		if len(raw) == 0 || raw[0] != '{' {
			continue
		}
		if json.Unmarshal(raw, v) == nil {
			return true
		}
	}
	return false
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
