package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/NaveenV-27/MangaKart-ui/internal/cart"
	"github.com/NaveenV-27/MangaKart-ui/internal/catalog"
)

const (
	messageMangaFailed  = "Failed to load manga. Please try again later."
	messageVolumeFailed = "Failed to load volume details. The server might be unreachable or the ID is invalid."
	messageSearchFailed = "Search is unavailable right now. Please try again later."
)

// Home renders the landing page.
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	home := h.catalog.Home(r.Context())
	h.render(w, r, "home", h.page(r, "", home))
}

type titlesView struct {
	Titles []catalog.Title
}

// MangaList renders every title in the catalogue.
func (h *Handlers) MangaList(w http.ResponseWriter, r *http.Request) {
	titles, err := h.catalog.AllTitles(r.Context())
	p := h.page(r, "All Manga", titlesView{Titles: titles})
	if err != nil {
		h.log(r).Warn("list titles failed", zap.Error(err))
		p.Flash.Error = messageMangaFailed
	}
	h.render(w, r, "manga_list", p)
}

type seriesView struct {
	catalog.SeriesPage
	VolumesError string
}

// Series renders a manga with its volumes.
func (h *Handlers) Series(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "series")
	page, err := h.catalog.SeriesPage(r.Context(), slug)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		h.notFound(w, r, "Manga not found.")
		return
	case err != nil && page.Manga.ID == "" && page.Manga.Title == "":
		h.log(r).Warn("load series failed", zap.String("slug", slug), zap.Error(err))
		p := h.page(r, catalog.SeriesName(slug), errorView{Status: http.StatusBadGateway, Message: messageMangaFailed})
		h.renderStatus(w, r, http.StatusBadGateway, "error", p)
		return
	}
	view := seriesView{SeriesPage: page}
	if err != nil {
		h.log(r).Warn("load volumes failed", zap.String("slug", slug), zap.Error(err))
		view.VolumesError = "Failed to load volumes."
	}
	h.render(w, r, "series", h.page(r, page.Manga.Title, view))
}

type volumeView struct {
	Volume    catalog.Volume
	Quantity  int
	Total     decimal.Decimal
	Message   string
	Error     string
	CSRFToken string
	CartCount int
	Fragment  bool
}

// Volume renders a volume with its cart controls.
func (h *Handlers) Volume(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "vol"))
	vol, err := h.catalog.Volume(r.Context(), id)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		h.notFound(w, r, "Volume not found.")
		return
	case err != nil:
		h.log(r).Warn("load volume failed", zap.String("volume_id", id), zap.Error(err))
		p := h.page(r, "Volume", errorView{Status: http.StatusBadGateway, Message: messageVolumeFailed})
		h.renderStatus(w, r, http.StatusBadGateway, "error", p)
		return
	}
	if store := h.store(r); store != nil {
		_ = store.FetchCart(r.Context())
	}
	view := h.volumeView(r, vol)
	h.render(w, r, "volume", h.page(r, vol.Title, view))
}

func (h *Handlers) volumeView(r *http.Request, vol catalog.Volume) volumeView {
	view := volumeView{Volume: vol, CSRFToken: csrfToken(r)}
	if store := h.store(r); store != nil {
		state := store.State()
		view.Quantity = state.QuantityOf(vol.ID, cart.KindVolume)
		view.CartCount = state.TotalCount
		view.Message = state.Message
		view.Error = state.Error
	}
	view.Total = vol.Price.Mul(decimal.NewFromInt(int64(view.Quantity)))
	return view
}

type genresView struct {
	Genres []catalog.Genre
}

// Genres renders the genre tiles.
func (h *Handlers) Genres(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "genres", h.page(r, "Genres", genresView{Genres: catalog.Genres()}))
}

type genreView struct {
	Label string
	Manga []catalog.Manga
}

// Genre renders the manga of one genre.
func (h *Handlers) Genre(w http.ResponseWriter, r *http.Request) {
	segment := chi.URLParam(r, "genre")
	label := catalog.GenreLabel(segment)
	list, err := h.catalog.ByGenre(r.Context(), catalog.GenreQuery(segment))
	p := h.page(r, label, genreView{Label: label, Manga: list})
	if err != nil {
		h.log(r).Warn("genre listing failed", zap.String("genre", segment), zap.Error(err))
		p.Flash.Error = messageMangaFailed
	}
	h.render(w, r, "genre", p)
}

type searchView struct {
	Query   string
	Results []catalog.Title
}

// Search renders title matches for ?query= (or ?q=).
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("query")
	if raw == "" {
		raw = r.URL.Query().Get("q")
	}
	query := catalog.NormalizeQuery(raw)
	results, err := h.catalog.Search(r.Context(), query)
	p := h.page(r, "Search", searchView{Query: query, Results: results})
	p.Query = query
	if err != nil {
		h.log(r).Warn("search failed", zap.Error(err))
		p.Flash.Error = messageSearchFailed
	}
	h.render(w, r, "search", p)
}
