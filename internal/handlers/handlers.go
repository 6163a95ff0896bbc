// Package handlers serves the storefront's pages, form posts and the JSON cart API.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/NaveenV-27/MangaKart-ui/internal/account"
	"github.com/NaveenV-27/MangaKart-ui/internal/cart"
	"github.com/NaveenV-27/MangaKart-ui/internal/catalog"
	"github.com/NaveenV-27/MangaKart-ui/internal/content"
	mw "github.com/NaveenV-27/MangaKart-ui/internal/middleware"
	"github.com/NaveenV-27/MangaKart-ui/internal/platform/requestctx"
	"github.com/NaveenV-27/MangaKart-ui/internal/web"
)

// Catalog is the read side of the manga catalogue.
type Catalog interface {
	Home(ctx context.Context) catalog.Home
	AllTitles(ctx context.Context) ([]catalog.Title, error)
	SeriesPage(ctx context.Context, slug string) (catalog.SeriesPage, error)
	Volume(ctx context.Context, volumeID string) (catalog.Volume, error)
	ByGenre(ctx context.Context, genre string) ([]catalog.Manga, error)
	Search(ctx context.Context, query string) ([]catalog.Title, error)
}

// Accounts covers user and admin sessions and profiles.
type Accounts interface {
	Login(ctx context.Context, creds account.Credentials) (account.LoginResult, error)
	AdminLogin(ctx context.Context, creds account.Credentials) (account.LoginResult, error)
	Logout(ctx context.Context) error
	Profile(ctx context.Context) (account.Profile, error)
	AdminProfile(ctx context.Context) (account.Profile, error)
	Addresses(ctx context.Context) ([]account.Address, error)
	AddAddress(ctx context.Context, addr account.Address) ([]account.Address, error)
	RemoveAddress(ctx context.Context, id string) ([]account.Address, error)
	CheckUsername(ctx context.Context, username string) (account.UsernameStatus, error)
	SignupAdmin(ctx context.Context, form account.SignupForm) (string, error)
}

// Content submits admin catalogue entries.
type Content interface {
	CreateManga(ctx context.Context, draft content.MangaDraft) (content.Result, error)
	CreateVolume(ctx context.Context, draft content.VolumeDraft) (content.Result, error)
	AddChapter(ctx context.Context, draft content.ChapterDraft) (content.Result, error)
	CreateCollection(ctx context.Context, draft content.CollectionDraft) (content.Result, error)
}

// Carts hands out the cart store of a session.
type Carts interface {
	Get(ctx context.Context, key string) *cart.Store
	Forget(key string)
}

// CookieOptions controls how relayed session cookies are written.
type CookieOptions struct {
	UserName  string
	AdminName string
	Secure    bool
}

// Deps wires Handlers. Every field except Logger is required.
type Deps struct {
	Renderer *web.Renderer
	Catalog  Catalog
	Accounts Accounts
	Content  Content
	Carts    Carts
	Cookies  CookieOptions
	Logger   *zap.Logger
}

// Handlers holds the storefront's HTTP handlers.
type Handlers struct {
	renderer *web.Renderer
	catalog  Catalog
	accounts Accounts
	content  Content
	carts    Carts
	cookies  CookieOptions
	logger   *zap.Logger
}

// New validates deps and constructs Handlers.
func New(deps Deps) (*Handlers, error) {
	var missing []string
	if deps.Renderer == nil {
		missing = append(missing, "Renderer")
	}
	if deps.Catalog == nil {
		missing = append(missing, "Catalog")
	}
	if deps.Accounts == nil {
		missing = append(missing, "Accounts")
	}
	if deps.Content == nil {
		missing = append(missing, "Content")
	}
	if deps.Carts == nil {
		missing = append(missing, "Carts")
	}
	if len(missing) > 0 {
		return nil, errors.New("handlers: missing dependencies: " + strings.Join(missing, ", "))
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cookies := deps.Cookies
	if cookies.UserName == "" {
		cookies.UserName = "USER"
	}
	if cookies.AdminName == "" {
		cookies.AdminName = "ADMIN"
	}
	return &Handlers{
		renderer: deps.Renderer,
		catalog:  deps.Catalog,
		accounts: deps.Accounts,
		content:  deps.Content,
		carts:    deps.Carts,
		cookies:  cookies,
		logger:   logger,
	}, nil
}

// page builds the layout view model shared by every page.
func (h *Handlers) page(r *http.Request, title string, body any) web.Page {
	ctx := r.Context()
	s := requestctx.SessionFrom(ctx)
	p := web.Page{
		Title:     title,
		Path:      r.URL.Path,
		Nav:       web.BuildNav(r.URL.Path, s),
		Session:   s,
		CSRFToken: csrfToken(r),
		Body:      body,
	}
	if key := s.Key(); key != "" {
		p.CartCount = h.carts.Get(ctx, key).State().TotalCount
	}
	return p
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, name string, p web.Page) {
	h.renderer.Render(w, r, name, p)
}

func (h *Handlers) renderStatus(w http.ResponseWriter, r *http.Request, status int, name string, p web.Page) {
	h.renderer.RenderStatus(w, r, status, name, p)
}

type errorView struct {
	Status  int
	Message string
}

func (h *Handlers) notFound(w http.ResponseWriter, r *http.Request, message string) {
	if message == "" {
		message = "The page you are looking for does not exist."
	}
	h.renderStatus(w, r, http.StatusNotFound, "error", h.page(r, "Not found", errorView{Status: http.StatusNotFound, Message: message}))
}

// NotFound renders the storefront's 404 page.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.notFound(w, r, "")
}

// store returns the session's cart store, or nil for anonymous requests.
func (h *Handlers) store(r *http.Request) *cart.Store {
	key := requestctx.SessionFrom(r.Context()).Key()
	if key == "" {
		return nil
	}
	return h.carts.Get(r.Context(), key)
}

func csrfToken(r *http.Request) string {
	return mw.CSRFToken(r.Context())
}

func (h *Handlers) log(r *http.Request) *zap.Logger {
	logger := requestctx.Logger(r.Context())
	if logger == requestctx.NoopLogger() {
		return h.logger
	}
	return logger
}

// redirect performs a full navigation, through HX-Redirect for htmx requests.
func redirect(w http.ResponseWriter, r *http.Request, target string) {
	if mw.IsHTMX(r.Context()) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
