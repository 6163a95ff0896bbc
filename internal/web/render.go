// Package web renders the storefront's server-side pages and htmx fragments.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/NaveenV-27/MangaKart-ui/internal/catalog"
	"github.com/NaveenV-27/MangaKart-ui/internal/platform/requestctx"
)

//go:embed templates
var embedded embed.FS

//go:embed static
var staticFiles embed.FS

// layout files are parsed into every page set.
var layoutFiles = []string{"layout.tmpl", "partials.tmpl"}

// Static returns the embedded assets served under /assets/.
func Static() fs.FS {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// Page is the view model handed to the shared layout.
type Page struct {
	Title     string
	Path      string
	Nav       []NavItem
	Session   requestctx.Session
	CSRFToken string
	CartCount int
	Query     string
	Flash     Flash
	Body      any
}

// Flash carries the one-shot status line shown above the page body.
type Flash struct {
	Message string
	Error   string
}

// RendererOptions configures a Renderer. With Dir set and Dev true, templates
// are read from disk and reparsed on every render.
type RendererOptions struct {
	Dir    string
	Dev    bool
	Logger *zap.Logger
}

// Renderer executes page templates against the shared layout.
type Renderer struct {
	fsys   fs.FS
	dev    bool
	logger *zap.Logger
	pages  map[string]*template.Template
	frags  *template.Template
}

// NewRenderer parses every page template up front so syntax errors fail startup.
func NewRenderer(opts RendererOptions) (*Renderer, error) {
	var fsys fs.FS
	if opts.Dir != "" {
		fsys = os.DirFS(opts.Dir)
	} else {
		sub, err := fs.Sub(embedded, "templates")
		if err != nil {
			return nil, err
		}
		fsys = sub
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Renderer{fsys: fsys, dev: opts.Dev && opts.Dir != "", logger: logger}
	pages, frags, err := parseTemplates(fsys)
	if err != nil {
		return nil, err
	}
	r.pages, r.frags = pages, frags
	return r, nil
}

// Funcs are the helpers available to every template.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"now":         time.Now,
		"currency":    Currency,
		"thousandSep": ThousandSep,
		"rating":      Rating,
		"genreColor":  genreColor,
		"genrePath":   func(name string) string { return catalog.Genre{Name: name}.Path() },
		"seriesPath":  func(title string) string { return "/manga/" + url.PathEscape(catalog.SeriesSlug(title)) },
		"volumePath":  func(id string) string { return "/volume/" + url.PathEscape(id) },
		"join":        strings.Join,
		"add":         func(a, b int) int { return a + b },
		"sub":         func(a, b int) int { return a - b },
	}
}

// genreColor is trusted CSS: colours come from the embedded genre catalogue.
func genreColor(name string) template.CSS {
	return template.CSS(catalog.GenreColor(name))
}

func parseTemplates(fsys fs.FS) (map[string]*template.Template, *template.Template, error) {
	base, err := template.New("_root").Funcs(Funcs()).ParseFS(fsys, layoutFiles...)
	if err != nil {
		return nil, nil, fmt.Errorf("web: parse layout: %w", err)
	}
	files, err := fs.Glob(fsys, "pages/*.tmpl")
	if err != nil {
		return nil, nil, err
	}
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("web: no page templates found")
	}
	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		set, err := base.Clone()
		if err != nil {
			return nil, nil, err
		}
		if _, err := set.ParseFS(fsys, file); err != nil {
			return nil, nil, fmt.Errorf("web: parse %s: %w", file, err)
		}
		pages[strings.TrimSuffix(path.Base(file), ".tmpl")] = set
	}
	return pages, base, nil
}

func (r *Renderer) templates() (map[string]*template.Template, *template.Template, error) {
	if r.dev {
		return parseTemplates(r.fsys)
	}
	return r.pages, r.frags, nil
}

// Render executes the base layout with the named page.
func (r *Renderer) Render(w http.ResponseWriter, req *http.Request, name string, data Page) {
	r.RenderStatus(w, req, http.StatusOK, name, data)
}

// RenderStatus is Render with an explicit status code.
func (r *Renderer) RenderStatus(w http.ResponseWriter, req *http.Request, status int, name string, data Page) {
	pages, _, err := r.templates()
	if err != nil {
		r.fail(w, req, "template parse error", err)
		return
	}
	t, ok := pages[name]
	if !ok {
		r.fail(w, req, "unknown page", fmt.Errorf("web: page %q not found", name))
		return
	}
	r.write(w, req, status, t, "base", data)
}

// Fragment executes a named partial on its own, for htmx swaps.
func (r *Renderer) Fragment(w http.ResponseWriter, req *http.Request, name string, data any) {
	_, frags, err := r.templates()
	if err != nil {
		r.fail(w, req, "template parse error", err)
		return
	}
	r.write(w, req, http.StatusOK, frags, name, data)
}

func (r *Renderer) write(w http.ResponseWriter, req *http.Request, status int, t *template.Template, name string, data any) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		r.fail(w, req, "template exec error", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (r *Renderer) fail(w http.ResponseWriter, req *http.Request, msg string, err error) {
	logger := requestctx.Logger(req.Context())
	if logger == requestctx.NoopLogger() {
		logger = r.logger
	}
	logger.Error(msg, zap.Error(err))
	http.Error(w, msg, http.StatusInternalServerError)
}
