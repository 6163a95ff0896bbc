// Package httpserver assembles the storefront router and HTTP server.
package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/NaveenV-27/MangaKart-ui/internal/handlers"
	mw "github.com/NaveenV-27/MangaKart-ui/internal/middleware"
	"github.com/NaveenV-27/MangaKart-ui/internal/platform/config"
	"github.com/NaveenV-27/MangaKart-ui/internal/platform/observability"
	"github.com/NaveenV-27/MangaKart-ui/internal/web"
)

const defaultRequestTimeout = 60 * time.Second

// Config holds runtime options for the storefront HTTP server.
type Config struct {
	Server         config.ServerConfig
	Security       config.SecurityConfig
	CORS           config.CORSConfig
	Handlers       *handlers.Handlers
	Logger         *zap.Logger
	RequestTimeout time.Duration
}

// New constructs the HTTP server with the middleware stack and embedded assets.
func New(cfg Config) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      NewRouter(cfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

// NewRouter wires middleware, pages, the JSON cart API and static assets.
func NewRouter(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(observability.InjectLoggerMiddleware(logger))
	router.Use(mw.HTMX)
	router.Use(mw.Session(mw.CookieNames{User: cfg.Security.UserCookie, Admin: cfg.Security.AdminCookie}))
	router.Use(observability.RequestLoggerMiddleware())
	router.Use(observability.RecoveryMiddleware(logger))
	router.Use(chimw.Compress(5))
	router.Use(chimw.Timeout(timeout))

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/assets/*", http.StripPrefix("/assets/", http.FileServer(http.FS(web.Static()))))

	h := cfg.Handlers
	router.Route("/api/cart", func(r chi.Router) {
		r.Use(apiCORS(cfg.CORS).Handler)
		h.MountAPI(r)
	})

	router.Group(func(r chi.Router) {
		r.Use(chimw.NoCache)
		r.Use(mw.CSRF(cfg.Security.SecureCookie))
		r.Use(mw.Guard)
		h.Mount(r)
		r.NotFound(h.NotFound)
	})

	return otelhttp.NewHandler(router, "storefront",
		otelhttp.WithFilter(func(r *http.Request) bool { return r.URL.Path != "/healthz" }),
	)
}

// apiCORS allows the configured origins to call the cart API with cookies.
func apiCORS(cfg config.CORSConfig) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           600,
	})
}
