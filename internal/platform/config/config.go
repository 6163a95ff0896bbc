package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultEnvFile          = ".env"
	defaultPort             = "3000"
	defaultReadTimeout      = 15 * time.Second
	defaultWriteTimeout     = 30 * time.Second
	defaultIdleTimeout      = 120 * time.Second
	defaultShutdownTimeout  = 10 * time.Second
	defaultLogLevel         = "info"
	defaultBackendURL       = "http://localhost:5000"
	defaultBackendTimeout   = 10 * time.Second
	defaultBreakerFailures  = 5
	defaultBreakerOpenFor   = 30 * time.Second
	defaultCartOrdering     = OrderingLastRequest
	defaultRegistrySize     = 1024
	defaultDebounceWait     = time.Second
	defaultSnapshotBackend  = SnapshotMemory
	defaultSnapshotPath     = "mangakart-cart.db"
	defaultSnapshotTTL      = 72 * time.Hour
	defaultRedisAddr        = "localhost:6379"
	defaultCatalogCacheTTL  = 2 * time.Minute
	defaultCatalogCacheSize = 256
	defaultUserCookie       = "USER"
	defaultAdminCookie      = "ADMIN"
	envPrefix               = "MANGAKART_"
)

// Ordering policies for concurrent cart mutations.
const (
	OrderingLastRequest  = "last-request"
	OrderingLastResponse = "last-response"
)

// Snapshot storage backends.
const (
	SnapshotNone   = "none"
	SnapshotMemory = "memory"
	SnapshotSQLite = "sqlite"
	SnapshotRedis  = "redis"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server   ServerConfig
	Backend  BackendConfig
	Cart     CartConfig
	Snapshot SnapshotConfig
	Catalog  CatalogConfig
	Security SecurityConfig
	CORS     CORSConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	LogLevel        string
}

// BackendConfig points the storefront at the REST backend.
type BackendConfig struct {
	BaseURL         string
	Timeout         time.Duration
	BreakerFailures int
	BreakerOpenFor  time.Duration
}

// CartConfig tunes the per-session cart stores.
type CartConfig struct {
	Ordering     string
	RegistrySize int
	DebounceWait time.Duration
}

// SnapshotConfig selects where cart snapshots are kept.
type SnapshotConfig struct {
	Backend   string
	Path      string
	RedisAddr string
	RedisDB   int
	TTL       time.Duration
}

// CatalogConfig controls the catalog read-through cache.
type CatalogConfig struct {
	CacheTTL  time.Duration
	CacheSize int
}

// SecurityConfig names the auth cookies inspected by the route guard.
type SecurityConfig struct {
	UserCookie   string
	AdminCookie  string
	SecureCookie bool
}

// CORSConfig lists origins allowed to call the JSON cart API.
type CORSConfig struct {
	AllowedOrigins []string
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.LookupEnv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the application configuration by combining defaults, .env overrides,
// environment variables and explicit overrides, in increasing order of precedence.
func Load(_ context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		key = envPrefix + key
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            stringWithDefault(lookup, "PORT", defaultPort),
			ReadTimeout:     durationWithDefault(lookup, "SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    durationWithDefault(lookup, "SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:     durationWithDefault(lookup, "SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			ShutdownTimeout: durationWithDefault(lookup, "SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
			LogLevel:        strings.ToLower(stringWithDefault(lookup, "LOG_LEVEL", defaultLogLevel)),
		},
		Backend: BackendConfig{
			BaseURL:         strings.TrimRight(stringWithDefault(lookup, "BACKEND_URL", defaultBackendURL), "/"),
			Timeout:         durationWithDefault(lookup, "BACKEND_TIMEOUT", defaultBackendTimeout),
			BreakerFailures: intWithDefault(lookup, "BACKEND_BREAKER_FAILURES", defaultBreakerFailures),
			BreakerOpenFor:  durationWithDefault(lookup, "BACKEND_BREAKER_OPEN_FOR", defaultBreakerOpenFor),
		},
		Cart: CartConfig{
			Ordering:     strings.ToLower(stringWithDefault(lookup, "CART_ORDERING", defaultCartOrdering)),
			RegistrySize: intWithDefault(lookup, "CART_REGISTRY_SIZE", defaultRegistrySize),
			DebounceWait: durationWithDefault(lookup, "CART_DEBOUNCE", defaultDebounceWait),
		},
		Snapshot: SnapshotConfig{
			Backend:   strings.ToLower(stringWithDefault(lookup, "SNAPSHOT_BACKEND", defaultSnapshotBackend)),
			Path:      stringWithDefault(lookup, "SNAPSHOT_PATH", defaultSnapshotPath),
			RedisAddr: stringWithDefault(lookup, "SNAPSHOT_REDIS_ADDR", defaultRedisAddr),
			RedisDB:   intWithDefault(lookup, "SNAPSHOT_REDIS_DB", 0),
			TTL:       durationWithDefault(lookup, "SNAPSHOT_TTL", defaultSnapshotTTL),
		},
		Catalog: CatalogConfig{
			CacheTTL:  durationWithDefault(lookup, "CATALOG_CACHE_TTL", defaultCatalogCacheTTL),
			CacheSize: intWithDefault(lookup, "CATALOG_CACHE_SIZE", defaultCatalogCacheSize),
		},
		Security: SecurityConfig{
			UserCookie:   stringWithDefault(lookup, "USER_COOKIE", defaultUserCookie),
			AdminCookie:  stringWithDefault(lookup, "ADMIN_COOKIE", defaultAdminCookie),
			SecureCookie: boolWithDefault(lookup, "SECURE_COOKIE", false),
		},
		CORS: CORSConfig{
			AllowedOrigins: csvWithDefault(lookup, "CORS_ALLOWED_ORIGINS"),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Redacted returns a flat, sorted view of the configuration suitable for printing.
func (c Config) Redacted() []string {
	values := map[string]string{
		"server.port":             c.Server.Port,
		"server.read_timeout":     c.Server.ReadTimeout.String(),
		"server.write_timeout":    c.Server.WriteTimeout.String(),
		"server.idle_timeout":     c.Server.IdleTimeout.String(),
		"server.shutdown_timeout": c.Server.ShutdownTimeout.String(),
		"server.log_level":        c.Server.LogLevel,
		"backend.url":             redactURL(c.Backend.BaseURL),
		"backend.timeout":         c.Backend.Timeout.String(),
		"backend.breaker":         fmt.Sprintf("%d failures / %s", c.Backend.BreakerFailures, c.Backend.BreakerOpenFor),
		"cart.ordering":           c.Cart.Ordering,
		"cart.registry_size":      strconv.Itoa(c.Cart.RegistrySize),
		"cart.debounce":           c.Cart.DebounceWait.String(),
		"snapshot.backend":        c.Snapshot.Backend,
		"snapshot.path":           c.Snapshot.Path,
		"snapshot.redis_addr":     c.Snapshot.RedisAddr,
		"snapshot.ttl":            c.Snapshot.TTL.String(),
		"catalog.cache_ttl":       c.Catalog.CacheTTL.String(),
		"catalog.cache_size":      strconv.Itoa(c.Catalog.CacheSize),
		"security.user_cookie":    c.Security.UserCookie,
		"security.admin_cookie":   c.Security.AdminCookie,
		"cors.allowed_origins":    strings.Join(c.CORS.AllowedOrigins, ","),
	}
	out := make([]string, 0, len(values))
	for k, v := range values {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = url.User("redacted")
	return u.String()
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if u, err := url.Parse(cfg.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		missing = append(missing, "Backend.BaseURL")
	}
	if cfg.Backend.Timeout <= 0 {
		missing = append(missing, "Backend.Timeout")
	}
	if cfg.Backend.BreakerFailures <= 0 {
		missing = append(missing, "Backend.BreakerFailures")
	}
	switch cfg.Cart.Ordering {
	case OrderingLastRequest, OrderingLastResponse:
	default:
		missing = append(missing, "Cart.Ordering")
	}
	if cfg.Cart.RegistrySize <= 0 {
		missing = append(missing, "Cart.RegistrySize")
	}
	if cfg.Cart.DebounceWait <= 0 {
		missing = append(missing, "Cart.DebounceWait")
	}
	switch cfg.Snapshot.Backend {
	case SnapshotNone, SnapshotMemory:
	case SnapshotSQLite:
		if strings.TrimSpace(cfg.Snapshot.Path) == "" {
			missing = append(missing, "Snapshot.Path")
		}
	case SnapshotRedis:
		if strings.TrimSpace(cfg.Snapshot.RedisAddr) == "" {
			missing = append(missing, "Snapshot.RedisAddr")
		}
	default:
		missing = append(missing, "Snapshot.Backend")
	}
	if cfg.Catalog.CacheSize <= 0 {
		missing = append(missing, "Catalog.CacheSize")
	}
	if strings.TrimSpace(cfg.Security.UserCookie) == "" {
		missing = append(missing, "Security.UserCookie")
	}
	if strings.TrimSpace(cfg.Security.AdminCookie) == "" {
		missing = append(missing, "Security.AdminCookie")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	values, err := godotenv.Read(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}

func csvWithDefault(lookup func(string) (string, bool), key string) []string {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
