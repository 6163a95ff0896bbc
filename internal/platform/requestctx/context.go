package requestctx

import (
	"context"

	"go.uber.org/zap"
)

type contextKey string

const (
	loggerContextKey  contextKey = "github.com/NaveenV-27/MangaKart-ui/internal/platform/requestctx/logger"
	sessionContextKey contextKey = "github.com/NaveenV-27/MangaKart-ui/internal/platform/requestctx/session"
)

var noopLogger = zap.NewNop()

// Session describes who is making the request, as far as the auth cookies tell.
// Tokens are opaque: the storefront never validates them, it only forwards them.
type Session struct {
	UserToken  string
	AdminToken string
}

// LoggedIn reports whether any auth cookie is present.
func (s Session) LoggedIn() bool { return s.UserToken != "" || s.AdminToken != "" }

// IsAdmin reports whether the admin cookie is present.
func (s Session) IsAdmin() bool { return s.AdminToken != "" }

// Key returns the identifier used to scope per-session state such as the cart.
// Admin and user sessions never share a key.
func (s Session) Key() string {
	switch {
	case s.UserToken != "":
		return "user:" + s.UserToken
	case s.AdminToken != "":
		return "admin:" + s.AdminToken
	default:
		return ""
	}
}

// WithLogger stores the logger in context for downstream consumers.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = noopLogger
	}
	return context.WithValue(ctx, loggerContextKey, logger)
}

// Logger retrieves the zap logger from context or returns a no-op logger.
func Logger(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return noopLogger
	}
	if logger, ok := ctx.Value(loggerContextKey).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return noopLogger
}

// NoopLogger exposes the shared noop logger instance used across the package.
func NoopLogger() *zap.Logger { return noopLogger }

// WithSession stores the request session on the context.
func WithSession(ctx context.Context, s Session) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, sessionContextKey, s)
}

// SessionFrom returns the request session, or the zero Session when absent.
func SessionFrom(ctx context.Context) Session {
	if ctx == nil {
		return Session{}
	}
	s, _ := ctx.Value(sessionContextKey).(Session)
	return s
}
