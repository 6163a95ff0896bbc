package middleware

import (
	"net/http"
	"strings"

	"github.com/NaveenV-27/MangaKart-ui/internal/platform/requestctx"
)

// CookieNames names the auth cookies set by the backend.
type CookieNames struct {
	User  string
	Admin string
}

func (c CookieNames) withDefaults() CookieNames {
	if c.User == "" {
		c.User = "USER"
	}
	if c.Admin == "" {
		c.Admin = "ADMIN"
	}
	return c
}

// Session copies the auth cookie values into the request context. Values are
// opaque and never validated here.
func Session(names CookieNames) func(http.Handler) http.Handler {
	names = names.withDefaults()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := requestctx.Session{
				UserToken:  cookieValue(r, names.User),
				AdminToken: cookieValue(r, names.Admin),
			}
			next.ServeHTTP(w, r.WithContext(requestctx.WithSession(r.Context(), s)))
		})
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}
