package middleware

import (
	"net/http"
	"strings"

	"github.com/NaveenV-27/MangaKart-ui/internal/platform/requestctx"
)

var publicPaths = map[string]struct{}{
	"/login":        {},
	"/signup":       {},
	"/admin/login":  {},
	"/admin/signup": {},
}

var bypassPrefixes = []string{"/assets/", "/api/"}

var bypassPaths = map[string]struct{}{
	"/healthz":     {},
	"/favicon.ico": {},
}

// IsPublicPath reports whether path is reachable without signing in.
func IsPublicPath(path string) bool {
	_, ok := publicPaths[path]
	return ok
}

func isAdminPath(path string) bool {
	return path == "/admin" || strings.HasPrefix(path, "/admin/")
}

func bypassed(path string) bool {
	if _, ok := bypassPaths[path]; ok {
		return true
	}
	for _, prefix := range bypassPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Redirect returns where the guard sends a request for path, or "" to let it through.
//
// Signed-in users are kept off the public pages, users without the admin
// cookie are kept out of /admin, and anonymous visitors go to /login.
func Redirect(path string, s requestctx.Session) string {
	if bypassed(path) {
		return ""
	}
	public := IsPublicPath(path)
	user := s.UserToken != ""
	admin := s.AdminToken != ""
	switch {
	case public && user:
		return "/"
	case public && admin:
		return "/admin"
	case isAdminPath(path) && user && !admin:
		return "/"
	case !public && !user && !admin:
		return "/login"
	}
	return ""
}

// Guard enforces Redirect using the session placed on the context by Session.
// htmx requests receive HX-Redirect with 401 when sent to the login page, so
// the browser performs a full navigation instead of swapping a fragment.
func Guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		target := Redirect(r.URL.Path, requestctx.SessionFrom(r.Context()))
		if target == "" {
			next.ServeHTTP(w, r)
			return
		}
		if IsHTMX(r.Context()) || r.Header.Get("HX-Request") == "true" {
			w.Header().Set("HX-Redirect", target)
			if target == "/login" {
				w.WriteHeader(http.StatusUnauthorized)
			} else {
				w.WriteHeader(http.StatusNoContent)
			}
			return
		}
		http.Redirect(w, r, target, http.StatusFound)
	})
}
