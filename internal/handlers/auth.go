package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/NaveenV-27/MangaKart-ui/internal/account"
	"github.com/NaveenV-27/MangaKart-ui/internal/backend"
	"github.com/NaveenV-27/MangaKart-ui/internal/platform/requestctx"
)

const messageMissingCredentials = "Please enter your username/email and password."

type loginView struct {
	Heading    string
	Action     string
	Identifier string
	SignupPath string
}

type loginFlow struct {
	title   string
	view    loginView
	login   func(context.Context, account.Credentials) (account.LoginResult, error)
	landing string
}

func (h *Handlers) userLogin() loginFlow {
	return loginFlow{
		title:   "Login",
		view:    loginView{Heading: "Login", Action: "/login"},
		login:   h.accounts.Login,
		landing: "/",
	}
}

func (h *Handlers) adminLogin() loginFlow {
	return loginFlow{
		title:   "Admin Login",
		view:    loginView{Heading: "Admin Login", Action: "/admin/login", SignupPath: "/admin/signup"},
		login:   h.accounts.AdminLogin,
		landing: "/admin",
	}
}

// LoginPage renders the user login form.
func (h *Handlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	flow := h.userLogin()
	h.render(w, r, "login", h.page(r, flow.title, flow.view))
}

// Login authenticates a user and relays the backend's session cookie.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	h.submitLogin(w, r, h.userLogin())
}

// AdminLoginPage renders the administrator login form.
func (h *Handlers) AdminLoginPage(w http.ResponseWriter, r *http.Request) {
	flow := h.adminLogin()
	h.render(w, r, "login", h.page(r, flow.title, flow.view))
}

// AdminLogin authenticates an administrator.
func (h *Handlers) AdminLogin(w http.ResponseWriter, r *http.Request) {
	h.submitLogin(w, r, h.adminLogin())
}

func (h *Handlers) submitLogin(w http.ResponseWriter, r *http.Request, flow loginFlow) {
	creds := account.Credentials{
		Identifier: strings.TrimSpace(r.PostFormValue("identifier")),
		Password:   r.PostFormValue("password"),
	}
	result, err := flow.login(r.Context(), creds)
	if err != nil {
		view := flow.view
		view.Identifier = creds.Identifier
		p := h.page(r, flow.title, view)
		status := http.StatusUnauthorized
		switch {
		case errors.Is(err, account.ErrMissingCredentials):
			p.Flash.Error = messageMissingCredentials
			status = http.StatusBadRequest
		default:
			h.log(r).Info("login failed", zap.String("action", flow.view.Action), zap.Error(err))
			p.Flash.Error = backend.Message(err, account.MessageLoginFailed)
			if backend.IsKind(err, backend.KindTransport) || backend.IsKind(err, backend.KindDecode) {
				status = http.StatusBadGateway
			}
		}
		h.renderStatus(w, r, status, "login", p)
		return
	}
	h.relayCookies(w, result.Cookies)
	redirect(w, r, flow.landing)
}

// relayCookies re-issues the backend's session cookies on the storefront's
// own origin. Unknown cookies are dropped.
func (h *Handlers) relayCookies(w http.ResponseWriter, cookies []*http.Cookie) {
	for _, c := range cookies {
		if c == nil || (c.Name != h.cookies.UserName && c.Name != h.cookies.AdminName) {
			continue
		}
		http.SetCookie(w, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     "/",
			Expires:  c.Expires,
			MaxAge:   c.MaxAge,
			HttpOnly: true,
			Secure:   h.cookies.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// Logout ends the backend session, drops the cached cart and expires both
// auth cookies. Backend failures do not keep the visitor signed in.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.accounts.Logout(ctx); err != nil {
		h.log(r).Warn("backend logout failed", zap.Error(err))
	}
	if key := requestctx.SessionFrom(ctx).Key(); key != "" {
		h.carts.Forget(key)
	}
	for _, name := range []string{h.cookies.UserName, h.cookies.AdminName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.cookies.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	redirect(w, r, "/login")
}
