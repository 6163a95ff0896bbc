package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/NaveenV-27/MangaKart-ui/internal/account"
	"github.com/NaveenV-27/MangaKart-ui/internal/backend"
	mw "github.com/NaveenV-27/MangaKart-ui/internal/middleware"
)

type profileView struct {
	Profile   account.Profile
	Addresses []account.Address
	CSRFToken string
	Form      account.Address
}

type addressListView struct {
	Addresses []account.Address
	CSRFToken string
}

// Profile renders the signed-in user's profile and address book. Both are
// loaded concurrently; either failing leaves an inline error.
func (h *Handlers) Profile(w http.ResponseWriter, r *http.Request) {
	view := profileView{CSRFToken: csrfToken(r)}
	var profileErr, addressErr error
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		view.Profile, profileErr = h.accounts.Profile(ctx)
		return nil
	})
	g.Go(func() error {
		view.Addresses, addressErr = h.accounts.Addresses(ctx)
		return nil
	})
	_ = g.Wait()

	p := h.page(r, "Profile", view)
	switch {
	case profileErr != nil:
		h.log(r).Warn("load profile failed", zap.Error(profileErr))
		p.Flash.Error = backend.Message(profileErr, account.MessageProfileFailed)
	case addressErr != nil:
		h.log(r).Warn("load addresses failed", zap.Error(addressErr))
		p.Flash.Error = backend.Message(addressErr, account.MessageAddressFailed)
	}
	h.render(w, r, "profile", p)
}

// AddAddress saves a new shipping address and re-renders the profile.
func (h *Handlers) AddAddress(w http.ResponseWriter, r *http.Request) {
	form := account.Address{
		Recipient:  r.PostFormValue("full_name"),
		Line1:      r.PostFormValue("address_line1"),
		Line2:      r.PostFormValue("address_line2"),
		City:       r.PostFormValue("city"),
		State:      r.PostFormValue("state"),
		PostalCode: r.PostFormValue("postal_code"),
		Country:    r.PostFormValue("country"),
		Phone:      r.PostFormValue("phone_number"),
	}
	ctx := r.Context()
	list, err := h.accounts.AddAddress(ctx, form)
	if err == nil {
		redirect(w, r, "/profile")
		return
	}

	view := profileView{CSRFToken: csrfToken(r), Form: form}
	view.Profile, _ = h.accounts.Profile(ctx)
	if list == nil {
		list, _ = h.accounts.Addresses(ctx)
	}
	view.Addresses = list
	p := h.page(r, "Profile", view)
	status := http.StatusBadRequest
	if msg := account.AddressMessage(err); msg != "" {
		p.Flash.Error = msg
	} else {
		h.log(r).Warn("add address failed", zap.Error(err))
		p.Flash.Error = backend.Message(err, account.MessageAddressFailed)
		status = http.StatusBadGateway
	}
	h.renderStatus(w, r, status, "profile", p)
}

// RemoveAddress deletes an address. htmx callers receive the refreshed list.
func (h *Handlers) RemoveAddress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	list, err := h.accounts.RemoveAddress(r.Context(), id)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, account.ErrAddressIDRequired) {
			status = http.StatusBadRequest
		}
		h.log(r).Warn("remove address failed", zap.String("address_id", id), zap.Error(err))
		if mw.IsHTMX(r.Context()) {
			w.Header().Set("HX-Reswap", "none")
			http.Error(w, backend.Message(err, account.MessageAddressFailed), status)
			return
		}
		redirect(w, r, "/profile")
		return
	}
	if mw.IsHTMX(r.Context()) {
		h.renderer.Fragment(w, r, "address_list", addressListView{Addresses: list, CSRFToken: csrfToken(r)})
		return
	}
	redirect(w, r, "/profile")
}
