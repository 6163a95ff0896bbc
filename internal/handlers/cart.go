package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/NaveenV-27/MangaKart-ui/internal/cart"
	"github.com/NaveenV-27/MangaKart-ui/internal/catalog"
	mw "github.com/NaveenV-27/MangaKart-ui/internal/middleware"
)

// shippingFee is charged once per non-empty order.
var shippingFee = decimal.NewFromInt(5)

const (
	messageInvalidQuantity = "Please choose a valid quantity."
	messageMissingVolume   = "Please choose a volume."
	messageSignInRequired  = "Please log in to use the cart."
	messageVolumeLookup    = "Failed to add to cart"
)

// lookupError marks a failure to load the volume before the cart was touched.
type lookupError struct{ err error }

func (e *lookupError) Error() string { return "volume lookup: " + e.err.Error() }
func (e *lookupError) Unwrap() error { return e.err }

// stockError is returned when a quantity would exceed the volume's stock.
type stockError struct{ stock int }

func (e *stockError) Error() string {
	return fmt.Sprintf("Maximum stock available is %d.", e.stock)
}

type cartView struct {
	Items     []cart.LineItem
	Count     int
	Subtotal  decimal.Decimal
	Shipping  decimal.Decimal
	Total     decimal.Decimal
	Message   string
	Error     string
	CSRFToken string
	Fragment  bool
}

func newCartView(state cart.State, csrf string) cartView {
	shipping := decimal.Zero
	if state.TotalAmount.IsPositive() {
		shipping = shippingFee
	}
	return cartView{
		Items:     state.Items,
		Count:     state.TotalCount,
		Subtotal:  state.TotalAmount,
		Shipping:  shipping,
		Total:     state.TotalAmount.Add(shipping),
		Message:   state.Message,
		Error:     state.Error,
		CSRFToken: csrf,
	}
}

// Cart loads the server cart and renders it. A failed load still renders
// the cart as last known, with the error shown.
func (h *Handlers) Cart(w http.ResponseWriter, r *http.Request) {
	store := h.store(r)
	if store == nil {
		redirect(w, r, "/login")
		return
	}
	if err := store.FetchCart(r.Context()); err != nil {
		h.log(r).Info("cart fetch failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	view := newCartView(store.State(), csrfToken(r))
	h.render(w, r, "cart", h.page(r, "Your Cart", view))
}

// CartAdd adds a volume to the cart. quantity defaults to 1.
func (h *Handlers) CartAdd(w http.ResponseWriter, r *http.Request) {
	h.cartAction(w, r, func(ctx context.Context, store *cart.Store) error {
		quantity, err := formQuantity(r, 1)
		if err != nil {
			return err
		}
		item, vol, err := h.lineItem(ctx, r.FormValue("volume_id"), r.FormValue("type"))
		if err != nil {
			return err
		}
		if store.State().QuantityOf(item.VolumeID, item.Kind)+quantity > vol.Stock {
			return &stockError{stock: vol.Stock}
		}
		return store.AddItem(ctx, item, quantity)
	})
}

// CartUpdate sets the quantity of a line item; zero removes it.
func (h *Handlers) CartUpdate(w http.ResponseWriter, r *http.Request) {
	h.cartAction(w, r, func(ctx context.Context, store *cart.Store) error {
		quantity, err := formQuantity(r, -1)
		if err != nil {
			return err
		}
		return store.UpdateQuantity(ctx, r.FormValue("volume_id"), cart.ParseKind(r.FormValue("type")), quantity)
	})
}

// CartRemove drops a line item whatever its quantity.
func (h *Handlers) CartRemove(w http.ResponseWriter, r *http.Request) {
	h.cartAction(w, r, func(ctx context.Context, store *cart.Store) error {
		return store.RemoveItem(ctx, r.FormValue("volume_id"), cart.ParseKind(r.FormValue("type")))
	})
}

// CartClear empties the cart.
func (h *Handlers) CartClear(w http.ResponseWriter, r *http.Request) {
	h.cartAction(w, r, func(ctx context.Context, store *cart.Store) error {
		return store.ClearCart(ctx)
	})
}

// cartAction runs op against the session's store and answers with the cart
// panel fragment for htmx, or the full cart page otherwise.
func (h *Handlers) cartAction(w http.ResponseWriter, r *http.Request, op func(context.Context, *cart.Store) error) {
	store := h.store(r)
	if store == nil {
		redirect(w, r, "/login")
		return
	}
	err := op(r.Context(), store)
	view := newCartView(store.State(), csrfToken(r))
	status := http.StatusOK
	if err != nil {
		status = cartErrorStatus(err)
		h.log(r).Info("cart action failed", zap.String("path", r.URL.Path), zap.Error(err))
		if msg := inputMessage(err); msg != "" {
			view.Message, view.Error = "", msg
		} else if errors.As(err, new(*lookupError)) {
			view.Message, view.Error = "", messageVolumeLookup
		}
	}
	if mw.IsHTMX(r.Context()) {
		view.Fragment = true
		h.renderer.Fragment(w, r, "cart_panel", view)
		return
	}
	h.renderStatus(w, r, status, "cart", h.page(r, "Your Cart", view))
}

// CartSet reconciles the cart towards the quantity chosen on a volume page.
func (h *Handlers) CartSet(w http.ResponseWriter, r *http.Request) {
	store := h.store(r)
	if store == nil {
		redirect(w, r, "/login")
		return
	}
	ctx := r.Context()
	item, vol, lookupErr := h.lineItem(ctx, r.FormValue("volume_id"), r.FormValue("type"))
	if lookupErr != nil {
		h.log(r).Info("volume lookup failed", zap.Error(lookupErr))
		if errors.Is(lookupErr, catalog.ErrNotFound) || errors.Is(lookupErr, cart.ErrMissingVolume) {
			h.notFound(w, r, "Volume not found.")
			return
		}
		h.renderStatus(w, r, http.StatusBadGateway, "error", h.page(r, "Volume", errorView{Status: http.StatusBadGateway, Message: messageVolumeFailed}))
		return
	}

	status := http.StatusOK
	var problem string
	desired, err := formQuantity(r, -1)
	switch {
	case err != nil:
		status, problem = http.StatusBadRequest, messageInvalidQuantity
	case desired > vol.Stock:
		status, problem = http.StatusConflict, (&stockError{stock: vol.Stock}).Error()
	default:
		if err := store.SetQuantity(ctx, item, desired); err != nil {
			status = cartErrorStatus(err)
			h.log(r).Info("cart set failed", zap.String("volume_id", vol.ID), zap.Error(err))
		}
	}

	view := h.volumeView(r, vol)
	if problem != "" {
		view.Message = ""
		view.Error = problem
	}
	if mw.IsHTMX(r.Context()) {
		view.Fragment = true
		h.renderer.Fragment(w, r, "volume_cart", view)
		return
	}
	h.renderStatus(w, r, status, "volume", h.page(r, vol.Title, view))
}

// lineItem builds a cart line from the catalogue so prices never come from the form.
func (h *Handlers) lineItem(ctx context.Context, volumeID, kind string) (cart.LineItem, catalog.Volume, error) {
	volumeID = strings.TrimSpace(volumeID)
	if volumeID == "" {
		return cart.LineItem{}, catalog.Volume{}, cart.ErrMissingVolume
	}
	vol, err := h.catalog.Volume(ctx, volumeID)
	if err != nil {
		return cart.LineItem{}, catalog.Volume{}, &lookupError{err: err}
	}
	mangaTitle := vol.MangaTitle
	if mangaTitle == "" {
		mangaTitle = vol.MangaID
	}
	return cart.LineItem{
		VolumeID:      vol.ID,
		MangaTitle:    mangaTitle,
		VolumeTitle:   vol.Title,
		Kind:          cart.ParseKind(kind),
		CoverImageURL: vol.CoverImage,
		UnitPrice:     vol.Price,
	}, vol, nil
}

// formQuantity parses the quantity field. A negative fallback makes it required.
func formQuantity(r *http.Request, fallback int) (int, error) {
	raw := strings.TrimSpace(r.FormValue("quantity"))
	if raw == "" {
		if fallback < 0 {
			return 0, cart.ErrInvalidQuantity
		}
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, cart.ErrInvalidQuantity
	}
	return n, nil
}

// inputMessage explains errors caused by the request itself.
func inputMessage(err error) string {
	var stock *stockError
	switch {
	case errors.As(err, &stock):
		return stock.Error()
	case errors.Is(err, cart.ErrInvalidQuantity):
		return messageInvalidQuantity
	case errors.Is(err, cart.ErrMissingVolume):
		return messageMissingVolume
	case errors.Is(err, catalog.ErrNotFound):
		return "Volume not found."
	}
	return ""
}

func cartErrorStatus(err error) int {
	switch {
	case errors.As(err, new(*stockError)):
		return http.StatusConflict
	case errors.Is(err, cart.ErrInvalidQuantity), errors.Is(err, cart.ErrMissingVolume):
		return http.StatusBadRequest
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}
