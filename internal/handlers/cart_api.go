package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/NaveenV-27/MangaKart-ui/internal/cart"
	"github.com/NaveenV-27/MangaKart-ui/internal/platform/httpx"
)

const maxAPIBody = 64 << 10

type cartResponse struct {
	Items       []cart.LineItem `json:"items"`
	TotalAmount json.Number     `json:"total_amount"`
	TotalCount  int             `json:"total_count"`
	Message     string          `json:"message,omitempty"`
	Error       string          `json:"error,omitempty"`
}

func newCartResponse(state cart.State) cartResponse {
	items := state.Items
	if items == nil {
		items = []cart.LineItem{}
	}
	return cartResponse{
		Items:       items,
		TotalAmount: json.Number(state.TotalAmount.StringFixed(2)),
		TotalCount:  state.TotalCount,
		Message:     state.Message,
		Error:       state.Error,
	}
}

type addItemRequest struct {
	VolumeID string `json:"volume_id"`
	Type     string `json:"type"`
	Quantity *int   `json:"quantity"`
}

type updateItemRequest struct {
	Type     string `json:"type"`
	Quantity *int   `json:"quantity"`
}

// APIGetCart returns the session's cart after refreshing it from the backend.
func (h *Handlers) APIGetCart(w http.ResponseWriter, r *http.Request) {
	store, ok := h.apiStore(w, r)
	if !ok {
		return
	}
	if err := store.FetchCart(r.Context()); err != nil {
		h.apiFailure(w, r, store, err, cart.FailedFetch)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newCartResponse(store.State()))
}

// APIAddItem adds a catalogue volume to the cart.
func (h *Handlers) APIAddItem(w http.ResponseWriter, r *http.Request) {
	store, ok := h.apiStore(w, r)
	if !ok {
		return
	}
	var req addItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	ctx := r.Context()
	item, vol, err := h.lineItem(ctx, req.VolumeID, req.Type)
	if err == nil && store.State().QuantityOf(item.VolumeID, item.Kind)+quantity > vol.Stock {
		err = &stockError{stock: vol.Stock}
	}
	if err == nil {
		err = store.AddItem(ctx, item, quantity)
	}
	if err != nil {
		h.apiFailure(w, r, store, err, cart.FailedAdd)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newCartResponse(store.State()))
}

// APIUpdateItem sets the quantity of a line item; zero removes it.
func (h *Handlers) APIUpdateItem(w http.ResponseWriter, r *http.Request) {
	store, ok := h.apiStore(w, r)
	if !ok {
		return
	}
	var req updateItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Quantity == nil {
		h.apiFailure(w, r, store, cart.ErrInvalidQuantity, cart.FailedUpdate)
		return
	}
	volumeID := chi.URLParam(r, "volumeID")
	if err := store.UpdateQuantity(r.Context(), volumeID, cart.ParseKind(req.Type), *req.Quantity); err != nil {
		h.apiFailure(w, r, store, err, cart.FailedUpdate)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newCartResponse(store.State()))
}

// APIRemoveItem drops a line item. ?type= selects chapter items.
func (h *Handlers) APIRemoveItem(w http.ResponseWriter, r *http.Request) {
	store, ok := h.apiStore(w, r)
	if !ok {
		return
	}
	volumeID := chi.URLParam(r, "volumeID")
	if err := store.RemoveItem(r.Context(), volumeID, cart.ParseKind(r.URL.Query().Get("type"))); err != nil {
		h.apiFailure(w, r, store, err, cart.FailedRemove)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newCartResponse(store.State()))
}

// APIClearCart empties the cart.
func (h *Handlers) APIClearCart(w http.ResponseWriter, r *http.Request) {
	store, ok := h.apiStore(w, r)
	if !ok {
		return
	}
	if err := store.ClearCart(r.Context()); err != nil {
		h.apiFailure(w, r, store, err, cart.FailedClear)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newCartResponse(store.State()))
}

func (h *Handlers) apiStore(w http.ResponseWriter, r *http.Request) (*cart.Store, bool) {
	store := h.store(r)
	if store == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", messageSignInRequired, http.StatusUnauthorized))
		return nil, false
	}
	return store, true
}

// apiFailure maps a cart error onto the JSON error envelope. The cart as it
// stands is attached so clients can keep rendering the preserved items.
// fallback is the operation's message for when the store recorded none.
func (h *Handlers) apiFailure(w http.ResponseWriter, r *http.Request, store *cart.Store, err error, fallback string) {
	state := newCartResponse(store.State())
	details := map[string]any{"cart": state}
	if msg := inputMessage(err); msg != "" {
		code := "invalid_request"
		status := cartErrorStatus(err)
		switch status {
		case http.StatusNotFound:
			code = "not_found"
		case http.StatusConflict:
			code = "insufficient_stock"
		}
		httpx.WriteError(r.Context(), w, httpx.NewError(code, msg, status).WithDetails(details))
		return
	}
	h.log(r).Warn("cart api call failed", zap.String("path", r.URL.Path), zap.Error(err))
	message := state.Error
	switch {
	case errors.As(err, new(*lookupError)):
		message = messageVolumeLookup
	case message == "":
		message = fallback
	}
	httpx.WriteError(r.Context(), w, httpx.NewError("cart_failed", message, http.StatusBadGateway).WithDetails(details))
}

// decodeJSON reads a single JSON object from the body, writing the error
// response itself when the request is unusable.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		httpx.WriteError(r.Context(), w, httpx.NewError("unsupported_media_type", "Content-Type must be application/json", http.StatusUnsupportedMediaType))
		return false
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxAPIBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		msg := "request body must be a JSON object"
		if errors.Is(err, io.EOF) {
			msg = "request body is empty"
		} else if strings.HasPrefix(err.Error(), "json: unknown field") {
			msg = err.Error()
		}
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", msg, http.StatusBadRequest))
		return false
	}
	return true
}
