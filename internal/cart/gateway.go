package cart

import (
	"context"
	"encoding/json"

	"github.com/NaveenV-27/MangaKart-ui/internal/backend"
)

// Backend cart endpoints.
const (
	EndpointGetCart        = "/api/cart/get_cart"
	EndpointAddItem        = "/api/cart/add_item"
	EndpointUpdateQuantity = "/api/cart/update_quantity"
	EndpointRemoveItem     = "/api/cart/remove_item"
	EndpointClearCart      = "/api/cart/clear_cart"
)

// Gateway persists cart mutations server-side and returns the server's
// authoritative item list after each one.
type Gateway interface {
	Fetch(ctx context.Context) ([]LineItem, error)
	Add(ctx context.Context, item LineItem, quantity int) ([]LineItem, error)
	UpdateQuantity(ctx context.Context, volumeID string, kind Kind, quantity int) ([]LineItem, error)
	Remove(ctx context.Context, volumeID string, kind Kind) ([]LineItem, error)
	Clear(ctx context.Context) ([]LineItem, error)
}

// Caller is the subset of backend.Client used by HTTPGateway.
type Caller interface {
	Call(ctx context.Context, endpoint string, body any, opts ...backend.RequestOption) (*backend.Envelope, error)
}

// HTTPGateway implements Gateway over the backend's JSON cart endpoints.
type HTTPGateway struct {
	client Caller
}

// NewHTTPGateway wraps a backend caller.
func NewHTTPGateway(client Caller) *HTTPGateway {
	return &HTTPGateway{client: client}
}

type addRequest struct {
	VolumeID    string      `json:"volume_id"`
	MangaTitle  string      `json:"manga_title"`
	VolumeTitle string      `json:"volume_title"`
	Type        Kind        `json:"type"`
	CoverImage  string      `json:"cover_image"`
	Price       json.Number `json:"price"`
	Quantity    int         `json:"quantity"`
}

type updateRequest struct {
	VolumeID string `json:"volume_id"`
	Type     Kind   `json:"type"`
	Quantity int    `json:"quantity"`
}

type removeRequest struct {
	VolumeID string `json:"volume_id"`
	Type     Kind   `json:"type"`
}

func (g *HTTPGateway) Fetch(ctx context.Context) ([]LineItem, error) {
	return g.call(ctx, EndpointGetCart, struct{}{})
}

func (g *HTTPGateway) Add(ctx context.Context, item LineItem, quantity int) ([]LineItem, error) {
	req := addRequest{
		VolumeID:    item.VolumeID,
		MangaTitle:  item.MangaTitle,
		VolumeTitle: item.VolumeTitle,
		Type:        ParseKind(string(item.Kind)),
		CoverImage:  item.CoverImageURL,
		Price:       json.Number(item.UnitPrice.String()),
		Quantity:    quantity,
	}
	return g.call(ctx, EndpointAddItem, req, backend.WithIdempotencyKey())
}

func (g *HTTPGateway) UpdateQuantity(ctx context.Context, volumeID string, kind Kind, quantity int) ([]LineItem, error) {
	return g.call(ctx, EndpointUpdateQuantity, updateRequest{VolumeID: volumeID, Type: kind, Quantity: quantity})
}

func (g *HTTPGateway) Remove(ctx context.Context, volumeID string, kind Kind) ([]LineItem, error) {
	return g.call(ctx, EndpointRemoveItem, removeRequest{VolumeID: volumeID, Type: kind})
}

func (g *HTTPGateway) Clear(ctx context.Context) ([]LineItem, error) {
	return g.call(ctx, EndpointClearCart, struct{}{})
}

func (g *HTTPGateway) call(ctx context.Context, endpoint string, body any, opts ...backend.RequestOption) ([]LineItem, error) {
	if g == nil || g.client == nil {
		return nil, backend.ErrNotConfigured
	}
	env, err := g.client.Call(ctx, endpoint, body, opts...)
	if err != nil {
		return nil, err
	}
	return Normalize(env.Data), nil
}
