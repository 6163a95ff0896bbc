package cart

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind distinguishes purchasable units.
type Kind string

const (
	KindVolume  Kind = "volume"
	KindChapter Kind = "chapter"
)

// ParseKind maps free-form input onto a Kind. Anything unrecognised is a volume.
func ParseKind(raw string) Kind {
	if strings.EqualFold(strings.TrimSpace(raw), string(KindChapter)) {
		return KindChapter
	}
	return KindVolume
}

// Key identifies a line item. A cart holds at most one item per Key.
type Key struct {
	VolumeID string
	Kind     Kind
}

// LineItem is one row of the cart.
type LineItem struct {
	VolumeID      string
	MangaTitle    string
	VolumeTitle   string
	Kind          Kind
	CoverImageURL string
	UnitPrice     decimal.Decimal
	Quantity      int
}

// Key returns the identity of the item.
func (i LineItem) Key() Key {
	return Key{VolumeID: i.VolumeID, Kind: i.Kind}
}

// Subtotal is UnitPrice multiplied by Quantity.
func (i LineItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type wireItem struct {
	VolumeID    string      `json:"volume_id"`
	MangaTitle  string      `json:"manga_title"`
	VolumeTitle string      `json:"volume_title"`
	Type        Kind        `json:"type"`
	CoverImage  string      `json:"cover_image"`
	Price       json.Number `json:"price"`
	Quantity    int         `json:"quantity"`
}

// MarshalJSON renders the item in the backend's snake_case shape with a numeric price.
func (i LineItem) MarshalJSON() ([]byte, error) {
	kind := i.Kind
	if kind == "" {
		kind = KindVolume
	}
	return json.Marshal(wireItem{
		VolumeID:    i.VolumeID,
		MangaTitle:  i.MangaTitle,
		VolumeTitle: i.VolumeTitle,
		Type:        kind,
		CoverImage:  i.CoverImageURL,
		Price:       json.Number(i.UnitPrice.String()),
		Quantity:    i.Quantity,
	})
}

// UnmarshalJSON accepts the same tolerant shapes as server responses.
func (i *LineItem) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*i = itemFromFields(fields)
	return nil
}
