package cart

import "github.com/shopspring/decimal"

// State is a point-in-time view of a cart. Values handed out by the Store are copies.
type State struct {
	Items       []LineItem
	TotalAmount decimal.Decimal
	TotalCount  int
	Loading     bool
	Error       string
	Message     string
}

// NewState builds a settled State from items, deriving the totals.
func NewState(items []LineItem) State {
	s := State{Items: cloneItems(items)}
	s.TotalAmount, s.TotalCount = ComputeTotals(s.Items)
	return s
}

// ComputeTotals sums unit price times quantity and the quantities themselves.
func ComputeTotals(items []LineItem) (decimal.Decimal, int) {
	amount := decimal.Zero
	count := 0
	for _, item := range items {
		amount = amount.Add(item.Subtotal())
		count += item.Quantity
	}
	return amount, count
}

// Find returns the line item for (volumeID, kind) if present.
func (s State) Find(volumeID string, kind Kind) (LineItem, bool) {
	for _, item := range s.Items {
		if item.VolumeID == volumeID && item.Kind == kind {
			return item, true
		}
	}
	return LineItem{}, false
}

// QuantityOf returns the quantity in the cart for (volumeID, kind), or 0.
func (s State) QuantityOf(volumeID string, kind Kind) int {
	item, _ := s.Find(volumeID, kind)
	return item.Quantity
}

// Empty reports whether the cart has no items.
func (s State) Empty() bool { return len(s.Items) == 0 }

func (s State) clone() State {
	out := s
	out.Items = cloneItems(s.Items)
	return out
}

func cloneItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}
