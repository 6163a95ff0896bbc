package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/NaveenV-27/MangaKart-ui/internal/backend"
)

var (
	// ErrInvalidQuantity is returned for quantities the operation cannot accept.
	ErrInvalidQuantity = errors.New("cart: invalid quantity")
	// ErrMissingVolume is returned when an item has no volume id.
	ErrMissingVolume = errors.New("cart: volume id is required")
	// ErrNoGateway is returned when the store has no backend gateway.
	ErrNoGateway = errors.New("cart: gateway not configured")
)

// Ordering decides which backend response wins when mutations overlap.
type Ordering string

const (
	// OrderingLastRequest applies a response only if no later-issued operation
	// has already been applied.
	OrderingLastRequest Ordering = "last-request"
	// OrderingLastResponse applies every response in arrival order.
	OrderingLastResponse Ordering = "last-response"
)

// ParseOrdering validates an ordering policy name.
func ParseOrdering(raw string) (Ordering, error) {
	switch Ordering(strings.ToLower(strings.TrimSpace(raw))) {
	case "", OrderingLastRequest:
		return OrderingLastRequest, nil
	case OrderingLastResponse:
		return OrderingLastResponse, nil
	default:
		return "", fmt.Errorf("cart: unknown ordering %q", raw)
	}
}

// Default user-facing messages. The Failed ones are shown when the backend
// gives no message of its own.
const (
	MessageAdded   = "Added to cart"
	MessageUpdated = "Cart updated"
	MessageRemoved = "Item removed"
	MessageCleared = "Cart cleared"

	FailedFetch  = "Failed to load cart"
	FailedAdd    = "Failed to add to cart"
	FailedUpdate = "Failed to update cart"
	FailedRemove = "Failed to remove item"
	FailedClear  = "Failed to clear cart"
)

// StoreDeps wires a Store.
type StoreDeps struct {
	Gateway  Gateway
	Ordering Ordering
	Logger   *zap.Logger
}

// Store owns one session's cart. Reads are synchronous copies; mutations call
// the gateway and replace the items with the server's list. The lock is never
// held across gateway calls.
type Store struct {
	gateway  Gateway
	ordering Ordering
	logger   *zap.Logger

	mu       sync.Mutex
	state    State
	issued   uint64
	applied  uint64
	fetching int
	subs     map[int]func(State)
	nextSub  int
}

// NewStore constructs an empty Store.
func NewStore(deps StoreDeps) *Store {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ordering := deps.Ordering
	if ordering == "" {
		ordering = OrderingLastRequest
	}
	return &Store{
		gateway:  deps.Gateway,
		ordering: ordering,
		logger:   logger,
		state:    NewState(nil),
		subs:     make(map[int]func(State)),
	}
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe registers fn to run after every settle. fn runs without the store lock
// held and must not block for long. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(State)) func() {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// FetchCart replaces the items with the server cart. Loading is set while the
// request is in flight. On failure the prior items are kept.
func (s *Store) FetchCart(ctx context.Context) error {
	return s.run(ctx, operation{
		name:     "fetch",
		fallback: FailedFetch,
		loading:  true,
		call: func(ctx context.Context, g Gateway) ([]LineItem, error) {
			return g.Fetch(ctx)
		},
	})
}

// AddItem asks the server to add quantity units of item.
func (s *Store) AddItem(ctx context.Context, item LineItem, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if strings.TrimSpace(item.VolumeID) == "" {
		return ErrMissingVolume
	}
	item.Kind = ParseKind(string(item.Kind))
	return s.run(ctx, operation{
		name:     "add",
		fallback: FailedAdd,
		message:  MessageAdded,
		call: func(ctx context.Context, g Gateway) ([]LineItem, error) {
			return g.Add(ctx, item, quantity)
		},
	})
}

// UpdateQuantity sets the quantity of an item. Zero removes the item; the
// backend never receives an update with quantity 0.
func (s *Store) UpdateQuantity(ctx context.Context, volumeID string, kind Kind, quantity int) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}
	if strings.TrimSpace(volumeID) == "" {
		return ErrMissingVolume
	}
	kind = ParseKind(string(kind))
	if quantity == 0 {
		return s.RemoveItem(ctx, volumeID, kind)
	}
	return s.run(ctx, operation{
		name:     "update",
		fallback: FailedUpdate,
		message:  MessageUpdated,
		call: func(ctx context.Context, g Gateway) ([]LineItem, error) {
			return g.UpdateQuantity(ctx, volumeID, kind, quantity)
		},
	})
}

// RemoveItem removes an item whatever its quantity. The item need not be in
// the local cart; backend complaints are surfaced in Error and returned.
func (s *Store) RemoveItem(ctx context.Context, volumeID string, kind Kind) error {
	if strings.TrimSpace(volumeID) == "" {
		return ErrMissingVolume
	}
	kind = ParseKind(string(kind))
	return s.run(ctx, operation{
		name:     "remove",
		fallback: FailedRemove,
		message:  MessageRemoved,
		call: func(ctx context.Context, g Gateway) ([]LineItem, error) {
			return g.Remove(ctx, volumeID, kind)
		},
	})
}

// ClearCart empties the cart server-side and locally.
func (s *Store) ClearCart(ctx context.Context) error {
	return s.run(ctx, operation{
		name:     "clear",
		fallback: FailedClear,
		message:  MessageCleared,
		call: func(ctx context.Context, g Gateway) ([]LineItem, error) {
			return g.Clear(ctx)
		},
	})
}

// SetQuantity reconciles the cart towards desired units of item, issuing at most
// one backend call: add when absent, update when different, remove at zero.
func (s *Store) SetQuantity(ctx context.Context, item LineItem, desired int) error {
	if desired < 0 {
		return ErrInvalidQuantity
	}
	if strings.TrimSpace(item.VolumeID) == "" {
		return ErrMissingVolume
	}
	item.Kind = ParseKind(string(item.Kind))
	current := s.State().QuantityOf(item.VolumeID, item.Kind)

	switch {
	case desired == current:
		return nil
	case current == 0:
		return s.AddItem(ctx, item, desired)
	case desired == 0:
		return s.RemoveItem(ctx, item.VolumeID, item.Kind)
	default:
		return s.UpdateQuantity(ctx, item.VolumeID, item.Kind, desired)
	}
}

// Reset clears the cart locally without calling the backend, as on logout.
// Responses to operations issued before Reset are discarded.
func (s *Store) Reset() {
	s.mu.Lock()
	s.state = NewState(nil)
	s.applied = s.issued
	snapshot, subs := s.state.clone(), s.subscribers()
	s.mu.Unlock()
	notify(subs, snapshot)
}

// Hydrate seeds the items from a snapshot. It only takes effect before any
// backend response has been applied; the first fetch overrides it.
func (s *Store) Hydrate(items []LineItem) bool {
	s.mu.Lock()
	if s.applied != 0 || !s.state.Empty() || len(items) == 0 {
		s.mu.Unlock()
		return false
	}
	loading := s.state.Loading
	s.state = NewState(items)
	s.state.Loading = loading
	snapshot, subs := s.state.clone(), s.subscribers()
	s.mu.Unlock()
	notify(subs, snapshot)
	return true
}

type operation struct {
	name     string
	fallback string
	message  string
	loading  bool
	call     func(context.Context, Gateway) ([]LineItem, error)
}

func (s *Store) run(ctx context.Context, op operation) error {
	if s.gateway == nil {
		return ErrNoGateway
	}

	s.mu.Lock()
	s.issued++
	seq := s.issued
	s.state.Error = ""
	s.state.Message = ""
	if op.loading {
		s.fetching++
		s.state.Loading = true
	}
	s.mu.Unlock()

	items, err := op.call(ctx, s.gateway)

	s.mu.Lock()
	if op.loading {
		s.fetching--
		s.state.Loading = s.fetching > 0
	}
	stale := s.ordering == OrderingLastRequest && seq <= s.applied
	switch {
	case stale:
		s.logger.Debug("discarding stale cart response",
			zap.String("op", op.name),
			zap.Uint64("seq", seq),
			zap.Uint64("applied", s.applied),
		)
	case err != nil:
		s.state.Error = backend.Message(err, op.fallback)
	default:
		s.state.Items = cloneItems(items)
		s.state.TotalAmount, s.state.TotalCount = ComputeTotals(s.state.Items)
		s.state.Message = op.message
		s.applied = seq
	}
	snapshot, subs := s.state.clone(), s.subscribers()
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("cart operation failed", zap.String("op", op.name), zap.Error(err))
	}
	notify(subs, snapshot)
	return err
}

// subscribers must be called with s.mu held.
func (s *Store) subscribers() []func(State) {
	out := make([]func(State), 0, len(s.subs))
	for id := 0; id < s.nextSub; id++ {
		if fn, ok := s.subs[id]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func notify(subs []func(State), state State) {
	for _, fn := range subs {
		fn(state.clone())
	}
}
