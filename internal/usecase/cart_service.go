package usecase

import (
	"log"
	"sync"

	"github.com/eugeneleychenko/vyb-marine-demo/internal/domain"
	"github.com/eugeneleychenko/vyb-marine-demo/internal/eventbus"
	"github.com/shopspring/decimal"
)

// CartService is the single source of truth for the cart: an ordered
// collection of line items, at most one per SKU, owned for the lifetime of
// the session. Every mutation is an atomic read-modify-write under the
// mutex so interleaved handlers (a voice tool call and a manual edit) can
// never lose updates.
//
// It subscribes to the cart add topic so the voice assistant and the
// catalog surfaces can add items without holding a reference to it; adds
// arriving that way also raise the cart-opened signal so the user sees the
// result immediately.
type CartService struct {
	mu    sync.Mutex
	items []domain.CartLineItem
	bus   *eventbus.Bus
}

// NewCartService creates the cart and registers its bus subscriptions
func NewCartService(bus *eventbus.Bus) *CartService {
	s := &CartService{bus: bus}

	bus.Subscribe(eventbus.TopicCartAddItem, func(ev eventbus.Event) {
		item, ok := ev.Payload.(domain.CartAddItem)
		if !ok {
			log.Printf("[CART] Ignoring add event with unexpected payload %T", ev.Payload)
			return
		}
		s.Add(item.Product, item.Quantity)
		bus.Publish(eventbus.TopicCartOpened, nil)
	})

	return s
}

// Add merges the product into an existing line item, or appends a new one
// at the end of the display order. Quantities below 1 are treated as 1.
func (s *CartService) Add(product domain.Product, quantity int) {
	if quantity < 1 {
		quantity = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].Product.SKU == product.SKU {
			s.items[i].Quantity += quantity
			return
		}
	}

	s.items = append(s.items, domain.CartLineItem{Product: product, Quantity: quantity})
}

// Remove deletes the line item for the SKU. Removing an absent SKU is a
// no-op, not an error.
func (s *CartService) Remove(sku string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].Product.SKU == sku {
			s.items = append(s.items[:i:i], s.items[i+1:]...)
			return
		}
	}
}

// UpdateQuantity sets the quantity for a line item. Values below 1 leave
// the item unchanged: removal is the only way to reach zero.
func (s *CartService) UpdateQuantity(sku string, quantity int) {
	if quantity < 1 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].Product.SKU == sku {
			s.items[i].Quantity = quantity
			return
		}
	}
}

// Items returns a snapshot of the cart in display order
func (s *CartService) Items() []domain.CartLineItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.CartLineItem, len(s.items))
	copy(out, s.items)
	return out
}

// Total sums price times quantity over all line items. Prices that failed
// normalization are zero and contribute nothing.
func (s *CartService) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero
	for _, item := range s.items {
		total = total.Add(item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// ItemCount sums quantities across line items, for the badge indicator
func (s *CartService) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, item := range s.items {
		count += item.Quantity
	}
	return count
}
