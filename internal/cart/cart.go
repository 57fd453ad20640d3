// Package cart implements the LappyShoppy shopping cart: an in-memory
// state container per owner, durable snapshots behind a Store, and the
// HTTP surface the storefront talks to.
//
// The container is the single source of truth. Two invariants hold after
// every mutation: each entry's quantity stays within 1..product stock as
// known at last write, and no two entries share a product id. Product
// data inside an entry is a point-in-time snapshot pushed in by the
// caller; it is deliberately allowed to go stale (checkout re-validates
// against the live catalog).
package cart

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

type ProductSnapshot struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Brand      string   `json:"brand,omitempty"`
	PriceCents int64    `json:"price_cents"`
	Stock      int      `json:"stock"`
	Images     []string `json:"images,omitempty"`
}

type Entry struct {
	Product  ProductSnapshot `json:"product"`
	Quantity int             `json:"quantity"`
}

// StockExceededError rejects an add/update that would push a quantity
// past the product's last-known stock. The operation leaves the cart
// untouched; callers surface the ceiling to the user.
type StockExceededError struct {
	ProductID string
	Ceiling   int
}

func (e *StockExceededError) Error() string {
	return fmt.Sprintf("cannot add more than %d items of product %s", e.Ceiling, e.ProductID)
}

var errBadQuantity = fmt.Errorf("quantity must be at least 1")

// Cart owns one user's entries. Mutations are serialized by the mutex,
// and each accepted mutation persists through the store before the next
// one can run, so durable writes land in mutation order.
type Cart struct {
	mu      sync.RWMutex
	owner   string
	entries []Entry

	store Store
	log   *zap.Logger
}

// Open rehydrates the owner's cart from the store. A missing, unreadable
// or corrupt snapshot degrades to an empty cart; it never fails.
func Open(ctx context.Context, owner string, store Store, log *zap.Logger) *Cart {
	c := &Cart{owner: owner, store: store, log: log}

	entries, err := store.Load(ctx, owner)
	if err != nil {
		log.Warn("cart snapshot unreadable, starting empty",
			zap.String("owner", owner), zap.Error(err))
		return c
	}

	c.entries = entries
	return c
}

// AddItem merges quantity into an existing entry for the same product or
// appends a new one. On merge the stored snapshot is refreshed to the one
// just supplied, keeping price and stock current. Exceeding the snapshot's
// stock rejects the whole operation, it never clamps.
func (c *Cart) AddItem(ctx context.Context, p ProductSnapshot, quantity int) error {
	if quantity < 1 {
		return errBadQuantity
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexOf(p.ID); i >= 0 {
		candidate := c.entries[i].Quantity + quantity
		if candidate > p.Stock {
			return &StockExceededError{ProductID: p.ID, Ceiling: p.Stock}
		}
		c.entries[i] = Entry{Product: p, Quantity: candidate}
		c.persist(ctx)
		return nil
	}

	if quantity > p.Stock {
		return &StockExceededError{ProductID: p.ID, Ceiling: p.Stock}
	}

	c.entries = append(c.entries, Entry{Product: p, Quantity: quantity})
	c.persist(ctx)
	return nil
}

// RemoveItem deletes the entry for productID. Absent entries are a no-op,
// not an error.
func (c *Cart) RemoveItem(ctx context.Context, productID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(productID)
	if i < 0 {
		return
	}

	c.entries = append(c.entries[:i], c.entries[i+1:]...)
	c.persist(ctx)
}

// UpdateQuantity sets the entry's quantity. A quantity below 1 removes
// the entry; an absent entry is a no-op; a quantity above the entry's
// last-known stock is rejected with the ceiling.
func (c *Cart) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	if quantity < 1 {
		c.RemoveItem(ctx, productID)
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(productID)
	if i < 0 {
		return nil
	}

	if quantity > c.entries[i].Product.Stock {
		return &StockExceededError{ProductID: productID, Ceiling: c.entries[i].Product.Stock}
	}
	if c.entries[i].Quantity == quantity {
		return nil
	}

	c.entries[i].Quantity = quantity
	c.persist(ctx)
	return nil
}

// Clear empties the cart and drops the durable snapshot.
func (c *Cart) Clear(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = nil

	if err := c.store.Delete(ctx, c.owner); err != nil {
		c.log.Warn("cart snapshot delete failed",
			zap.String("owner", c.owner), zap.Error(err))
	}
}

// Items returns a copy of the entries in insertion order.
func (c *Cart) Items() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// TotalCents is the sum of unit price times quantity over all entries.
func (c *Cart) TotalCents() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var total int64
	for _, e := range c.entries {
		total += e.Product.PriceCents * int64(e.Quantity)
	}
	return total
}

// ItemCount is the sum of quantities, not the number of entries.
func (c *Cart) ItemCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var n int
	for _, e := range c.entries {
		n += e.Quantity
	}
	return n
}

func (c *Cart) indexOf(productID string) int {
	for i, e := range c.entries {
		if e.Product.ID == productID {
			return i
		}
	}
	return -1
}

// persist writes the current entries through the store. Failures are
// logged and swallowed: durability is best effort, the in-memory state
// stays authoritative for the session. Callers hold the write lock, so
// writes cannot reorder.
func (c *Cart) persist(ctx context.Context) {
	if err := c.store.Save(ctx, c.owner, c.entries); err != nil {
		c.log.Warn("cart snapshot write failed",
			zap.String("owner", c.owner), zap.Error(err))
	}
}
