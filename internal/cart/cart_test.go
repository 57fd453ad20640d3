package cart

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

func laptop(id string, priceCents int64, stock int) ProductSnapshot {
	return ProductSnapshot{
		ID:         id,
		Name:       "Laptop " + id,
		Brand:      "Acme",
		PriceCents: priceCents,
		Stock:      stock,
	}
}

func newTestCart(t *testing.T) (*Cart, *MemStore) {
	t.Helper()
	store := NewMemStore()
	return Open(context.Background(), "u1", store, zap.NewNop()), store
}

func TestAddItem_MergesDuplicates(t *testing.T) {
	c, _ := newTestCart(t)
	ctx := context.Background()

	if err := c.AddItem(ctx, laptop("p1", 1000, 5), 2); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := c.AddItem(ctx, laptop("p1", 1000, 5), 3); err != nil {
		t.Fatalf("second add: %v", err)
	}

	items := c.Items()
	if len(items) != 1 {
		t.Fatalf("entries = %d, want 1", len(items))
	}
	if items[0].Quantity != 5 {
		t.Fatalf("quantity = %d, want 5", items[0].Quantity)
	}
}

func TestAddItem_RejectsBeyondStock(t *testing.T) {
	c, _ := newTestCart(t)
	ctx := context.Background()

	if err := c.AddItem(ctx, laptop("p1", 1000, 5), 4); err != nil {
		t.Fatalf("add: %v", err)
	}

	err := c.AddItem(ctx, laptop("p1", 1000, 5), 2)
	var stockErr *StockExceededError
	if !errors.As(err, &stockErr) {
		t.Fatalf("err = %v, want StockExceededError", err)
	}
	if stockErr.Ceiling != 5 {
		t.Fatalf("ceiling = %d, want 5", stockErr.Ceiling)
	}

	// No clamp: quantity unchanged.
	if got := c.Items()[0].Quantity; got != 4 {
		t.Fatalf("quantity after reject = %d, want 4", got)
	}
}

func TestAddItem_RejectsNewEntryBeyondStock(t *testing.T) {
	c, _ := newTestCart(t)

	err := c.AddItem(context.Background(), laptop("p1", 1000, 3), 4)
	var stockErr *StockExceededError
	if !errors.As(err, &stockErr) {
		t.Fatalf("err = %v, want StockExceededError", err)
	}
	if len(c.Items()) != 0 {
		t.Fatal("rejected add must not append an entry")
	}
}

func TestAddItem_RefreshesSnapshotOnMerge(t *testing.T) {
	c, _ := newTestCart(t)
	ctx := context.Background()

	if err := c.AddItem(ctx, laptop("p1", 1000, 5), 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	// Price and stock moved since the first add.
	if err := c.AddItem(ctx, laptop("p1", 900, 10), 1); err != nil {
		t.Fatalf("add: %v", err)
	}

	e := c.Items()[0]
	if e.Product.PriceCents != 900 || e.Product.Stock != 10 {
		t.Fatalf("snapshot not refreshed: %+v", e.Product)
	}
}

func TestAddItem_BadQuantity(t *testing.T) {
	c, _ := newTestCart(t)

	if err := c.AddItem(context.Background(), laptop("p1", 1000, 5), 0); err == nil {
		t.Fatal("quantity 0 must be rejected")
	}
}

func TestUpdateQuantity(t *testing.T) {
	c, _ := newTestCart(t)
	ctx := context.Background()

	if err := c.AddItem(ctx, laptop("p1", 1000, 5), 2); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := c.UpdateQuantity(ctx, "p1", 4); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := c.Items()[0].Quantity; got != 4 {
		t.Fatalf("quantity = %d, want 4", got)
	}

	// Beyond stock: rejected, unchanged.
	err := c.UpdateQuantity(ctx, "p1", 6)
	var stockErr *StockExceededError
	if !errors.As(err, &stockErr) {
		t.Fatalf("err = %v, want StockExceededError", err)
	}
	if got := c.Items()[0].Quantity; got != 4 {
		t.Fatalf("quantity after reject = %d, want 4", got)
	}

	// Absent product: no-op, no error.
	if err := c.UpdateQuantity(ctx, "ghost", 2); err != nil {
		t.Fatalf("absent update: %v", err)
	}

	// Below 1 removes the entry.
	if err := c.UpdateQuantity(ctx, "p1", 0); err != nil {
		t.Fatalf("zero update: %v", err)
	}
	if len(c.Items()) != 0 {
		t.Fatal("quantity 0 must remove the entry")
	}
}

func TestRemoveItem_Idempotent(t *testing.T) {
	c, _ := newTestCart(t)
	ctx := context.Background()

	c.RemoveItem(ctx, "ghost") // empty cart, absent id: fine

	if err := c.AddItem(ctx, laptop("p1", 1000, 5), 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	c.RemoveItem(ctx, "p1")
	c.RemoveItem(ctx, "p1")

	if len(c.Items()) != 0 {
		t.Fatal("entry survived removal")
	}
}

func TestDerivedViews(t *testing.T) {
	c, _ := newTestCart(t)
	ctx := context.Background()

	if err := c.AddItem(ctx, laptop("p1", 1000, 5), 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := c.AddItem(ctx, laptop("p2", 500, 5), 1); err != nil {
		t.Fatalf("add: %v", err)
	}

	if got := c.TotalCents(); got != 2500 {
		t.Fatalf("TotalCents = %d, want 2500", got)
	}
	if got := c.ItemCount(); got != 3 {
		t.Fatalf("ItemCount = %d, want 3", got)
	}
}

func TestClear_ResetsFully(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	c := Open(ctx, "u1", store, zap.NewNop())

	if err := c.AddItem(ctx, laptop("p1", 1000, 5), 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	c.Clear(ctx)

	if c.ItemCount() != 0 || c.TotalCents() != 0 {
		t.Fatal("clear left state behind")
	}

	// The durable snapshot is gone too.
	entries, err := store.Load(ctx, "u1")
	if err != nil {
		t.Fatalf("load after clear: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("persisted entries after clear = %d, want 0", len(entries))
	}
}

func TestInvariants_AcrossMutationSequence(t *testing.T) {
	c, _ := newTestCart(t)
	ctx := context.Background()

	ops := []func(){
		func() { _ = c.AddItem(ctx, laptop("a", 100, 3), 1) },
		func() { _ = c.AddItem(ctx, laptop("b", 200, 2), 2) },
		func() { _ = c.AddItem(ctx, laptop("a", 100, 3), 5) }, // reject
		func() { _ = c.UpdateQuantity(ctx, "b", 1) },
		func() { _ = c.AddItem(ctx, laptop("a", 90, 4), 3) },
		func() { c.RemoveItem(ctx, "b") },
		func() { _ = c.UpdateQuantity(ctx, "a", 99) }, // reject
	}

	for i, op := range ops {
		op()

		seen := map[string]bool{}
		for _, e := range c.Items() {
			if e.Quantity < 1 || e.Quantity > e.Product.Stock {
				t.Fatalf("after op %d: quantity %d outside 1..%d for %s",
					i, e.Quantity, e.Product.Stock, e.Product.ID)
			}
			if seen[e.Product.ID] {
				t.Fatalf("after op %d: duplicate entry for %s", i, e.Product.ID)
			}
			seen[e.Product.ID] = true
		}
	}
}

func TestOpen_RehydratesFromStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	c := Open(ctx, "u1", store, zap.NewNop())
	if err := c.AddItem(ctx, laptop("p1", 1000, 5), 2); err != nil {
		t.Fatalf("add: %v", err)
	}

	// Fresh container over the same store sees the persisted entries.
	c2 := Open(ctx, "u1", store, zap.NewNop())
	items := c2.Items()
	if len(items) != 1 || items[0].Product.ID != "p1" || items[0].Quantity != 2 {
		t.Fatalf("rehydrated items = %+v", items)
	}
}

func TestOpen_CorruptSnapshotStartsEmpty(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	store.PutRaw("u1", []byte(`{"v":1,"items":[{`))

	c := Open(ctx, "u1", store, zap.NewNop())
	if len(c.Items()) != 0 {
		t.Fatal("corrupt snapshot must yield an empty cart")
	}

	// The corrupt record was discarded on load.
	entries, err := store.Load(ctx, "u1")
	if err != nil || entries != nil {
		t.Fatalf("Load after discard = (%v, %v), want (nil, nil)", entries, err)
	}
}

func TestOpen_StoreFailureStartsEmpty(t *testing.T) {
	c := Open(context.Background(), "u1", failingStore{}, zap.NewNop())
	if len(c.Items()) != 0 {
		t.Fatal("unreadable store must yield an empty cart")
	}

	// Mutations still work; the failed write is swallowed.
	if err := c.AddItem(context.Background(), laptop("p1", 1000, 5), 1); err != nil {
		t.Fatalf("add on failing store: %v", err)
	}
	if c.ItemCount() != 1 {
		t.Fatal("in-memory state must apply even when the write fails")
	}
}

type failingStore struct{}

func (failingStore) Load(context.Context, string) ([]Entry, error) {
	return nil, errors.New("disk on fire")
}
func (failingStore) Save(context.Context, string, []Entry) error { return errors.New("disk on fire") }
func (failingStore) Delete(context.Context, string) error        { return errors.New("disk on fire") }
func (failingStore) Ping(context.Context) error                  { return errors.New("disk on fire") }
