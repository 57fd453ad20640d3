package cart

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Hub hands out the single Cart instance per owner, rehydrating it from
// the store on first use. One logical owner per session keeps the
// container free of cross-request contention beyond its own mutex.
type Hub struct {
	mu    sync.Mutex
	store Store
	log   *zap.Logger
	carts map[string]*Cart
}

func NewHub(store Store, log *zap.Logger) *Hub {
	return &Hub{
		store: store,
		log:   log,
		carts: make(map[string]*Cart),
	}
}

func (h *Hub) Get(ctx context.Context, owner string) *Cart {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.carts[owner]; ok {
		return c
	}

	c := Open(ctx, owner, h.store, h.log)
	h.carts[owner] = c
	return c
}

func (h *Hub) Ping(ctx context.Context) error {
	return h.store.Ping(ctx)
}
