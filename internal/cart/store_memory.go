package cart

import (
	"context"
	"sync"
)

// MemStore keeps encoded snapshots in memory. It runs the same codec as
// the durable stores so tests cover the round trip, and it is the default
// when no DATABASE_URL or CART_DIR is configured.
type MemStore struct {
	mu sync.RWMutex
	m  map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{m: make(map[string][]byte)}
}

func (s *MemStore) Ping(ctx context.Context) error { return nil }

func (s *MemStore) Load(ctx context.Context, owner string) ([]Entry, error) {
	s.mu.RLock()
	raw, ok := s.m[owner]
	s.mu.RUnlock()

	if !ok {
		return nil, nil
	}

	entries, err := decodeSnapshot(raw)
	if err != nil {
		s.mu.Lock()
		delete(s.m, owner)
		s.mu.Unlock()
		return nil, err
	}
	return entries, nil
}

func (s *MemStore) Save(ctx context.Context, owner string, entries []Entry) error {
	raw, err := encodeSnapshot(entries)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[owner] = raw
	return nil
}

func (s *MemStore) Delete(ctx context.Context, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, owner)
	return nil
}

// PutRaw stores an arbitrary payload, bypassing the codec. Test hook for
// corrupt-snapshot recovery.
func (s *MemStore) PutRaw(owner string, raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[owner] = raw
}
