package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type MemStore struct {
	mu      sync.RWMutex
	m       map[string]Laptop
	reviews map[string][]Review
}

func NewMemStore() *MemStore {
	s := &MemStore{
		m:       make(map[string]Laptop),
		reviews: make(map[string][]Review),
	}

	now := time.Now().UTC()
	for _, l := range []Laptop{
		{ID: "lp1", Name: "ThinkPad X1 Carbon", Brand: "Lenovo", PriceCents: 189900, Stock: 12, CreatedAt: now},
		{ID: "lp2", Name: "MacBook Air M3", Brand: "Apple", PriceCents: 129900, Stock: 8, CreatedAt: now},
		{ID: "lp3", Name: "XPS 13", Brand: "Dell", PriceCents: 119900, Stock: 5, CreatedAt: now},
		{ID: "lp4", Name: "ROG Zephyrus G14", Brand: "Asus", PriceCents: 164900, Stock: 3, CreatedAt: now},
	} {
		s.m[l.ID] = l
	}
	return s
}

func (s *MemStore) Ping(ctx context.Context) error { return nil }

func (s *MemStore) List(ctx context.Context, f ListFilter) ([]Laptop, int, error) {
	f = f.normalized()

	s.mu.RLock()
	matched := make([]Laptop, 0, len(s.m))
	for _, l := range s.m {
		if matches(l, f) {
			matched = append(matched, l)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := len(matched)
	start := (f.Page - 1) * f.PerPage
	if start >= total {
		return []Laptop{}, total, nil
	}
	end := start + f.PerPage
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func matches(l Laptop, f ListFilter) bool {
	if f.Brand != "" && !strings.EqualFold(l.Brand, f.Brand) {
		return false
	}
	if f.Query != "" && !strings.Contains(strings.ToLower(l.Name), strings.ToLower(f.Query)) {
		return false
	}
	if f.MinPriceCents > 0 && l.PriceCents < f.MinPriceCents {
		return false
	}
	if f.MaxPriceCents > 0 && l.PriceCents > f.MaxPriceCents {
		return false
	}
	return true
}

func (s *MemStore) Get(ctx context.Context, id string) (Laptop, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.m[id]
	return l, ok, nil
}

func (s *MemStore) Create(ctx context.Context, l Laptop) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.m[l.ID]; ok {
		return ErrExists
	}
	s.m[l.ID] = l
	return nil
}

func (s *MemStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.m[id]; !ok {
		return false, nil
	}
	delete(s.m, id)
	delete(s.reviews, id)
	return true, nil
}

func (s *MemStore) Reserve(ctx context.Context, id string, qty int) (Laptop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.m[id]
	if !ok {
		return Laptop{}, ErrNotFound
	}
	if l.Stock < qty {
		return Laptop{}, ErrInsufficientStock
	}

	l.Stock -= qty
	s.m[id] = l
	return l, nil
}

func (s *MemStore) ListReviews(ctx context.Context, productID string) ([]Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Review, len(s.reviews[productID]))
	copy(out, s.reviews[productID])
	return out, nil
}

func (s *MemStore) UpsertReview(ctx context.Context, rev Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.m[rev.ProductID]; !ok {
		return ErrNotFound
	}

	revs := s.reviews[rev.ProductID]
	for i, existing := range revs {
		if existing.UserID == rev.UserID {
			rev.ID = existing.ID
			revs[i] = rev
			return nil
		}
	}
	s.reviews[rev.ProductID] = append(revs, rev)
	return nil
}
