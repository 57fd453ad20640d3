// Package catalog serves the laptop catalog: browsing with filters and
// pagination, per-product reviews, and checkout-time stock reservation.
package catalog

import (
	"context"
	"errors"
	"time"
)

type Laptop struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Brand       string    `json:"brand"`
	PriceCents  int64     `json:"price_cents"`
	Stock       int       `json:"stock"`
	Description string    `json:"description,omitempty"`
	Images      []string  `json:"images,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Review struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	UserID    string    `json:"user_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ListFilter narrows and pages the catalog listing. Zero price bounds
// mean unbounded.
type ListFilter struct {
	Brand         string
	Query         string
	MinPriceCents int64
	MaxPriceCents int64
	Page          int
	PerPage       int
}

const (
	defaultPerPage = 12
	maxPerPage     = 50
)

func (f ListFilter) normalized() ListFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = defaultPerPage
	}
	if f.PerPage > maxPerPage {
		f.PerPage = maxPerPage
	}
	return f
}

var (
	ErrNotFound          = errors.New("product not found")
	ErrExists            = errors.New("product already exists")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type Store interface {
	// List returns the requested page in stable id order plus the total
	// number of matches, so the storefront can render a pager.
	List(ctx context.Context, f ListFilter) ([]Laptop, int, error)
	Get(ctx context.Context, id string) (Laptop, bool, error)
	Create(ctx context.Context, l Laptop) error
	Delete(ctx context.Context, id string) (bool, error)

	// Reserve atomically decrements stock for a checkout line and returns
	// the product as of the decrement.
	Reserve(ctx context.Context, id string, qty int) (Laptop, error)

	ListReviews(ctx context.Context, productID string) ([]Review, error)
	// UpsertReview keeps at most one review per user per product,
	// replacing on resubmission.
	UpsertReview(ctx context.Context, rev Review) error

	Ping(ctx context.Context) error
}
