// Package order implements checkout submission and order tracking.
// Payment is simulated: every order is cash on delivery.
package order

import (
	"context"
	"time"
)

type Item struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Qty       int    `json:"qty"`
	UnitCents int64  `json:"unit_cents"`
}

type Address struct {
	Line1      string `json:"line1"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code"`
	Phone      string `json:"phone"`
}

const (
	StatusNew       = "NEW"
	StatusShipped   = "SHIPPED"
	StatusDelivered = "DELIVERED"
	StatusCancelled = "CANCELLED"

	PaymentCOD = "COD"
)

// validTransitions pins the tracking lifecycle: orders only move
// forward, and only open orders can be cancelled.
var validTransitions = map[string][]string{
	StatusNew:     {StatusShipped, StatusCancelled},
	StatusShipped: {StatusDelivered},
}

func transitionAllowed(from, to string) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Order struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Items         []Item    `json:"items"`
	SubtotalCents int64     `json:"subtotal_cents"`
	TaxCents      int64     `json:"tax_cents"`
	ShippingCents int64     `json:"shipping_cents"`
	TotalCents    int64     `json:"total_cents"`
	PaymentMethod string    `json:"payment_method"`
	Status        string    `json:"status"`
	Address       Address   `json:"address"`
	CreatedAt     time.Time `json:"created_at"`
}

type Store interface {
	Create(ctx context.Context, o Order) error
	Get(ctx context.Context, id string) (Order, bool, error)
	// ListByUser returns the user's orders, newest first.
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	UpdateStatus(ctx context.Context, id, status string) (Order, bool, error)
	Ping(ctx context.Context) error
}
