package order

import (
	"context"
	"database/sql"
	"time"
)

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 5 * time.Second
)

// PostgresStore persists orders over two tables:
//
//	orders(id TEXT PK, user_id, subtotal_cents, tax_cents, shipping_cents,
//	       total_cents, payment_method, status, addr_line1, addr_city,
//	       addr_region, addr_postal_code, addr_phone, created_at)
//	order_items(order_id REFERENCES orders, product_id, name, qty, unit_cents)
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return s.db.PingContext(ctx)
	})
}

func (s *PostgresStore) Create(ctx context.Context, o Order) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		_, err = tx.ExecContext(ctx, `
			INSERT INTO orders (
				id, user_id, subtotal_cents, tax_cents, shipping_cents, total_cents,
				payment_method, status,
				addr_line1, addr_city, addr_region, addr_postal_code, addr_phone,
				created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`, o.ID, o.UserID, o.SubtotalCents, o.TaxCents, o.ShippingCents, o.TotalCents,
			o.PaymentMethod, o.Status,
			o.Address.Line1, o.Address.City, o.Address.Region, o.Address.PostalCode, o.Address.Phone,
			o.CreatedAt)
		if err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO order_items (order_id, product_id, name, qty, unit_cents)
			VALUES ($1, $2, $3, $4, $5)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, it := range o.Items {
			if _, err := stmt.ExecContext(ctx, o.ID, it.ProductID, it.Name, it.Qty, it.UnitCents); err != nil {
				return err
			}
		}

		return tx.Commit()
	})
}

const orderColumns = `
	id, user_id, subtotal_cents, tax_cents, shipping_cents, total_cents,
	payment_method, status,
	addr_line1, addr_city, addr_region, addr_postal_code, addr_phone,
	created_at
`

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.UserID, &o.SubtotalCents, &o.TaxCents, &o.ShippingCents, &o.TotalCents,
		&o.PaymentMethod, &o.Status,
		&o.Address.Line1, &o.Address.City, &o.Address.Region, &o.Address.PostalCode, &o.Address.Phone,
		&o.CreatedAt,
	)
	return o, err
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Order, bool, error) {
	var (
		o     Order
		found bool
	)

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		var err error
		o, err = scanOrder(s.db.QueryRowContext(ctx,
			`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		found = true

		o.Items, err = s.loadItems(ctx, id)
		return err
	})
	if err != nil {
		return Order{}, false, err
	}
	return o, found, nil
}

func (s *PostgresStore) loadItems(ctx context.Context, orderID string) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, name, qty, unit_cents
		FROM order_items
		WHERE order_id = $1
		ORDER BY product_id ASC
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Item, 0, 8)
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.Name, &it.Qty, &it.UnitCents); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	var out []Order

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]Order, 0, 8)
		for rows.Next() {
			o, err := scanOrder(rows)
			if err != nil {
				return err
			}
			out = append(out, o)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		for i := range out {
			if out[i].Items, err = s.loadItems(ctx, out[i].ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id, status string) (Order, bool, error) {
	var (
		o     Order
		found bool
	)

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		var err error
		o, err = scanOrder(s.db.QueryRowContext(ctx, `
			UPDATE orders
			SET status = $2
			WHERE id = $1
			RETURNING `+orderColumns, id, status))
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		found = true

		o.Items, err = s.loadItems(ctx, id)
		return err
	})
	if err != nil {
		return Order{}, false, err
	}
	return o, found, nil
}

func withTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return fn(ctx)
}
