package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 3 * time.Second
	pgUniqueCode = "23505"
)

// PostgresStore backs the catalog with two tables:
//
//	products(id TEXT PK, name, brand, price_cents BIGINT, stock INT,
//	         description TEXT, images JSONB, created_at TIMESTAMPTZ)
//	reviews(id TEXT PK, product_id TEXT REFERENCES products ON DELETE CASCADE,
//	        user_id TEXT, rating INT, comment TEXT, created_at TIMESTAMPTZ,
//	        UNIQUE (product_id, user_id))
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

func (s *PostgresStore) List(ctx context.Context, f ListFilter) ([]Laptop, int, error) {
	f = f.normalized()

	where, args := listWhere(f)

	var (
		out   []Laptop
		total int
	)
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		if err := s.db.QueryRowContext(ctx,
			`SELECT count(*) FROM products`+where, args...,
		).Scan(&total); err != nil {
			return err
		}

		limitArgs := append(args, f.PerPage, (f.Page-1)*f.PerPage)
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, name, brand, price_cents, stock, description, images, created_at
			FROM products`+where+`
			ORDER BY id ASC
			LIMIT $`+strconv.Itoa(len(args)+1)+` OFFSET $`+strconv.Itoa(len(args)+2),
			limitArgs...)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]Laptop, 0, f.PerPage)
		for rows.Next() {
			l, err := scanLaptop(rows)
			if err != nil {
				return err
			}
			out = append(out, l)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func listWhere(f ListFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.Replace(cond, "?", "$"+strconv.Itoa(len(args)), 1))
	}

	if f.Brand != "" {
		add("brand ILIKE ?", f.Brand)
	}
	if f.Query != "" {
		add("name ILIKE ?", "%"+f.Query+"%")
	}
	if f.MinPriceCents > 0 {
		add("price_cents >= ?", f.MinPriceCents)
	}
	if f.MaxPriceCents > 0 {
		add("price_cents <= ?", f.MaxPriceCents)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Laptop, bool, error) {
	var l Laptop

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		var scanErr error
		l, scanErr = scanLaptop(s.db.QueryRowContext(ctx, `
			SELECT id, name, brand, price_cents, stock, description, images, created_at
			FROM products
			WHERE id = $1
		`, id))
		return scanErr
	})
	if err == sql.ErrNoRows {
		return Laptop{}, false, nil
	}
	if err != nil {
		return Laptop{}, false, err
	}
	return l, true, nil
}

func (s *PostgresStore) Create(ctx context.Context, l Laptop) error {
	images, err := encodeImages(l.Images)
	if err != nil {
		return err
	}

	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO products (id, name, brand, price_cents, stock, description, images, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, l.ID, l.Name, l.Brand, l.PriceCents, l.Stock, l.Description, images, l.CreatedAt)

		if isUniqueViolation(err) {
			return ErrExists
		}
		return err
	})
}

func (s *PostgresStore) Delete(ctx context.Context, id string) (bool, error) {
	var deleted bool

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		deleted = n > 0
		return err
	})
	return deleted, err
}

func (s *PostgresStore) Reserve(ctx context.Context, id string, qty int) (Laptop, error) {
	var l Laptop

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		// Conditional decrement keeps the check and the write atomic.
		var err error
		l, err = scanLaptop(s.db.QueryRowContext(ctx, `
			UPDATE products
			SET stock = stock - $2
			WHERE id = $1 AND stock >= $2
			RETURNING id, name, brand, price_cents, stock, description, images, created_at
		`, id, qty))

		if err == sql.ErrNoRows {
			var exists bool
			if qerr := s.db.QueryRowContext(ctx,
				`SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, id,
			).Scan(&exists); qerr != nil {
				return qerr
			}
			if !exists {
				return ErrNotFound
			}
			return ErrInsufficientStock
		}
		return err
	})
	if err != nil {
		return Laptop{}, err
	}
	return l, nil
}

func (s *PostgresStore) ListReviews(ctx context.Context, productID string) ([]Review, error) {
	var out []Review

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, product_id, user_id, rating, comment, created_at
			FROM reviews
			WHERE product_id = $1
			ORDER BY created_at ASC
		`, productID)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]Review, 0, 8)
		for rows.Next() {
			var rev Review
			if err := rows.Scan(&rev.ID, &rev.ProductID, &rev.UserID, &rev.Rating, &rev.Comment, &rev.CreatedAt); err != nil {
				return err
			}
			out = append(out, rev)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) UpsertReview(ctx context.Context, rev Review) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO reviews (id, product_id, user_id, rating, comment, created_at)
			SELECT $1, $2, $3, $4, $5, $6
			WHERE EXISTS (SELECT 1 FROM products WHERE id = $2)
			ON CONFLICT (product_id, user_id)
			DO UPDATE SET rating = EXCLUDED.rating, comment = EXCLUDED.comment, created_at = EXCLUDED.created_at
		`, rev.ID, rev.ProductID, rev.UserID, rev.Rating, rev.Comment, rev.CreatedAt)
		if err != nil {
			return err
		}

		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// scanLaptop reads one product row including the JSONB image list. The
// scan error passes through untouched so sql.ErrNoRows checks still work.
func scanLaptop(row interface{ Scan(...any) error }) (Laptop, error) {
	var (
		l      Laptop
		images []byte
	)
	if err := row.Scan(&l.ID, &l.Name, &l.Brand, &l.PriceCents, &l.Stock, &l.Description, &images, &l.CreatedAt); err != nil {
		return Laptop{}, err
	}

	var err error
	l.Images, err = decodeImages(images)
	return l, err
}

func encodeImages(images []string) ([]byte, error) {
	if len(images) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(images)
}

func decodeImages(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func withTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return fn(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueCode
}
