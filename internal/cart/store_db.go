package cart

import (
	"context"
	"database/sql"
	"time"
)

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 3 * time.Second
)

// PostgresStore keeps one JSONB snapshot row per owner.
//
//	CREATE TABLE cart_snapshots (
//	    owner_id   TEXT PRIMARY KEY,
//	    snapshot   JSONB NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
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

func (s *PostgresStore) Load(ctx context.Context, owner string) ([]Entry, error) {
	var raw []byte

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, `
			SELECT snapshot
			FROM cart_snapshots
			WHERE owner_id = $1
		`, owner).Scan(&raw)
	})
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	entries, err := decodeSnapshot(raw)
	if err != nil {
		_ = s.Delete(ctx, owner)
		return nil, err
	}
	return entries, nil
}

func (s *PostgresStore) Save(ctx context.Context, owner string, entries []Entry) error {
	raw, err := encodeSnapshot(entries)
	if err != nil {
		return err
	}

	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO cart_snapshots (owner_id, snapshot, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (owner_id)
			DO UPDATE SET snapshot = EXCLUDED.snapshot, updated_at = now()
		`, owner, raw)
		return err
	})
}

func (s *PostgresStore) Delete(ctx context.Context, owner string) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			DELETE FROM cart_snapshots
			WHERE owner_id = $1
		`, owner)
		return err
	})
}

func withTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return fn(ctx)
}
