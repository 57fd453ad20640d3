package cart

import (
	"context"
	"errors"
)

// ErrCorruptSnapshot reports a stored snapshot that could not be decoded.
// Implementations discard the offending record before returning it, so a
// later Load sees an empty cart.
var ErrCorruptSnapshot = errors.New("corrupt cart snapshot")

// Store is the durability boundary for cart snapshots. It is only read at
// cart construction and written after mutations; it never pushes changes
// into in-memory state.
type Store interface {
	Load(ctx context.Context, owner string) ([]Entry, error)
	Save(ctx context.Context, owner string, entries []Entry) error
	Delete(ctx context.Context, owner string) error
	Ping(ctx context.Context) error
}
