package cart

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore writes one JSON snapshot file per owner under a root
// directory. It is the single-node durable option, the server-side
// analogue of the browser's local-storage cart slot.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cart dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Ping(ctx context.Context) error {
	_, err := os.Stat(s.dir)
	return err
}

func (s *FileStore) Load(ctx context.Context, owner string) ([]Entry, error) {
	path := s.path(owner)

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	entries, err := decodeSnapshot(raw)
	if err != nil {
		// Discard the corrupt record so the next load starts clean.
		_ = os.Remove(path)
		return nil, err
	}
	return entries, nil
}

func (s *FileStore) Save(ctx context.Context, owner string, entries []Entry) error {
	raw, err := encodeSnapshot(entries)
	if err != nil {
		return err
	}

	// Write-then-rename keeps a crash from leaving a half-written file.
	tmp := s.path(owner) + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path(owner))
}

func (s *FileStore) Delete(ctx context.Context, owner string) error {
	err := os.Remove(s.path(owner))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (s *FileStore) path(owner string) string {
	return filepath.Join(s.dir, sanitizeOwner(owner)+".json")
}

func sanitizeOwner(owner string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, owner)
}
