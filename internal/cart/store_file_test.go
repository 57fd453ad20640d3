package cart

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()

	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	in := []Entry{{Product: laptop("p1", 149900, 7), Quantity: 2}}
	if err := store.Save(ctx, "u_1", in); err != nil {
		t.Fatalf("save: %v", err)
	}

	out, err := store.Load(ctx, "u_1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(out) != 1 || out[0].Product.ID != "p1" || out[0].Quantity != 2 {
		t.Fatalf("loaded = %+v", out)
	}
}

func TestFileStore_MissingIsEmpty(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	out, err := store.Load(context.Background(), "nobody")
	if err != nil || out != nil {
		t.Fatalf("Load = (%v, %v), want (nil, nil)", out, err)
	}
}

func TestFileStore_CorruptFileDiscarded(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	path := filepath.Join(dir, "u_1.json")
	if err := os.WriteFile(path, []byte("not json at all"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := store.Load(context.Background(), "u_1"); !errors.Is(err, ErrCorruptSnapshot) {
		t.Fatalf("err = %v, want ErrCorruptSnapshot", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("corrupt file must be removed")
	}

	// Second load is a clean empty cart.
	out, err := store.Load(context.Background(), "u_1")
	if err != nil || out != nil {
		t.Fatalf("Load after discard = (%v, %v), want (nil, nil)", out, err)
	}
}

func TestFileStore_Delete(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if err := store.Delete(ctx, "nobody"); err != nil {
		t.Fatalf("delete absent: %v", err)
	}

	if err := store.Save(ctx, "u_1", []Entry{{Product: laptop("p1", 100, 1), Quantity: 1}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Delete(ctx, "u_1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	out, err := store.Load(ctx, "u_1")
	if err != nil || out != nil {
		t.Fatalf("Load after delete = (%v, %v), want (nil, nil)", out, err)
	}
}

func TestFileStore_OwnerSanitized(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	owner := "../../etc/passwd"
	if err := store.Save(context.Background(), owner, nil); err != nil {
		t.Fatalf("save: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("files in dir = %d, want 1", len(entries))
	}
}
