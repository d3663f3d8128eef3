package store

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"testing"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLite {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s
}

func TestSQLiteSetGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "k1", "v1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, ok, err := s.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("expected key to exist")
	}
	if value != "v1" {
		t.Errorf("expected v1, got %q", value)
	}
}

func TestSQLiteGetMissing(t *testing.T) {
	s := setupTestStore(t)

	_, ok, err := s.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Error("expected absent key to report ok=false")
	}
}

func TestSQLiteOverwrite(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "k1", "old"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Set(ctx, "k1", "new"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, _, err := s.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if value != "new" {
		t.Errorf("expected new, got %q", value)
	}
}

func TestSQLiteRemove(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "k1", "v1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Remove(ctx, "k1"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	_, ok, err := s.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Error("expected key to be gone")
	}

	// Removing an absent key is not an error
	if err := s.Remove(ctx, "k1"); err != nil {
		t.Errorf("Remove of absent key failed: %v", err)
	}
}

func TestSQLiteListKeys(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, key := range []string{"b", "a", "c"} {
		if err := s.Set(ctx, key, "v"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	keys, err := s.ListKeys(ctx)
	if err != nil {
		t.Fatalf("ListKeys failed: %v", err)
	}

	sort.Strings(keys)
	want := []string{"a", "b", "c"}
	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %d", len(want), len(keys))
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("key %d: expected %q, got %q", i, want[i], keys[i])
		}
	}
}

func TestSQLiteRemoveMany(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		if err := s.Set(ctx, key, "v"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	if err := s.RemoveMany(ctx, []string{"a", "c"}); err != nil {
		t.Fatalf("RemoveMany failed: %v", err)
	}

	keys, err := s.ListKeys(ctx)
	if err != nil {
		t.Fatalf("ListKeys failed: %v", err)
	}
	if len(keys) != 1 || keys[0] != "b" {
		t.Errorf("expected [b], got %v", keys)
	}
}

func TestMemFailureInjection(t *testing.T) {
	m := NewMem()
	ctx := context.Background()

	m.FailWrites = true
	if err := m.Set(ctx, "k", "v"); !errors.Is(err, ErrStorage) {
		t.Errorf("expected ErrStorage, got %v", err)
	}

	m.FailWrites = false
	if err := m.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	m.FailReads = true
	if _, _, err := m.Get(ctx, "k"); !errors.Is(err, ErrStorage) {
		t.Errorf("expected ErrStorage, got %v", err)
	}
}
