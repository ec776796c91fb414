package json

import (
	"context"
	"path/filepath"
	"testing"
)

type testIndex struct {
	Entries map[string]int `json:"entries"`
}

func (i *testIndex) Init() {
	if i.Entries == nil {
		i.Entries = make(map[string]int)
	}
}

func newTestStore(t *testing.T) *Store[testIndex] {
	t.Helper()
	dir := t.TempDir()
	return New[testIndex](filepath.Join(dir, "idx.lock"), filepath.Join(dir, "idx.json"))
}

func TestStoreUpdateRoundtrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.Update(ctx, func(idx *testIndex) error {
		idx.Entries["tpm"] = 1234
		return nil
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	if err := s.With(ctx, func(idx *testIndex) error {
		if idx.Entries["tpm"] != 1234 {
			t.Fatalf("unexpected entries: %+v", idx.Entries)
		}
		return nil
	}); err != nil {
		t.Fatalf("with: %v", err)
	}
}

func TestStoreMissingFileIsZeroValue(t *testing.T) {
	s := newTestStore(t)
	if err := s.With(context.Background(), func(idx *testIndex) error {
		if len(idx.Entries) != 0 {
			t.Fatalf("expected empty index, got %+v", idx.Entries)
		}
		if idx.Entries == nil {
			t.Fatal("Init was not called on zero value")
		}
		return nil
	}); err != nil {
		t.Fatalf("with: %v", err)
	}
}

func TestStoreUpdateErrorDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.Update(ctx, func(idx *testIndex) error {
		idx.Entries["vm"] = 1
		return nil
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	sentinel := context.Canceled
	if err := s.Update(ctx, func(idx *testIndex) error {
		idx.Entries["vm"] = 999
		return sentinel
	}); err == nil {
		t.Fatal("expected error from fn")
	}

	_ = s.With(ctx, func(idx *testIndex) error {
		if idx.Entries["vm"] != 1 {
			t.Fatalf("aborted update was persisted: %+v", idx.Entries)
		}
		return nil
	})
}

func TestStoreTryLockExcludes(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "idx.lock")
	filePath := filepath.Join(dir, "idx.json")

	a := New[testIndex](lockPath, filePath)
	b := New[testIndex](lockPath, filePath)

	ok, err := a.TryLock(ctx)
	if err != nil || !ok {
		t.Fatalf("first TryLock: ok=%v err=%v", ok, err)
	}
	defer a.Unlock(ctx) //nolint:errcheck

	ok, err = b.TryLock(ctx)
	if err != nil {
		t.Fatalf("second TryLock: %v", err)
	}
	if ok {
		t.Fatal("second TryLock should have been excluded")
	}

	if err := a.Unlock(ctx); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	ok, err = b.TryLock(ctx)
	if err != nil || !ok {
		t.Fatalf("TryLock after release: ok=%v err=%v", ok, err)
	}
	_ = b.Unlock(ctx)
}
