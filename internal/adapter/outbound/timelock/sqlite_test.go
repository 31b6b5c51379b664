package timelock

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/goldengate/goldengate/internal/domain/policy"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "locks.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	created := time.Date(2011, 1, 1, 12, 0, 0, 0, time.UTC)

	if err := store.Insert(ctx, policy.TimeLock{ID: "abc-123", CreatedAt: created}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := store.Insert(ctx, policy.TimeLock{ID: "abc-123", CreatedAt: created}); err == nil {
		t.Error("duplicate insert succeeded")
	}

	got, err := store.Get(ctx, "abc-123")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Cancelled {
		t.Error("fresh lock reported as cancelled")
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}

	if err := store.Cancel(ctx, "abc-123"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	got, err = store.Get(ctx, "abc-123")
	if err != nil {
		t.Fatalf("Get after cancel: %v", err)
	}
	if !got.Cancelled {
		t.Error("cancelled lock reported as pending")
	}
}

func TestSQLiteStoreMissingLock(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, policy.ErrLockNotFound) {
		t.Errorf("Get err = %v, want ErrLockNotFound", err)
	}
	if err := store.Cancel(ctx, "missing"); !errors.Is(err, policy.ErrLockNotFound) {
		t.Errorf("Cancel err = %v, want ErrLockNotFound", err)
	}
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "locks.db")

	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := store.Insert(ctx, policy.TimeLock{ID: "abc-123", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.Get(ctx, "abc-123"); err != nil {
		t.Errorf("lock lost across reopen: %v", err)
	}
}
