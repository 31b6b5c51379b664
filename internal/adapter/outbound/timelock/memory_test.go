package timelock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goldengate/goldengate/internal/domain/policy"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	lock := policy.TimeLock{ID: "abc-123", CreatedAt: time.Now()}

	if err := store.Insert(ctx, lock); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := store.Insert(ctx, lock); err == nil {
		t.Error("duplicate insert succeeded")
	}

	got, err := store.Get(ctx, "abc-123")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Cancelled {
		t.Error("fresh lock reported as cancelled")
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

func TestMemoryStoreMissingLock(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, policy.ErrLockNotFound) {
		t.Errorf("Get err = %v, want ErrLockNotFound", err)
	}
	if err := store.Cancel(ctx, "missing"); !errors.Is(err, policy.ErrLockNotFound) {
		t.Errorf("Cancel err = %v, want ErrLockNotFound", err)
	}
}
