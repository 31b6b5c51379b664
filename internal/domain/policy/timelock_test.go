package policy

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/goldengate/goldengate/internal/domain/gate"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeStore struct {
	mu    sync.Mutex
	locks map[string]TimeLock
}

func newFakeStore() *fakeStore {
	return &fakeStore{locks: make(map[string]TimeLock)}
}

func (s *fakeStore) Insert(_ context.Context, lock TimeLock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locks[lock.ID] = lock
	return nil
}

func (s *fakeStore) Get(_ context.Context, id string) (TimeLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		return TimeLock{}, ErrLockNotFound
	}
	return lock, nil
}

func (s *fakeStore) Cancel(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		return ErrLockNotFound
	}
	lock.Cancelled = true
	s.locks[id] = lock
	return nil
}

// pendingID returns the id of the single stored lock, or "" until one
// exists.
func (s *fakeStore) pendingID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.locks {
		return id
	}
	return ""
}

type captureBroker struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (b *captureBroker) Send(_ context.Context, n Notification) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.sent = append(b.sent, n)
	return nil
}

func (b *captureBroker) last(t *testing.T) Notification {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.sent) == 0 {
		t.Fatal("no notification sent")
	}
	return b.sent[len(b.sent)-1]
}

const lockTemplate = "Entity wants {{ request_information }}\n" +
	"Executing {{ request_uuid }} in {{ time_lock_duration }} minutes " +
	"at {{ request_execution_time }}."

func lockRequest() *gate.Request {
	return &gate.Request{
		Method:     "GET",
		Scheme:     "https",
		Host:       "iam.amazonaws.com",
		Path:       "/",
		Query:      gate.Params{{Key: "Action", Value: "DeleteUser"}},
		RemoteUser: "alice@example.com",
	}
}

func TestTimeLockGrantsWhenUncancelled(t *testing.T) {
	store := newFakeStore()
	broker := &captureBroker{}
	recipients := []string{"oncall@example.com"}
	p := NewTimeLock(Always{}, 30*time.Millisecond, store, broker, lockTemplate, recipients, nil)
	now := time.Date(2011, 1, 1, 12, 0, 0, 0, time.UTC)
	p.Now = func() time.Time { return now }

	granted, err := p.Grant(context.Background(), "alice@example.com", lockRequest())
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if !granted {
		t.Fatal("uncancelled lock did not grant")
	}

	n := broker.last(t)
	if len(n.Recipients) != 1 || n.Recipients[0] != "oncall@example.com" {
		t.Errorf("Recipients = %v", n.Recipients)
	}
	id := store.pendingID()
	if id == "" {
		t.Fatal("no lock recorded")
	}
	if !strings.Contains(n.Message, id) {
		t.Errorf("message does not carry the lock id %s:\n%s", id, n.Message)
	}
	if !strings.Contains(n.Message, "in 0.0005 minutes") {
		t.Errorf("message does not render the lock duration:\n%s", n.Message)
	}
	if !strings.Contains(n.Message, "Sat, 01 Jan 2011 12:00:00 +0000") {
		t.Errorf("message does not render the execution time:\n%s", n.Message)
	}
	if !strings.Contains(n.Message, "GET") || !strings.Contains(n.Message, "iam.amazonaws.com") {
		t.Errorf("message does not carry the request dump:\n%s", n.Message)
	}
}

func TestTimeLockDeniesWhenCancelled(t *testing.T) {
	store := newFakeStore()
	broker := &captureBroker{}
	p := NewTimeLock(Always{}, 80*time.Millisecond, store, broker, lockTemplate, nil, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Wait for the lock record to appear, then cancel it.
		var id string
		for id == "" {
			time.Sleep(5 * time.Millisecond)
			id = store.pendingID()
		}
		if err := store.Cancel(context.Background(), id); err != nil {
			t.Errorf("Cancel: %v", err)
		}
	}()

	granted, err := p.Grant(context.Background(), "alice@example.com", lockRequest())
	<-done
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if granted {
		t.Error("cancelled lock granted")
	}
}

func TestTimeLockAbandonedOnContextCancel(t *testing.T) {
	store := newFakeStore()
	broker := &captureBroker{}
	p := NewTimeLock(Always{}, time.Minute, store, broker, lockTemplate, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(15 * time.Millisecond)
		cancel()
	}()
	defer cancel()

	granted, err := p.Grant(ctx, "alice@example.com", lockRequest())
	if granted {
		t.Error("abandoned request granted")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}

	// The lock record stays so operators can see what was pending.
	if id := store.pendingID(); id == "" {
		t.Error("lock record gone after abandonment")
	}
}

func TestTimeLockFailsWhenNotificationFails(t *testing.T) {
	store := newFakeStore()
	broker := &captureBroker{err: errors.New("smtp down")}
	p := NewTimeLock(Always{}, time.Minute, store, broker, lockTemplate, nil, nil)

	start := time.Now()
	granted, err := p.Grant(context.Background(), "alice@example.com", lockRequest())
	if granted || err == nil {
		t.Errorf("grant survived a notification failure (%v, %v)", granted, err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("grant waited out the lock despite the failure (%v)", elapsed)
	}
}
