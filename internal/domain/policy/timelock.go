package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/goldengate/goldengate/internal/domain/gate"
)

// ErrLockNotFound is returned by stores when no time lock has the given id.
var ErrLockNotFound = errors.New("time lock not found")

// TimeLock is one pending deferred grant. Cancellation is monotonic: once
// cancelled a lock never becomes uncancelled.
type TimeLock struct {
	ID        string
	Cancelled bool
	CreatedAt time.Time
}

// Store persists time locks. Implementations must make Insert, Get, and
// Cancel atomic with respect to each other; Cancel on a missing id returns
// ErrLockNotFound.
type Store interface {
	Insert(ctx context.Context, lock TimeLock) error
	Get(ctx context.Context, id string) (TimeLock, error)
	Cancel(ctx context.Context, id string) error
}

// Notification is a message for the parties who may cancel a pending grant.
type Notification struct {
	Recipients []string
	Message    string
}

// Broker delivers notifications. Delivery failures fail the grant; a grant
// nobody was told about cannot be cancelled.
type Broker interface {
	Send(ctx context.Context, n Notification) error
}

// executionTimeLayout matches RFC 1123 with a numeric UTC offset.
const executionTimeLayout = "Mon, 02 Jan 2006 15:04:05 +0000"

// TimeLockPolicy defers matching requests: it records a pending lock,
// notifies the configured recipients with a cancellation id, suspends for
// the lock duration, and grants only if nobody cancelled in the meantime.
type TimeLockPolicy struct {
	matcherPolicy
	duration   time.Duration
	store      Store
	broker     Broker
	template   string
	recipients []string
	logger     *slog.Logger

	// Now is the policy clock; nil means time.Now. Tests override it.
	Now func() time.Time
}

var _ Policy = (*TimeLockPolicy)(nil)

// NewTimeLock builds a time-lock policy around the matcher.
func NewTimeLock(m Matcher, duration time.Duration, store Store, broker Broker, template string, recipients []string, logger *slog.Logger) *TimeLockPolicy {
	if logger == nil {
		logger = slog.Default()
	}
	return &TimeLockPolicy{
		matcherPolicy: matcherPolicy{m},
		duration:      duration,
		store:         store,
		broker:        broker,
		template:      template,
		recipients:    recipients,
		logger:        logger,
	}
}

func (p *TimeLockPolicy) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Grant suspends the request for the lock duration and reports whether it
// survived uncancelled. A ctx cancellation during the wait abandons the
// request but leaves the lock record in place.
func (p *TimeLockPolicy) Grant(ctx context.Context, entity string, req *gate.Request) (bool, error) {
	id := uuid.NewString()
	now := p.now()

	if err := p.store.Insert(ctx, TimeLock{ID: id, CreatedAt: now}); err != nil {
		return false, fmt.Errorf("insert time lock: %w", err)
	}

	message := RenderTemplate(p.template, map[string]string{
		"request_information":    req.Dump(),
		"request_execution_time": now.Add(p.duration).UTC().Format(executionTimeLayout),
		"time_lock_duration":     strconv.FormatFloat(p.duration.Minutes(), 'f', -1, 64),
		"request_uuid":           id,
	})
	if err := p.broker.Send(ctx, Notification{Recipients: p.recipients, Message: message}); err != nil {
		return false, fmt.Errorf("send time lock notification: %w", err)
	}

	p.logger.Info("time lock pending",
		slog.String("id", id),
		slog.String("entity", entity),
		slog.Duration("duration", p.duration))

	timer := time.NewTimer(p.duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-timer.C:
	}

	lock, err := p.store.Get(ctx, id)
	if err != nil {
		return false, fmt.Errorf("read time lock: %w", err)
	}
	if lock.Cancelled {
		p.logger.Info("time lock cancelled", slog.String("id", id))
		return false, nil
	}
	return true, nil
}
