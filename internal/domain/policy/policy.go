// Package policy decides whether an authenticated entity may perform a
// request. Matchers are pure predicates over (entity, request); a Policy
// pairs a matcher with a grant decision. Resolution scans an ordered list
// and the first applicable policy decides.
package policy

import (
	"context"
	"errors"

	"github.com/goldengate/goldengate/internal/domain/gate"
)

// ErrNoPolicy is returned when no configured policy applies to a request.
var ErrNoPolicy = errors.New("no policy applies to request")

// Matcher is a pure predicate over an authenticated entity and a request.
type Matcher interface {
	Matches(entity string, req *gate.Request) bool
}

// Policy decides whether an entity may perform a request. Grant may block
// (time-lock policies suspend for their lock duration) and honors ctx.
type Policy interface {
	AppliesTo(entity string, req *gate.Request) bool
	Grant(ctx context.Context, entity string, req *gate.Request) (bool, error)
}

// Resolve returns the first policy in order that applies to the request.
func Resolve(entity string, req *gate.Request, policies []Policy) (Policy, error) {
	for _, p := range policies {
		if p.AppliesTo(entity, req) {
			return p, nil
		}
	}
	return nil, ErrNoPolicy
}

// matcherPolicy supplies AppliesTo for policies built around a Matcher.
type matcherPolicy struct {
	matcher Matcher
}

func (p matcherPolicy) AppliesTo(entity string, req *gate.Request) bool {
	return p.matcher.Matches(entity, req)
}

// booleanPolicy grants or denies unconditionally when it applies.
type booleanPolicy struct {
	matcherPolicy
	allow bool
}

func (p booleanPolicy) Grant(context.Context, string, *gate.Request) (bool, error) {
	return p.allow, nil
}

// Allow returns a policy granting every request its matcher applies to.
func Allow(m Matcher) Policy {
	return booleanPolicy{matcherPolicy{m}, true}
}

// Deny returns a policy denying every request its matcher applies to.
func Deny(m Matcher) Policy {
	return booleanPolicy{matcherPolicy{m}, false}
}

// AllowAll is a default-allow catchall policy.
func AllowAll() Policy { return Allow(Always{}) }

// DenyAll is a default-deny catchall policy.
func DenyAll() Policy { return Deny(Always{}) }
