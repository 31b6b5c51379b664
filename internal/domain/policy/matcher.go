package policy

import "github.com/goldengate/goldengate/internal/domain/gate"

// Always matches every request.
type Always struct{}

func (Always) Matches(string, *gate.Request) bool { return true }

// Entities matches when the authenticated entity is in the set.
type Entities []string

func (e Entities) Matches(entity string, _ *gate.Request) bool {
	for _, candidate := range e {
		if entity == candidate {
			return true
		}
	}
	return false
}

// AWSAction matches when the request's Action query parameter equals the
// named action. Requests without an Action never match.
type AWSAction string

func (a AWSAction) Matches(_ string, req *gate.Request) bool {
	action := req.AWSAction()
	return action != "" && action == string(a)
}

// All matches when every member matches. All of nothing matches.
type All []Matcher

func (m All) Matches(entity string, req *gate.Request) bool {
	for _, member := range m {
		if !member.Matches(entity, req) {
			return false
		}
	}
	return true
}

// Any matches when at least one member matches. Any of nothing never matches.
type Any []Matcher

func (m Any) Matches(entity string, req *gate.Request) bool {
	for _, member := range m {
		if member.Matches(entity, req) {
			return true
		}
	}
	return false
}

// Not inverts a matcher.
type Not struct{ Matcher }

func (m Not) Matches(entity string, req *gate.Request) bool {
	return !m.Matcher.Matches(entity, req)
}

// ForAction builds the common action policy shape: match one AWS action,
// optionally restricted to a set of entities, and wrap it in the given
// policy constructor (Allow, Deny, or a time-lock).
func ForAction(action string, entities []string, wrap func(Matcher) Policy) Policy {
	var m Matcher = AWSAction(action)
	if entities != nil {
		m = All{Entities(entities), m}
	}
	return wrap(m)
}
