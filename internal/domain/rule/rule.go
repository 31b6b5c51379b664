// Package rule implements the gateway's rule DSL: small predicate and
// transform primitives compiled from one-line textual rules and grouped
// into stages (match, filter, modify_request, modify_response,
// audit_request, audit_response).
//
// Verbs are resolved through a registry keyed by (category, verb) so that
// unknown verbs and malformed arguments fail at config compile time, not
// while serving a request.
package rule

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goldengate/goldengate/internal/domain/gate"
)

// Stage names a phase of the request pipeline.
type Stage string

const (
	StageMatch          Stage = "match"
	StageFilter         Stage = "filter"
	StageModifyRequest  Stage = "modify_request"
	StageModifyResponse Stage = "modify_response"
	StageAuditRequest   Stage = "audit_request"
	StageAuditResponse  Stage = "audit_response"
)

// Category is the registry namespace for a stage: modify_request and
// modify_response collapse to modify, audit_request and audit_response to
// audit (audit falls back to the modify registry for shared verbs).
type Category string

const (
	CategoryMatch  Category = "match"
	CategoryFilter Category = "filter"
	CategoryModify Category = "modify"
	CategoryAudit  Category = "audit"
)

// category maps a stage to its registry namespace.
func (s Stage) category() Category {
	switch {
	case s == StageMatch:
		return CategoryMatch
	case s == StageFilter:
		return CategoryFilter
	case strings.HasPrefix(string(s), "modify_"):
		return CategoryModify
	case strings.HasPrefix(string(s), "audit_"):
		return CategoryAudit
	}
	return Category(s)
}

// Subject is the surface modify and audit rules operate on. Both
// *gate.Request and *gate.Response implement it.
type Subject interface {
	Headers() http.Header
	Attr(name string) (string, bool)
	SetAttr(name, value string) bool
}

// MatchRule is a predicate over a request, used by match and filter stages.
type MatchRule interface {
	Match(req *gate.Request) (bool, error)
}

// ModifyRule transforms or observes a subject, used by modify and audit
// stages. Audit stages ignore any mutation.
type ModifyRule interface {
	Modify(s Subject) error
}

// Env carries the runtime collaborators rules may need. Most built-ins use
// none of it.
type Env struct {
	// Audit receives records from audit-stage log rules. Nil disables them.
	Audit Sink
	// Now is the rule clock; nil means time.Now. Tests override it.
	Now func() time.Time
}

func (e *Env) now() time.Time {
	if e != nil && e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Constructor signatures for the two rule shapes. args always starts with
// the verb; kwargs holds the key=value tokens from the rule line.
type (
	MatchConstructor  func(env *Env, args []string, kwargs map[string]string) (MatchRule, error)
	ModifyConstructor func(env *Env, args []string, kwargs map[string]string) (ModifyRule, error)
)

var (
	matchRegistry  = map[string]MatchConstructor{}
	filterRegistry = map[string]MatchConstructor{}
	modifyRegistry = map[string]ModifyConstructor{}
	auditRegistry  = map[string]ModifyConstructor{}
)

// RegisterMatch registers a predicate constructor for the given categories
// (match, filter, or both).
func RegisterMatch(verbs []string, categories []Category, c MatchConstructor) {
	for _, cat := range categories {
		reg := matchRegistry
		if cat == CategoryFilter {
			reg = filterRegistry
		}
		for _, verb := range verbs {
			reg[verb] = c
		}
	}
}

// RegisterModify registers a transform constructor under the modify
// category.
func RegisterModify(verbs []string, c ModifyConstructor) {
	for _, verb := range verbs {
		modifyRegistry[verb] = c
	}
}

// RegisterAudit registers an audit-only constructor.
func RegisterAudit(verbs []string, c ModifyConstructor) {
	for _, verb := range verbs {
		auditRegistry[verb] = c
	}
}

// lookupMatch resolves a match/filter verb.
func lookupMatch(cat Category, verb string) (MatchConstructor, error) {
	reg := matchRegistry
	if cat == CategoryFilter {
		reg = filterRegistry
	}
	c, ok := reg[verb]
	if !ok {
		return nil, fmt.Errorf("unknown %s verb %q", cat, verb)
	}
	return c, nil
}

// lookupModify resolves a modify/audit verb. Audit falls back to the
// modify registry so audit stages can reuse modify-shaped rules.
func lookupModify(cat Category, verb string) (ModifyConstructor, error) {
	if cat == CategoryAudit {
		if c, ok := auditRegistry[verb]; ok {
			return c, nil
		}
	}
	c, ok := modifyRegistry[verb]
	if !ok {
		return nil, fmt.Errorf("unknown %s verb %q", cat, verb)
	}
	return c, nil
}

// tokenize splits a rule line on single spaces. The escape sequence
// backslash-space stands for a literal space inside a token; it is
// round-tripped through NUL so the split never sees it.
func tokenize(line string) []string {
	escaped := strings.ReplaceAll(line, `\ `, "\x00")
	parts := strings.Split(escaped, " ")
	for i, p := range parts {
		parts[i] = strings.ReplaceAll(p, "\x00", " ")
	}
	return parts
}

// splitTokens separates positional arguments from key=value pairs. A token
// containing '=' is a kv pair split on the first '='.
func splitTokens(tokens []string) (args []string, kwargs map[string]string) {
	kwargs = make(map[string]string)
	for _, tok := range tokens {
		if key, value, found := strings.Cut(tok, "="); found {
			kwargs[key] = value
			continue
		}
		args = append(args, tok)
	}
	return args, kwargs
}

// filterAction is the decision mode of one compiled filter rule.
type filterAction string

const (
	actionPermit filterAction = "permit"
	actionReject filterAction = "reject"
)

// compiledRule is one compiled rule line. Match/filter stages populate
// match (and action for filters); modify/audit stages populate modify.
type compiledRule struct {
	line   string
	action filterAction
	match  MatchRule
	modify ModifyRule
}

// compileLine compiles a single rule line for a stage.
func compileLine(stage Stage, line string, env *Env) (*compiledRule, error) {
	tokens := tokenize(line)
	args, kwargs := splitTokens(tokens)
	if len(args) == 0 {
		return nil, fmt.Errorf("rule %q has no verb", line)
	}

	cat := stage.category()
	cr := &compiledRule{line: line}

	switch cat {
	case CategoryMatch:
		c, err := lookupMatch(cat, args[0])
		if err != nil {
			return nil, err
		}
		m, err := c(env, args, kwargs)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", line, err)
		}
		cr.match = m

	case CategoryFilter:
		action := filterAction(args[0])
		if action != actionPermit && action != actionReject {
			return nil, fmt.Errorf("filter rule %q must start with permit or reject", line)
		}
		if len(args) < 2 {
			return nil, fmt.Errorf("filter rule %q has no verb", line)
		}
		c, err := lookupMatch(cat, args[1])
		if err != nil {
			return nil, err
		}
		m, err := c(env, args[1:], kwargs)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", line, err)
		}
		cr.action = action
		cr.match = m

	case CategoryModify, CategoryAudit:
		c, err := lookupModify(cat, args[0])
		if err != nil {
			return nil, err
		}
		m, err := c(env, args, kwargs)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", line, err)
		}
		cr.modify = m

	default:
		return nil, fmt.Errorf("unknown stage %q", stage)
	}

	return cr, nil
}
