package rule

import (
	"fmt"
	"net/netip"
	"regexp"

	"github.com/goldengate/goldengate/internal/domain/gate"
)

// matchFunc tests one attribute value against the rule's parameters.
type matchFunc func(value string) (bool, error)

// requestAttrVerbs are the request attributes the DSL can match on.
var requestAttrVerbs = []string{
	gate.AttrMethod, gate.AttrScheme, gate.AttrScriptName, gate.AttrPathInfo,
	gate.AttrRemoteUser, gate.AttrRemoteAddr, gate.AttrHost, gate.AttrHostURL,
	gate.AttrApplicationURL, gate.AttrPathURL, gate.AttrURL, gate.AttrPath,
	gate.AttrPathQS, gate.AttrQueryString,
}

// newMatchFunc builds the predicate for a matchtype and its parameters.
// Regexes and subnets are validated here so bad patterns fail at compile.
func newMatchFunc(matchtype string, params []string) (matchFunc, error) {
	switch matchtype {
	case "is":
		if len(params) < 1 {
			return nil, fmt.Errorf("matchtype is requires a parameter")
		}
		want := params[0]
		return func(value string) (bool, error) {
			return value == want, nil
		}, nil

	case "in":
		set := append([]string(nil), params...)
		return func(value string) (bool, error) {
			for _, p := range set {
				if value == p {
					return true, nil
				}
			}
			return false, nil
		}, nil

	case "regex":
		if len(params) < 1 {
			return nil, fmt.Errorf("matchtype regex requires a pattern")
		}
		// Anchored at the start of the value, matching Python's re.match.
		re, err := regexp.Compile(`\A(?:` + params[0] + `)`)
		if err != nil {
			return nil, fmt.Errorf("invalid regex %q: %w", params[0], err)
		}
		return func(value string) (bool, error) {
			return re.MatchString(value), nil
		}, nil

	case "subnet":
		prefixes := make([]netip.Prefix, 0, len(params))
		for _, p := range params {
			prefix, err := netip.ParsePrefix(p)
			if err != nil {
				return nil, fmt.Errorf("invalid subnet %q: %w", p, err)
			}
			prefixes = append(prefixes, prefix)
		}
		return func(value string) (bool, error) {
			addr, err := netip.ParseAddr(value)
			if err != nil {
				return false, fmt.Errorf("subnet match on non-address %q: %w", value, err)
			}
			for _, prefix := range prefixes {
				if prefix.Contains(addr) {
					return true, nil
				}
			}
			return false, nil
		}, nil
	}
	return nil, fmt.Errorf("unknown match type %q", matchtype)
}

// allRule matches every request unconditionally.
type allRule struct{}

func (allRule) Match(*gate.Request) (bool, error) { return true, nil }

// noneRule matches no request unconditionally.
type noneRule struct{}

func (noneRule) Match(*gate.Request) (bool, error) { return false, nil }

// attrRule matches one request attribute: `<attr> <matchtype> <param...>`.
type attrRule struct {
	attr string
	fn   matchFunc
}

func newAttrRule(_ *Env, args []string, _ map[string]string) (MatchRule, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("attribute match requires an attribute, a match type, and a parameter")
	}
	fn, err := newMatchFunc(args[1], args[2:])
	if err != nil {
		return nil, err
	}
	return &attrRule{attr: args[0], fn: fn}, nil
}

func (r *attrRule) Match(req *gate.Request) (bool, error) {
	value, ok := req.Attr(r.attr)
	if !ok {
		return false, fmt.Errorf("unknown request attribute %q", r.attr)
	}
	return r.fn(value)
}

// headerRule matches a named header: `header <name> <matchtype> <param...>`.
// An absent or empty header never matches.
type headerRule struct {
	name string
	fn   matchFunc
}

func newHeaderRule(_ *Env, args []string, _ map[string]string) (MatchRule, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("header match requires a header name and a match type")
	}
	fn, err := newMatchFunc(args[2], args[3:])
	if err != nil {
		return nil, err
	}
	return &headerRule{name: args[1], fn: fn}, nil
}

func (r *headerRule) Match(req *gate.Request) (bool, error) {
	value := req.Headers().Get(r.name)
	if value == "" {
		return false, nil
	}
	return r.fn(value)
}

func init() {
	both := []Category{CategoryMatch, CategoryFilter}
	RegisterMatch([]string{"all"}, both,
		func(*Env, []string, map[string]string) (MatchRule, error) { return allRule{}, nil })
	RegisterMatch([]string{"none"}, both,
		func(*Env, []string, map[string]string) (MatchRule, error) { return noneRule{}, nil })
	RegisterMatch(requestAttrVerbs, both, newAttrRule)
	RegisterMatch([]string{"header"}, both, newHeaderRule)
}
