package rule

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/goldengate/goldengate/internal/domain/gate"
)

// overrideRule implements `url set <value>` and `method set <value>`.
// It writes the request's overlay slots; the real URL and method are never
// touched, the upstream client reads the overlay with override-wins
// precedence.
type overrideRule struct {
	verb  string
	value string
}

func newOverrideRule(_ *Env, args []string, _ map[string]string) (ModifyRule, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("%s rule requires an action", args[0])
	}
	if args[1] != "set" {
		return nil, fmt.Errorf("%s rules only support set, not %q", args[0], args[1])
	}
	r := &overrideRule{verb: args[0]}
	if len(args) >= 3 {
		r.value = args[2]
	}
	return r, nil
}

func (r *overrideRule) Modify(s Subject) error {
	req, ok := s.(*gate.Request)
	if !ok {
		return fmt.Errorf("%s set applies to requests only", r.verb)
	}
	if r.verb == "url" {
		req.OverrideURL = r.value
	} else {
		req.OverrideMethod = r.value
	}
	return nil
}

// attrModifyRule implements `<attr> set <value...>` for the mutable
// attributes (content_type, charset, host, body, cache_control).
type attrModifyRule struct {
	attr  string
	value string
}

var modifyAttrVerbs = []string{"content_type", "charset", "host", "body", "cache_control"}

func newAttrModifyRule(_ *Env, args []string, _ map[string]string) (ModifyRule, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("%s rule requires an action", args[0])
	}
	if args[1] != "set" {
		return nil, fmt.Errorf("%s rules only support set, not %q", args[0], args[1])
	}
	return &attrModifyRule{attr: args[0], value: strings.Join(args[2:], " ")}, nil
}

func (r *attrModifyRule) Modify(s Subject) error {
	if !s.SetAttr(r.attr, r.value) {
		return fmt.Errorf("attribute %q is not settable on this subject", r.attr)
	}
	return nil
}

// templateVar matches $name references in header values.
var templateVar = regexp.MustCompile(`\$([a-z_]+)`)

// headerModifyRule implements `header set <key> <value...>` and
// `header remove <key>`. Set values expand $name references against the
// request attributes, then the process environment; an unresolved
// reference is a rule execution error.
type headerModifyRule struct {
	action string
	key    string
	value  string
}

func newHeaderModifyRule(_ *Env, args []string, _ map[string]string) (ModifyRule, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("header rule requires an action and a key")
	}
	action := args[1]
	if action != "set" && action != "remove" {
		return nil, fmt.Errorf("unknown header action %q", action)
	}
	return &headerModifyRule{
		action: action,
		key:    args[2],
		value:  strings.Join(args[3:], " "),
	}, nil
}

func (r *headerModifyRule) Modify(s Subject) error {
	if r.action == "remove" {
		s.Headers().Del(r.key)
		return nil
	}
	value, err := expandTemplate(r.value, s)
	if err != nil {
		return err
	}
	s.Headers().Set(r.key, value)
	return nil
}

// expandTemplate replaces each $name with the subject attribute of that
// name, falling back to the environment variable of the same name.
func expandTemplate(value string, s Subject) (string, error) {
	var expandErr error
	out := templateVar.ReplaceAllStringFunc(value, func(ref string) string {
		name := ref[1:]
		if v, ok := s.Attr(name); ok {
			return v
		}
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		if expandErr == nil {
			expandErr = fmt.Errorf("unable to replace template variable $%s: unknown attribute", name)
		}
		return ref
	})
	if expandErr != nil {
		return "", expandErr
	}
	return out, nil
}

func init() {
	RegisterModify([]string{"url", "method"}, newOverrideRule)
	RegisterModify(modifyAttrVerbs, newAttrModifyRule)
	RegisterModify([]string{"header"}, newHeaderModifyRule)
}
