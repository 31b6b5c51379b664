package rule

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"

	"github.com/goldengate/goldengate/internal/domain/gate"
)

// stageOrder is the canonical ordering of stages, used for fingerprints.
var stageOrder = []Stage{
	StageMatch, StageFilter,
	StageModifyRequest, StageModifyResponse,
	StageAuditRequest, StageAuditResponse,
}

// Ruleset is one compiled ruleset: an immutable mapping from stage to an
// ordered list of compiled rules. Rulesets are compiled once at startup and
// shared across request goroutines.
type Ruleset struct {
	stages map[Stage][]*compiledRule
}

// Compile compiles a stage→lines document into a Ruleset. Every ruleset must
// carry a match and a filter stage; a ruleset without them either never
// applies or never decides, which is always a config mistake.
func Compile(doc map[string][]string, env *Env) (*Ruleset, error) {
	rs := &Ruleset{stages: make(map[Stage][]*compiledRule, len(doc))}

	for name, lines := range doc {
		stage := Stage(name)
		if !knownStage(stage) {
			return nil, fmt.Errorf("unknown stage %q", name)
		}
		compiled := make([]*compiledRule, 0, len(lines))
		for _, line := range lines {
			cr, err := compileLine(stage, line, env)
			if err != nil {
				return nil, fmt.Errorf("stage %s: %w", stage, err)
			}
			compiled = append(compiled, cr)
		}
		rs.stages[stage] = compiled
	}

	if _, ok := rs.stages[StageMatch]; !ok {
		return nil, errors.New("ruleset has no match stage")
	}
	if _, ok := rs.stages[StageFilter]; !ok {
		return nil, errors.New("ruleset has no filter stage")
	}
	return rs, nil
}

func knownStage(s Stage) bool {
	for _, known := range stageOrder {
		if s == known {
			return true
		}
	}
	return false
}

// ParseConfig compiles every document of a multi-document YAML stream into a
// Ruleset, in stream order. An empty stream is an error.
func ParseConfig(r io.Reader, env *Env) ([]*Ruleset, error) {
	dec := yaml.NewDecoder(r)
	var rulesets []*Ruleset
	for {
		var doc map[string][]string
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decode ruleset %d: %w", len(rulesets)+1, err)
		}
		if doc == nil {
			continue
		}
		rs, err := Compile(doc, env)
		if err != nil {
			return nil, fmt.Errorf("ruleset %d: %w", len(rulesets)+1, err)
		}
		rulesets = append(rulesets, rs)
	}
	if len(rulesets) == 0 {
		return nil, errors.New("config contains no rulesets")
	}
	return rulesets, nil
}

// LoadConfig reads and compiles the ruleset config at path.
func LoadConfig(path string, env *Env) ([]*Ruleset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return ParseConfig(f, env)
}

// Match reports whether this ruleset applies to the request. All match rules
// must hold; an empty match stage applies to everything.
func (rs *Ruleset) Match(req *gate.Request) (bool, error) {
	for _, cr := range rs.stages[StageMatch] {
		ok, err := cr.match.Match(req)
		if err != nil {
			return false, fmt.Errorf("rule %q: %w", cr.line, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Filter decides whether the request is permitted. The first rule decides:
// permit passes the predicate result through, reject inverts it. Rules after
// the first are never consulted, and an empty filter stage denies.
func (rs *Ruleset) Filter(req *gate.Request) (bool, error) {
	for _, cr := range rs.stages[StageFilter] {
		ok, err := cr.match.Match(req)
		if err != nil {
			return false, fmt.Errorf("rule %q: %w", cr.line, err)
		}
		if cr.action == actionReject {
			return !ok, nil
		}
		return ok, nil
	}
	return false, nil
}

// ModifyRequest applies the modify_request stage to the request in order.
func (rs *Ruleset) ModifyRequest(req *gate.Request) error {
	return rs.runModify(StageModifyRequest, req)
}

// ModifyResponse applies the modify_response stage to the response in order.
func (rs *Ruleset) ModifyResponse(resp *gate.Response) error {
	return rs.runModify(StageModifyResponse, resp)
}

// AuditRequest runs the audit_request stage for side effects.
func (rs *Ruleset) AuditRequest(req *gate.Request) error {
	return rs.runModify(StageAuditRequest, req)
}

// AuditResponse runs the audit_response stage for side effects.
func (rs *Ruleset) AuditResponse(resp *gate.Response) error {
	return rs.runModify(StageAuditResponse, resp)
}

func (rs *Ruleset) runModify(stage Stage, s Subject) error {
	for _, cr := range rs.stages[stage] {
		if err := cr.modify.Modify(s); err != nil {
			return fmt.Errorf("rule %q: %w", cr.line, err)
		}
	}
	return nil
}

// Fingerprint returns a stable hash of the ruleset's source lines, used to
// identify rulesets in logs and metrics without dumping their text.
func (rs *Ruleset) Fingerprint() string {
	h := xxhash.New()
	for _, stage := range stageOrder {
		rules, ok := rs.stages[stage]
		if !ok {
			continue
		}
		h.WriteString(string(stage))
		h.WriteString("\n")
		for _, cr := range rules {
			h.WriteString(cr.line)
			h.WriteString("\n")
		}
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
