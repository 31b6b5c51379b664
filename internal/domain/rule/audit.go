package rule

import (
	"fmt"
	"time"

	"github.com/goldengate/goldengate/internal/domain/gate"
)

// Record is one audit trail entry produced by a log rule.
type Record struct {
	Time       time.Time         `json:"time"`
	Kind       string            `json:"kind"`
	RemoteUser string            `json:"remote_user,omitempty"`
	Attrs      map[string]string `json:"attrs"`
}

// Sink receives audit records. Implementations must be safe for concurrent
// use; the pipeline calls them from request goroutines.
type Sink interface {
	Record(rec Record) error
}

// Default attribute sets recorded when a log rule names none.
var (
	defaultRequestAttrs  = []string{gate.AttrMethod, gate.AttrURL, gate.AttrRemoteAddr}
	defaultResponseAttrs = []string{"status", "content_type"}
)

// logRule implements the audit verb `log [attr...]`. It snapshots the named
// subject attributes into a record and hands it to the audit sink. With no
// sink configured the rule is a no-op.
type logRule struct {
	env   *Env
	attrs []string
}

func newLogRule(env *Env, args []string, _ map[string]string) (ModifyRule, error) {
	return &logRule{env: env, attrs: args[1:]}, nil
}

func (r *logRule) Modify(s Subject) error {
	if r.env == nil || r.env.Audit == nil {
		return nil
	}

	rec := Record{Time: r.env.now(), Attrs: make(map[string]string)}
	attrs := r.attrs
	switch subj := s.(type) {
	case *gate.Request:
		rec.Kind = "request"
		rec.RemoteUser = subj.RemoteUser
		if len(attrs) == 0 {
			attrs = defaultRequestAttrs
		}
	case *gate.Response:
		rec.Kind = "response"
		if len(attrs) == 0 {
			attrs = defaultResponseAttrs
		}
	default:
		rec.Kind = "subject"
	}

	for _, name := range attrs {
		value, ok := s.Attr(name)
		if !ok {
			return fmt.Errorf("log rule: unknown attribute %q", name)
		}
		rec.Attrs[name] = value
	}
	return r.env.Audit.Record(rec)
}

func init() {
	RegisterAudit([]string{"log"}, newLogRule)
}
