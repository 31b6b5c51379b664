// Package cel provides a CEL-based policy matcher so operators can express
// request predicates (entity, action, method, path, host) without writing Go.
package cel

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/cel-go/cel"

	"github.com/goldengate/goldengate/internal/domain/gate"
	"github.com/goldengate/goldengate/internal/domain/policy"
)

// maxExpressionLength bounds operator-supplied expressions.
const maxExpressionLength = 1024

// maxCostBudget is the CEL runtime cost limit for one evaluation.
const maxCostBudget = 100_000

// Matcher evaluates a compiled CEL expression against (entity, request).
// Expressions see the variables entity, action, method, path, and host, all
// strings, and must produce a bool.
type Matcher struct {
	expr   string
	prg    cel.Program
	logger *slog.Logger
}

var _ policy.Matcher = (*Matcher)(nil)

// NewMatcher compiles expr. Compilation errors are fatal at startup.
func NewMatcher(expr string, logger *slog.Logger) (*Matcher, error) {
	if expr == "" {
		return nil, errors.New("cel matcher: expression is empty")
	}
	if len(expr) > maxExpressionLength {
		return nil, fmt.Errorf("cel matcher: expression too long: %d characters (max %d)", len(expr), maxExpressionLength)
	}
	if logger == nil {
		logger = slog.Default()
	}

	env, err := cel.NewEnv(
		cel.Variable("entity", cel.StringType),
		cel.Variable("action", cel.StringType),
		cel.Variable("method", cel.StringType),
		cel.Variable("path", cel.StringType),
		cel.Variable("host", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("cel matcher: environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("cel matcher: compile %q: %w", expr, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("cel matcher: expression %q must produce a bool, got %s", expr, ast.OutputType())
	}

	prg, err := env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(maxCostBudget),
	)
	if err != nil {
		return nil, fmt.Errorf("cel matcher: program: %w", err)
	}

	return &Matcher{expr: expr, prg: prg, logger: logger}, nil
}

// Matches evaluates the expression. Runtime evaluation errors are logged and
// treated as non-matches so a bad expression can never grant by accident.
func (m *Matcher) Matches(entity string, req *gate.Request) bool {
	out, _, err := m.prg.Eval(map[string]any{
		"entity": entity,
		"action": req.AWSAction(),
		"method": req.Method,
		"path":   req.Path,
		"host":   req.Host,
	})
	if err != nil {
		m.logger.Warn("cel matcher evaluation failed",
			slog.String("expression", m.expr),
			slog.String("error", err.Error()))
		return false
	}
	result, ok := out.Value().(bool)
	if !ok {
		m.logger.Warn("cel matcher produced non-bool",
			slog.String("expression", m.expr))
		return false
	}
	return result
}
