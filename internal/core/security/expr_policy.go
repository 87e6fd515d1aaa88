package security

import (
	"context"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"

	"numerus/internal/core/apperror"
)

// ExprPolicy evaluates a CEL expression to gate transitions. It covers the
// tenants whose period-close rules do not fit the stock policies: the rule
// ships as configuration instead of a code change.
//
// The expression sees four variables and must evaluate to a bool, where
// true allows the operation:
//
//	op           - "transition", "modify" or "revert"
//	doc_date     - the document's business date
//	now          - evaluation time
//	closed_until - the configured period-close boundary
//
// Example: doc_date >= closed_until || op == "modify"
type ExprPolicy struct {
	program     cel.Program
	closedUntil time.Time
}

// NewExprPolicy compiles the expression once; evaluation is per-call.
func NewExprPolicy(expr string, closedUntil time.Time) (*ExprPolicy, error) {
	env, err := cel.NewEnv(
		cel.Variable("op", cel.StringType),
		cel.Variable("doc_date", cel.TimestampType),
		cel.Variable("now", cel.TimestampType),
		cel.Variable("closed_until", cel.TimestampType),
	)
	if err != nil {
		return nil, fmt.Errorf("create policy environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile policy expression: %w", issues.Err())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build policy program: %w", err)
	}

	return &ExprPolicy{program: program, closedUntil: closedUntil}, nil
}

func (p *ExprPolicy) allow(ctx context.Context, op string, docDate time.Time) error {
	out, _, err := p.program.ContextEval(ctx, map[string]any{
		"op":           op,
		"doc_date":     docDate,
		"now":          time.Now().UTC(),
		"closed_until": p.closedUntil,
	})
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("evaluate policy expression: %w", err))
	}

	allowed, ok := out.Value().(bool)
	if !ok {
		return apperror.NewInternal(fmt.Errorf("policy expression returned %T, want bool", out.Value()))
	}
	if !allowed {
		if !p.closedUntil.IsZero() {
			return apperror.NewPeriodClosed(p.closedUntil.Format("2006-01"))
		}
		return apperror.NewValidation(fmt.Sprintf("%s denied by transition policy", op))
	}
	return nil
}

func (p *ExprPolicy) CanTransition(ctx context.Context, docDate time.Time) error {
	return p.allow(ctx, "transition", docDate)
}

func (p *ExprPolicy) CanModify(ctx context.Context, docDate time.Time) error {
	return p.allow(ctx, "modify", docDate)
}

func (p *ExprPolicy) CanRevert(ctx context.Context, docDate time.Time) error {
	return p.allow(ctx, "revert", docDate)
}

func (p *ExprPolicy) GetClosedPeriod(ctx context.Context) time.Time {
	return p.closedUntil
}
