package filter

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/arrowstream/logflow/internal/component"
	"github.com/arrowstream/logflow/internal/record"
)

// Expr is an enrichment beyond the source's fixed operator set: a
// predicate written in github.com/expr-lang/expr, compiled once at
// construction and evaluated against the record's fields on every call.
// Useful for conjunctions and arithmetic the Field filter's tagged
// variant cannot express in a single clause.
type Expr struct {
	source  string
	program *vm.Program
}

func newExprFromOptions(opts map[string]string) (Filter, error) {
	src := opts["expression"]
	if src == "" {
		return nil, fmt.Errorf("expr filter: %q option is required", "expression")
	}
	program, err := expr.Compile(src, expr.AsBool(), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("expr filter: compile expression: %w", err)
	}
	return &Expr{source: src, program: program}, nil
}

func init() {
	Registry.Register("expr", component.TypeSpec[Filter]{
		Constructor: newExprFromOptions,
		Summary:     "Evaluates an expr-lang boolean expression against the record's fields.",
		Default:     map[string]string{"expression": ""},
	})
}

// Start is a no-op.
func (e *Expr) Start(ctx context.Context) error { return nil }

// Stop is a no-op.
func (e *Expr) Stop(ctx context.Context) error { return nil }

// Allow evaluates the compiled expression against the record's fields,
// exposed as top-level environment variables.
func (e *Expr) Allow(rec *record.Record) (bool, error) {
	out, err := expr.Run(e.program, rec.Map())
	if err != nil {
		return false, fmt.Errorf("expr filter: evaluate %q: %w", e.source, err)
	}
	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expr filter: expression %q did not return a bool", e.source)
	}
	return result, nil
}
