package expressions

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/wisarudtecha/CMS-sub002/pkg/schema"
)

// SLA rule variables exposed to CEL.
const (
	VarElapsedMinutes = "elapsed_minutes"
	VarSLAMinutes     = "sla_minutes"
	VarStatusID       = "status_id"
	VarKind           = "kind"
)

// CELEngine evaluates SLA rules written in the Common Expression Language.
// Thread-safe: compiled programs are cached and reused across goroutines.
type CELEngine struct {
	env *cel.Env

	mu    sync.RWMutex
	cache map[string]cel.Program
}

// NewCELEngine creates an engine whose environment declares:
//   - elapsed_minutes: double, minutes since the step was reached
//   - sla_minutes:     double, the step's SLA
//   - status_id:       string
//   - kind:            string, node kind (process, dispatch)
func NewCELEngine() (*CELEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable(VarElapsedMinutes, cel.DoubleType),
		cel.Variable(VarSLAMinutes, cel.DoubleType),
		cel.Variable(VarStatusID, cel.StringType),
		cel.Variable(VarKind, cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}
	return &CELEngine{
		env:   env,
		cache: make(map[string]cel.Program),
	}, nil
}

// Name returns the engine identifier.
func (e *CELEngine) Name() string {
	return "cel"
}

// Evaluate runs expression against data. Missing variables get zero values.
func (e *CELEngine) Evaluate(ctx context.Context, expression string, data map[string]any) (any, error) {
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty CEL expression")
	}

	prg, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}

	out, _, err := prg.ContextEval(ctx, activation(data))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExpression,
			"CEL evaluation failed for %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}
	return out.Value(), nil
}

// Compile type-checks expression and caches the resulting program.
func (e *CELEngine) Compile(expression string) (cel.Program, error) {
	e.mu.RLock()
	if prg, ok := e.cache[expression]; ok {
		e.mu.RUnlock()
		return prg, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if prg, ok := e.cache[expression]; ok {
		return prg, nil
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExpression,
			"CEL compile error in %q: %s", expression, issues.Err().Error()).
			WithCause(issues.Err()).
			WithDetails(map[string]any{"expression": expression})
	}

	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExpression,
			"CEL program error for %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}

	e.cache[expression] = prg
	return prg, nil
}

// activation fills every declared variable so rules never hit "no such attribute".
func activation(data map[string]any) map[string]any {
	act := map[string]any{
		VarElapsedMinutes: 0.0,
		VarSLAMinutes:     0.0,
		VarStatusID:       "",
		VarKind:           "",
	}
	for k, v := range data {
		switch n := v.(type) {
		case int:
			act[k] = float64(n)
		case int64:
			act[k] = float64(n)
		default:
			act[k] = v
		}
	}
	return act
}

var _ Engine = (*CELEngine)(nil)
