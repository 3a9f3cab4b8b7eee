package catalog

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// ConditionEvaluator compiles and caches CEL expressions used by the
// ConditionalBranch node, adapted from
// cmd/workflow-runner/condition.Evaluator: same compile-then-cache shape, generalized from a
// fixed "output"/"ctx" pair of variables to an arbitrary named-variable
// environment so board authors can reference any in-scope pin or
// variable by name.
type ConditionEvaluator struct {
	mu    sync.RWMutex
	cache map[string]cel.Program
}

// NewConditionEvaluator creates an evaluator with an empty program cache.
func NewConditionEvaluator() *ConditionEvaluator {
	return &ConditionEvaluator{cache: make(map[string]cel.Program)}
}

// EvaluateBool compiles (or reuses a cached compilation of) expr against
// vars and requires the result to be a boolean, as every Branch/loop
// condition in this engine is.
func (e *ConditionEvaluator) EvaluateBool(expr string, vars map[string]interface{}) (bool, error) {
	prg, err := e.program(expr, vars)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("CEL evaluation error: %w", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression %q did not return boolean, got %T", expr, out.Value())
	}
	return result, nil
}

func (e *ConditionEvaluator) program(expr string, vars map[string]interface{}) (cel.Program, error) {
	e.mu.RLock()
	prg, ok := e.cache[expr]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	opts := make([]cel.EnvOption, 0, len(vars))
	for name := range vars {
		opts = append(opts, cel.Variable(name, cel.DynType))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compilation error: %w", issues.Err())
	}
	prg, err = env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	e.mu.Lock()
	e.cache[expr] = prg
	e.mu.Unlock()
	return prg, nil
}

// ClearCache drops every compiled program, forcing recompilation on next use.
func (e *ConditionEvaluator) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string]cel.Program)
}
