package engine

import (
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/propai/propai/pkg/schema"
)

// conditionEvaluator evaluates declarative step conditions with
// expr-lang. Compiled programs are cached and reused across goroutines.
type conditionEvaluator struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

func newConditionEvaluator() *conditionEvaluator {
	return &conditionEvaluator{
		cache: make(map[string]*vm.Program),
	}
}

// evaluate runs a condition against the step's view of the run:
// context (source, lead_id, extra values), results so far, and the
// workflow input. Any non-boolean result is a validation error.
func (e *conditionEvaluator) evaluate(condition string, rc RunContext, results Results, input map[string]any) (bool, error) {
	prg, err := e.getOrCompile(condition)
	if err != nil {
		return false, err
	}

	ctxEnv := map[string]any{
		"source": rc.Source,
	}
	if rc.LeadID != nil {
		ctxEnv["lead_id"] = *rc.LeadID
	}
	for k, v := range rc.Values {
		ctxEnv[k] = v
	}

	env := map[string]any{
		"context": ctxEnv,
		"results": map[string]map[string]any(results),
		"input":   input,
	}

	out, err := vm.Run(prg, env)
	if err != nil {
		return false, schema.NewErrorf(schema.ErrCodeExecution,
			"condition evaluation failed for %q: %s", condition, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"condition": condition})
	}

	b, ok := out.(bool)
	if !ok {
		return false, schema.NewErrorf(schema.ErrCodeValidation,
			"condition %q did not evaluate to a boolean", condition).
			WithDetails(map[string]any{"condition": condition, "result": out})
	}
	return b, nil
}

func (e *conditionEvaluator) getOrCompile(condition string) (*vm.Program, error) {
	e.mu.RLock()
	if prg, ok := e.cache[condition]; ok {
		e.mu.RUnlock()
		return prg, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if prg, ok := e.cache[condition]; ok {
		return prg, nil
	}

	prg, err := expr.Compile(condition,
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"condition compile error in %q: %s", condition, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"condition": condition})
	}

	e.cache[condition] = prg
	return prg, nil
}
