package engine

import (
	"context"
	"time"
)

// RunContext carries the caller-scoped values a workflow run sees:
// the originating source, the lead being worked, and arbitrary extra
// values the trigger wants step predicates and input builders to read.
type RunContext struct {
	Source string
	LeadID *int64
	Values map[string]any
}

// Value looks up an extra context value by key.
func (rc RunContext) Value(key string) (any, bool) {
	v, ok := rc.Values[key]
	return v, ok
}

// Results accumulates step outputs over a run, keyed by step name.
// Skipped and failed steps contribute nothing.
type Results map[string]map[string]any

// RetryPolicy configures per-step retries. A zero policy means a
// single attempt.
type RetryPolicy struct {
	Retries       int
	Delay         time.Duration
	BackoffFactor float64
}

// MaxAttempts returns the total attempt budget (retries + 1).
func (p *RetryPolicy) MaxAttempts() int {
	if p == nil || p.Retries < 0 {
		return 1
	}
	return p.Retries + 1
}

// Step is one unit of work in a workflow. Exactly one of Run or Tool
// must be set: Run executes inline, Tool dispatches through the
// gateway. When and Condition both gate the step; Condition is the
// declarative expr-string form of the same check and is evaluated
// against {context, results, input}.
type Step struct {
	Name      string
	Tool      string
	Run       func(ctx context.Context, rc RunContext, results Results) (map[string]any, error)
	When      func(rc RunContext, results Results) bool
	Condition string
	Input     func(rc RunContext, results Results) map[string]any
	Retry     *RetryPolicy
}

// Workflow is a named, ordered list of steps. Steps execute strictly
// sequentially; later steps build their inputs from earlier results.
type Workflow struct {
	Name        string
	Description string
	Steps       []Step
}
