package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/propai/propai/internal/logging"
	"github.com/propai/propai/internal/store"
	"github.com/propai/propai/internal/tools"
	"github.com/propai/propai/pkg/schema"
)

// ToolInvoker is the gateway surface the engine dispatches tool steps
// through.
type ToolInvoker interface {
	Invoke(ctx context.Context, toolName string, input map[string]any, call tools.CallContext) (map[string]any, error)
}

// EventNotifier receives domain events for fan-out. Implementations
// must not block the caller.
type EventNotifier interface {
	Notify(eventType string, data map[string]any)
}

// Engine runs registered workflows: strictly sequential steps, per-step
// retry with exponential backoff, and a full audit trail in the ledger.
// A run that fails still leaves its run record and every attempt's step
// record behind.
type Engine struct {
	mu        sync.RWMutex
	workflows map[string]*Workflow

	store      store.Store
	invoker    ToolInvoker
	notifier   EventNotifier
	conditions *conditionEvaluator
	logger     *slog.Logger
}

// New creates an Engine. The notifier may be nil when event fan-out is
// not wired.
func New(st store.Store, invoker ToolInvoker, notifier EventNotifier, logger *slog.Logger) *Engine {
	return &Engine{
		workflows:  make(map[string]*Workflow),
		store:      st,
		invoker:    invoker,
		notifier:   notifier,
		conditions: newConditionEvaluator(),
		logger:     logger,
	}
}

// Register adds a workflow definition. Returns error on duplicate name.
func (e *Engine) Register(wf *Workflow) error {
	if wf == nil || wf.Name == "" {
		return schema.NewError(schema.ErrCodeValidation, "workflow has no name")
	}
	for _, step := range wf.Steps {
		if step.Run == nil && step.Tool == "" {
			return schema.NewErrorf(schema.ErrCodeValidation,
				"workflow %q step %q has neither tool nor run handler", wf.Name, step.Name)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.workflows[wf.Name]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "workflow %q already registered", wf.Name)
	}
	e.workflows[wf.Name] = wf
	return nil
}

// Get returns a registered workflow by name.
func (e *Engine) Get(name string) (*Workflow, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	wf, ok := e.workflows[name]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeWorkflowNotFound, "workflow not found: %s", name)
	}
	return wf, nil
}

// List returns the names of all registered workflows.
func (e *Engine) List() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.workflows))
	for name := range e.workflows {
		names = append(names, name)
	}
	return names
}

// Run executes the named workflow. The returned Results map collects
// each successful step's output under its step name; skipped steps
// contribute nothing. On step failure after all retries, the run is
// finalized with status error and the step's error is returned — the
// audit trail is persisted before the error propagates.
func (e *Engine) Run(ctx context.Context, name string, input map[string]any, rc RunContext) (Results, error) {
	wf, err := e.Get(name)
	if err != nil {
		return nil, err
	}

	run := &store.WorkflowRun{
		ID:        uuid.New().String(),
		Name:      name,
		Status:    schema.RunStatusRunning,
		Input:     input,
		StartedAt: time.Now().UTC(),
	}
	if err := e.store.CreateWorkflowRun(ctx, run); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "create workflow run: %s", err.Error()).WithCause(err)
	}

	ctx = logging.WithRunID(ctx, run.ID)
	if rc.LeadID != nil {
		ctx = logging.WithLeadID(ctx, *rc.LeadID)
	}
	e.logger.InfoContext(ctx, "workflow run started",
		slog.String("workflow", name),
		slog.String("source", rc.Source),
	)

	results := make(Results)
	runErr := e.runSteps(ctx, wf, run.ID, input, rc, results)

	status := schema.RunStatusSuccess
	errMsg := ""
	if runErr != nil {
		status = schema.RunStatusError
		errMsg = runErr.Error()
	}
	output := resultsToOutput(results)
	if err := e.store.FinishWorkflowRun(ctx, run.ID, status, output, errMsg); err != nil {
		e.logger.ErrorContext(ctx, "failed to finalize workflow run",
			slog.String("workflow", name),
			slog.String("error", err.Error()),
		)
	}

	if runErr != nil {
		e.logger.ErrorContext(ctx, "workflow run failed",
			slog.String("workflow", name),
			slog.String("error", errMsg),
		)
		return nil, runErr
	}

	e.logger.InfoContext(ctx, "workflow run completed", slog.String("workflow", name))
	if e.notifier != nil {
		data := map[string]any{
			"workflow": name,
			"runId":    run.ID,
			"output":   output,
		}
		if rc.LeadID != nil {
			data["leadId"] = *rc.LeadID
		}
		e.notifier.Notify("workflow.completed", data)
	}
	return results, nil
}

func (e *Engine) runSteps(ctx context.Context, wf *Workflow, runID string, input map[string]any, rc RunContext, results Results) error {
	for _, step := range wf.Steps {
		skip, err := e.shouldSkip(step, rc, results, input)
		if err != nil {
			return err
		}
		if skip {
			e.logger.DebugContext(ctx, "step skipped", slog.String("step", step.Name))
			continue
		}
		if err := e.runStep(ctx, step, runID, input, rc, results); err != nil {
			return err
		}
	}
	return nil
}

// shouldSkip gates a step: the Go predicate and the declarative
// condition both must pass when set. Condition errors abort the run
// rather than silently skipping.
func (e *Engine) shouldSkip(step Step, rc RunContext, results Results, input map[string]any) (bool, error) {
	if step.When != nil && !step.When(rc, results) {
		return true, nil
	}
	if step.Condition != "" {
		ok, err := e.conditions.evaluate(step.Condition, rc, results, input)
		if err != nil {
			return false, err
		}
		if !ok {
			return true, nil
		}
	}
	return false, nil
}

// runStep executes one step's attempt loop: a fresh step record per
// attempt tagged with the attempt counters, backoff sleeps between
// failed attempts, error propagation when the budget is exhausted.
func (e *Engine) runStep(ctx context.Context, step Step, runID string, input map[string]any, rc RunContext, results Results) error {
	ctx = logging.WithStepName(ctx, step.Name)

	stepInput := input
	if step.Input != nil {
		stepInput = step.Input(rc, results)
	}

	maxAttempts := step.Retry.MaxAttempts()
	delay := time.Duration(0)
	factor := 1.0
	if step.Retry != nil {
		delay = step.Retry.Delay
		if step.Retry.BackoffFactor > 0 {
			factor = step.Retry.BackoffFactor
		}
	}

	toolName := step.Tool
	if toolName == "" {
		toolName = "inline"
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		record := &store.WorkflowStep{
			ID:            uuid.New().String(),
			WorkflowRunID: runID,
			StepName:      step.Name,
			ToolName:      toolName,
			Status:        schema.StepStatusRunning,
			Input:         taggedInput(stepInput, attempt, maxAttempts),
			StartedAt:     time.Now().UTC(),
		}
		if err := e.store.CreateWorkflowStep(ctx, record); err != nil {
			return schema.NewErrorf(schema.ErrCodeStore, "create workflow step: %s", err.Error()).WithCause(err)
		}

		output, execErr := e.executeStep(ctx, step, runID, stepInput, rc, results)
		if execErr == nil {
			results[step.Name] = output
			if err := e.store.FinishWorkflowStep(ctx, record.ID, schema.StepStatusSuccess, output, ""); err != nil {
				e.logger.ErrorContext(ctx, "failed to finalize workflow step",
					slog.String("step", step.Name),
					slog.String("error", err.Error()),
				)
			}
			return nil
		}

		if err := e.store.FinishWorkflowStep(ctx, record.ID, schema.StepStatusError, nil, execErr.Error()); err != nil {
			e.logger.ErrorContext(ctx, "failed to finalize workflow step",
				slog.String("step", step.Name),
				slog.String("error", err.Error()),
			)
		}

		// The run's error is the final attempt's failure, unwrapped.
		if attempt >= maxAttempts {
			return execErr
		}

		e.logger.WarnContext(ctx, "step attempt failed, retrying",
			slog.String("step", step.Name),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxAttempts),
			slog.Duration("delay", delay),
			slog.String("error", execErr.Error()),
		)
		if err := waitForRetry(ctx, delay); err != nil {
			return err
		}
		delay = nextDelay(delay, factor)
	}
	return nil
}

func (e *Engine) executeStep(ctx context.Context, step Step, runID string, stepInput map[string]any, rc RunContext, results Results) (map[string]any, error) {
	if step.Run != nil {
		return step.Run(ctx, rc, results)
	}
	return e.invoker.Invoke(ctx, step.Tool, stepInput, tools.CallContext{
		Source:        rc.Source,
		LeadID:        rc.LeadID,
		WorkflowRunID: runID,
	})
}

// taggedInput copies the step input and adds the attempt counters, so
// each persisted attempt record is self-describing.
func taggedInput(input map[string]any, attempt, maxAttempts int) map[string]any {
	tagged := make(map[string]any, len(input)+2)
	for k, v := range input {
		tagged[k] = v
	}
	tagged["_attempt"] = attempt
	tagged["_max_attempts"] = maxAttempts
	return tagged
}

func resultsToOutput(results Results) map[string]any {
	output := make(map[string]any, len(results))
	for name, stepOutput := range results {
		output[name] = stepOutput
	}
	return output
}
