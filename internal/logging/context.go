package logging

import (
	"context"
	"log/slog"
	"strconv"
)

type ctxKey int

const (
	runIDKey ctxKey = iota
	stepNameKey
	leadIDKey
)

// WithRunID returns a context with the workflow run ID set.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// WithStepName returns a context with the step name set.
func WithStepName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, stepNameKey, name)
}

// WithLeadID returns a context with the lead ID set.
func WithLeadID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, leadIDKey, id)
}

// RunID extracts the workflow run ID from the context, or "" if absent.
func RunID(ctx context.Context) string {
	v, _ := ctx.Value(runIDKey).(string)
	return v
}

// StepName extracts the step name from the context, or "" if absent.
func StepName(ctx context.Context) string {
	v, _ := ctx.Value(stepNameKey).(string)
	return v
}

// LeadID extracts the lead ID from the context, or 0 if absent.
func LeadID(ctx context.Context) int64 {
	v, _ := ctx.Value(leadIDKey).(int64)
	return v
}

// CorrelationHandler wraps an slog.Handler, automatically injecting
// correlation IDs from the context into every log record.
// Use with slog.New(NewCorrelationHandler(inner)) so callers can use
// logger.InfoContext(ctx, ...) and IDs appear automatically.
type CorrelationHandler struct {
	inner slog.Handler
}

// NewCorrelationHandler wraps the given handler with automatic correlation ID injection.
func NewCorrelationHandler(inner slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{inner: inner}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	if v := RunID(ctx); v != "" {
		r.AddAttrs(slog.String("run_id", v))
	}
	if v := StepName(ctx); v != "" {
		r.AddAttrs(slog.String("step_name", v))
	}
	if v := LeadID(ctx); v != 0 {
		r.AddAttrs(slog.String("lead_id", strconv.FormatInt(v, 10)))
	}
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithGroup(name)}
}
