package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_RoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = WithRunID(ctx, "run-1")
	ctx = WithStepName(ctx, "compose_followup")
	ctx = WithLeadID(ctx, 42)

	assert.Equal(t, "run-1", RunID(ctx))
	assert.Equal(t, "compose_followup", StepName(ctx))
	assert.Equal(t, int64(42), LeadID(ctx))
}

func TestContext_Absent(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", RunID(ctx))
	assert.Equal(t, "", StepName(ctx))
	assert.Equal(t, int64(0), LeadID(ctx))
}

func TestCorrelationHandler_InjectsIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewTextHandler(&buf, nil)))

	ctx := WithRunID(context.Background(), "run-9")
	ctx = WithStepName(ctx, "find_leads")
	logger.InfoContext(ctx, "step started")

	out := buf.String()
	require.NotEmpty(t, out)
	assert.Contains(t, out, "run_id=run-9")
	assert.Contains(t, out, "step_name=find_leads")
	assert.NotContains(t, out, "lead_id")
}

func TestCorrelationHandler_PlainContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewTextHandler(&buf, nil)))

	logger.InfoContext(context.Background(), "no correlation")

	out := buf.String()
	assert.Contains(t, out, "no correlation")
	assert.NotContains(t, out, "run_id")
}

func TestCorrelationHandler_WithAttrsPreserved(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewTextHandler(&buf, nil))).
		With(slog.String("component", "engine"))

	ctx := WithLeadID(context.Background(), 7)
	logger.InfoContext(ctx, "hello")

	out := buf.String()
	assert.Contains(t, out, "component=engine")
	assert.Contains(t, out, "lead_id=7")
}
