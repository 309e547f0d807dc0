package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propai/propai/pkg/schema"
)

func TestTransformSingleOutput(t *testing.T) {
	tool := NewTransformTool()

	output, err := tool.Execute(context.Background(), map[string]any{
		"expression": ".name",
		"data":       map[string]any{"name": "Ada", "budget": 500000},
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada", output["result"])
}

func TestTransformMultipleOutputs(t *testing.T) {
	tool := NewTransformTool()

	output, err := tool.Execute(context.Background(), map[string]any{
		"expression": ".items[]",
		"data":       map[string]any{"items": []any{"a", "b"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, output["result"])
}

func TestTransformNormalizesNumbers(t *testing.T) {
	tool := NewTransformTool()

	output, err := tool.Execute(context.Background(), map[string]any{
		"expression": ".budget * 2",
		"data":       map[string]any{"budget": int64(100)},
	})
	require.NoError(t, err)
	assert.Equal(t, float64(200), output["result"])
}

func TestTransformParseError(t *testing.T) {
	tool := NewTransformTool()

	_, err := tool.Execute(context.Background(), map[string]any{
		"expression": ".[invalid",
		"data":       map[string]any{},
	})
	require.Error(t, err)

	var perr *schema.PropError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, schema.ErrCodeValidation, perr.Code)
}

func TestTransformRejectsMissingExpression(t *testing.T) {
	tool := NewTransformTool()

	_, err := tool.Execute(context.Background(), map[string]any{
		"data": map[string]any{},
	})
	require.Error(t, err)

	var perr *schema.PropError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, schema.ErrCodeValidation, perr.Code)
}

func TestTransformReusesCompiledPrograms(t *testing.T) {
	tool := NewTransformTool()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := tool.Execute(ctx, map[string]any{
			"expression": ".x",
			"data":       map[string]any{"x": i},
		})
		require.NoError(t, err)
	}

	tool.mu.RLock()
	defer tool.mu.RUnlock()
	assert.Len(t, tool.cache, 1)
}
