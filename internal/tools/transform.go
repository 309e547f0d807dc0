package tools

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/itchyny/gojq"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/propai/propai/pkg/schema"
)

const transformInputSchema = `{
  "type": "object",
  "properties": {
    "expression": {"type": "string", "minLength": 1},
    "data": {}
  },
  "required": ["expression", "data"]
}`

// TransformTool implements the "transform" tool: it evaluates a jq
// expression against arbitrary JSON data. Compiled programs are cached
// and reused across goroutines.
type TransformTool struct {
	mu     sync.RWMutex
	cache  map[string]*gojq.Code
	schema *jsonschema.Schema
}

// NewTransformTool creates the transform tool with an empty program cache.
func NewTransformTool() *TransformTool {
	return &TransformTool{
		cache:  make(map[string]*gojq.Code),
		schema: mustCompileSchema("propai://tools/transform.json", transformInputSchema),
	}
}

func (t *TransformTool) Name() string { return "transform" }

func (t *TransformTool) Schema() ToolSchema {
	return ToolSchema{
		Description: "Transform JSON data with a jq expression",
		Inputs:      []string{"expression", "data"},
		Outputs:     []string{"result"},
		InputSchema: json.RawMessage(transformInputSchema),
	}
}

func (t *TransformTool) Validate(input map[string]any) error {
	return validateInput(t.schema, input)
}

func (t *TransformTool) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	if err := t.Validate(input); err != nil {
		return nil, err
	}
	expression := stringParam(input, "expression", "")
	data := input["data"]

	code, err := t.getOrCompile(expression)
	if err != nil {
		return nil, err
	}

	iter := code.RunWithContext(ctx, normalizeForJQ(data))

	var results []any
	for {
		val, ok := iter.Next()
		if !ok {
			break
		}
		if evalErr, isErr := val.(error); isErr {
			return nil, schema.NewErrorf(schema.ErrCodeExecution,
				"jq evaluation failed for %q: %s", expression, evalErr.Error()).
				WithCause(evalErr).
				WithDetails(map[string]any{"expression": expression})
		}
		results = append(results, val)
	}

	// jq expressions can produce multiple outputs. A single output is
	// returned directly, multiple outputs as a slice.
	var result any
	switch len(results) {
	case 0:
		result = nil
	case 1:
		result = results[0]
	default:
		result = results
	}
	return map[string]any{"result": result}, nil
}

// getOrCompile returns a cached compiled program or compiles and caches
// a new one.
func (t *TransformTool) getOrCompile(expression string) (*gojq.Code, error) {
	t.mu.RLock()
	if code, ok := t.cache[expression]; ok {
		t.mu.RUnlock()
		return code, nil
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	if code, ok := t.cache[expression]; ok {
		return code, nil
	}

	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"jq parse error in %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}

	code, err := gojq.Compile(query,
		// Sandbox: block $ENV and env access.
		gojq.WithEnvironLoader(func() []string { return nil }),
	)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"jq compile error in %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}

	t.cache[expression] = code
	return code, nil
}

// normalizeForJQ converts Go native number types to float64, which is
// jq's only number representation.
func normalizeForJQ(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			out[k] = normalizeForJQ(v)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, v := range val {
			out[i] = normalizeForJQ(v)
		}
		return out
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case int32:
		return float64(val)
	case float32:
		return float64(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return v
		}
		return f
	default:
		return v
	}
}
