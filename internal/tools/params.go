package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/propai/propai/pkg/schema"
)

// Param helpers shared by the builtin tools.

func stringParam(m map[string]any, key, defaultVal string) string {
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	s, ok := v.(string)
	if !ok {
		return defaultVal
	}
	return s
}

func intParam(m map[string]any, key string, defaultVal int) int {
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return defaultVal
		}
		return int(i)
	default:
		return defaultVal
	}
}

func int64Param(m map[string]any, key string, defaultVal int64) int64 {
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return defaultVal
		}
		return i
	default:
		return defaultVal
	}
}

// mustCompileSchema compiles an embedded input schema at construction
// time. The schemas are constants, so a failure is a programming error.
func mustCompileSchema(id, raw string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("unmarshal schema %s: %v", id, err))
	}
	if err := c.AddResource(id, doc); err != nil {
		panic(fmt.Sprintf("add schema resource %s: %v", id, err))
	}
	compiled, err := c.Compile(id)
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", id, err))
	}
	return compiled
}

// validateInput checks tool input against a compiled JSON Schema.
// The input is round-tripped through JSON so Go-native numbers match
// the validator's expected types.
func validateInput(compiled *jsonschema.Schema, input map[string]any) error {
	if input == nil {
		input = map[string]any{}
	}
	data, err := json.Marshal(input)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "input is not JSON-serializable").WithCause(err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "input is not valid JSON").WithCause(err)
	}
	if err := compiled.Validate(doc); err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "invalid tool input: %s", err.Error()).WithCause(err)
	}
	return nil
}
