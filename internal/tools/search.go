package tools

import (
	"context"
	"encoding/json"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// SearchProvider runs a web search via the configured provider.
type SearchProvider interface {
	Search(ctx context.Context, query string) (any, error)
}

const searchWebInputSchema = `{
  "type": "object",
  "properties": {
    "query": {"type": "string", "minLength": 1}
  },
  "required": ["query"]
}`

// SearchWebTool implements the "search_web" tool.
type SearchWebTool struct {
	provider SearchProvider
	schema   *jsonschema.Schema
}

// NewSearchWebTool creates the search_web tool over the given provider.
func NewSearchWebTool(provider SearchProvider) *SearchWebTool {
	return &SearchWebTool{
		provider: provider,
		schema:   mustCompileSchema("propai://tools/search_web.json", searchWebInputSchema),
	}
}

func (t *SearchWebTool) Name() string { return "search_web" }

func (t *SearchWebTool) Schema() ToolSchema {
	return ToolSchema{
		Description: "Run web search via configured provider",
		Inputs:      []string{"query"},
		Outputs:     []string{"results"},
		InputSchema: json.RawMessage(searchWebInputSchema),
	}
}

func (t *SearchWebTool) Validate(input map[string]any) error {
	return validateInput(t.schema, input)
}

func (t *SearchWebTool) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	if err := t.Validate(input); err != nil {
		return nil, err
	}
	results, err := t.provider.Search(ctx, stringParam(input, "query", ""))
	if err != nil {
		return nil, err
	}
	return map[string]any{"results": results}, nil
}
