package tools

import (
	"context"
	"encoding/json"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// AIClient generates text with the configured LLM provider. Provider
// SDK wiring lives outside this package.
type AIClient interface {
	Generate(ctx context.Context, prompt, systemPrompt string) (string, error)
}

const aiGenerateInputSchema = `{
  "type": "object",
  "properties": {
    "prompt": {"type": "string", "minLength": 1},
    "systemPrompt": {"type": "string"}
  },
  "required": ["prompt"]
}`

// AIGenerateTool implements the "ai_generate" tool.
type AIGenerateTool struct {
	client AIClient
	schema *jsonschema.Schema
}

// NewAIGenerateTool creates the ai_generate tool over the given client.
func NewAIGenerateTool(client AIClient) *AIGenerateTool {
	return &AIGenerateTool{
		client: client,
		schema: mustCompileSchema("propai://tools/ai_generate.json", aiGenerateInputSchema),
	}
}

func (t *AIGenerateTool) Name() string { return "ai_generate" }

func (t *AIGenerateTool) Schema() ToolSchema {
	return ToolSchema{
		Description: "Generate a response with the configured LLM",
		Inputs:      []string{"prompt", "systemPrompt"},
		Outputs:     []string{"text"},
		InputSchema: json.RawMessage(aiGenerateInputSchema),
	}
}

func (t *AIGenerateTool) Validate(input map[string]any) error {
	return validateInput(t.schema, input)
}

func (t *AIGenerateTool) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	if err := t.Validate(input); err != nil {
		return nil, err
	}
	text, err := t.client.Generate(ctx, stringParam(input, "prompt", ""), stringParam(input, "systemPrompt", ""))
	if err != nil {
		return nil, err
	}
	return map[string]any{"text": text}, nil
}
