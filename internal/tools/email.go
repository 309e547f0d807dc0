package tools

import (
	"context"
	"encoding/json"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// Mailer sends and reads email through the configured account.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
	Read(ctx context.Context, filter string, limit int) ([]map[string]any, error)
}

const gmailSendInputSchema = `{
  "type": "object",
  "properties": {
    "to": {"type": "string", "minLength": 1},
    "subject": {"type": "string"},
    "body": {"type": "string"}
  },
  "required": ["to"]
}`

const gmailReadInputSchema = `{
  "type": "object",
  "properties": {
    "filter": {"type": "string"},
    "limit": {"type": "integer", "minimum": 1}
  }
}`

// GmailSendTool implements the "gmail_send" tool.
type GmailSendTool struct {
	mailer Mailer
	schema *jsonschema.Schema
}

// NewGmailSendTool creates the gmail_send tool over the given mailer.
func NewGmailSendTool(mailer Mailer) *GmailSendTool {
	return &GmailSendTool{
		mailer: mailer,
		schema: mustCompileSchema("propai://tools/gmail_send.json", gmailSendInputSchema),
	}
}

func (t *GmailSendTool) Name() string { return "gmail_send" }

func (t *GmailSendTool) Schema() ToolSchema {
	return ToolSchema{
		Description: "Send an email via Gmail",
		Inputs:      []string{"to", "subject", "body"},
		Outputs:     []string{"status"},
		InputSchema: json.RawMessage(gmailSendInputSchema),
	}
}

func (t *GmailSendTool) Validate(input map[string]any) error {
	return validateInput(t.schema, input)
}

func (t *GmailSendTool) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	if err := t.Validate(input); err != nil {
		return nil, err
	}
	err := t.mailer.Send(ctx,
		stringParam(input, "to", ""),
		stringParam(input, "subject", ""),
		stringParam(input, "body", ""),
	)
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": "sent"}, nil
}

// GmailReadTool implements the "gmail_read" tool.
type GmailReadTool struct {
	mailer Mailer
	schema *jsonschema.Schema
}

// NewGmailReadTool creates the gmail_read tool over the given mailer.
func NewGmailReadTool(mailer Mailer) *GmailReadTool {
	return &GmailReadTool{
		mailer: mailer,
		schema: mustCompileSchema("propai://tools/gmail_read.json", gmailReadInputSchema),
	}
}

func (t *GmailReadTool) Name() string { return "gmail_read" }

func (t *GmailReadTool) Schema() ToolSchema {
	return ToolSchema{
		Description: "Read emails via Gmail",
		Inputs:      []string{"filter", "limit"},
		Outputs:     []string{"emails"},
		InputSchema: json.RawMessage(gmailReadInputSchema),
	}
}

func (t *GmailReadTool) Validate(input map[string]any) error {
	return validateInput(t.schema, input)
}

func (t *GmailReadTool) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	if err := t.Validate(input); err != nil {
		return nil, err
	}
	emails, err := t.mailer.Read(ctx, stringParam(input, "filter", ""), intParam(input, "limit", 5))
	if err != nil {
		return nil, err
	}
	return map[string]any{"emails": emails}, nil
}
