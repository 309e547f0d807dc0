package tools

import (
	"context"
	"encoding/json"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/propai/propai/internal/store"
)

// LeadUpdater is the slice of the lead service the lead_update tool needs.
type LeadUpdater interface {
	UpdateFields(ctx context.Context, leadID int64, fields map[string]any) error
	GetByID(ctx context.Context, leadID int64) (*store.Lead, error)
}

const leadUpdateInputSchema = `{
  "type": "object",
  "properties": {
    "leadId": {"type": "integer", "minimum": 1},
    "fields": {"type": "object"}
  },
  "required": ["leadId", "fields"]
}`

// LeadUpdateTool implements the "lead_update" tool.
type LeadUpdateTool struct {
	leads  LeadUpdater
	schema *jsonschema.Schema
}

// NewLeadUpdateTool creates the lead_update tool over the given service.
func NewLeadUpdateTool(leads LeadUpdater) *LeadUpdateTool {
	return &LeadUpdateTool{
		leads:  leads,
		schema: mustCompileSchema("propai://tools/lead_update.json", leadUpdateInputSchema),
	}
}

func (t *LeadUpdateTool) Name() string { return "lead_update" }

func (t *LeadUpdateTool) Schema() ToolSchema {
	return ToolSchema{
		Description: "Update lead fields",
		Inputs:      []string{"leadId", "fields"},
		Outputs:     []string{"lead"},
		InputSchema: json.RawMessage(leadUpdateInputSchema),
	}
}

func (t *LeadUpdateTool) Validate(input map[string]any) error {
	return validateInput(t.schema, input)
}

func (t *LeadUpdateTool) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	if err := t.Validate(input); err != nil {
		return nil, err
	}
	leadID := int64Param(input, "leadId", 0)
	fields, _ := input["fields"].(map[string]any)

	if err := t.leads.UpdateFields(ctx, leadID, fields); err != nil {
		return nil, err
	}
	lead, err := t.leads.GetByID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"lead": leadToMap(lead)}, nil
}

// leadToMap round-trips the lead through JSON so tool outputs stay
// plain maps all the way into the ledger.
func leadToMap(lead *store.Lead) map[string]any {
	data, err := json.Marshal(lead)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}
