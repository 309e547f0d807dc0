package tools

import (
	"context"
	"encoding/json"
)

// Tool is a named capability with a fixed input/output contract,
// invoked by the gateway on behalf of workflows and direct callers.
type Tool interface {
	Name() string
	Schema() ToolSchema
	Execute(ctx context.Context, input map[string]any) (map[string]any, error)
	Validate(input map[string]any) error
}

// ToolSchema describes the input/output contract of a tool.
type ToolSchema struct {
	Description string          `json:"description,omitempty"`
	Inputs      []string        `json:"inputs,omitempty"`
	Outputs     []string        `json:"outputs,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// ToolInfo is a summary of a registered tool for listing.
type ToolInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Inputs      []string `json:"inputs,omitempty"`
	Outputs     []string `json:"outputs,omitempty"`
}

// CallContext carries the caller origin of a tool invocation.
// Source tags where the call came from (web, whatsapp, email, scheduler,
// cli); the run and lead links are optional.
type CallContext struct {
	Source        string
	LeadID        *int64
	WorkflowRunID string
}
