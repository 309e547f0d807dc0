package tools

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/propai/propai/internal/store"
	"github.com/propai/propai/pkg/schema"
)

// defaultSource is assumed when a caller supplies no origin tag.
const defaultSource = "web"

// Policy controls which tools may run and who may call them.
type Policy struct {
	// Disabled lists tool names that reject all invocations.
	Disabled []string `json:"disabled,omitempty"`
	// Permissions maps a tool name to the caller sources allowed to use
	// it. A missing or empty entry means the tool is open to all sources.
	Permissions map[string][]string `json:"permissions,omitempty"`
}

// Enabled reports whether the tool is not on the disabled list.
func (p Policy) Enabled(toolName string) bool {
	for _, name := range p.Disabled {
		if name == toolName {
			return false
		}
	}
	return true
}

// Permitted reports whether the source may invoke the tool.
func (p Policy) Permitted(toolName, source string) bool {
	allowed := p.Permissions[toolName]
	if len(allowed) == 0 {
		return true
	}
	if source == "" {
		source = defaultSource
	}
	for _, s := range allowed {
		if s == source {
			return true
		}
	}
	return false
}

// Gateway dispatches named tool invocations, enforcing policy and
// recording each call's lifecycle in the ledger. It owns no business
// logic; failures of the tool itself are recorded and re-raised.
type Gateway struct {
	registry *Registry
	store    store.Store
	policy   Policy
	logger   *slog.Logger
}

// NewGateway creates a Gateway over the given registry and ledger.
func NewGateway(registry *Registry, st store.Store, policy Policy, logger *slog.Logger) *Gateway {
	return &Gateway{
		registry: registry,
		store:    st,
		policy:   policy,
		logger:   logger,
	}
}

// Registry returns the underlying tool registry.
func (g *Gateway) Registry() *Registry { return g.registry }

// Invoke runs the named tool with the given input. Definition and
// authorization rejections happen before any ToolCall record exists;
// once execution begins, the record transitions running -> success or
// running -> error, and a tool error is returned to the caller
// unchanged (retry is the caller's responsibility).
func (g *Gateway) Invoke(ctx context.Context, toolName string, input map[string]any, call CallContext) (map[string]any, error) {
	if call.Source == "" {
		call.Source = defaultSource
	}
	tool, err := g.registry.Get(toolName)
	if err != nil {
		return nil, err
	}
	if !g.policy.Enabled(toolName) {
		return nil, schema.NewErrorf(schema.ErrCodeToolDisabled, "tool disabled: %s", toolName)
	}
	if !g.policy.Permitted(toolName, call.Source) {
		return nil, schema.NewErrorf(schema.ErrCodeToolNotPermitted, "tool not permitted for source: %s", toolName)
	}

	record := &store.ToolCall{
		ID:            uuid.New().String(),
		ToolName:      toolName,
		Input:         input,
		Status:        schema.ToolCallStatusRunning,
		LeadID:        call.LeadID,
		WorkflowRunID: call.WorkflowRunID,
		Source:        call.Source,
		StartedAt:     time.Now().UTC(),
	}
	if err := g.store.CreateToolCall(ctx, record); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "create tool call: %s", err.Error()).WithCause(err)
	}

	g.logger.InfoContext(ctx, "tool invocation started",
		slog.String("tool", toolName),
		slog.String("tool_call_id", record.ID),
		slog.String("source", call.Source),
	)

	output, execErr := tool.Execute(ctx, input)
	if execErr != nil {
		if ferr := g.store.FinishToolCall(ctx, record.ID, schema.ToolCallStatusError, nil, execErr.Error()); ferr != nil {
			g.logger.ErrorContext(ctx, "failed to finalize tool call record",
				slog.String("tool_call_id", record.ID),
				slog.String("error", ferr.Error()),
			)
		}
		return nil, execErr
	}

	if err := g.store.FinishToolCall(ctx, record.ID, schema.ToolCallStatusSuccess, output, ""); err != nil {
		g.logger.ErrorContext(ctx, "failed to finalize tool call record",
			slog.String("tool_call_id", record.ID),
			slog.String("error", err.Error()),
		)
	}
	return output, nil
}
