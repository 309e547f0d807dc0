package store

import (
	"context"

	"github.com/propai/propai/pkg/schema"
)

// Store defines the persistence layer contract (the run/step ledger plus
// the webhook and lead tables). All implementations must be safe for
// concurrent use; per-run step ordering is derived from record timestamps.
type Store interface {
	// Workflow runs
	CreateWorkflowRun(ctx context.Context, run *WorkflowRun) error
	FinishWorkflowRun(ctx context.Context, id string, status schema.RunStatus, output map[string]any, errMsg string) error
	GetWorkflowRun(ctx context.Context, id string) (*WorkflowRun, error)
	ListWorkflowRuns(ctx context.Context, limit int) ([]*WorkflowRun, error)

	// Workflow steps (one record per attempt, append-only)
	CreateWorkflowStep(ctx context.Context, step *WorkflowStep) error
	FinishWorkflowStep(ctx context.Context, id string, status schema.StepStatus, output map[string]any, errMsg string) error
	ListWorkflowSteps(ctx context.Context, workflowRunID string) ([]*WorkflowStep, error)

	// Tool calls
	CreateToolCall(ctx context.Context, call *ToolCall) error
	FinishToolCall(ctx context.Context, id string, status schema.ToolCallStatus, output map[string]any, errMsg string) error
	GetToolCall(ctx context.Context, id string) (*ToolCall, error)
	ListToolCalls(ctx context.Context, filter ToolCallFilter) ([]*ToolCall, error)

	// Webhook subscriptions (administrative surface; read-only to the dispatcher)
	CreateWebhook(ctx context.Context, w *Webhook) error
	GetWebhook(ctx context.Context, id string) (*Webhook, error)
	UpdateWebhook(ctx context.Context, id string, patch WebhookPatch) error
	DeleteWebhook(ctx context.Context, id string) error
	ListWebhooks(ctx context.Context) ([]*Webhook, error)
	ListActiveWebhooksForEvent(ctx context.Context, eventType string) ([]*Webhook, error)

	// Webhook deliveries (mutated in place across attempts)
	CreateWebhookDelivery(ctx context.Context, d *WebhookDelivery) error
	UpdateWebhookDelivery(ctx context.Context, id string, status schema.DeliveryStatus, attempts int, responseCode *int, lastError string) error
	GetWebhookDelivery(ctx context.Context, id string) (*WebhookDelivery, error)
	ListWebhookDeliveries(ctx context.Context, limit int) ([]*WebhookDelivery, error)

	// Leads and conversation log
	CreateLead(ctx context.Context, l *Lead) error
	GetLead(ctx context.Context, id int64) (*Lead, error)
	GetLeadByKey(ctx context.Context, leadKey string) (*Lead, error)
	UpdateLeadFields(ctx context.Context, id int64, fields map[string]any) error
	ListLeads(ctx context.Context, limit int) ([]*Lead, error)
	ListLeadsNeedingFollowup(ctx context.Context, hours int) ([]*Lead, error)
	AddMessage(ctx context.Context, m *Message) error
	ListMessages(ctx context.Context, leadID int64, limit int) ([]*Message, error)

	// Maintenance
	ReconcileStaleRunning(ctx context.Context) (int64, error)
	Migrate(ctx context.Context) error

	// Lifecycle
	Close() error
}
