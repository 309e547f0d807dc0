package store

import (
	"encoding/json"
	"time"

	"github.com/propai/propai/pkg/schema"
)

// WorkflowRun is the persisted record of one workflow execution.
// Owned by the engine; terminal once status leaves running.
type WorkflowRun struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Status     schema.RunStatus `json:"status"`
	Input      map[string]any   `json:"input,omitempty"`
	Output     map[string]any   `json:"output,omitempty"`
	Error      string           `json:"error,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
}

// WorkflowStep is one step attempt within a run. Retries fork a fresh
// record per attempt; a record is never reused across attempts.
type WorkflowStep struct {
	ID            string            `json:"id"`
	WorkflowRunID string            `json:"workflow_run_id"`
	StepName      string            `json:"step_name"`
	ToolName      string            `json:"tool_name"`
	Status        schema.StepStatus `json:"status"`
	Input         map[string]any    `json:"input,omitempty"`
	Output        map[string]any    `json:"output,omitempty"`
	Error         string            `json:"error,omitempty"`
	StartedAt     time.Time         `json:"started_at"`
	FinishedAt    *time.Time        `json:"finished_at,omitempty"`
}

// ToolCall is the audit record of one tool invocation. A call may
// originate outside any workflow, so run and lead links are optional.
type ToolCall struct {
	ID            string                `json:"id"`
	ToolName      string                `json:"tool_name"`
	Input         map[string]any        `json:"input,omitempty"`
	Output        map[string]any        `json:"output,omitempty"`
	Status        schema.ToolCallStatus `json:"status"`
	Error         string                `json:"error,omitempty"`
	LeadID        *int64                `json:"lead_id,omitempty"`
	WorkflowRunID string                `json:"workflow_run_id,omitempty"`
	Source        string                `json:"source,omitempty"`
	StartedAt     time.Time             `json:"started_at"`
	FinishedAt    *time.Time            `json:"finished_at,omitempty"`
}

// Webhook is a registered event subscriber.
type Webhook struct {
	ID        string    `json:"id"`
	EventType string    `json:"event_type"`
	URL       string    `json:"url"`
	Secret    string    `json:"secret,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WebhookDelivery tracks the attempt sequence of sending one event
// payload to one subscriber. Unlike workflow steps, the row is mutated
// in place across retry attempts.
type WebhookDelivery struct {
	ID           string                `json:"id"`
	WebhookID    string                `json:"webhook_id"`
	Payload      json.RawMessage       `json:"payload,omitempty"`
	Status       schema.DeliveryStatus `json:"status"`
	Attempts     int                   `json:"attempts"`
	LastError    string                `json:"last_error,omitempty"`
	ResponseCode *int                  `json:"response_code,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// Lead is a CRM lead record.
type Lead struct {
	ID            int64     `json:"id"`
	LeadKey       string    `json:"lead_key"`
	LeadName      string    `json:"lead_name,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Email         string    `json:"email,omitempty"`
	GroupName     string    `json:"group_name,omitempty"`
	LeadType      string    `json:"lead_type,omitempty"`
	Contact       string    `json:"contact,omitempty"`
	UrgencyScore  *int      `json:"urgency_score,omitempty"`
	Intent        string    `json:"intent,omitempty"`
	Budget        string    `json:"budget,omitempty"`
	Location      string    `json:"location,omitempty"`
	Configuration string    `json:"configuration,omitempty"`
	Timeline      string    `json:"timeline,omitempty"`
	Source        string    `json:"source,omitempty"`
	Status        string    `json:"status,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Message is one conversation entry attached to a lead.
type Message struct {
	ID        int64     `json:"id"`
	LeadID    int64     `json:"lead_id"`
	Source    string    `json:"source,omitempty"`
	Direction string    `json:"direction,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// WebhookPatch specifies mutable fields of a webhook subscription.
// Nil means "leave unchanged"; an empty Secret clears the secret.
type WebhookPatch struct {
	EventType *string `json:"event_type,omitempty"`
	URL       *string `json:"url,omitempty"`
	Secret    *string `json:"secret,omitempty"`
	Active    *bool   `json:"active,omitempty"`
}

// ToolCallFilter specifies criteria for listing tool calls.
type ToolCallFilter struct {
	ToolName      string `json:"tool_name,omitempty"`
	WorkflowRunID string `json:"workflow_run_id,omitempty"`
	LeadID        *int64 `json:"lead_id,omitempty"`
	Limit         int    `json:"limit,omitempty"`
}
