package schema

// RunStatus is the lifecycle state of a workflow run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusError   RunStatus = "error"
)

// IsTerminal reports whether the run status is final.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSuccess || s == RunStatusError
}

// StepStatus is the lifecycle state of a single step attempt record.
// Each retry spawns a fresh record, so a record itself only ever moves
// running -> success or running -> error.
type StepStatus string

const (
	StepStatusRunning StepStatus = "running"
	StepStatusSuccess StepStatus = "success"
	StepStatusError   StepStatus = "error"
)

// ToolCallStatus is the lifecycle state of a tool invocation record.
type ToolCallStatus string

const (
	ToolCallStatusRunning ToolCallStatus = "running"
	ToolCallStatusSuccess ToolCallStatus = "success"
	ToolCallStatusError   ToolCallStatus = "error"
)

// DeliveryStatus is the lifecycle state of a webhook delivery row.
// A row is mutated in place across attempts: failed can be re-entered
// until success or attempts are exhausted.
type DeliveryStatus string

const (
	DeliveryStatusPending DeliveryStatus = "pending"
	DeliveryStatusSuccess DeliveryStatus = "success"
	DeliveryStatusFailed  DeliveryStatus = "failed"
)
