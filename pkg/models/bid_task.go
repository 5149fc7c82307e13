package models

import "github.com/google/uuid"

// TaskStatus is the lifecycle state of a BidGenerationTask.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// IsTerminal reports whether no further transition is allowed.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// Progress checkpoints.
const (
	ProgressCreated    = 10
	ProgressProcessing = 30
	ProgressGathered   = 50
	ProgressGenerated  = 80
	ProgressDone       = 100
)

// Error codes stored on failed tasks.
const (
	TaskErrorGenerationFailed  = "generation_failed"
	TaskErrorGenerationTimeout = "generation_timeout"
	TaskErrorStorageFailed     = "storage_failed"
)

// BidGenerationTask tracks one attempt to produce a bid for a project.
// ResultFileURL is set only when completed, ErrorMessage/ErrorCode only when failed.
type BidGenerationTask struct {
	TenantRecord
	ProjectID     uuid.UUID  `json:"project_id"`
	TemplateID    uuid.UUID  `json:"template_id"`
	RFPFileURL    string     `json:"rfp_file_url"`
	Status        TaskStatus `json:"status"`
	Progress      int        `json:"progress"`
	ResultFileURL string     `json:"result_file_url,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	ErrorCode     string     `json:"error_code,omitempty"`
}
