// Package events publishes bid task lifecycle events for other systems
// (notifications, dashboards) to consume.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
)

// Event types.
const (
	TaskCompleted = "task.completed"
	TaskFailed    = "task.failed"
	TaskCancelled = "task.cancelled"
)

// TaskEvent describes a bid generation task reaching a terminal state.
type TaskEvent struct {
	EventType     string            `json:"event_type"`
	CompanyID     uuid.UUID         `json:"company_id"`
	TaskID        uuid.UUID         `json:"task_id"`
	ProjectID     uuid.UUID         `json:"project_id"`
	Status        models.TaskStatus `json:"status"`
	ResultFileURL string            `json:"result_file_url,omitempty"`
	ErrorCode     string            `json:"error_code,omitempty"`
	BidID         *uuid.UUID        `json:"bid_id,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
}

// NewTaskEvent builds the event for task's current state.
func NewTaskEvent(eventType string, task *models.BidGenerationTask, bidID *uuid.UUID) TaskEvent {
	return TaskEvent{
		EventType:     eventType,
		CompanyID:     task.CompanyID,
		TaskID:        task.ID,
		ProjectID:     task.ProjectID,
		Status:        task.Status,
		ResultFileURL: task.ResultFileURL,
		ErrorCode:     task.ErrorCode,
		BidID:         bidID,
		Timestamp:     time.Now().UTC(),
	}
}

// Publisher delivers task events. Publishing is best effort; callers log
// failures and carry on.
type Publisher interface {
	PublishTaskEvent(ctx context.Context, event TaskEvent) error
	Close()
}

// NoopPublisher drops every event. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishTaskEvent(context.Context, TaskEvent) error { return nil }
func (NoopPublisher) Close()                                            {}

var _ Publisher = NoopPublisher{}
