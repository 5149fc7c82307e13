package models

import (
	"time"

	"github.com/google/uuid"
)

// Operation types recorded in the operation log.
const (
	OperationCreate   = "create"
	OperationUpdate   = "update"
	OperationDelete   = "delete"
	OperationLogin    = "login"
	OperationUpload   = "upload"
	OperationGenerate = "generate"
)

// Resource types recorded in the operation log.
const (
	ResourceProject        = "project"
	ResourceRFPItem        = "rfp_item"
	ResourceRFP            = "rfp"
	ResourceProductSpec    = "product_spec"
	ResourceKnowledgeChunk = "knowledge_chunk"
	ResourceBidTemplate    = "bid_template"
	ResourceQualification  = "qualification"
	ResourceUser           = "user"
	ResourceUserRole       = "user_role"
	ResourceBidTask        = "bid_generation_task"
	ResourceGeneratedBid   = "generated_bid"
	ResourceDeviationTable = "deviation_table"
	ResourceAI             = "ai"
)

// OperationLog is an immutable audit entry. UserID is nil for
// system-initiated changes such as the qualification sweep.
type OperationLog struct {
	ID            uuid.UUID              `json:"id"`
	UserID        *uuid.UUID             `json:"user_id,omitempty"`
	CompanyID     uuid.UUID              `json:"company_id"`
	OperationType string                 `json:"operation_type"`
	ResourceType  string                 `json:"resource_type"`
	ResourceID    *uuid.UUID             `json:"resource_id,omitempty"`
	Content       string                 `json:"content"`
	ChangedFields map[string]FieldChange `json:"changed_fields,omitempty"` // {"field": {"old": ..., "new": ...}}
	CreatedAt     time.Time              `json:"created_at"`
}

// FieldChange represents the old and new values for a changed field.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// LogFilter narrows an operation log query. Empty fields match everything;
// set fields are combined with AND. From and To are inclusive.
type LogFilter struct {
	OperationType string     `json:"operation_type,omitempty"`
	ResourceType  string     `json:"resource_type,omitempty"`
	From          *time.Time `json:"start_date,omitempty"`
	To            *time.Time `json:"end_date,omitempty"`
}

// Matches reports whether entry satisfies every set filter field.
func (f LogFilter) Matches(entry *OperationLog) bool {
	if f.OperationType != "" && entry.OperationType != f.OperationType {
		return false
	}
	if f.ResourceType != "" && entry.ResourceType != f.ResourceType {
		return false
	}
	if f.From != nil && entry.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && entry.CreatedAt.After(*f.To) {
		return false
	}
	return true
}
