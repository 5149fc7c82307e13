package models

import "github.com/google/uuid"

// Project status values. New projects start in ProjectStatusParsing.
const (
	ProjectStatusParsing    = "parsing"
	ProjectStatusInProgress = "in_progress"
	ProjectStatusCompleted  = "completed"
	ProjectStatusArchived   = "archived"
)

// Project is a single tender the company is responding to.
type Project struct {
	TenantRecord
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	RFPFileURL string    `json:"rfp_file_url,omitempty"`
	OwnerID    uuid.UUID `json:"owner_id"`
}

// RFPItem is a requirement extracted from a project's RFP document.
// ExtractedKey/ExtractedValue/Operator describe a comparable requirement,
// e.g. "detector rows" ">=" "64".
type RFPItem struct {
	TenantRecord
	ProjectID      uuid.UUID `json:"project_id"`
	SectionType    string    `json:"section_type"`
	Content        string    `json:"content"`
	ExtractedKey   string    `json:"extracted_key,omitempty"`
	ExtractedValue string    `json:"extracted_value,omitempty"`
	Operator       string    `json:"operator,omitempty"`
}
