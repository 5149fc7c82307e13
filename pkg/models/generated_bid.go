package models

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/jsonutil"
)

// BidStatus is the review state of a GeneratedBid.
type BidStatus string

const (
	BidStatusDraft     BidStatus = "draft"
	BidStatusReviewed  BidStatus = "reviewed"
	BidStatusFinalized BidStatus = "finalized"
)

// IsValid reports whether s is a known review status.
func (s BidStatus) IsValid() bool {
	switch s {
	case BidStatusDraft, BidStatusReviewed, BidStatusFinalized:
		return true
	default:
		return false
	}
}

// GeneratedBid is the output of a completed task, 1:1 with the task.
type GeneratedBid struct {
	TenantRecord
	ProjectID          uuid.UUID  `json:"project_id"`
	TaskID             uuid.UUID  `json:"task_id"`
	TemplateID         uuid.UUID  `json:"template_id"`
	FileURL            string     `json:"file_url"`
	Status             BidStatus  `json:"status"`
	AIGeneratedContent BidContent `json:"ai_generated_content"`
	ManualReviewNotes  *string    `json:"manual_review_notes,omitempty"`
}

// BidContent is the structured draft produced by the generation service.
type BidContent struct {
	MatchedSpecs         []MatchedSpec        `json:"matched_specs"`
	QualificationChecks  []QualificationCheck `json:"qualification_checks"`
	DeviationTable       []DeviationRow       `json:"deviation_table"`
	ManualReviewSections []ReviewSection      `json:"manual_review_sections"`
}

// Spec match statuses.
const (
	SpecMatched = "matched"
	SpecMissing = "missing"
)

// MatchedSpec links a tender parameter to our product value.
type MatchedSpec struct {
	ParamName string `json:"param_name"`
	Value     string `json:"value"`
	Source    string `json:"source"`
	Status    string `json:"status"`
}

// QualificationCheck records whether a required qualification is held.
type QualificationCheck struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	ExpiryDate string `json:"expiry_date,omitempty"`
}

// Deviation classifies how an offered value compares with the requirement.
type Deviation string

const (
	DeviationPositive Deviation = "positive"
	DeviationNone     Deviation = "none"
	DeviationNegative Deviation = "negative"
)

// DeviationRow is one line of the technical deviation table.
type DeviationRow struct {
	ParamName    string    `json:"param_name"`
	TenderValue  string    `json:"tender_value"`
	OfferedValue string    `json:"offered_value"`
	Deviation    Deviation `json:"deviation"`
	Remark       string    `json:"remark,omitempty"`
}

// ReviewSection flags a part of the draft that needs a human.
type ReviewSection struct {
	Section string `json:"section"`
	Reason  string `json:"reason"`
}

// UnmarshalJSON accepts numeric and boolean values where model output
// should have produced strings.
func (m *MatchedSpec) UnmarshalJSON(data []byte) error {
	type plain MatchedSpec
	aux := struct {
		*plain
		Value jsonutil.FlexibleString `json:"value"`
	}{plain: (*plain)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	m.Value = string(aux.Value)
	return nil
}

// UnmarshalJSON accepts numeric tender and offered values.
func (d *DeviationRow) UnmarshalJSON(data []byte) error {
	type plain DeviationRow
	aux := struct {
		*plain
		TenderValue  jsonutil.FlexibleString `json:"tender_value"`
		OfferedValue jsonutil.FlexibleString `json:"offered_value"`
	}{plain: (*plain)(d)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	d.TenderValue = string(aux.TenderValue)
	d.OfferedValue = string(aux.OfferedValue)
	return nil
}
