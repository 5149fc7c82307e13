package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestQualification_StatusAt(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	window := 90 * 24 * time.Hour
	at := func(d time.Duration) *time.Time { v := now.Add(d); return &v }

	assert.Equal(t, QualificationValid, (&Qualification{}).StatusAt(now, window))
	assert.Equal(t, QualificationExpired, (&Qualification{ExpiryDate: at(-time.Hour)}).StatusAt(now, window))
	assert.Equal(t, QualificationExpiring, (&Qualification{ExpiryDate: at(30 * 24 * time.Hour)}).StatusAt(now, window))
	assert.Equal(t, QualificationValid, (&Qualification{ExpiryDate: at(365 * 24 * time.Hour)}).StatusAt(now, window))
}

func TestLogFilter_Matches(t *testing.T) {
	now := time.Now()
	entry := &OperationLog{
		ID:            uuid.New(),
		CompanyID:     uuid.New(),
		OperationType: OperationCreate,
		ResourceType:  ResourceProject,
		CreatedAt:     now,
	}
	before, after := now.Add(-time.Minute), now.Add(time.Minute)

	assert.True(t, LogFilter{}.Matches(entry))
	assert.True(t, LogFilter{OperationType: OperationCreate, ResourceType: ResourceProject}.Matches(entry))
	assert.False(t, LogFilter{OperationType: OperationCreate, ResourceType: ResourceUser}.Matches(entry))
	assert.True(t, LogFilter{From: &before, To: &after}.Matches(entry))
	assert.False(t, LogFilter{From: &after}.Matches(entry))
	assert.False(t, LogFilter{To: &before}.Matches(entry))
}

func TestTaskStatus_IsTerminal(t *testing.T) {
	assert.False(t, TaskStatusPending.IsTerminal())
	assert.False(t, TaskStatusProcessing.IsTerminal())
	assert.True(t, TaskStatusCompleted.IsTerminal())
	assert.True(t, TaskStatusFailed.IsTerminal())
	assert.True(t, TaskStatusCancelled.IsTerminal())
}
