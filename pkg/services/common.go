// Package services implements the tenant-scoped managers behind the HTTP
// and MCP surfaces. Every operation takes the resolved models.Caller
// explicitly and checks ownership before touching a repository.
package services

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
)

// now returns the current time at database precision.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// authorize checks the caller and, when adminOnly, its role. The role gate
// comes first so a non-admin never learns whether a resource exists.
func authorize(caller models.Caller, adminOnly bool) error {
	if err := caller.Validate(); err != nil {
		return err
	}
	if adminOnly && !caller.IsAdmin() {
		return apperrors.ErrForbidden
	}
	return nil
}

// newRecord returns identity fields for an entity the caller is creating.
func newRecord(caller models.Caller) models.TenantRecord {
	ts := now()
	return models.TenantRecord{
		ID:        uuid.New(),
		CompanyID: caller.CompanyID,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

// pinRecord keeps the stored identity of existing and refreshes updated_at.
func pinRecord(existing models.TenantRecord) models.TenantRecord {
	existing.UpdatedAt = now()
	return existing
}

// unloggedFields never appear in change sets: record identity, and vectors
// that are derived from content already in the set.
var unloggedFields = map[string]bool{
	"id":         true,
	"company_id": true,
	"created_at": true,
	"updated_at": true,
	"embedding":  true,
}

// changedFields compares the JSON form of two versions of an entity and
// returns the fields whose values differ.
func changedFields(before, after any) map[string]models.FieldChange {
	old, err1 := toFieldMap(before)
	cur, err2 := toFieldMap(after)
	if err1 != nil || err2 != nil {
		return nil
	}

	changes := make(map[string]models.FieldChange)
	for key, newValue := range cur {
		if unloggedFields[key] {
			continue
		}
		if oldValue, ok := old[key]; !ok || !reflect.DeepEqual(oldValue, newValue) {
			changes[key] = models.FieldChange{Old: old[key], New: newValue}
		}
	}
	for key, oldValue := range old {
		if _, ok := cur[key]; !ok && !unloggedFields[key] {
			changes[key] = models.FieldChange{Old: oldValue, New: nil}
		}
	}
	if len(changes) == 0 {
		return nil
	}
	return changes
}

func toFieldMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// invalid wraps a validation message as apperrors.ErrInvalidInput.
func invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), apperrors.ErrInvalidInput)
}
