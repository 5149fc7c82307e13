// Package models contains domain types for ekaya-bidflow.
package models

import (
	"time"

	"github.com/google/uuid"
)

// TenantRecord holds the identity fields every company-owned entity carries.
// ID and CompanyID are assigned on create and never change afterwards.
type TenantRecord struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Record returns the embedded identity fields.
func (r *TenantRecord) Record() *TenantRecord {
	return r
}

// Tenanted is implemented by every entity that embeds TenantRecord.
type Tenanted interface {
	Record() *TenantRecord
}

// Company is the tenant root.
type Company struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
