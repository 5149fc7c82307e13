package models

import (
	"context"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/apperrors"
)

// Caller is the resolved identity of whoever invokes an operation.
// Every service method receives one explicitly.
type Caller struct {
	UserID    uuid.UUID
	CompanyID uuid.UUID
	Role      Role
}

// Validate returns ErrUnauthorized when the caller has no user or company.
func (c Caller) Validate() error {
	if c.UserID == uuid.Nil || c.CompanyID == uuid.Nil {
		return apperrors.ErrUnauthorized
	}
	return nil
}

// IsAdmin reports whether the caller holds the admin role.
func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}

type callerKey struct{}

// WithCaller returns a new context carrying the caller.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// GetCaller retrieves the caller from the context.
func GetCaller(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}
