package database

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	// TenantScopeKey is the context key for storing the tenant-scoped database connection.
	TenantScopeKey contextKey = "tenantScope"
)

// GetTenantScope retrieves the tenant-scoped database connection from context.
// Returns nil and false if not present.
func GetTenantScope(ctx context.Context) (*TenantScope, bool) {
	scope, ok := ctx.Value(TenantScopeKey).(*TenantScope)
	return scope, ok
}

// SetTenantScope stores the tenant-scoped database connection in context.
func SetTenantScope(ctx context.Context, scope *TenantScope) context.Context {
	return context.WithValue(ctx, TenantScopeKey, scope)
}

// TenantScoper opens company-scoped contexts outside of HTTP middleware,
// e.g. for login and the scheduler.
type TenantScoper interface {
	WithTenantScope(ctx context.Context, companyID uuid.UUID) (context.Context, func(), error)
	WithoutTenantScope(ctx context.Context) (context.Context, func(), error)
}

// TenantScopeProvider creates tenant-scoped contexts backed by Postgres.
type TenantScopeProvider struct {
	db *DB
}

// NewTenantScopeProvider creates a TenantScopeProvider for the given database.
func NewTenantScopeProvider(db *DB) *TenantScopeProvider {
	return &TenantScopeProvider{db: db}
}

// WithTenantScope returns a context with tenant scope set for the given company.
// The cleanup function must be called when the scope is no longer needed.
func (p *TenantScopeProvider) WithTenantScope(ctx context.Context, companyID uuid.UUID) (context.Context, func(), error) {
	scope, err := p.db.WithTenant(ctx, companyID)
	if err != nil {
		return nil, nil, err
	}
	return SetTenantScope(ctx, scope), scope.Close, nil
}

// WithoutTenantScope returns a context whose connection has no company set.
// RLS policies let such a connection see every company.
func (p *TenantScopeProvider) WithoutTenantScope(ctx context.Context) (context.Context, func(), error) {
	scope, err := p.db.WithoutTenant(ctx)
	if err != nil {
		return nil, nil, err
	}
	return SetTenantScope(ctx, scope), scope.Close, nil
}

// NoopScoper is used with the in-memory store, which scopes by argument only.
type NoopScoper struct{}

// WithTenantScope returns ctx unchanged.
func (NoopScoper) WithTenantScope(ctx context.Context, _ uuid.UUID) (context.Context, func(), error) {
	return ctx, func() {}, nil
}

// WithoutTenantScope returns ctx unchanged.
func (NoopScoper) WithoutTenantScope(ctx context.Context) (context.Context, func(), error) {
	return ctx, func() {}, nil
}

var (
	_ TenantScoper = (*TenantScopeProvider)(nil)
	_ TenantScoper = NoopScoper{}
)
