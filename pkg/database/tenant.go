package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgx shared by pooled connections and transactions.
// Repositories only talk to a Querier, so a TenantScope can carry either.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TenantScope wraps a connection with tenant context and ensures cleanup.
// The connection has app.current_company_id set for RLS policy evaluation.
type TenantScope struct {
	Conn      Querier
	CompanyID uuid.UUID
	release   func()
}

// Close resets tenant context and releases the connection to the pool.
// This MUST be called to prevent tenant context from leaking to the next request.
// Scopes derived from a transaction have nothing to release.
func (s *TenantScope) Close() {
	if s == nil || s.release == nil {
		return
	}
	s.release()
	s.release = nil
}

// WithTenant acquires a connection and sets the company context for RLS.
// The returned TenantScope MUST be closed with defer scope.Close().
func (db *DB) WithTenant(ctx context.Context, companyID uuid.UUID) (*TenantScope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	_, err = conn.Exec(ctx, "SELECT set_config('app.current_company_id', $1, false)", companyID.String())
	if err != nil {
		conn.Release()
		return nil, err
	}

	return &TenantScope{
		Conn:      conn,
		CompanyID: companyID,
		release: func() {
			_, _ = conn.Exec(context.Background(), "RESET app.current_company_id")
			conn.Release()
		},
	}, nil
}

// WithoutTenant acquires a connection without company context.
// Only the company registry and system jobs use it.
// The returned TenantScope MUST be closed with defer scope.Close().
func (db *DB) WithoutTenant(ctx context.Context) (*TenantScope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &TenantScope{Conn: conn, release: conn.Release}, nil
}
