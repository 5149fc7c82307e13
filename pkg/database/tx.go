package database

import (
	"context"
	"fmt"
)

// Transactor runs fn atomically. Services use it to commit a mutation and
// its operation log entry together.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PgTransactor opens a transaction on the tenant connection found in ctx.
// Nested calls become savepoints.
type PgTransactor struct{}

// NewTransactor returns the Postgres transactor.
func NewTransactor() *PgTransactor {
	return &PgTransactor{}
}

// InTx begins a transaction, replaces the scope in ctx with one bound to the
// transaction and commits when fn returns nil.
func (PgTransactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	scope, ok := GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	txCtx := SetTenantScope(ctx, &TenantScope{Conn: tx, CompanyID: scope.CompanyID})
	if err := fn(txCtx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// NoopTransactor calls fn directly. The in-memory store has no transactions.
type NoopTransactor struct{}

// InTx calls fn with ctx.
func (NoopTransactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var (
	_ Transactor = PgTransactor{}
	_ Transactor = NoopTransactor{}
)
