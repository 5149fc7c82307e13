// Package repositories provides data access for company-owned entities.
// Every method is scoped by company ID; an entity belonging to another
// company is reported as apperrors.ErrNotFound.
package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/database"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
)

// TenantRepository is the storage contract shared by every company-owned entity kind.
type TenantRepository[T any] interface {
	// Create inserts a new entity. ID and CompanyID must already be set.
	Create(ctx context.Context, entity *T) error

	// Get returns the entity with id inside companyID.
	Get(ctx context.Context, companyID, id uuid.UUID) (*T, error)

	// List returns entities of companyID, newest first.
	List(ctx context.Context, companyID uuid.UUID, page models.Page) ([]*T, error)

	// Update overwrites the mutable fields of an existing entity.
	Update(ctx context.Context, entity *T) error

	// Delete removes the entity with id inside companyID.
	Delete(ctx context.Context, companyID, id uuid.UUID) error
}

// Store bundles every repository the services depend on.
type Store struct {
	Companies      CompanyRepository
	Users          UserRepository
	Projects       ProjectRepository
	RFPItems       RFPItemRepository
	ProductSpecs   ProductSpecRepository
	Knowledge      KnowledgeChunkRepository
	Templates      BidTemplateRepository
	Qualifications QualificationRepository
	Tasks          BidTaskRepository
	GeneratedBids  GeneratedBidRepository
	OperationLogs  OperationLogRepository
}

// NewPostgresStore returns repositories backed by PostgreSQL. Each call
// expects a database.TenantScope in the context.
func NewPostgresStore() *Store {
	return &Store{
		Companies:      NewCompanyRepository(),
		Users:          NewUserRepository(),
		Projects:       NewProjectRepository(),
		RFPItems:       NewRFPItemRepository(),
		ProductSpecs:   NewProductSpecRepository(),
		Knowledge:      NewKnowledgeChunkRepository(),
		Templates:      NewBidTemplateRepository(),
		Qualifications: NewQualificationRepository(),
		Tasks:          NewBidTaskRepository(),
		GeneratedBids:  NewGeneratedBidRepository(),
		OperationLogs:  NewOperationLogRepository(),
	}
}

// recordColumns precede the entity specific columns in every table.
var recordColumns = []string{"id", "company_id", "created_at", "updated_at"}

// pgTable implements TenantRepository for one table. Entity specific
// repositories embed it and add their own queries.
type pgTable[T any] struct {
	name      string
	columns   string
	selectSQL string
	insertSQL string
	updateSQL string
	deleteSQL string
	record    func(*T) *models.TenantRecord
	values    func(*T) []any
	scan      func(pgx.Row) (*T, error)
	conflicts map[string]error
}

// newPgTable prepares the CRUD statements for a table. columns lists the
// entity specific columns in the order values returns and scan expects them.
func newPgTable[T any](
	name string,
	columns []string,
	record func(*T) *models.TenantRecord,
	values func(*T) []any,
	scan func(pgx.Row) (*T, error),
) *pgTable[T] {
	all := append(append([]string{}, recordColumns...), columns...)

	placeholders := make([]string, len(all))
	for i := range all {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	sets := []string{"updated_at = $3"}
	for i, col := range columns {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i+4))
	}

	return &pgTable[T]{
		name:      name,
		columns:   strings.Join(all, ", "),
		selectSQL: fmt.Sprintf("SELECT %s FROM %s", strings.Join(all, ", "), name),
		insertSQL: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", name, strings.Join(all, ", "), strings.Join(placeholders, ", ")),
		updateSQL: fmt.Sprintf("UPDATE %s SET %s WHERE company_id = $1 AND id = $2", name, strings.Join(sets, ", ")),
		deleteSQL: fmt.Sprintf("DELETE FROM %s WHERE company_id = $1 AND id = $2", name),
		record:    record,
		values:    values,
		scan:      scan,
	}
}

func (t *pgTable[T]) Create(ctx context.Context, entity *T) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	rec := t.record(entity)
	args := append([]any{rec.ID, rec.CompanyID, rec.CreatedAt, rec.UpdatedAt}, t.values(entity)...)
	if _, err := scope.Conn.Exec(ctx, t.insertSQL, args...); err != nil {
		return t.translate(fmt.Sprintf("insert into %s", t.name), err)
	}
	return nil
}

func (t *pgTable[T]) Get(ctx context.Context, companyID, id uuid.UUID) (*T, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	row := scope.Conn.QueryRow(ctx, t.selectSQL+" WHERE company_id = $1 AND id = $2", companyID, id)
	entity, err := t.scan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", t.name, err)
	}
	return entity, nil
}

func (t *pgTable[T]) List(ctx context.Context, companyID uuid.UUID, page models.Page) ([]*T, error) {
	return t.listWhere(ctx, companyID, page, "")
}

// listWhere lists rows of companyID that also satisfy cond. cond may refer to
// extra arguments starting at $2.
func (t *pgTable[T]) listWhere(ctx context.Context, companyID uuid.UUID, page models.Page, cond string, args ...any) ([]*T, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	page = page.Normalize(models.DefaultPageLimit)
	query := t.selectSQL + " WHERE company_id = $1"
	if cond != "" {
		query += " AND " + cond
	}
	n := len(args) + 1
	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", n+1, n+2)

	queryArgs := append(append([]any{companyID}, args...), page.Limit, page.Offset)
	rows, err := scope.Conn.Query(ctx, query, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", t.name, err)
	}
	defer rows.Close()

	result := make([]*T, 0)
	for rows.Next() {
		entity, err := t.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", t.name, err)
		}
		result = append(result, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", t.name, err)
	}
	return result, nil
}

// listAll returns every row of companyID satisfying cond, in order. Callers
// that need a complete view use it instead of paging.
func (t *pgTable[T]) listAll(ctx context.Context, companyID uuid.UUID, order, cond string, args ...any) ([]*T, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := t.selectSQL + " WHERE company_id = $1"
	if cond != "" {
		query += " AND " + cond
	}
	query += " ORDER BY " + order

	rows, err := scope.Conn.Query(ctx, query, append([]any{companyID}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", t.name, err)
	}
	defer rows.Close()

	result := make([]*T, 0)
	for rows.Next() {
		entity, err := t.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", t.name, err)
		}
		result = append(result, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", t.name, err)
	}
	return result, nil
}

func (t *pgTable[T]) Update(ctx context.Context, entity *T) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	rec := t.record(entity)
	args := append([]any{rec.CompanyID, rec.ID, rec.UpdatedAt}, t.values(entity)...)
	tag, err := scope.Conn.Exec(ctx, t.updateSQL, args...)
	if err != nil {
		return t.translate(fmt.Sprintf("update %s", t.name), err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (t *pgTable[T]) Delete(ctx context.Context, companyID, id uuid.UUID) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	tag, err := scope.Conn.Exec(ctx, t.deleteSQL, companyID, id)
	if err != nil {
		return t.translate(fmt.Sprintf("delete from %s", t.name), err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// translate maps constraint violations onto the error taxonomy.
func (t *pgTable[T]) translate(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			if mapped, ok := t.conflicts[pgErr.ConstraintName]; ok {
				return mapped
			}
			return fmt.Errorf("%s: %w", op, apperrors.ErrConflict)
		case "23503":
			return fmt.Errorf("%s: referenced row missing: %w", op, apperrors.ErrNotFound)
		case "23514":
			return fmt.Errorf("%s: %s: %w", op, pgErr.ConstraintName, apperrors.ErrInvalidInput)
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
