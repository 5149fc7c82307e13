package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/database"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
)

// OperationLogRepository appends and queries operation log entries.
// Entries are never updated or deleted.
type OperationLogRepository interface {
	Create(ctx context.Context, entry *models.OperationLog) error

	// Query returns entries of companyID matching filter, newest first.
	Query(ctx context.Context, companyID uuid.UUID, filter models.LogFilter, page models.Page) ([]*models.OperationLog, error)
}

type operationLogRepository struct{}

// NewOperationLogRepository creates a new OperationLogRepository.
func NewOperationLogRepository() OperationLogRepository {
	return &operationLogRepository{}
}

var _ OperationLogRepository = (*operationLogRepository)(nil)

func (r *operationLogRepository) Create(ctx context.Context, entry *models.OperationLog) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	var changed any
	if len(entry.ChangedFields) > 0 {
		changed = entry.ChangedFields
	}

	_, err := scope.Conn.Exec(ctx, `
		INSERT INTO operation_logs (id, company_id, user_id, operation_type, resource_type, resource_id, content, changed_fields, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.CompanyID, entry.UserID, entry.OperationType, entry.ResourceType,
		entry.ResourceID, entry.Content, changed, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create operation log: %w", err)
	}
	return nil
}

func (r *operationLogRepository) Query(ctx context.Context, companyID uuid.UUID, filter models.LogFilter, page models.Page) ([]*models.OperationLog, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	page = page.Normalize(models.DefaultLogLimit)
	conds := []string{"company_id = $1"}
	args := []any{companyID}
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.OperationType != "" {
		add("operation_type = $%d", filter.OperationType)
	}
	if filter.ResourceType != "" {
		add("resource_type = $%d", filter.ResourceType)
	}
	if filter.From != nil {
		add("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("created_at <= $%d", *filter.To)
	}
	args = append(args, page.Limit, page.Offset)

	query := fmt.Sprintf(`
		SELECT id, company_id, user_id, operation_type, resource_type, resource_id, content, changed_fields, created_at
		FROM operation_logs
		WHERE %s
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d`, strings.Join(conds, " AND "), len(args)-1, len(args))

	rows, err := scope.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query operation logs: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.OperationLog, 0)
	for rows.Next() {
		var e models.OperationLog
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.UserID, &e.OperationType, &e.ResourceType,
			&e.ResourceID, &e.Content, &e.ChangedFields, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan operation log: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating operation logs: %w", err)
	}
	return entries, nil
}
