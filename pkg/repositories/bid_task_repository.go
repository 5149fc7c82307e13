package repositories

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/database"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
)

// BidTaskRepository stores bid generation tasks. Status changes only go
// through Transition so that concurrent writers cannot both win.
type BidTaskRepository interface {
	Create(ctx context.Context, task *models.BidGenerationTask) error
	Get(ctx context.Context, companyID, id uuid.UUID) (*models.BidGenerationTask, error)
	List(ctx context.Context, companyID uuid.UUID, page models.Page) ([]*models.BidGenerationTask, error)

	// Transition locks the task, checks that its status is one of from and
	// applies mutate. It returns apperrors.ErrTaskTerminal when the task has
	// already finished and apperrors.ErrInvalidStatus when the status is not
	// in from. Progress never decreases.
	Transition(ctx context.Context, companyID, id uuid.UUID, from []models.TaskStatus, mutate func(*models.BidGenerationTask)) (*models.BidGenerationTask, error)
}

type bidTaskRepository struct {
	*pgTable[models.BidGenerationTask]
}

// NewBidTaskRepository creates a new BidTaskRepository.
func NewBidTaskRepository() BidTaskRepository {
	return &bidTaskRepository{pgTable: newPgTable("bid_generation_tasks",
		[]string{"project_id", "template_id", "rfp_file_url", "status", "progress", "result_file_url", "error_message", "error_code"},
		func(t *models.BidGenerationTask) *models.TenantRecord { return &t.TenantRecord },
		func(t *models.BidGenerationTask) []any {
			return []any{t.ProjectID, t.TemplateID, t.RFPFileURL, string(t.Status), t.Progress, t.ResultFileURL, t.ErrorMessage, t.ErrorCode}
		},
		scanBidTask,
	)}
}

var _ BidTaskRepository = (*bidTaskRepository)(nil)

func (r *bidTaskRepository) Transition(ctx context.Context, companyID, id uuid.UUID, from []models.TaskStatus, mutate func(*models.BidGenerationTask)) (*models.BidGenerationTask, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin task transition: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := scanBidTask(tx.QueryRow(ctx, r.selectSQL+" WHERE company_id = $1 AND id = $2 FOR UPDATE", companyID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock task: %w", err)
	}

	next, err := applyTransition(current, from, mutate)
	if err != nil {
		return nil, err
	}

	args := append([]any{next.CompanyID, next.ID, next.UpdatedAt}, r.values(next)...)
	if _, err := tx.Exec(ctx, r.updateSQL, args...); err != nil {
		return nil, r.translate("update bid_generation_tasks", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit task transition: %w", err)
	}
	return next, nil
}

// applyTransition validates and applies one status change. It is shared with
// the in-memory store through ApplyTransition.
func applyTransition(current *models.BidGenerationTask, from []models.TaskStatus, mutate func(*models.BidGenerationTask)) (*models.BidGenerationTask, error) {
	if current.Status.IsTerminal() {
		return nil, apperrors.ErrTaskTerminal
	}
	if !slices.Contains(from, current.Status) {
		return nil, fmt.Errorf("task is %s: %w", current.Status, apperrors.ErrInvalidStatus)
	}

	next := *current
	mutate(&next)
	next.TenantRecord = models.TenantRecord{
		ID:        current.ID,
		CompanyID: current.CompanyID,
		CreatedAt: current.CreatedAt,
		UpdatedAt: next.UpdatedAt,
	}
	if next.Progress < current.Progress {
		next.Progress = current.Progress
	}
	return &next, nil
}

// ApplyTransition exposes the transition rules to other store implementations.
func ApplyTransition(current *models.BidGenerationTask, from []models.TaskStatus, mutate func(*models.BidGenerationTask)) (*models.BidGenerationTask, error) {
	return applyTransition(current, from, mutate)
}

func scanBidTask(row pgx.Row) (*models.BidGenerationTask, error) {
	var t models.BidGenerationTask
	var status string
	err := row.Scan(&t.ID, &t.CompanyID, &t.CreatedAt, &t.UpdatedAt,
		&t.ProjectID, &t.TemplateID, &t.RFPFileURL, &status, &t.Progress, &t.ResultFileURL, &t.ErrorMessage, &t.ErrorCode)
	if err != nil {
		return nil, err
	}
	t.Status = models.TaskStatus(status)
	return &t, nil
}
