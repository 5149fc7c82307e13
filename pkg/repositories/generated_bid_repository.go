package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/database"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
)

// GeneratedBidRepository stores bid drafts. There is at most one per task.
type GeneratedBidRepository interface {
	Create(ctx context.Context, bid *models.GeneratedBid) error
	Get(ctx context.Context, companyID, id uuid.UUID) (*models.GeneratedBid, error)
	List(ctx context.Context, companyID uuid.UUID, page models.Page) ([]*models.GeneratedBid, error)
	Update(ctx context.Context, bid *models.GeneratedBid) error

	// GetByTask returns the bid produced by taskID.
	GetByTask(ctx context.Context, companyID, taskID uuid.UUID) (*models.GeneratedBid, error)
}

type generatedBidRepository struct {
	*pgTable[models.GeneratedBid]
}

// NewGeneratedBidRepository creates a new GeneratedBidRepository.
func NewGeneratedBidRepository() GeneratedBidRepository {
	return &generatedBidRepository{pgTable: newPgTable("generated_bids",
		[]string{"project_id", "task_id", "template_id", "file_url", "status", "ai_generated_content", "manual_review_notes"},
		func(b *models.GeneratedBid) *models.TenantRecord { return &b.TenantRecord },
		func(b *models.GeneratedBid) []any {
			return []any{b.ProjectID, b.TaskID, b.TemplateID, b.FileURL, string(b.Status), b.AIGeneratedContent, b.ManualReviewNotes}
		},
		scanGeneratedBid,
	)}
}

var _ GeneratedBidRepository = (*generatedBidRepository)(nil)

func (r *generatedBidRepository) GetByTask(ctx context.Context, companyID, taskID uuid.UUID) (*models.GeneratedBid, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	bid, err := scanGeneratedBid(scope.Conn.QueryRow(ctx, r.selectSQL+" WHERE company_id = $1 AND task_id = $2", companyID, taskID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get bid by task: %w", err)
	}
	return bid, nil
}

func scanGeneratedBid(row pgx.Row) (*models.GeneratedBid, error) {
	var b models.GeneratedBid
	var status string
	err := row.Scan(&b.ID, &b.CompanyID, &b.CreatedAt, &b.UpdatedAt,
		&b.ProjectID, &b.TaskID, &b.TemplateID, &b.FileURL, &status, &b.AIGeneratedContent, &b.ManualReviewNotes)
	if err != nil {
		return nil, err
	}
	b.Status = models.BidStatus(status)
	return &b, nil
}
