package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
)

// RFPItemRepository stores requirements extracted from RFP documents.
type RFPItemRepository interface {
	TenantRepository[models.RFPItem]

	// ListByProject returns the items of one project, newest first.
	ListByProject(ctx context.Context, companyID, projectID uuid.UUID, page models.Page) ([]*models.RFPItem, error)

	// ListAllByProject returns every item of one project, oldest first.
	ListAllByProject(ctx context.Context, companyID, projectID uuid.UUID) ([]*models.RFPItem, error)
}

type rfpItemRepository struct {
	*pgTable[models.RFPItem]
}

// NewRFPItemRepository creates a new RFPItemRepository.
func NewRFPItemRepository() RFPItemRepository {
	return &rfpItemRepository{pgTable: newPgTable("rfp_items",
		[]string{"project_id", "section_type", "content", "extracted_key", "extracted_value", "operator"},
		func(i *models.RFPItem) *models.TenantRecord { return &i.TenantRecord },
		func(i *models.RFPItem) []any {
			return []any{i.ProjectID, i.SectionType, i.Content, i.ExtractedKey, i.ExtractedValue, i.Operator}
		},
		func(row pgx.Row) (*models.RFPItem, error) {
			var i models.RFPItem
			err := row.Scan(&i.ID, &i.CompanyID, &i.CreatedAt, &i.UpdatedAt,
				&i.ProjectID, &i.SectionType, &i.Content, &i.ExtractedKey, &i.ExtractedValue, &i.Operator)
			if err != nil {
				return nil, err
			}
			return &i, nil
		},
	)}
}

var _ RFPItemRepository = (*rfpItemRepository)(nil)

func (r *rfpItemRepository) ListByProject(ctx context.Context, companyID, projectID uuid.UUID, page models.Page) ([]*models.RFPItem, error) {
	return r.listWhere(ctx, companyID, page, "project_id = $2", projectID)
}

func (r *rfpItemRepository) ListAllByProject(ctx context.Context, companyID, projectID uuid.UUID) ([]*models.RFPItem, error) {
	return r.listAll(ctx, companyID, "created_at, id", "project_id = $2", projectID)
}
