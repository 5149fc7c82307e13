package repositories

import (
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
)

// BidTemplateRepository stores uploaded bid templates.
type BidTemplateRepository interface {
	TenantRepository[models.BidTemplate]
}

type bidTemplateRepository struct {
	*pgTable[models.BidTemplate]
}

// NewBidTemplateRepository creates a new BidTemplateRepository.
func NewBidTemplateRepository() BidTemplateRepository {
	return &bidTemplateRepository{pgTable: newPgTable("bid_templates",
		[]string{"name", "file_url", "template_type"},
		func(t *models.BidTemplate) *models.TenantRecord { return &t.TenantRecord },
		func(t *models.BidTemplate) []any { return []any{t.Name, t.FileURL, t.TemplateType} },
		func(row pgx.Row) (*models.BidTemplate, error) {
			var t models.BidTemplate
			err := row.Scan(&t.ID, &t.CompanyID, &t.CreatedAt, &t.UpdatedAt, &t.Name, &t.FileURL, &t.TemplateType)
			if err != nil {
				return nil, err
			}
			return &t, nil
		},
	)}
}

var _ BidTemplateRepository = (*bidTemplateRepository)(nil)
