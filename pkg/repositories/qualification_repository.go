package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
)

// QualificationRepository stores company certificates and licences.
type QualificationRepository interface {
	TenantRepository[models.Qualification]

	// ListAll returns every qualification of the company, used when
	// gathering generation inputs and by the expiry sweep.
	ListAll(ctx context.Context, companyID uuid.UUID) ([]*models.Qualification, error)
}

type qualificationRepository struct {
	*pgTable[models.Qualification]
}

// NewQualificationRepository creates a new QualificationRepository.
func NewQualificationRepository() QualificationRepository {
	return &qualificationRepository{pgTable: newPgTable("qualifications",
		[]string{"name", "number", "product_model", "issuer", "expiry_date", "status"},
		func(q *models.Qualification) *models.TenantRecord { return &q.TenantRecord },
		func(q *models.Qualification) []any {
			return []any{q.Name, q.Number, q.ProductModel, q.Issuer, q.ExpiryDate, string(q.Status)}
		},
		scanQualification,
	)}
}

var _ QualificationRepository = (*qualificationRepository)(nil)

func (r *qualificationRepository) ListAll(ctx context.Context, companyID uuid.UUID) ([]*models.Qualification, error) {
	return r.listAll(ctx, companyID, "name, id", "")
}

func scanQualification(row pgx.Row) (*models.Qualification, error) {
	var q models.Qualification
	var status string
	err := row.Scan(&q.ID, &q.CompanyID, &q.CreatedAt, &q.UpdatedAt,
		&q.Name, &q.Number, &q.ProductModel, &q.Issuer, &q.ExpiryDate, &status)
	if err != nil {
		return nil, err
	}
	q.Status = models.QualificationStatus(status)
	return &q, nil
}
