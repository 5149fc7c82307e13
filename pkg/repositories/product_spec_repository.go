package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
)

// ProductSpecRepository stores product parameters.
type ProductSpecRepository interface {
	TenantRepository[models.ProductSpec]

	// ListByModel returns the parameters of productModel, or of every model
	// when productModel is empty.
	ListByModel(ctx context.Context, companyID uuid.UUID, productModel string, page models.Page) ([]*models.ProductSpec, error)

	// ListAllByModel is ListByModel without paging, oldest first.
	ListAllByModel(ctx context.Context, companyID uuid.UUID, productModel string) ([]*models.ProductSpec, error)
}

type productSpecRepository struct {
	*pgTable[models.ProductSpec]
}

// NewProductSpecRepository creates a new ProductSpecRepository.
func NewProductSpecRepository() ProductSpecRepository {
	return &productSpecRepository{pgTable: newPgTable("product_specs",
		[]string{"product_model", "param_name", "param_value", "is_core_param"},
		func(s *models.ProductSpec) *models.TenantRecord { return &s.TenantRecord },
		func(s *models.ProductSpec) []any {
			return []any{s.ProductModel, s.ParamName, s.ParamValue, s.IsCoreParam}
		},
		func(row pgx.Row) (*models.ProductSpec, error) {
			var s models.ProductSpec
			err := row.Scan(&s.ID, &s.CompanyID, &s.CreatedAt, &s.UpdatedAt,
				&s.ProductModel, &s.ParamName, &s.ParamValue, &s.IsCoreParam)
			if err != nil {
				return nil, err
			}
			return &s, nil
		},
	)}
}

var _ ProductSpecRepository = (*productSpecRepository)(nil)

func (r *productSpecRepository) ListByModel(ctx context.Context, companyID uuid.UUID, productModel string, page models.Page) ([]*models.ProductSpec, error) {
	if productModel == "" {
		return r.List(ctx, companyID, page)
	}
	return r.listWhere(ctx, companyID, page, "product_model = $2", productModel)
}

func (r *productSpecRepository) ListAllByModel(ctx context.Context, companyID uuid.UUID, productModel string) ([]*models.ProductSpec, error) {
	if productModel == "" {
		return r.listAll(ctx, companyID, "created_at, id", "")
	}
	return r.listAll(ctx, companyID, "created_at, id", "product_model = $2", productModel)
}
