package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/database"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/metrics"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/repositories"
)

// SweepResult counts what one sweep changed.
type SweepResult struct {
	Companies int
	Checked   int
	Updated   int
	Failed    int
}

// QualificationSweeper recomputes qualification status for every company.
type QualificationSweeper struct {
	companies repositories.CompanyRepository
	repo      repositories.QualificationRepository
	audit     AuditService
	tx        database.Transactor
	scoper    database.TenantScoper
	window    time.Duration
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewQualificationSweeper creates a QualificationSweeper.
func NewQualificationSweeper(store *repositories.Store, audit AuditService, tx database.Transactor, scoper database.TenantScoper, window time.Duration, m *metrics.Metrics, logger *zap.Logger) *QualificationSweeper {
	return &QualificationSweeper{
		companies: store.Companies,
		repo:      store.Qualifications,
		audit:     audit,
		tx:        tx,
		scoper:    scoper,
		window:    window,
		metrics:   m,
		logger:    logger.Named("qualification-sweep"),
	}
}

// Sweep updates every qualification whose derived status at now differs
// from the stored one. A failing company does not stop the others.
func (s *QualificationSweeper) Sweep(ctx context.Context, at time.Time) (*SweepResult, error) {
	listCtx, cleanup, err := s.scoper.WithoutTenantScope(ctx)
	if err != nil {
		return nil, fmt.Errorf("open unscoped connection: %w", err)
	}
	companies, err := s.companies.List(listCtx)
	cleanup()
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}

	result := &SweepResult{Companies: len(companies)}
	for _, company := range companies {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		checked, updated, err := s.sweepCompany(ctx, company, at)
		result.Checked += checked
		result.Updated += updated
		if err != nil {
			result.Failed++
			s.metrics.QualificationSweep.WithLabelValues("failed").Inc()
			s.logger.Error("Qualification sweep failed for company",
				zap.String("company_id", company.ID.String()),
				zap.Error(err))
		}
	}

	s.metrics.QualificationSweep.WithLabelValues("updated").Add(float64(result.Updated))
	s.logger.Info("Qualification sweep finished",
		zap.Int("companies", result.Companies),
		zap.Int("checked", result.Checked),
		zap.Int("updated", result.Updated),
		zap.Int("failed", result.Failed))
	return result, nil
}

func (s *QualificationSweeper) sweepCompany(ctx context.Context, company *models.Company, at time.Time) (int, int, error) {
	ctx, cleanup, err := s.scoper.WithTenantScope(ctx, company.ID)
	if err != nil {
		return 0, 0, err
	}
	defer cleanup()

	quals, err := s.repo.ListAll(ctx, company.ID)
	if err != nil {
		return 0, 0, err
	}

	updated := 0
	for _, q := range quals {
		status := q.StatusAt(at, s.window)
		if status == q.Status {
			continue
		}
		next := *q
		next.TenantRecord = pinRecord(q.TenantRecord)
		next.Status = status

		err := s.tx.InTx(ctx, func(ctx context.Context) error {
			if err := s.repo.Update(ctx, &next); err != nil {
				return err
			}
			return s.audit.LogSystem(ctx, company.ID, Operation{
				Type:       models.OperationUpdate,
				Resource:   models.ResourceQualification,
				ResourceID: resourceRef(q.ID),
				Content:    fmt.Sprintf("qualification %s is now %s", q.Name, status),
				Changes: map[string]models.FieldChange{
					"status": {Old: string(q.Status), New: string(status)},
				},
			})
		})
		if err != nil {
			return len(quals), updated, fmt.Errorf("update qualification %s: %w", q.ID, err)
		}
		updated++
	}
	return len(quals), updated, nil
}
