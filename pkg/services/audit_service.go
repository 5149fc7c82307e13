package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/metrics"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/repositories"
)

// Operation describes one successful mutation to record.
type Operation struct {
	Type       string
	Resource   string
	ResourceID *uuid.UUID
	Content    string
	Changes    map[string]models.FieldChange
}

// AuditService writes and queries the append-only operation log.
type AuditService interface {
	// Log records an operation performed by caller. It must run inside the
	// transaction of the mutation it describes.
	Log(ctx context.Context, caller models.Caller, op Operation) error

	// LogSystem records an operation made by a background job.
	LogSystem(ctx context.Context, companyID uuid.UUID, op Operation) error

	// Query returns the caller's company entries matching filter, newest first.
	Query(ctx context.Context, caller models.Caller, filter models.LogFilter, page models.Page) ([]*models.OperationLog, error)
}

type auditService struct {
	repo    repositories.OperationLogRepository
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewAuditService creates a new AuditService.
func NewAuditService(repo repositories.OperationLogRepository, m *metrics.Metrics, logger *zap.Logger) AuditService {
	return &auditService{
		repo:    repo,
		metrics: m,
		logger:  logger.Named("audit-service"),
	}
}

var _ AuditService = (*auditService)(nil)

func (s *auditService) Log(ctx context.Context, caller models.Caller, op Operation) error {
	userID := caller.UserID
	return s.write(ctx, &userID, caller.CompanyID, op)
}

func (s *auditService) LogSystem(ctx context.Context, companyID uuid.UUID, op Operation) error {
	return s.write(ctx, nil, companyID, op)
}

func (s *auditService) write(ctx context.Context, userID *uuid.UUID, companyID uuid.UUID, op Operation) error {
	entry := &models.OperationLog{
		ID:            uuid.New(),
		UserID:        userID,
		CompanyID:     companyID,
		OperationType: op.Type,
		ResourceType:  op.Resource,
		ResourceID:    op.ResourceID,
		Content:       op.Content,
		ChangedFields: op.Changes,
		CreatedAt:     now(),
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Error("Failed to write operation log",
			zap.String("operation_type", op.Type),
			zap.String("resource_type", op.Resource),
			zap.Error(err))
		return fmt.Errorf("write operation log: %w", err)
	}

	s.metrics.OperationsLogged.WithLabelValues(op.Type, op.Resource).Inc()
	return nil
}

func (s *auditService) Query(ctx context.Context, caller models.Caller, filter models.LogFilter, page models.Page) ([]*models.OperationLog, error) {
	if err := authorize(caller, false); err != nil {
		return nil, err
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, invalid("end_date is before start_date")
	}

	entries, err := s.repo.Query(ctx, caller.CompanyID, filter, page.Normalize(models.DefaultLogLimit))
	if err != nil {
		return nil, fmt.Errorf("query operation logs: %w", err)
	}
	return entries, nil
}

// resourceRef returns a pointer for Operation.ResourceID.
func resourceRef(id uuid.UUID) *uuid.UUID {
	return &id
}
