package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/database"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/repositories"
)

// ReviewInput is a reviewer's decision on a generated bid.
type ReviewInput struct {
	Status models.BidStatus `json:"status"`
	Notes  *string          `json:"manual_review_notes"`
}

// BidService reads and reviews generated bids.
type BidService interface {
	Get(ctx context.Context, caller models.Caller, id uuid.UUID) (*models.GeneratedBid, error)
	List(ctx context.Context, caller models.Caller, page models.Page) ([]*models.GeneratedBid, error)
	// GetByTask returns the bid produced by a completed task.
	GetByTask(ctx context.Context, caller models.Caller, taskID uuid.UUID) (*models.GeneratedBid, error)
	// Review sets the review status. Statuses may move in any order, but a
	// finalized bid only changes again when notes justify it.
	Review(ctx context.Context, caller models.Caller, id uuid.UUID, in ReviewInput) (*models.GeneratedBid, error)
}

type bidService struct {
	repo   repositories.GeneratedBidRepository
	audit  AuditService
	tx     database.Transactor
	logger *zap.Logger
}

// NewBidService creates a BidService.
func NewBidService(repo repositories.GeneratedBidRepository, audit AuditService, tx database.Transactor, logger *zap.Logger) BidService {
	return &bidService{
		repo:   repo,
		audit:  audit,
		tx:     tx,
		logger: logger.Named("bid-service"),
	}
}

var _ BidService = (*bidService)(nil)

func (s *bidService) Get(ctx context.Context, caller models.Caller, id uuid.UUID) (*models.GeneratedBid, error) {
	if err := authorize(caller, false); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, caller.CompanyID, id)
}

func (s *bidService) List(ctx context.Context, caller models.Caller, page models.Page) ([]*models.GeneratedBid, error) {
	if err := authorize(caller, false); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, caller.CompanyID, page.Normalize(models.DefaultPageLimit))
}

func (s *bidService) GetByTask(ctx context.Context, caller models.Caller, taskID uuid.UUID) (*models.GeneratedBid, error) {
	if err := authorize(caller, false); err != nil {
		return nil, err
	}
	return s.repo.GetByTask(ctx, caller.CompanyID, taskID)
}

func (s *bidService) Review(ctx context.Context, caller models.Caller, id uuid.UUID, in ReviewInput) (*models.GeneratedBid, error) {
	if err := authorize(caller, false); err != nil {
		return nil, err
	}
	if !in.Status.IsValid() {
		return nil, fmt.Errorf("status %q: %w", in.Status, apperrors.ErrInvalidStatus)
	}

	var reviewed *models.GeneratedBid
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		existing, err := s.repo.Get(ctx, caller.CompanyID, id)
		if err != nil {
			return err
		}
		if existing.Status == models.BidStatusFinalized && (in.Notes == nil || strings.TrimSpace(*in.Notes) == "") {
			return apperrors.ErrJustificationRequired
		}

		next := *existing
		next.TenantRecord = pinRecord(existing.TenantRecord)
		next.Status = in.Status
		if in.Notes != nil {
			notes := *in.Notes
			next.ManualReviewNotes = &notes
		}
		if err := s.repo.Update(ctx, &next); err != nil {
			return err
		}
		reviewed = &next

		return s.audit.Log(ctx, caller, Operation{
			Type:       models.OperationUpdate,
			Resource:   models.ResourceGeneratedBid,
			ResourceID: resourceRef(id),
			Content:    fmt.Sprintf("reviewed bid: %s", in.Status),
			Changes:    changedFields(existing, &next),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Bid reviewed",
		zap.String("bid_id", id.String()),
		zap.String("status", string(in.Status)))
	return reviewed, nil
}
