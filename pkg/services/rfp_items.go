package services

import (
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/database"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/repositories"
)

// Comparison operators accepted on RFP items.
var rfpOperators = []string{"", ">=", ">", "<=", "<", "="}

// RFPItemService manages requirement items extracted from a project's RFP.
type RFPItemService interface {
	ResourceService[models.RFPItem]

	// ListByProject returns the items of a project in the caller's company.
	ListByProject(ctx context.Context, caller models.Caller, projectID uuid.UUID, page models.Page) ([]*models.RFPItem, error)
}

type rfpItemService struct {
	*resourceManager[models.RFPItem, *models.RFPItem]
	items    repositories.RFPItemRepository
	projects repositories.ProjectRepository
}

// NewRFPItemService creates an RFPItemService. Items always belong to a
// project of the same company, and never move to another project.
func NewRFPItemService(items repositories.RFPItemRepository, projects repositories.ProjectRepository, audit AuditService, tx database.Transactor, logger *zap.Logger) RFPItemService {
	s := &rfpItemService{items: items, projects: projects}

	check := func(item *models.RFPItem) error {
		if strings.TrimSpace(item.Content) == "" {
			return invalid("content is required")
		}
		if !slices.Contains(rfpOperators, item.Operator) {
			return invalid("unknown operator %q", item.Operator)
		}
		return nil
	}

	s.resourceManager = newResourceManager[models.RFPItem](models.ResourceRFPItem, items, audit, tx, resourceHooks[models.RFPItem]{
		prepare: func(ctx context.Context, caller models.Caller, item *models.RFPItem) error {
			if err := check(item); err != nil {
				return err
			}
			_, err := projects.Get(ctx, caller.CompanyID, item.ProjectID)
			return err
		},
		merge: func(_ context.Context, _ models.Caller, existing, next *models.RFPItem) error {
			next.ProjectID = existing.ProjectID
			return check(next)
		},
		describe: func(item *models.RFPItem) string {
			if item.ExtractedKey != "" {
				return item.ExtractedKey
			}
			return item.SectionType
		},
	}, logger)
	return s
}

func (s *rfpItemService) ListByProject(ctx context.Context, caller models.Caller, projectID uuid.UUID, page models.Page) ([]*models.RFPItem, error) {
	if err := authorize(caller, false); err != nil {
		return nil, err
	}
	if _, err := s.projects.Get(ctx, caller.CompanyID, projectID); err != nil {
		return nil, err
	}
	return s.items.ListByProject(ctx, caller.CompanyID, projectID, page.Normalize(models.DefaultPageLimit))
}
