package services

import (
	"context"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/database"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/repositories"
)

var projectStatuses = []string{
	models.ProjectStatusParsing,
	models.ProjectStatusInProgress,
	models.ProjectStatusCompleted,
	models.ProjectStatusArchived,
}

// NewProjectService manages projects. The owner is the creating caller and
// never changes afterwards.
func NewProjectService(repo repositories.ProjectRepository, audit AuditService, tx database.Transactor, logger *zap.Logger) ResourceService[models.Project] {
	checkStatus := func(p *models.Project) error {
		if strings.TrimSpace(p.Name) == "" {
			return invalid("project name is required")
		}
		if !slices.Contains(projectStatuses, p.Status) {
			return invalid("unknown project status %q", p.Status)
		}
		return nil
	}

	return newResourceManager[models.Project](models.ResourceProject, repo, audit, tx, resourceHooks[models.Project]{
		prepare: func(_ context.Context, caller models.Caller, p *models.Project) error {
			p.OwnerID = caller.UserID
			if p.Status == "" {
				p.Status = models.ProjectStatusParsing
			}
			return checkStatus(p)
		},
		merge: func(_ context.Context, _ models.Caller, existing, next *models.Project) error {
			next.OwnerID = existing.OwnerID
			if next.Status == "" {
				next.Status = existing.Status
			}
			return checkStatus(next)
		},
		describe: func(p *models.Project) string { return p.Name },
	}, logger)
}

// NewProductSpecService manages product parameters.
func NewProductSpecService(repo repositories.ProductSpecRepository, audit AuditService, tx database.Transactor, logger *zap.Logger) ResourceService[models.ProductSpec] {
	check := func(s *models.ProductSpec) error {
		if strings.TrimSpace(s.ProductModel) == "" || strings.TrimSpace(s.ParamName) == "" {
			return invalid("product_model and param_name are required")
		}
		return nil
	}

	return newResourceManager[models.ProductSpec](models.ResourceProductSpec, repo, audit, tx, resourceHooks[models.ProductSpec]{
		prepare: func(_ context.Context, _ models.Caller, s *models.ProductSpec) error { return check(s) },
		merge:   func(_ context.Context, _ models.Caller, _, next *models.ProductSpec) error { return check(next) },
		describe: func(s *models.ProductSpec) string {
			return s.ProductModel + "/" + s.ParamName
		},
	}, logger)
}

// NewBidTemplateService manages templates created from JSON. Uploaded
// template files go through UploadService.
func NewBidTemplateService(repo repositories.BidTemplateRepository, audit AuditService, tx database.Transactor, logger *zap.Logger) ResourceService[models.BidTemplate] {
	check := func(t *models.BidTemplate) error {
		if strings.TrimSpace(t.Name) == "" {
			return invalid("template name is required")
		}
		return nil
	}

	return newResourceManager[models.BidTemplate](models.ResourceBidTemplate, repo, audit, tx, resourceHooks[models.BidTemplate]{
		prepare:  func(_ context.Context, _ models.Caller, t *models.BidTemplate) error { return check(t) },
		merge:    func(_ context.Context, _ models.Caller, _, next *models.BidTemplate) error { return check(next) },
		describe: func(t *models.BidTemplate) string { return t.Name },
	}, logger)
}

// NewQualificationService manages certificates. Status is always derived
// from the expiry date; a client-supplied status is ignored.
func NewQualificationService(repo repositories.QualificationRepository, audit AuditService, tx database.Transactor, expiringWindow time.Duration, logger *zap.Logger) ResourceService[models.Qualification] {
	derive := func(q *models.Qualification) error {
		if strings.TrimSpace(q.Name) == "" {
			return invalid("qualification name is required")
		}
		q.Status = q.StatusAt(now(), expiringWindow)
		return nil
	}

	return newResourceManager[models.Qualification](models.ResourceQualification, repo, audit, tx, resourceHooks[models.Qualification]{
		prepare:  func(_ context.Context, _ models.Caller, q *models.Qualification) error { return derive(q) },
		merge:    func(_ context.Context, _ models.Caller, _, next *models.Qualification) error { return derive(next) },
		describe: func(q *models.Qualification) string { return q.Name },
	}, logger)
}
