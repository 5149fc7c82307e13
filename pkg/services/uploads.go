package services

import (
	"context"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/database"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/repositories"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/storage"
)

// MaxUploadBytes bounds a single uploaded document.
const MaxUploadBytes = 50 << 20

// TemplateUpload describes an uploaded bid template.
type TemplateUpload struct {
	Name         string
	TemplateType string
	Filename     string
	Data         []byte
}

// UploadService stores tender documents and templates in the file store.
type UploadService interface {
	// UploadRFP stores an RFP document and returns its file store URL.
	UploadRFP(ctx context.Context, caller models.Caller, filename string, data []byte) (string, error)
	// UploadTemplate stores the file and registers a BidTemplate for it.
	UploadTemplate(ctx context.Context, caller models.Caller, in TemplateUpload) (*models.BidTemplate, error)
}

type uploadService struct {
	files     storage.FileStore
	templates repositories.BidTemplateRepository
	audit     AuditService
	tx        database.Transactor
	logger    *zap.Logger
}

// NewUploadService creates an UploadService.
func NewUploadService(files storage.FileStore, templates repositories.BidTemplateRepository, audit AuditService, tx database.Transactor, logger *zap.Logger) UploadService {
	return &uploadService{
		files:     files,
		templates: templates,
		audit:     audit,
		tx:        tx,
		logger:    logger.Named("upload-service"),
	}
}

var _ UploadService = (*uploadService)(nil)

func checkUpload(filename string, data []byte) error {
	if strings.TrimSpace(filename) == "" {
		return invalid("filename is required")
	}
	if len(data) == 0 {
		return invalid("file is empty")
	}
	if len(data) > MaxUploadBytes {
		return invalid("file exceeds %d bytes", MaxUploadBytes)
	}
	return nil
}

func (s *uploadService) UploadRFP(ctx context.Context, caller models.Caller, filename string, data []byte) (string, error) {
	if err := authorize(caller, false); err != nil {
		return "", err
	}
	if err := checkUpload(filename, data); err != nil {
		return "", err
	}

	url, err := s.files.Put(ctx, caller.CompanyID, storage.CategoryRFP, filename, data)
	if err != nil {
		return "", fmt.Errorf("store rfp: %w", err)
	}

	if err := s.audit.Log(ctx, caller, Operation{
		Type:     models.OperationUpload,
		Resource: models.ResourceRFP,
		Content:  fmt.Sprintf("uploaded %s (%d bytes) to %s", path.Base(filename), len(data), url),
	}); err != nil {
		return "", err
	}
	return url, nil
}

func (s *uploadService) UploadTemplate(ctx context.Context, caller models.Caller, in TemplateUpload) (*models.BidTemplate, error) {
	if err := authorize(caller, false); err != nil {
		return nil, err
	}
	if err := checkUpload(in.Filename, in.Data); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = strings.TrimSuffix(path.Base(in.Filename), path.Ext(in.Filename))
	}

	url, err := s.files.Put(ctx, caller.CompanyID, storage.CategoryTemplate, in.Filename, in.Data)
	if err != nil {
		return nil, fmt.Errorf("store template: %w", err)
	}

	template := &models.BidTemplate{
		TenantRecord: newRecord(caller),
		Name:         name,
		FileURL:      url,
		TemplateType: in.TemplateType,
	}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.templates.Create(ctx, template); err != nil {
			return err
		}
		return s.audit.Log(ctx, caller, Operation{
			Type:       models.OperationCreate,
			Resource:   models.ResourceBidTemplate,
			ResourceID: resourceRef(template.ID),
			Content:    "uploaded template " + name,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}
	return template, nil
}
