package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/database"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/events"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/metrics"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/repositories"
)

// TaskInput identifies what a bid generation task works on.
type TaskInput struct {
	ProjectID  uuid.UUID `json:"project_id"`
	TemplateID uuid.UUID `json:"template_id"`
	RFPFileURL string    `json:"rfp_file_url"`
}

func (in TaskInput) validate() error {
	if in.ProjectID == uuid.Nil || in.TemplateID == uuid.Nil {
		return invalid("project_id and template_id are required")
	}
	if strings.TrimSpace(in.RFPFileURL) == "" {
		return invalid("rfp_file_url is required")
	}
	return nil
}

// TaskService manages bid generation tasks outside the pipeline.
type TaskService interface {
	// Create registers a pending task for later processing.
	Create(ctx context.Context, caller models.Caller, in TaskInput) (*models.BidGenerationTask, error)
	Get(ctx context.Context, caller models.Caller, id uuid.UUID) (*models.BidGenerationTask, error)
	List(ctx context.Context, caller models.Caller, page models.Page) ([]*models.BidGenerationTask, error)
	// Cancel stops a pending or processing task. A finished task is left
	// untouched and apperrors.ErrTaskTerminal is returned.
	Cancel(ctx context.Context, caller models.Caller, id uuid.UUID) (*models.BidGenerationTask, error)
}

type taskService struct {
	tasks     repositories.BidTaskRepository
	projects  repositories.ProjectRepository
	templates repositories.BidTemplateRepository
	audit     AuditService
	tx        database.Transactor
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewTaskService creates a TaskService.
func NewTaskService(
	store *repositories.Store,
	audit AuditService,
	tx database.Transactor,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) TaskService {
	return &taskService{
		tasks:     store.Tasks,
		projects:  store.Projects,
		templates: store.Templates,
		audit:     audit,
		tx:        tx,
		publisher: publisher,
		metrics:   m,
		logger:    logger.Named("task-service"),
	}
}

var _ TaskService = (*taskService)(nil)

func (s *taskService) Create(ctx context.Context, caller models.Caller, in TaskInput) (*models.BidGenerationTask, error) {
	if err := authorize(caller, false); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := resolveInputs(ctx, s.projects, s.templates, caller.CompanyID, in); err != nil {
		return nil, err
	}

	task := &models.BidGenerationTask{
		TenantRecord: newRecord(caller),
		ProjectID:    in.ProjectID,
		TemplateID:   in.TemplateID,
		RFPFileURL:   in.RFPFileURL,
		Status:       models.TaskStatusPending,
		Progress:     models.ProgressCreated,
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.tasks.Create(ctx, task); err != nil {
			return err
		}
		return s.audit.Log(ctx, caller, Operation{
			Type:       models.OperationCreate,
			Resource:   models.ResourceBidTask,
			ResourceID: resourceRef(task.ID),
			Content:    "created bid generation task for project " + in.ProjectID.String(),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return task, nil
}

func (s *taskService) Get(ctx context.Context, caller models.Caller, id uuid.UUID) (*models.BidGenerationTask, error) {
	if err := authorize(caller, false); err != nil {
		return nil, err
	}
	return s.tasks.Get(ctx, caller.CompanyID, id)
}

func (s *taskService) List(ctx context.Context, caller models.Caller, page models.Page) ([]*models.BidGenerationTask, error) {
	if err := authorize(caller, false); err != nil {
		return nil, err
	}
	return s.tasks.List(ctx, caller.CompanyID, page.Normalize(models.DefaultPageLimit))
}

func (s *taskService) Cancel(ctx context.Context, caller models.Caller, id uuid.UUID) (*models.BidGenerationTask, error) {
	if err := authorize(caller, false); err != nil {
		return nil, err
	}

	var cancelled *models.BidGenerationTask
	var previous models.TaskStatus
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		task, err := s.tasks.Transition(ctx, caller.CompanyID, id,
			[]models.TaskStatus{models.TaskStatusPending, models.TaskStatusProcessing},
			func(t *models.BidGenerationTask) {
				previous = t.Status
				t.Status = models.TaskStatusCancelled
				t.UpdatedAt = now()
			})
		if err != nil {
			return err
		}
		cancelled = task
		return s.audit.Log(ctx, caller, Operation{
			Type:       models.OperationUpdate,
			Resource:   models.ResourceBidTask,
			ResourceID: resourceRef(id),
			Content:    "cancelled bid generation task",
			Changes: map[string]models.FieldChange{
				"status": {Old: string(previous), New: string(models.TaskStatusCancelled)},
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("cancel task: %w", err)
	}

	s.metrics.TasksFinished.WithLabelValues(string(models.TaskStatusCancelled), "").Inc()
	publish(ctx, s.publisher, s.logger, events.NewTaskEvent(events.TaskCancelled, cancelled, nil))
	return cancelled, nil
}

// resolveInputs checks that the project and template exist in companyID.
func resolveInputs(ctx context.Context, projects repositories.ProjectRepository, templates repositories.BidTemplateRepository, companyID uuid.UUID, in TaskInput) error {
	if _, err := projects.Get(ctx, companyID, in.ProjectID); err != nil {
		return fmt.Errorf("project: %w", err)
	}
	if _, err := templates.Get(ctx, companyID, in.TemplateID); err != nil {
		return fmt.Errorf("template: %w", err)
	}
	return nil
}

// publish sends event and only logs failures.
func publish(ctx context.Context, p events.Publisher, logger *zap.Logger, event events.TaskEvent) {
	if err := p.PublishTaskEvent(ctx, event); err != nil {
		logger.Warn("Failed to publish task event",
			zap.String("event_type", event.EventType),
			zap.String("task_id", event.TaskID.String()),
			zap.Error(err))
	}
}
