package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/config"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/database"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/events"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/llm"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/metrics"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/prompts"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/repositories"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/storage"
)

// SectionInput asks for prose for one bid section.
type SectionInput struct {
	ProjectID   uuid.UUID `json:"project_id"`
	SectionType string    `json:"section_type"`
	Requirement string    `json:"requirement"`
}

// SectionResult is generated section text and the knowledge it reused.
type SectionResult struct {
	Content string                `json:"content"`
	Sources []*models.ScoredChunk `json:"sources"`
}

// GenerationService runs the synchronous bid generation pipeline.
type GenerationService interface {
	// Generate creates a processing task and drives it to a terminal state.
	// Collaborator and file store failures end in a failed task, not an error.
	Generate(ctx context.Context, caller models.Caller, in TaskInput) (*models.BidGenerationTask, error)

	// GenerateSection drafts one section using similar knowledge chunks.
	GenerateSection(ctx context.Context, caller models.Caller, in SectionInput) (*SectionResult, error)
}

// GenerationDeps are the collaborators of the generation pipeline.
type GenerationDeps struct {
	Store     *repositories.Store
	Audit     AuditService
	Tx        database.Transactor
	Scoper    database.TenantScoper
	Files     storage.FileStore
	Generator BidGenerator
	Embedder  llm.Embedder // optional
	Limiter   GenerationLimiter
	Publisher events.Publisher
	Metrics   *metrics.Metrics
}

type generationService struct {
	GenerationDeps
	cfg    config.GenerationConfig
	logger *zap.Logger

	breakersMu sync.Mutex
	breakers   map[uuid.UUID]*gobreaker.CircuitBreaker
}

// NewGenerationService creates a GenerationService.
func NewGenerationService(deps GenerationDeps, cfg config.GenerationConfig, logger *zap.Logger) GenerationService {
	return &generationService{
		GenerationDeps: deps,
		cfg:            cfg,
		logger:         logger.Named("generation-service"),
		breakers:       make(map[uuid.UUID]*gobreaker.CircuitBreaker),
	}
}

var _ GenerationService = (*generationService)(nil)

// breakerFor returns the circuit breaker of companyID, so failures of one
// company's generations never open the circuit for another.
func (s *generationService) breakerFor(companyID uuid.UUID) *gobreaker.CircuitBreaker {
	s.breakersMu.Lock()
	defer s.breakersMu.Unlock()

	if cb, ok := s.breakers[companyID]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "bid-generator:" + companyID.String(),
		MaxRequests: 1,
		Timeout:     s.cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return s.cfg.BreakerFailures > 0 && counts.ConsecutiveFailures >= s.cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			switch {
			case to == gobreaker.StateOpen:
				s.Metrics.BreakersOpen.Inc()
			case from == gobreaker.StateOpen:
				s.Metrics.BreakersOpen.Dec()
			}
		},
	})
	s.breakers[companyID] = cb
	return cb
}

// stageError carries the task error code for a failed stage.
type stageError struct {
	code string
	err  error
}

func (e *stageError) Error() string { return e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

func failWith(code string, err error) error {
	return &stageError{code: code, err: err}
}

func (s *generationService) Generate(ctx context.Context, caller models.Caller, in TaskInput) (*models.BidGenerationTask, error) {
	if err := authorize(caller, false); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := resolveInputs(ctx, s.Store.Projects, s.Store.Templates, caller.CompanyID, in); err != nil {
		return nil, err
	}

	release, err := s.Limiter.Acquire(ctx, caller.CompanyID)
	if err != nil {
		if errors.Is(err, apperrors.ErrTooManyGenerations) {
			s.Metrics.GenerationRejected.Inc()
		}
		return nil, err
	}
	defer release()

	s.Metrics.GenerationsRunning.Inc()
	defer s.Metrics.GenerationsRunning.Dec()
	start := time.Now()
	defer s.Metrics.ObserveGeneration(start)

	task := &models.BidGenerationTask{
		TenantRecord: newRecord(caller),
		ProjectID:    in.ProjectID,
		TemplateID:   in.TemplateID,
		RFPFileURL:   in.RFPFileURL,
		Status:       models.TaskStatusProcessing,
		Progress:     models.ProgressProcessing,
	}
	err = s.Tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.Store.Tasks.Create(ctx, task); err != nil {
			return err
		}
		return s.Audit.Log(ctx, caller, Operation{
			Type:       models.OperationCreate,
			Resource:   models.ResourceBidTask,
			ResourceID: resourceRef(task.ID),
			Content:    "started bid generation for project " + in.ProjectID.String(),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	logger := s.logger.With(
		zap.String("company_id", caller.CompanyID.String()),
		zap.String("task_id", task.ID.String()))
	logger.Info("Bid generation started", zap.String("project_id", in.ProjectID.String()))

	content, templateName, projectName, err := s.run(ctx, caller, task, logger)
	if err != nil {
		return s.fail(ctx, caller, task, err, logger)
	}
	return s.complete(ctx, caller, task, projectName, templateName, content, logger)
}

// run executes the gather and generate stages.
func (s *generationService) run(ctx context.Context, caller models.Caller, task *models.BidGenerationTask, logger *zap.Logger) (*models.BidContent, string, string, error) {
	bc, err := s.gather(ctx, caller.CompanyID, task)
	if err != nil {
		return nil, "", "", err
	}
	if err := s.advance(ctx, task, models.ProgressGathered); err != nil {
		return nil, "", "", err
	}

	genCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	result, err := s.breakerFor(caller.CompanyID).Execute(func() (interface{}, error) {
		return s.Generator.GenerateBid(genCtx, bc)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(genCtx.Err(), context.DeadlineExceeded) {
			return nil, "", "", failWith(models.TaskErrorGenerationTimeout,
				fmt.Errorf("generation exceeded %s", s.cfg.Timeout))
		}
		return nil, "", "", failWith(models.TaskErrorGenerationFailed, err)
	}
	content, _ := result.(*models.BidContent)
	if content == nil {
		return nil, "", "", failWith(models.TaskErrorGenerationFailed, errors.New("generator returned no content"))
	}
	logger.Debug("Bid content generated",
		zap.Int("matched_specs", len(content.MatchedSpecs)),
		zap.Int("review_sections", len(content.ManualReviewSections)))

	if len(content.DeviationTable) == 0 {
		content.DeviationTable = ComputeDeviationTable(bc.RFPItems, bc.ProductSpecs)
	}
	if err := s.advance(ctx, task, models.ProgressGenerated); err != nil {
		return nil, "", "", err
	}
	return content, bc.TemplateName, bc.ProjectName, nil
}

// gather loads every generation input concurrently. Each goroutine opens its
// own tenant scope because a scoped connection is not safe for concurrent use.
func (s *generationService) gather(ctx context.Context, companyID uuid.UUID, task *models.BidGenerationTask) (*prompts.BidContext, error) {
	bc := &prompts.BidContext{}
	var template *models.BidTemplate

	g, gctx := errgroup.WithContext(ctx)
	scoped := func(fn func(ctx context.Context) error) {
		g.Go(func() error {
			sctx, cleanup, err := s.Scoper.WithTenantScope(gctx, companyID)
			if err != nil {
				return fmt.Errorf("open tenant scope: %w", err)
			}
			defer cleanup()
			return fn(sctx)
		})
	}

	scoped(func(ctx context.Context) error {
		project, err := s.Store.Projects.Get(ctx, companyID, task.ProjectID)
		if err != nil {
			return fmt.Errorf("load project: %w", err)
		}
		bc.ProjectName = project.Name
		return nil
	})
	scoped(func(ctx context.Context) error {
		t, err := s.Store.Templates.Get(ctx, companyID, task.TemplateID)
		if err != nil {
			return fmt.Errorf("load template: %w", err)
		}
		template = t
		return nil
	})
	scoped(func(ctx context.Context) error {
		items, err := s.Store.RFPItems.ListAllByProject(ctx, companyID, task.ProjectID)
		if err != nil {
			return fmt.Errorf("load rfp items: %w", err)
		}
		bc.RFPItems = items
		return nil
	})
	scoped(func(ctx context.Context) error {
		specs, err := s.Store.ProductSpecs.ListAllByModel(ctx, companyID, "")
		if err != nil {
			return fmt.Errorf("load product specs: %w", err)
		}
		bc.ProductSpecs = specs
		return nil
	})
	scoped(func(ctx context.Context) error {
		quals, err := s.Store.Qualifications.ListAll(ctx, companyID)
		if err != nil {
			return fmt.Errorf("load qualifications: %w", err)
		}
		bc.Qualifications = quals
		return nil
	})
	g.Go(func() error {
		data, err := s.Files.Get(gctx, companyID, task.RFPFileURL)
		if err != nil {
			return failWith(models.TaskErrorStorageFailed, fmt.Errorf("read rfp: %w", err))
		}
		bc.RFPText = string(data)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	bc.TemplateName = template.Name
	bc.TemplateType = template.TemplateType
	if template.FileURL != "" {
		data, err := s.Files.Get(ctx, companyID, template.FileURL)
		if err != nil {
			return nil, failWith(models.TaskErrorStorageFailed, fmt.Errorf("read template: %w", err))
		}
		bc.TemplateText = string(data)
	}

	if s.Embedder != nil && bc.RFPText != "" {
		hits, err := s.similarKnowledge(ctx, companyID, knowledgeQuery(bc))
		if err != nil {
			// Knowledge only enriches the draft.
			s.logger.Warn("Knowledge lookup failed", zap.String("task_id", task.ID.String()), zap.Error(err))
		} else {
			bc.Knowledge = hits
		}
	}
	return bc, nil
}

func (s *generationService) similarKnowledge(ctx context.Context, companyID uuid.UUID, query string) ([]*models.ScoredChunk, error) {
	embedding, err := s.Embedder.CreateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w: %w", apperrors.ErrExternalFailure, err)
	}
	return s.Store.Knowledge.SearchSimilar(ctx, companyID, embedding, "", s.cfg.KnowledgeTopK)
}

// knowledgeQuery summarises the tender for the similarity lookup.
func knowledgeQuery(bc *prompts.BidContext) string {
	var b strings.Builder
	b.WriteString(bc.ProjectName)
	for _, item := range bc.RFPItems {
		b.WriteString("\n")
		b.WriteString(item.Content)
		if b.Len() > 4000 {
			break
		}
	}
	if len(bc.RFPItems) == 0 {
		b.WriteString("\n")
		b.WriteString(firstLine(bc.RFPText))
	}
	return b.String()
}

// advance raises the task's progress while it is still processing.
func (s *generationService) advance(ctx context.Context, task *models.BidGenerationTask, progress int) error {
	updated, err := s.Store.Tasks.Transition(ctx, task.CompanyID, task.ID,
		[]models.TaskStatus{models.TaskStatusProcessing},
		func(t *models.BidGenerationTask) {
			t.Progress = progress
			t.UpdatedAt = now()
		})
	if err != nil {
		return err
	}
	*task = *updated
	return nil
}

func (s *generationService) complete(ctx context.Context, caller models.Caller, task *models.BidGenerationTask, projectName, templateName string, content *models.BidContent, logger *zap.Logger) (*models.BidGenerationTask, error) {
	artifact := RenderBidMarkdown(projectName, templateName, content)
	url, err := s.Files.Put(ctx, caller.CompanyID, storage.CategoryGenerated, task.ID.String()+".md", artifact)
	if err != nil {
		return s.fail(ctx, caller, task, failWith(models.TaskErrorStorageFailed, err), logger)
	}

	var bid *models.GeneratedBid
	var completed *models.BidGenerationTask
	err = s.Tx.InTx(ctx, func(ctx context.Context) error {
		t, err := s.Store.Tasks.Transition(ctx, caller.CompanyID, task.ID,
			[]models.TaskStatus{models.TaskStatusProcessing},
			func(t *models.BidGenerationTask) {
				t.Status = models.TaskStatusCompleted
				t.Progress = models.ProgressDone
				t.ResultFileURL = url
				t.UpdatedAt = now()
			})
		if err != nil {
			return err
		}
		completed = t

		bid = &models.GeneratedBid{
			TenantRecord:       newRecord(caller),
			ProjectID:          task.ProjectID,
			TaskID:             task.ID,
			TemplateID:         task.TemplateID,
			FileURL:            url,
			Status:             models.BidStatusDraft,
			AIGeneratedContent: *content,
		}
		if err := s.Store.GeneratedBids.Create(ctx, bid); err != nil {
			return err
		}
		return s.Audit.Log(ctx, caller, Operation{
			Type:       models.OperationGenerate,
			Resource:   models.ResourceGeneratedBid,
			ResourceID: resourceRef(bid.ID),
			Content:    fmt.Sprintf("generated bid for project %s from task %s", projectName, task.ID),
		})
	})
	if err != nil {
		if cancelled, ok := s.lostRace(ctx, task, err, logger); ok {
			return cancelled, nil
		}
		return nil, fmt.Errorf("complete task: %w", err)
	}

	logger.Info("Bid generation completed", zap.String("bid_id", bid.ID.String()))
	s.Metrics.TasksFinished.WithLabelValues(string(models.TaskStatusCompleted), "").Inc()
	publish(ctx, s.Publisher, s.logger, events.NewTaskEvent(events.TaskCompleted, completed, &bid.ID))
	return completed, nil
}

func (s *generationService) fail(ctx context.Context, caller models.Caller, task *models.BidGenerationTask, cause error, logger *zap.Logger) (*models.BidGenerationTask, error) {
	if cancelled, ok := s.lostRace(ctx, task, cause, logger); ok {
		return cancelled, nil
	}

	code := models.TaskErrorGenerationFailed
	var se *stageError
	if errors.As(cause, &se) {
		code = se.code
	}
	message := cause.Error()
	logger.Warn("Bid generation failed", zap.String("error_code", code), zap.Error(cause))

	// The request context may be the one that expired.
	ctx = context.WithoutCancel(ctx)

	var failed *models.BidGenerationTask
	err := s.Tx.InTx(ctx, func(ctx context.Context) error {
		t, err := s.Store.Tasks.Transition(ctx, caller.CompanyID, task.ID,
			[]models.TaskStatus{models.TaskStatusProcessing},
			func(t *models.BidGenerationTask) {
				t.Status = models.TaskStatusFailed
				t.ErrorCode = code
				t.ErrorMessage = message
				t.ResultFileURL = ""
				t.UpdatedAt = now()
			})
		if err != nil {
			return err
		}
		failed = t
		return s.Audit.Log(ctx, caller, Operation{
			Type:       models.OperationGenerate,
			Resource:   models.ResourceBidTask,
			ResourceID: resourceRef(task.ID),
			Content:    fmt.Sprintf("bid generation failed (%s): %s", code, message),
		})
	})
	if err != nil {
		if cancelled, ok := s.lostRace(ctx, task, err, logger); ok {
			return cancelled, nil
		}
		return nil, fmt.Errorf("fail task: %w", err)
	}

	s.Metrics.TasksFinished.WithLabelValues(string(models.TaskStatusFailed), code).Inc()
	publish(ctx, s.Publisher, s.logger, events.NewTaskEvent(events.TaskFailed, failed, nil))
	return failed, nil
}

// lostRace reports whether err means another writer, normally a cancel,
// finished the task first, and returns the task as stored.
func (s *generationService) lostRace(ctx context.Context, task *models.BidGenerationTask, err error, logger *zap.Logger) (*models.BidGenerationTask, bool) {
	if !errors.Is(err, apperrors.ErrTaskTerminal) {
		return nil, false
	}
	current, getErr := s.Store.Tasks.Get(context.WithoutCancel(ctx), task.CompanyID, task.ID)
	if getErr != nil {
		logger.Error("Failed to reload finished task", zap.Error(getErr))
		return nil, false
	}
	logger.Info("Task finished elsewhere during generation", zap.String("status", string(current.Status)))
	return current, true
}

func (s *generationService) GenerateSection(ctx context.Context, caller models.Caller, in SectionInput) (*SectionResult, error) {
	if err := authorize(caller, false); err != nil {
		return nil, err
	}
	if in.ProjectID == uuid.Nil || strings.TrimSpace(in.SectionType) == "" {
		return nil, invalid("project_id and section_type are required")
	}
	project, err := s.Store.Projects.Get(ctx, caller.CompanyID, in.ProjectID)
	if err != nil {
		return nil, err
	}

	sources := []*models.ScoredChunk{}
	if s.Embedder != nil && strings.TrimSpace(in.Requirement) != "" {
		hits, err := s.similarKnowledge(ctx, caller.CompanyID, in.SectionType+"\n"+in.Requirement)
		if err != nil {
			return nil, err
		}
		sources = hits
	}

	genCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	result, err := s.breakerFor(caller.CompanyID).Execute(func() (interface{}, error) {
		return s.Generator.GenerateSection(genCtx, project.Name, in.SectionType, in.Requirement, sources)
	})
	if err != nil {
		return nil, fmt.Errorf("generate section: %w: %w", apperrors.ErrExternalFailure, err)
	}

	if err := s.Audit.Log(ctx, caller, Operation{
		Type:       models.OperationGenerate,
		Resource:   models.ResourceAI,
		ResourceID: resourceRef(project.ID),
		Content:    fmt.Sprintf("generated %s section for %s", in.SectionType, project.Name),
	}); err != nil {
		return nil, err
	}
	return &SectionResult{Content: result.(string), Sources: sources}, nil
}
