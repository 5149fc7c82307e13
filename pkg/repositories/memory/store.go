package memory

import (
	"cmp"
	"context"
	"math"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/repositories"
)

// NewStore returns a repositories.Store whose repositories keep everything in memory.
func NewStore() *repositories.Store {
	users := &userRepository{table: newTable[models.User]()}
	users.unique = func(existing, candidate *models.User) error {
		if existing.CompanyID == candidate.CompanyID && existing.Username == candidate.Username {
			return apperrors.ErrDuplicateUsername
		}
		return nil
	}
	bids := &generatedBidRepository{table: newTable[models.GeneratedBid]()}
	bids.unique = func(existing, candidate *models.GeneratedBid) error {
		if existing.TaskID == candidate.TaskID {
			return apperrors.ErrConflict
		}
		return nil
	}

	return &repositories.Store{
		Companies:      &companyRepository{rows: make(map[uuid.UUID]*models.Company)},
		Users:          users,
		Projects:       &projectRepository{table: newTable[models.Project]()},
		RFPItems:       &rfpItemRepository{table: newTable[models.RFPItem]()},
		ProductSpecs:   &productSpecRepository{table: newTable[models.ProductSpec]()},
		Knowledge:      &knowledgeChunkRepository{table: newTable[models.KnowledgeChunk]()},
		Templates:      &bidTemplateRepository{table: newTable[models.BidTemplate]()},
		Qualifications: &qualificationRepository{table: newTable[models.Qualification]()},
		Tasks:          &bidTaskRepository{table: newTable[models.BidGenerationTask]()},
		GeneratedBids:  bids,
		OperationLogs:  &operationLogRepository{},
	}
}

type companyRepository struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]*models.Company
}

func (r *companyRepository) Create(_ context.Context, company *models.Company) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[company.ID]; ok {
		return apperrors.ErrConflict
	}
	r.rows[company.ID] = clone(company)
	return nil
}

func (r *companyRepository) Get(_ context.Context, id uuid.UUID) (*models.Company, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.rows[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return clone(c), nil
}

func (r *companyRepository) List(_ context.Context) ([]*models.Company, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*models.Company, 0, len(r.rows))
	for _, c := range r.rows {
		result = append(result, clone(c))
	}
	slices.SortFunc(result, func(a, b *models.Company) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return compareIDs(a.ID, b.ID)
	})
	return result, nil
}

type userRepository struct {
	*table[models.User, *models.User]
}

func (r *userRepository) GetByUsername(_ context.Context, companyID uuid.UUID, username string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.rows {
		if u.CompanyID == companyID && u.Username == username {
			return clone(u), nil
		}
	}
	return nil, apperrors.ErrNotFound
}

type projectRepository struct {
	*table[models.Project, *models.Project]
}

type rfpItemRepository struct {
	*table[models.RFPItem, *models.RFPItem]
}

func (r *rfpItemRepository) ListByProject(_ context.Context, companyID, projectID uuid.UUID, page models.Page) ([]*models.RFPItem, error) {
	return r.filter(companyID, page, func(i *models.RFPItem) bool { return i.ProjectID == projectID }), nil
}

func (r *rfpItemRepository) ListAllByProject(_ context.Context, companyID, projectID uuid.UUID) ([]*models.RFPItem, error) {
	return r.oldestFirst(companyID, func(i *models.RFPItem) bool { return i.ProjectID == projectID }), nil
}

type productSpecRepository struct {
	*table[models.ProductSpec, *models.ProductSpec]
}

func (r *productSpecRepository) ListByModel(_ context.Context, companyID uuid.UUID, productModel string, page models.Page) ([]*models.ProductSpec, error) {
	return r.filter(companyID, page, func(s *models.ProductSpec) bool {
		return productModel == "" || s.ProductModel == productModel
	}), nil
}

func (r *productSpecRepository) ListAllByModel(_ context.Context, companyID uuid.UUID, productModel string) ([]*models.ProductSpec, error) {
	return r.oldestFirst(companyID, func(s *models.ProductSpec) bool {
		return productModel == "" || s.ProductModel == productModel
	}), nil
}

type bidTemplateRepository struct {
	*table[models.BidTemplate, *models.BidTemplate]
}

type qualificationRepository struct {
	*table[models.Qualification, *models.Qualification]
}

func (r *qualificationRepository) ListAll(_ context.Context, companyID uuid.UUID) ([]*models.Qualification, error) {
	all := r.matching(companyID, nil)
	slices.SortFunc(all, func(a, b *models.Qualification) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return compareIDs(a.ID, b.ID)
	})
	return all, nil
}

type knowledgeChunkRepository struct {
	*table[models.KnowledgeChunk, *models.KnowledgeChunk]
}

func (r *knowledgeChunkRepository) SearchSimilar(_ context.Context, companyID uuid.UUID, embedding []float32, tenantID string, topK int) ([]*models.ScoredChunk, error) {
	if topK <= 0 {
		return []*models.ScoredChunk{}, nil
	}

	r.mu.RLock()
	hits := make([]*models.ScoredChunk, 0)
	for _, c := range r.rows {
		if c.CompanyID != companyID || len(c.Embedding) == 0 {
			continue
		}
		if tenantID != "" && c.TenantID != tenantID {
			continue
		}
		hits = append(hits, &models.ScoredChunk{Chunk: clone(c), Score: cosineSimilarity(embedding, c.Embedding)})
	}
	r.mu.RUnlock()

	slices.SortFunc(hits, func(a, b *models.ScoredChunk) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return compareIDs(a.Chunk.ID, b.Chunk.ID)
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

type bidTaskRepository struct {
	*table[models.BidGenerationTask, *models.BidGenerationTask]
}

func (r *bidTaskRepository) Transition(_ context.Context, companyID, id uuid.UUID, from []models.TaskStatus, mutate func(*models.BidGenerationTask)) (*models.BidGenerationTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.rows[id]
	if !ok || current.CompanyID != companyID {
		return nil, apperrors.ErrNotFound
	}
	next, err := repositories.ApplyTransition(clone(current), from, mutate)
	if err != nil {
		return nil, err
	}
	r.rows[id] = clone(next)
	return next, nil
}

type generatedBidRepository struct {
	*table[models.GeneratedBid, *models.GeneratedBid]
}

func (r *generatedBidRepository) GetByTask(_ context.Context, companyID, taskID uuid.UUID) (*models.GeneratedBid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.rows {
		if b.CompanyID == companyID && b.TaskID == taskID {
			return clone(b), nil
		}
	}
	return nil, apperrors.ErrNotFound
}

type operationLogRepository struct {
	mu      sync.RWMutex
	entries []*models.OperationLog
}

func (r *operationLogRepository) Create(_ context.Context, entry *models.OperationLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, clone(entry))
	return nil
}

func (r *operationLogRepository) Query(_ context.Context, companyID uuid.UUID, filter models.LogFilter, page models.Page) ([]*models.OperationLog, error) {
	r.mu.RLock()
	matched := make([]*models.OperationLog, 0)
	for _, e := range r.entries {
		if e.CompanyID == companyID && filter.Matches(e) {
			matched = append(matched, clone(e))
		}
	}
	r.mu.RUnlock()

	slices.SortStableFunc(matched, func(a, b *models.OperationLog) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	page = page.Normalize(models.DefaultLogLimit)
	if page.Offset >= len(matched) {
		return []*models.OperationLog{}, nil
	}
	return matched[page.Offset:min(page.Offset+page.Limit, len(matched))], nil
}

var (
	_ repositories.CompanyRepository        = (*companyRepository)(nil)
	_ repositories.UserRepository           = (*userRepository)(nil)
	_ repositories.ProjectRepository        = (*projectRepository)(nil)
	_ repositories.RFPItemRepository        = (*rfpItemRepository)(nil)
	_ repositories.ProductSpecRepository    = (*productSpecRepository)(nil)
	_ repositories.BidTemplateRepository    = (*bidTemplateRepository)(nil)
	_ repositories.QualificationRepository  = (*qualificationRepository)(nil)
	_ repositories.KnowledgeChunkRepository = (*knowledgeChunkRepository)(nil)
	_ repositories.BidTaskRepository        = (*bidTaskRepository)(nil)
	_ repositories.GeneratedBidRepository   = (*generatedBidRepository)(nil)
	_ repositories.OperationLogRepository   = (*operationLogRepository)(nil)
)
