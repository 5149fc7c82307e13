package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/database"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/llm"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/repositories"
)

// Knowledge search bounds.
const (
	DefaultSearchTopK = 5
	MaxSearchTopK     = 50
)

// KnowledgeService manages the knowledge base of prior bid content.
type KnowledgeService interface {
	ResourceService[models.KnowledgeChunk]

	// Search returns the chunks most similar to query. An empty tenantID
	// searches the whole company.
	Search(ctx context.Context, caller models.Caller, query string, topK int, tenantID string) ([]*models.ScoredChunk, error)
}

type knowledgeService struct {
	*resourceManager[models.KnowledgeChunk, *models.KnowledgeChunk]
	repo     repositories.KnowledgeChunkRepository
	embedder llm.Embedder
	dims     int
}

// NewKnowledgeService creates a KnowledgeService. embedder may be nil, in
// which case chunks are stored without embeddings and Search is unavailable.
func NewKnowledgeService(
	repo repositories.KnowledgeChunkRepository,
	embedder llm.Embedder,
	dims int,
	audit AuditService,
	tx database.Transactor,
	logger *zap.Logger,
) KnowledgeService {
	s := &knowledgeService{repo: repo, embedder: embedder, dims: dims}

	s.resourceManager = newResourceManager[models.KnowledgeChunk](models.ResourceKnowledgeChunk, repo, audit, tx, resourceHooks[models.KnowledgeChunk]{
		prepare: func(ctx context.Context, _ models.Caller, c *models.KnowledgeChunk) error {
			return s.prepareChunk(ctx, c, nil)
		},
		merge: func(ctx context.Context, _ models.Caller, existing, next *models.KnowledgeChunk) error {
			return s.prepareChunk(ctx, next, existing)
		},
		describe: func(c *models.KnowledgeChunk) string {
			return fmt.Sprintf("%s (%d chars)", c.ID, len(c.Content))
		},
	}, logger)
	return s
}

// prepareChunk validates a supplied embedding or computes one. On update an
// unchanged content keeps the previous embedding.
func (s *knowledgeService) prepareChunk(ctx context.Context, c *models.KnowledgeChunk, existing *models.KnowledgeChunk) error {
	if strings.TrimSpace(c.Content) == "" {
		return invalid("content is required")
	}
	if len(c.Embedding) > 0 {
		if len(c.Embedding) != s.dims {
			return invalid("embedding has %d dimensions, expected %d", len(c.Embedding), s.dims)
		}
		return nil
	}
	if existing != nil && existing.Content == c.Content {
		c.Embedding = existing.Embedding
		return nil
	}
	if s.embedder == nil {
		return nil
	}

	vec, err := s.embed(ctx, c.Content)
	if err != nil {
		return err
	}
	c.Embedding = vec
	return nil
}

func (s *knowledgeService) embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := s.embedder.CreateEmbedding(ctx, text)
	if err != nil {
		s.logger.Error("Embedding failed", zap.Error(err))
		return nil, fmt.Errorf("embed text: %w: %w", apperrors.ErrExternalFailure, err)
	}
	if len(vec) != s.dims {
		return nil, fmt.Errorf("embedding model returned %d dimensions, expected %d: %w", len(vec), s.dims, apperrors.ErrExternalFailure)
	}
	return vec, nil
}

func (s *knowledgeService) Search(ctx context.Context, caller models.Caller, query string, topK int, tenantID string) ([]*models.ScoredChunk, error) {
	if err := authorize(caller, false); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, invalid("query is required")
	}
	if s.embedder == nil {
		return nil, invalid("knowledge search needs an embedding model")
	}
	if topK <= 0 {
		topK = DefaultSearchTopK
	}
	if topK > MaxSearchTopK {
		topK = MaxSearchTopK
	}

	vec, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.repo.SearchSimilar(ctx, caller.CompanyID, vec, tenantID, topK)
}
