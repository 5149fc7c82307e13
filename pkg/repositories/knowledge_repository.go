package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/database"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
)

// KnowledgeChunkRepository stores embedded knowledge fragments.
type KnowledgeChunkRepository interface {
	TenantRepository[models.KnowledgeChunk]

	// SearchSimilar returns up to topK chunks ordered by cosine similarity to
	// embedding. An empty tenantID searches every chunk of the company.
	// Chunks without an embedding are never returned.
	SearchSimilar(ctx context.Context, companyID uuid.UUID, embedding []float32, tenantID string, topK int) ([]*models.ScoredChunk, error)
}

type knowledgeChunkRepository struct {
	*pgTable[models.KnowledgeChunk]
}

// NewKnowledgeChunkRepository creates a new KnowledgeChunkRepository.
func NewKnowledgeChunkRepository() KnowledgeChunkRepository {
	return &knowledgeChunkRepository{pgTable: newPgTable("knowledge_chunks",
		[]string{"content", "embedding", "metadata", "tenant_id"},
		func(c *models.KnowledgeChunk) *models.TenantRecord { return &c.TenantRecord },
		func(c *models.KnowledgeChunk) []any {
			return []any{c.Content, embeddingParam(c.Embedding), metadataParam(c.Metadata), c.TenantID}
		},
		func(row pgx.Row) (*models.KnowledgeChunk, error) {
			return scanKnowledgeChunk(row)
		},
	)}
}

var _ KnowledgeChunkRepository = (*knowledgeChunkRepository)(nil)

func (r *knowledgeChunkRepository) SearchSimilar(ctx context.Context, companyID uuid.UUID, embedding []float32, tenantID string, topK int) ([]*models.ScoredChunk, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}
	if topK <= 0 {
		return []*models.ScoredChunk{}, nil
	}

	query := fmt.Sprintf(`SELECT %s, 1 - (embedding <=> $2::vector) AS score
		FROM knowledge_chunks
		WHERE company_id = $1 AND embedding IS NOT NULL AND ($3::text = '' OR tenant_id = $3::text)
		ORDER BY embedding <=> $2::vector, id
		LIMIT $4`, r.columns)
	rows, err := scope.Conn.Query(ctx, query, companyID, pgvector.NewVector(embedding), tenantID, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search knowledge chunks: %w", err)
	}
	defer rows.Close()

	result := make([]*models.ScoredChunk, 0, topK)
	for rows.Next() {
		var score float64
		chunk, err := scanKnowledgeChunk(rows, &score)
		if err != nil {
			return nil, fmt.Errorf("failed to scan knowledge chunk: %w", err)
		}
		result = append(result, &models.ScoredChunk{Chunk: chunk, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating knowledge chunks: %w", err)
	}
	return result, nil
}

func scanKnowledgeChunk(row pgx.Row, extra ...any) (*models.KnowledgeChunk, error) {
	var c models.KnowledgeChunk
	var vec *pgvector.Vector
	dest := []any{&c.ID, &c.CompanyID, &c.CreatedAt, &c.UpdatedAt, &c.Content, &vec, &c.Metadata, &c.TenantID}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if vec != nil {
		c.Embedding = vec.Slice()
	}
	return &c, nil
}

func embeddingParam(embedding []float32) any {
	if len(embedding) == 0 {
		return nil
	}
	return pgvector.NewVector(embedding)
}

func metadataParam(metadata map[string]any) map[string]any {
	if metadata == nil {
		return map[string]any{}
	}
	return metadata
}
