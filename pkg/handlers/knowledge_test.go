package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/auth"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/database"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/llm"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/metrics"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/repositories/memory"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/services"
)

// keywordEmbedder places text on one of three axes by keyword.
func keywordEmbedder() *llm.MockEmbedder {
	return &llm.MockEmbedder{
		CreateEmbeddingFunc: func(_ context.Context, input string) ([]float32, error) {
			text := strings.ToLower(input)
			switch {
			case strings.Contains(text, "warranty"):
				return []float32{1, 0, 0}, nil
			case strings.Contains(text, "training"):
				return []float32{0, 1, 0}, nil
			default:
				return []float32{0, 0, 1}, nil
			}
		},
	}
}

func newKnowledgeMux(t *testing.T, embedder llm.Embedder) (*http.ServeMux, models.Caller) {
	t.Helper()
	logger := zap.NewNop()
	store := memory.NewStore()
	audit := services.NewAuditService(store.OperationLogs, metrics.New(), logger)
	svc := services.NewKnowledgeService(store.Knowledge, embedder, 3, audit, database.NoopTransactor{}, logger)

	caller := models.Caller{UserID: uuid.New(), CompanyID: uuid.New(), Role: models.RoleManager}
	middleware := auth.NewMiddleware(tokenAuth{"t": claimsFor(caller, "mia")}, logger)
	tenant := TenantMiddleware(database.PassthroughTenantContext())

	mux := http.NewServeMux()
	NewResourceHandler[models.KnowledgeChunk](models.ResourceKnowledgeChunk, svc, logger).RegisterRoutes(mux, middleware, tenant)
	NewKnowledgeHandler(svc, logger).RegisterRoutes(mux, middleware, tenant)
	return mux, caller
}

func postJSON(t *testing.T, mux *http.ServeMux, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Authorization", "Bearer t")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestKnowledgeHandler_Search(t *testing.T) {
	mux, _ := newKnowledgeMux(t, keywordEmbedder())

	for _, content := range []string{"Five year warranty on all parts", "On-site training for ten staff", "Delivery within 90 days"} {
		rec := postJSON(t, mux, "/api/knowledge-chunks", map[string]any{"content": content})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := postJSON(t, mux, "/api/knowledge-chunks/search", KnowledgeSearchRequest{Query: "What warranty do you offer?", TopK: 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp KnowledgeSearchResponse
	decodeData(t, rec, &resp)
	require.Len(t, resp.Results, 1)
	assert.Contains(t, resp.Results[0].Chunk.Content, "warranty")
	assert.InDelta(t, 1.0, resp.Results[0].Score, 1e-6)
}

func TestKnowledgeHandler_SearchWithoutEmbedder(t *testing.T) {
	mux, _ := newKnowledgeMux(t, nil)

	rec := postJSON(t, mux, "/api/knowledge-chunks/search", KnowledgeSearchRequest{Query: "warranty"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", errorCode(t, rec))
}

func TestKnowledgeHandler_RejectsWrongDimension(t *testing.T) {
	mux, _ := newKnowledgeMux(t, keywordEmbedder())

	rec := postJSON(t, mux, "/api/knowledge-chunks", map[string]any{"content": "x", "embedding": []float32{1, 2}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
