package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/auth"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/config"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/database"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/events"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/metrics"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/repositories"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/repositories/memory"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/services"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/storage"
)

// tokenAuth resolves bearer tokens to fixed claims.
type tokenAuth map[string]*auth.Claims

func (a tokenAuth) ValidateRequest(r *http.Request) (*auth.Claims, string, error) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	claims, ok := a[token]
	if !ok {
		return nil, "", auth.ErrMissingAuthorization
	}
	return claims, token, nil
}

func claimsFor(c models.Caller, username string) *auth.Claims {
	claims := &auth.Claims{CompanyID: c.CompanyID.String(), Role: string(c.Role), Username: username}
	claims.Subject = c.UserID.String()
	return claims
}

// testAPI serves every route over the in-memory store.
type testAPI struct {
	mux      *http.ServeMux
	store    *repositories.Store
	tokens   tokenAuth
	projects services.ResourceService[models.Project]

	adminA    models.Caller
	operatorA models.Caller
	adminB    models.Caller
}

const (
	tokenAdminA    = "admin-a"
	tokenOperatorA = "operator-a"
	tokenAdminB    = "admin-b"
)

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	return newTestAPIWithGeneration(t, nil)
}

// newTestAPIWithGeneration uses generation instead of the real pipeline when
// it is non-nil.
func newTestAPIWithGeneration(t *testing.T, generation services.GenerationService) *testAPI {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()
	store := memory.NewStore()
	m := metrics.New()
	tx := database.NoopTransactor{}
	audit := services.NewAuditService(store.OperationLogs, m, logger)

	companyA := &models.Company{ID: uuid.New(), Name: "Company A"}
	companyB := &models.Company{ID: uuid.New(), Name: "Company B"}
	require.NoError(t, store.Companies.Create(ctx, companyA))
	require.NoError(t, store.Companies.Create(ctx, companyB))

	api := &testAPI{
		mux:       http.NewServeMux(),
		store:     store,
		adminA:    models.Caller{UserID: uuid.New(), CompanyID: companyA.ID, Role: models.RoleAdmin},
		operatorA: models.Caller{UserID: uuid.New(), CompanyID: companyA.ID, Role: models.RoleOperator},
		adminB:    models.Caller{UserID: uuid.New(), CompanyID: companyB.ID, Role: models.RoleAdmin},
	}

	api.tokens = tokenAuth{
		tokenAdminA:    claimsFor(api.adminA, "alice"),
		tokenOperatorA: claimsFor(api.operatorA, "oscar"),
		tokenAdminB:    claimsFor(api.adminB, "bob"),
	}
	authMiddleware := auth.NewMiddleware(api.tokens, logger)
	tenant := TenantMiddleware(database.PassthroughTenantContext())

	files, err := storage.NewLocalStore(t.TempDir(), logger)
	require.NoError(t, err)

	if generation == nil {
		generation = services.NewGenerationService(services.GenerationDeps{
			Store:     store,
			Audit:     audit,
			Tx:        tx,
			Scoper:    database.NoopScoper{},
			Files:     files,
			Generator: services.RuleBasedGenerator{},
			Limiter:   services.NewLocalLimiter(5),
			Publisher: events.NoopPublisher{},
			Metrics:   m,
		}, testGenerationConfig(), logger)
	}

	tasks := services.NewTaskService(store, audit, tx, events.NoopPublisher{}, m, logger)
	bids := services.NewBidService(store.GeneratedBids, audit, tx, logger)

	api.projects = services.NewProjectService(store.Projects, audit, tx, logger)
	NewResourceHandler(models.ResourceProject, api.projects, logger).
		RegisterRoutes(api.mux, authMiddleware, tenant)
	NewResourceHandler(models.ResourceProductSpec, services.NewProductSpecService(store.ProductSpecs, audit, tx, logger), logger).
		RegisterRoutes(api.mux, authMiddleware, tenant)
	NewResourceHandler(models.ResourceBidTemplate, services.NewBidTemplateService(store.Templates, audit, tx, logger), logger).
		RegisterRoutes(api.mux, authMiddleware, tenant)
	rfpItems := services.NewRFPItemService(store.RFPItems, store.Projects, audit, tx, logger)
	NewResourceHandler[models.RFPItem](models.ResourceRFPItem, rfpItems, logger).
		RegisterRoutes(api.mux, authMiddleware, tenant)
	NewProjectHandler(rfpItems, services.NewDeviationService(store, audit, logger), logger).
		RegisterRoutes(api.mux, authMiddleware, tenant)
	NewUserHandler(services.NewUserService(store.Users, audit, tx, logger), logger).
		RegisterRoutes(api.mux, authMiddleware, tenant)
	NewTaskHandler(tasks, generation, bids, logger).RegisterRoutes(api.mux, authMiddleware, tenant)
	NewBidHandler(bids, logger).RegisterRoutes(api.mux, authMiddleware, tenant)
	NewLogHandler(audit, logger).RegisterRoutes(api.mux, authMiddleware, tenant)
	NewUploadHandler(services.NewUploadService(files, store.Templates, audit, tx, logger), logger).
		RegisterRoutes(api.mux, authMiddleware, tenant)

	return api
}

// do sends a JSON request and returns the recorder.
func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.mux.ServeHTTP(rec, req)
	return rec
}

// decodeData unmarshals the data field of a successful response into v.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope), rec.Body.String())
	require.True(t, envelope.Success)
	require.NoError(t, json.Unmarshal(envelope.Data, v))
}

// errorCode returns the error field of an error response.
func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body["error"]
}

func testGenerationConfig() config.GenerationConfig {
	return config.GenerationConfig{
		Timeout:                 5 * time.Second,
		MaxConcurrentPerCompany: 5,
		KnowledgeTopK:           5,
	}
}
