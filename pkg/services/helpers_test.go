package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/database"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/metrics"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/repositories"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/repositories/memory"
)

// testEnv wires services to the in-memory store.
type testEnv struct {
	store   *repositories.Store
	audit   AuditService
	metrics *metrics.Metrics
	tx      database.Transactor
	logger  *zap.Logger

	adminA    models.Caller
	operatorA models.Caller
	adminB    models.Caller
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	m := metrics.New()
	logger := zap.NewNop()

	env := &testEnv{
		store:   store,
		audit:   NewAuditService(store.OperationLogs, m, logger),
		metrics: m,
		tx:      database.NoopTransactor{},
		logger:  logger,
	}

	companyA := &models.Company{ID: uuid.New(), Name: "Company A", CreatedAt: now()}
	companyB := &models.Company{ID: uuid.New(), Name: "Company B", CreatedAt: now()}
	require.NoError(t, store.Companies.Create(context.Background(), companyA))
	require.NoError(t, store.Companies.Create(context.Background(), companyB))

	env.adminA = models.Caller{UserID: uuid.New(), CompanyID: companyA.ID, Role: models.RoleAdmin}
	env.operatorA = models.Caller{UserID: uuid.New(), CompanyID: companyA.ID, Role: models.RoleOperator}
	env.adminB = models.Caller{UserID: uuid.New(), CompanyID: companyB.ID, Role: models.RoleAdmin}
	return env
}

// logs returns every operation log entry of companyID, newest first.
func (e *testEnv) logs(t *testing.T, companyID uuid.UUID) []*models.OperationLog {
	t.Helper()
	entries, err := e.store.OperationLogs.Query(context.Background(), companyID, models.LogFilter{}, models.Page{Limit: models.MaxPageLimit})
	require.NoError(t, err)
	return entries
}

// logsFor filters logs by resource id.
func (e *testEnv) logsFor(t *testing.T, companyID, resourceID uuid.UUID) []*models.OperationLog {
	t.Helper()
	var out []*models.OperationLog
	for _, entry := range e.logs(t, companyID) {
		if entry.ResourceID != nil && *entry.ResourceID == resourceID {
			out = append(out, entry)
		}
	}
	return out
}

func (e *testEnv) createProject(t *testing.T, caller models.Caller, name string) *models.Project {
	t.Helper()
	p, err := NewProjectService(e.store.Projects, e.audit, e.tx, e.logger).Create(context.Background(), caller, &models.Project{Name: name})
	require.NoError(t, err)
	return p
}

func (e *testEnv) createTemplate(t *testing.T, caller models.Caller, name, fileURL string) *models.BidTemplate {
	t.Helper()
	tpl, err := NewBidTemplateService(e.store.Templates, e.audit, e.tx, e.logger).Create(context.Background(), caller, &models.BidTemplate{Name: name, FileURL: fileURL, TemplateType: "technical"})
	require.NoError(t, err)
	return tpl
}
