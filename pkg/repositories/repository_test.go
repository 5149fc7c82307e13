//go:build integration

package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/testhelpers"
)

// repoTestContext holds test dependencies for repository tests.
type repoTestContext struct {
	t         *testing.T
	testDB  *testhelpers.TestDB
	store     *Store
	companyID uuid.UUID
}

// setupRepoTest creates a fresh company in the shared test database.
func setupRepoTest(t *testing.T) *repoTestContext {
	testDB := testhelpers.GetTestDB(t)
	return &repoTestContext{
		t:         t,
		testDB:  testDB,
		store:     NewPostgresStore(),
		companyID: testDB.CreateCompany(t, t.Name()),
	}
}

// createTestContext returns a context scoped to the test company.
func (tc *repoTestContext) createTestContext() (context.Context, func()) {
	tc.t.Helper()
	return tc.testDB.TenantContext(tc.t, tc.companyID)
}

func (tc *repoTestContext) record() models.TenantRecord {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return models.TenantRecord{ID: uuid.New(), CompanyID: tc.companyID, CreatedAt: now, UpdatedAt: now}
}

func (tc *repoTestContext) createProject(ctx context.Context, name string) *models.Project {
	tc.t.Helper()
	p := &models.Project{
		TenantRecord: tc.record(),
		Name:         name,
		Status:       models.ProjectStatusParsing,
		OwnerID:      uuid.New(),
	}
	if err := tc.store.Projects.Create(ctx, p); err != nil {
		tc.t.Fatalf("failed to create project: %v", err)
	}
	return p
}

func (tc *repoTestContext) createTemplate(ctx context.Context) *models.BidTemplate {
	tc.t.Helper()
	tmpl := &models.BidTemplate{TenantRecord: tc.record(), Name: "standard", FileURL: "local://templates/standard.md"}
	if err := tc.store.Templates.Create(ctx, tmpl); err != nil {
		tc.t.Fatalf("failed to create template: %v", err)
	}
	return tmpl
}
