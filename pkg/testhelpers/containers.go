package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/database"
)

// PostgresTestImage ships PostgreSQL with the pgvector extension.
const PostgresTestImage = "pgvector/pgvector:pg16"

// TestDB holds a migrated database connection shared by every
// integration test in the run.
type TestDB struct {
	Container testcontainers.Container
	DB        *database.DB
	ConnStr   string
}

var (
	sharedTestDB     *TestDB
	sharedTestDBOnce sync.Once
	sharedTestDBErr  error
)

// GetTestDB returns the shared database, starting the container and
// applying migrations on first use.
func GetTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestDBOnce.Do(func() {
		sharedTestDB, sharedTestDBErr = setupTestDB()
	})

	if sharedTestDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedTestDBErr)
	}

	return sharedTestDB
}

func setupTestDB() (*TestDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresTestImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "bidflow_test",
			"POSTGRES_USER":     "ekaya",
			"POSTGRES_PASSWORD": "test_password",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	adminConnStr := fmt.Sprintf("postgres://ekaya:test_password@%s:%s/bidflow_test?sslmode=disable",
		host, port.Port())

	// golang-migrate needs database/sql
	sqlDB, err := sql.Open("pgx", adminConnStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open sql connection: %w", err)
	}
	defer sqlDB.Close()

	migrationsPath, err := MigrationsPath()
	if err != nil {
		return nil, err
	}
	if err := database.RunMigrations(sqlDB, migrationsPath, zap.NewNop()); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Superusers bypass row level security, so the application connects
	// as an ordinary role.
	if _, err := sqlDB.ExecContext(ctx, `
		CREATE ROLE bidflow_app LOGIN PASSWORD 'app_password';
		GRANT SELECT, INSERT, UPDATE, DELETE ON ALL TABLES IN SCHEMA public TO bidflow_app;
	`); err != nil {
		return nil, fmt.Errorf("failed to create application role: %w", err)
	}

	connStr := fmt.Sprintf("postgres://bidflow_app:app_password@%s:%s/bidflow_test?sslmode=disable",
		host, port.Port())
	db, err := database.NewConnection(ctx, &database.Config{
		URL:            connStr,
		MaxConnections: 10,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}

	return &TestDB{
		Container: container,
		DB:        db,
		ConnStr:   connStr,
	}, nil
}

// MigrationsPath locates the migrations directory by walking up from the
// working directory to the module root.
func MigrationsPath() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return filepath.Join(dir, "migrations"), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found above working directory")
		}
		dir = parent
	}
}

// CreateCompany inserts a company for a test and deletes it, with every
// row it owns, when the test ends.
func (e *TestDB) CreateCompany(t *testing.T, name string) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	scope, err := e.DB.WithoutTenant(ctx)
	if err != nil {
		t.Fatalf("failed to create scope for company setup: %v", err)
	}
	defer scope.Close()

	id := uuid.New()
	if _, err := scope.Conn.Exec(ctx, `INSERT INTO companies (id, name) VALUES ($1, $2)`, id, name); err != nil {
		t.Fatalf("failed to create test company: %v", err)
	}

	t.Cleanup(func() {
		scope, err := e.DB.WithoutTenant(context.Background())
		if err != nil {
			return
		}
		defer scope.Close()
		_, _ = scope.Conn.Exec(context.Background(), `DELETE FROM companies WHERE id = $1`, id)
	})
	return id
}

// TenantContext returns a context scoped to companyID. The returned func
// releases the connection.
func (e *TestDB) TenantContext(t *testing.T, companyID uuid.UUID) (context.Context, func()) {
	t.Helper()
	ctx := context.Background()

	scope, err := e.DB.WithTenant(ctx, companyID)
	if err != nil {
		t.Fatalf("failed to create tenant scope: %v", err)
	}
	return database.SetTenantScope(ctx, scope), scope.Close
}
