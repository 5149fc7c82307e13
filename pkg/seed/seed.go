// Package seed loads companies and their first accounts from a YAML file.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/database"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/repositories"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/services"
)

// SeedUserID is the user id recorded on operation logs written while seeding.
var SeedUserID = uuid.MustParse("00000000-0000-0000-0000-000000005eed")

// File is the top-level document of a seed file.
type File struct {
	Companies []Company `yaml:"companies"`
}

// Company describes one tenant and what it starts with.
type Company struct {
	ID             string          `yaml:"id"`
	Name           string          `yaml:"name"`
	Users          []User          `yaml:"users"`
	ProductSpecs   []ProductSpec   `yaml:"product_specs"`
	Qualifications []Qualification `yaml:"qualifications"`
}

type User struct {
	Username string      `yaml:"username"`
	Password string      `yaml:"password"`
	Role     models.Role `yaml:"role"`
}

type ProductSpec struct {
	ProductModel string `yaml:"product_model"`
	ParamName    string `yaml:"param_name"`
	ParamValue   string `yaml:"param_value"`
	Core         bool   `yaml:"core"`
}

type Qualification struct {
	Name         string `yaml:"name"`
	Number       string `yaml:"number"`
	ProductModel string `yaml:"product_model"`
	Issuer       string `yaml:"issuer"`
	// ExpiryDate is YYYY-MM-DD; empty means the qualification never expires.
	ExpiryDate string `yaml:"expiry_date"`
}

// Load reads and decodes a seed file.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a seed document. Unknown keys are rejected.
func Parse(raw []byte) (*File, error) {
	dec := yaml.NewDecoder(strings.NewReader(string(raw)))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	for i, c := range f.Companies {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("companies[%d]: name is required", i)
		}
		if c.ID != "" {
			if _, err := uuid.Parse(c.ID); err != nil {
				return nil, fmt.Errorf("companies[%d]: invalid id %q", i, c.ID)
			}
		}
	}
	return &f, nil
}

// Result counts what Apply created.
type Result struct {
	Companies      int
	Users          int
	ProductSpecs   int
	Qualifications int
}

// Seeder writes a seed file through the regular services so every entity
// gets its operation log entry.
type Seeder struct {
	store  *repositories.Store
	scoper database.TenantScoper
	tx     database.Transactor
	audit  services.AuditService
	window time.Duration
	logger *zap.Logger
}

// NewSeeder creates a Seeder. window is the qualification expiring window.
func NewSeeder(store *repositories.Store, scoper database.TenantScoper, tx database.Transactor, audit services.AuditService, window time.Duration, logger *zap.Logger) *Seeder {
	return &Seeder{
		store:  store,
		scoper: scoper,
		tx:     tx,
		audit:  audit,
		window: window,
		logger: logger.Named("seed"),
	}
}

// Apply creates every company of f that does not exist yet. Existing
// companies are left untouched.
func (s *Seeder) Apply(ctx context.Context, f *File) (*Result, error) {
	result := &Result{}
	for _, c := range f.Companies {
		created, err := s.company(ctx, c, result)
		if err != nil {
			return result, fmt.Errorf("seed company %q: %w", c.Name, err)
		}
		if !created {
			s.logger.Info("Company already exists, skipping", zap.String("name", c.Name), zap.String("id", c.ID))
		}
	}
	return result, nil
}

func (s *Seeder) company(ctx context.Context, in Company, result *Result) (bool, error) {
	id := uuid.New()
	if in.ID != "" {
		id = uuid.MustParse(in.ID)
	}

	sysCtx, cleanup, err := s.scoper.WithoutTenantScope(ctx)
	if err != nil {
		return false, fmt.Errorf("open scope: %w", err)
	}
	_, err = s.store.Companies.Get(sysCtx, id)
	switch {
	case err == nil:
		cleanup()
		return false, nil
	case !errors.Is(err, apperrors.ErrNotFound):
		cleanup()
		return false, err
	}

	company := &models.Company{ID: id, Name: strings.TrimSpace(in.Name), CreatedAt: time.Now().UTC()}
	err = s.store.Companies.Create(sysCtx, company)
	cleanup()
	if err != nil {
		return false, err
	}
	result.Companies++

	ctx, cleanup, err = s.scoper.WithTenantScope(ctx, id)
	if err != nil {
		return true, fmt.Errorf("open tenant scope: %w", err)
	}
	defer cleanup()

	caller := models.Caller{UserID: SeedUserID, CompanyID: id, Role: models.RoleAdmin}

	users := services.NewUserService(s.store.Users, s.audit, s.tx, s.logger)
	for _, u := range in.Users {
		if _, err := users.Create(ctx, caller, services.UserInput{Username: u.Username, Password: u.Password, Role: u.Role}); err != nil {
			return true, fmt.Errorf("user %q: %w", u.Username, err)
		}
		result.Users++
	}

	specs := services.NewProductSpecService(s.store.ProductSpecs, s.audit, s.tx, s.logger)
	for _, p := range in.ProductSpecs {
		spec := &models.ProductSpec{ProductModel: p.ProductModel, ParamName: p.ParamName, ParamValue: p.ParamValue, IsCoreParam: p.Core}
		if _, err := specs.Create(ctx, caller, spec); err != nil {
			return true, fmt.Errorf("product spec %s/%s: %w", p.ProductModel, p.ParamName, err)
		}
		result.ProductSpecs++
	}

	quals := services.NewQualificationService(s.store.Qualifications, s.audit, s.tx, s.window, s.logger)
	for _, q := range in.Qualifications {
		qual := &models.Qualification{Name: q.Name, Number: q.Number, ProductModel: q.ProductModel, Issuer: q.Issuer}
		if q.ExpiryDate != "" {
			expiry, err := time.Parse(time.DateOnly, q.ExpiryDate)
			if err != nil {
				return true, fmt.Errorf("qualification %q: invalid expiry_date %q", q.Name, q.ExpiryDate)
			}
			qual.ExpiryDate = &expiry
		}
		if _, err := quals.Create(ctx, caller, qual); err != nil {
			return true, fmt.Errorf("qualification %q: %w", q.Name, err)
		}
		result.Qualifications++
	}

	s.logger.Info("Seeded company",
		zap.String("company_id", id.String()),
		zap.String("name", company.Name),
		zap.Int("users", len(in.Users)))
	return true, nil
}
