package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/database"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/repositories"
)

// ResourceService is the tenant-scoped CRUD contract shared by projects,
// product specs, templates, qualifications, RFP items and knowledge chunks.
type ResourceService[T any] interface {
	// Create stores entity under the caller's company with a fresh id.
	// Identity fields supplied by the client are ignored.
	Create(ctx context.Context, caller models.Caller, entity *T) (*T, error)
	Get(ctx context.Context, caller models.Caller, id uuid.UUID) (*T, error)
	List(ctx context.Context, caller models.Caller, page models.Page) ([]*T, error)
	// Update replaces the mutable fields of the entity with id.
	Update(ctx context.Context, caller models.Caller, id uuid.UUID, entity *T) (*T, error)
	Delete(ctx context.Context, caller models.Caller, id uuid.UUID) error
}

// tenanted is satisfied by pointers to entities embedding models.TenantRecord.
type tenanted[T any] interface {
	*T
	models.Tenanted
}

// resourceHooks customise a resourceManager for one entity kind.
type resourceHooks[T any] struct {
	// prepare validates and fills defaults before create.
	prepare func(ctx context.Context, caller models.Caller, entity *T) error
	// merge validates next and copies fields of existing that must survive an update.
	merge func(ctx context.Context, caller models.Caller, existing, next *T) error
	// describe summarises an entity for log content.
	describe func(entity *T) string
}

// resourceManager implements ResourceService on top of a TenantRepository.
type resourceManager[T any, PT tenanted[T]] struct {
	repo     repositories.TenantRepository[T]
	audit    AuditService
	tx       database.Transactor
	resource string
	hooks    resourceHooks[T]
	logger   *zap.Logger
}

func newResourceManager[T any, PT tenanted[T]](
	resource string,
	repo repositories.TenantRepository[T],
	audit AuditService,
	tx database.Transactor,
	hooks resourceHooks[T],
	logger *zap.Logger,
) *resourceManager[T, PT] {
	return &resourceManager[T, PT]{
		repo:     repo,
		audit:    audit,
		tx:       tx,
		resource: resource,
		hooks:    hooks,
		logger:   logger.Named(resource + "-service"),
	}
}

func (m *resourceManager[T, PT]) Create(ctx context.Context, caller models.Caller, entity *T) (*T, error) {
	if err := authorize(caller, false); err != nil {
		return nil, err
	}

	created := *entity
	*PT(&created).Record() = newRecord(caller)
	if m.hooks.prepare != nil {
		if err := m.hooks.prepare(ctx, caller, &created); err != nil {
			return nil, err
		}
	}

	id := PT(&created).Record().ID
	err := m.tx.InTx(ctx, func(ctx context.Context) error {
		if err := m.repo.Create(ctx, &created); err != nil {
			return err
		}
		return m.audit.Log(ctx, caller, Operation{
			Type:       models.OperationCreate,
			Resource:   m.resource,
			ResourceID: resourceRef(id),
			Content:    "created " + m.describe(&created),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", m.resource, err)
	}

	m.logger.Debug("Created", zap.String("id", id.String()), zap.String("company_id", caller.CompanyID.String()))
	return &created, nil
}

func (m *resourceManager[T, PT]) Get(ctx context.Context, caller models.Caller, id uuid.UUID) (*T, error) {
	if err := authorize(caller, false); err != nil {
		return nil, err
	}
	return m.repo.Get(ctx, caller.CompanyID, id)
}

func (m *resourceManager[T, PT]) List(ctx context.Context, caller models.Caller, page models.Page) ([]*T, error) {
	if err := authorize(caller, false); err != nil {
		return nil, err
	}
	return m.repo.List(ctx, caller.CompanyID, page.Normalize(models.DefaultPageLimit))
}

func (m *resourceManager[T, PT]) Update(ctx context.Context, caller models.Caller, id uuid.UUID, entity *T) (*T, error) {
	if err := authorize(caller, false); err != nil {
		return nil, err
	}

	var updated T
	err := m.tx.InTx(ctx, func(ctx context.Context) error {
		existing, err := m.repo.Get(ctx, caller.CompanyID, id)
		if err != nil {
			return err
		}

		updated = *entity
		*PT(&updated).Record() = pinRecord(*PT(existing).Record())
		if m.hooks.merge != nil {
			if err := m.hooks.merge(ctx, caller, existing, &updated); err != nil {
				return err
			}
		}

		if err := m.repo.Update(ctx, &updated); err != nil {
			return err
		}
		return m.audit.Log(ctx, caller, Operation{
			Type:       models.OperationUpdate,
			Resource:   m.resource,
			ResourceID: resourceRef(id),
			Content:    "updated " + m.describe(&updated),
			Changes:    changedFields(existing, &updated),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", m.resource, err)
	}
	return &updated, nil
}

func (m *resourceManager[T, PT]) Delete(ctx context.Context, caller models.Caller, id uuid.UUID) error {
	if err := authorize(caller, false); err != nil {
		return err
	}

	err := m.tx.InTx(ctx, func(ctx context.Context) error {
		existing, err := m.repo.Get(ctx, caller.CompanyID, id)
		if err != nil {
			return err
		}
		if err := m.repo.Delete(ctx, caller.CompanyID, id); err != nil {
			return err
		}
		return m.audit.Log(ctx, caller, Operation{
			Type:       models.OperationDelete,
			Resource:   m.resource,
			ResourceID: resourceRef(id),
			Content:    "deleted " + m.describe(existing),
		})
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", m.resource, err)
	}
	return nil
}

func (m *resourceManager[T, PT]) describe(entity *T) string {
	if m.hooks.describe != nil {
		return fmt.Sprintf("%s %s", m.resource, m.hooks.describe(entity))
	}
	return fmt.Sprintf("%s %s", m.resource, PT(entity).Record().ID)
}
