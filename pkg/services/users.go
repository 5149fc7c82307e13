package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/database"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/repositories"
)

// MinPasswordLength is enforced whenever a password is set.
const MinPasswordLength = 8

// UserInput carries the writable fields of a user. Password is optional on
// update; an empty value keeps the current one.
type UserInput struct {
	Username string      `json:"username"`
	Password string      `json:"password,omitempty"`
	Role     models.Role `json:"role"`
}

// UserService manages the accounts of a company. Every operation is
// restricted to admins.
type UserService interface {
	Create(ctx context.Context, caller models.Caller, in UserInput) (*models.User, error)
	Get(ctx context.Context, caller models.Caller, id uuid.UUID) (*models.User, error)
	List(ctx context.Context, caller models.Caller, page models.Page) ([]*models.User, error)
	Update(ctx context.Context, caller models.Caller, id uuid.UUID, in UserInput) (*models.User, error)
	UpdateRole(ctx context.Context, caller models.Caller, id uuid.UUID, role models.Role) (*models.User, error)
	Delete(ctx context.Context, caller models.Caller, id uuid.UUID) error
}

type userService struct {
	repo     repositories.UserRepository
	audit    AuditService
	tx       database.Transactor
	hashCost int
	logger   *zap.Logger
}

// NewUserService creates a new user service with dependencies.
func NewUserService(repo repositories.UserRepository, audit AuditService, tx database.Transactor, logger *zap.Logger) UserService {
	return &userService{
		repo:     repo,
		audit:    audit,
		tx:       tx,
		hashCost: bcrypt.DefaultCost,
		logger:   logger.Named("user-service"),
	}
}

var _ UserService = (*userService)(nil)

func (s *userService) Create(ctx context.Context, caller models.Caller, in UserInput) (*models.User, error) {
	if err := authorize(caller, true); err != nil {
		return nil, err
	}
	if err := validateUserInput(in, true); err != nil {
		return nil, err
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		TenantRecord: newRecord(caller),
		Username:     strings.TrimSpace(in.Username),
		PasswordHash: hash,
		Role:         in.Role,
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, user); err != nil {
			return err
		}
		return s.audit.Log(ctx, caller, Operation{
			Type:       models.OperationCreate,
			Resource:   models.ResourceUser,
			ResourceID: resourceRef(user.ID),
			Content:    fmt.Sprintf("created user %s (%s)", user.Username, user.Role),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("User created", zap.String("user_id", user.ID.String()), zap.String("role", string(user.Role)))
	return user, nil
}

func (s *userService) Get(ctx context.Context, caller models.Caller, id uuid.UUID) (*models.User, error) {
	if err := authorize(caller, true); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, caller.CompanyID, id)
}

func (s *userService) List(ctx context.Context, caller models.Caller, page models.Page) ([]*models.User, error) {
	if err := authorize(caller, true); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, caller.CompanyID, page.Normalize(models.DefaultPageLimit))
}

func (s *userService) Update(ctx context.Context, caller models.Caller, id uuid.UUID, in UserInput) (*models.User, error) {
	if err := authorize(caller, true); err != nil {
		return nil, err
	}
	if err := validateUserInput(in, false); err != nil {
		return nil, err
	}

	var hash string
	if in.Password != "" {
		h, err := s.hash(in.Password)
		if err != nil {
			return nil, err
		}
		hash = h
	}

	return s.modify(ctx, caller, id, models.ResourceUser, func(u *models.User) string {
		u.Username = strings.TrimSpace(in.Username)
		u.Role = in.Role
		if hash != "" {
			u.PasswordHash = hash
		}
		return "updated user " + u.Username
	})
}

func (s *userService) UpdateRole(ctx context.Context, caller models.Caller, id uuid.UUID, role models.Role) (*models.User, error) {
	if err := authorize(caller, true); err != nil {
		return nil, err
	}
	if !models.IsValidRole(role) {
		return nil, fmt.Errorf("%q: %w", role, apperrors.ErrInvalidRole)
	}

	return s.modify(ctx, caller, id, models.ResourceUserRole, func(u *models.User) string {
		content := fmt.Sprintf("changed role of %s: %s -> %s", u.Username, u.Role, role)
		u.Role = role
		return content
	})
}

// modify loads the user, applies change and stores it with one update log.
func (s *userService) modify(ctx context.Context, caller models.Caller, id uuid.UUID, resource string, change func(*models.User) string) (*models.User, error) {
	var updated models.User
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		existing, err := s.repo.Get(ctx, caller.CompanyID, id)
		if err != nil {
			return err
		}

		updated = *existing
		updated.TenantRecord = pinRecord(existing.TenantRecord)
		content := change(&updated)

		if err := s.repo.Update(ctx, &updated); err != nil {
			return err
		}

		changes := changedFields(existing, &updated)
		if updated.PasswordHash != existing.PasswordHash {
			if changes == nil {
				changes = make(map[string]models.FieldChange)
			}
			changes["password"] = models.FieldChange{Old: "***", New: "***"}
		}
		return s.audit.Log(ctx, caller, Operation{
			Type:       models.OperationUpdate,
			Resource:   resource,
			ResourceID: resourceRef(id),
			Content:    content,
			Changes:    changes,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return &updated, nil
}

func (s *userService) Delete(ctx context.Context, caller models.Caller, id uuid.UUID) error {
	if err := authorize(caller, true); err != nil {
		return err
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		existing, err := s.repo.Get(ctx, caller.CompanyID, id)
		if err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, caller.CompanyID, id); err != nil {
			return err
		}
		return s.audit.Log(ctx, caller, Operation{
			Type:       models.OperationDelete,
			Resource:   models.ResourceUser,
			ResourceID: resourceRef(id),
			Content:    fmt.Sprintf("deleted user %s (%s)", existing.Username, existing.Role),
		})
	})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func (s *userService) hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

func validateUserInput(in UserInput, requirePassword bool) error {
	if strings.TrimSpace(in.Username) == "" {
		return invalid("username is required")
	}
	if !models.IsValidRole(in.Role) {
		return fmt.Errorf("%q: %w", in.Role, apperrors.ErrInvalidRole)
	}
	if in.Password == "" && !requirePassword {
		return nil
	}
	if len(in.Password) < MinPasswordLength {
		return invalid("password must be at least %d characters", MinPasswordLength)
	}
	// bcrypt ignores everything past 72 bytes.
	if len(in.Password) > 72 {
		return invalid("password must be at most 72 bytes")
	}
	return nil
}
