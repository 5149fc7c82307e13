package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/database"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
)

// UserRepository stores company accounts.
type UserRepository interface {
	TenantRepository[models.User]

	// GetByUsername looks up an account for login. Usernames are unique per company.
	GetByUsername(ctx context.Context, companyID uuid.UUID, username string) (*models.User, error)
}

type userRepository struct {
	*pgTable[models.User]
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository() UserRepository {
	t := newPgTable("users",
		[]string{"username", "password_hash", "role"},
		func(u *models.User) *models.TenantRecord { return &u.TenantRecord },
		func(u *models.User) []any { return []any{u.Username, u.PasswordHash, string(u.Role)} },
		scanUser,
	)
	t.conflicts = map[string]error{"users_company_username_key": apperrors.ErrDuplicateUsername}
	return &userRepository{pgTable: t}
}

var _ UserRepository = (*userRepository)(nil)

func (r *userRepository) GetByUsername(ctx context.Context, companyID uuid.UUID, username string) (*models.User, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	row := scope.Conn.QueryRow(ctx, r.selectSQL+" WHERE company_id = $1 AND username = $2", companyID, username)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var role string
	err := row.Scan(&u.ID, &u.CompanyID, &u.CreatedAt, &u.UpdatedAt, &u.Username, &u.PasswordHash, &role)
	if err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	return &u, nil
}
