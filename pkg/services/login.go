package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/database"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/repositories"
)

// TokenIssuer signs access tokens for authenticated users.
type TokenIssuer interface {
	Issue(user *models.User) (string, time.Time, error)
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token     string       `json:"access_token"`
	TokenType string       `json:"token_type"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// LoginService authenticates users by company, username and password.
type LoginService interface {
	Login(ctx context.Context, companyID uuid.UUID, username, password string) (*LoginResult, error)
}

type loginService struct {
	users  repositories.UserRepository
	audit  AuditService
	scoper database.TenantScoper
	tokens TokenIssuer
	logger *zap.Logger
}

// NewLoginService creates a LoginService. Logins arrive unauthenticated, so
// the service opens its own tenant scope for the requested company.
func NewLoginService(users repositories.UserRepository, audit AuditService, scoper database.TenantScoper, tokens TokenIssuer, logger *zap.Logger) LoginService {
	return &loginService{
		users:  users,
		audit:  audit,
		scoper: scoper,
		tokens: tokens,
		logger: logger.Named("login-service"),
	}
}

// dummyHash is compared when the user does not exist so both failure paths
// take the same time.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)

func (s *loginService) Login(ctx context.Context, companyID uuid.UUID, username, password string) (*LoginResult, error) {
	if companyID == uuid.Nil || strings.TrimSpace(username) == "" || password == "" {
		return nil, apperrors.ErrInvalidCredentials
	}

	ctx, cleanup, err := s.scoper.WithTenantScope(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("open tenant scope: %w", err)
	}
	defer cleanup()

	user, err := s.users.GetByUsername(ctx, companyID, strings.TrimSpace(username))
	if errors.Is(err, apperrors.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("Rejected login", zap.String("company_id", companyID.String()), zap.String("user_id", user.ID.String()))
		return nil, apperrors.ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	caller := models.Caller{UserID: user.ID, CompanyID: user.CompanyID, Role: user.Role}
	if err := s.audit.Log(ctx, caller, Operation{
		Type:       models.OperationLogin,
		Resource:   models.ResourceUser,
		ResourceID: resourceRef(user.ID),
		Content:    "user " + user.Username + " logged in",
	}); err != nil {
		return nil, err
	}

	return &LoginResult{Token: token, TokenType: "bearer", ExpiresAt: expiresAt, User: user}, nil
}
