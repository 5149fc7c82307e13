// Package auth authenticates requests for ekaya-bidflow. Tokens are either
// issued locally at login (HS256) or by an external identity provider and
// verified through its JWKS endpoint.
package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for storing JWT claims.
	ClaimsKey contextKey = "claims"
	// TokenKey is the context key for storing the raw JWT token string.
	TokenKey contextKey = "token"
)

// Claims is the token payload. Subject holds the user ID.
type Claims struct {
	jwt.RegisteredClaims
	CompanyID string `json:"cid"`
	Role      string `json:"role"`
	Username  string `json:"preferred_username,omitempty"`
}

// Caller converts the claims into the identity services operate on.
func (c *Claims) Caller() (models.Caller, error) {
	userID, err := uuid.Parse(c.Subject)
	if err != nil {
		return models.Caller{}, fmt.Errorf("invalid subject: %w", apperrors.ErrUnauthorized)
	}
	companyID, err := uuid.Parse(c.CompanyID)
	if err != nil {
		return models.Caller{}, fmt.Errorf("invalid company: %w", apperrors.ErrUnauthorized)
	}
	role := models.Role(c.Role)
	if !models.IsValidRole(role) {
		return models.Caller{}, fmt.Errorf("invalid role %q: %w", c.Role, apperrors.ErrUnauthorized)
	}
	return models.Caller{UserID: userID, CompanyID: companyID, Role: role}, nil
}

// GetClaims retrieves JWT claims from the request context.
// Returns nil and false if claims are not present.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// GetToken retrieves the raw JWT token string from the request context.
// Returns empty string and false if token is not present.
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}
