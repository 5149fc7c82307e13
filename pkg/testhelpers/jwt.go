// Package testhelpers provides utilities for testing ekaya-bidflow components.
package testhelpers

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TestTokenSecret is the HS256 secret used by handler and middleware tests.
const TestTokenSecret = "test-token-secret-with-enough-length"

// GenerateTestJWT signs a login token with TestTokenSecret carrying the
// same claims the login service issues.
func GenerateTestJWT(userID, companyID uuid.UUID, role string) string {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID.String(),
		"cid":  companyID.String(),
		"role": role,
		"iss":  "ekaya-bidflow",
		"iat":  now.Unix(),
		"exp":  now.Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(TestTokenSecret))
	if err != nil {
		panic(err)
	}
	return signed
}

// GenerateTestJWTWithBearer returns token with "Bearer " prefix for Authorization header.
func GenerateTestJWTWithBearer(userID, companyID uuid.UUID, role string) string {
	return "Bearer " + GenerateTestJWT(userID, companyID, role)
}
