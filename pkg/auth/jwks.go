package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// TokenValidator validates a JWT and returns its claims.
type TokenValidator interface {
	// ValidateToken returns an error if the token is invalid, expired, or has an unauthorized issuer.
	ValidateToken(tokenString string) (*Claims, error)
	// Close releases any resources held by the validator.
	Close()
}

// JWKSClient validates tokens from external identity providers using their
// JWKS endpoints. Only issuers present in the endpoint map are accepted.
type JWKSClient struct {
	endpoints map[string]keyfunc.Keyfunc
	cancel    context.CancelFunc
}

// NewJWKSClient fetches key sets from every endpoint (issuer -> JWKS URL).
// Returns an error if any JWKS endpoint fails to load.
func NewJWKSClient(ctx context.Context, endpoints map[string]string) (*JWKSClient, error) {
	refreshCtx, cancel := context.WithCancel(ctx)
	client := &JWKSClient{
		endpoints: make(map[string]keyfunc.Keyfunc, len(endpoints)),
		cancel:    cancel,
	}

	for issuer, jwksURL := range endpoints {
		jwks, err := keyfunc.NewDefaultCtx(refreshCtx, []string{jwksURL})
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create JWKS client for %s: %w", issuer, err)
		}
		client.endpoints[issuer] = jwks
	}

	return client, nil
}

// ValidateToken verifies the RSA or ECDSA signature with the issuer's keys.
func (c *JWKSClient) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodRSA, *jwt.SigningMethodECDSA:
		default:
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		claims, ok := token.Claims.(*Claims)
		if !ok {
			return nil, errors.New("invalid claims type")
		}

		jwks, exists := c.endpoints[claims.Issuer]
		if !exists {
			return nil, fmt.Errorf("unauthorized issuer: %s", claims.Issuer)
		}
		return jwks.KeyfuncCtx(context.Background())(token)
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}
	return claims, nil
}

// Close stops background key refreshes.
func (c *JWKSClient) Close() {
	c.cancel()
}

var _ TokenValidator = (*JWKSClient)(nil)

// IssuerRouter sends locally issued tokens to the TokenIssuer and everything
// else to the external validator, if one is configured.
type IssuerRouter struct {
	local    *TokenIssuer
	external TokenValidator
}

// NewIssuerRouter creates a validator over local and optional external tokens.
func NewIssuerRouter(local *TokenIssuer, external TokenValidator) *IssuerRouter {
	return &IssuerRouter{local: local, external: external}
}

// ValidateToken dispatches on the unverified iss claim.
func (r *IssuerRouter) ValidateToken(tokenString string) (*Claims, error) {
	unverified := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, unverified); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if unverified.Issuer == r.local.Issuer() || r.external == nil {
		return r.local.ValidateToken(tokenString)
	}
	return r.external.ValidateToken(tokenString)
}

// Close releases the external validator.
func (r *IssuerRouter) Close() {
	if r.external != nil {
		r.external.Close()
	}
}

var _ TokenValidator = (*IssuerRouter)(nil)
