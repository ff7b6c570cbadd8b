package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/smbgAlokk/bharatforce/internal/domain/workflow"
	"github.com/smbgAlokk/bharatforce/pkg/utils"
)

const issuer = "bharatforce"

// ErrInvalidToken is returned for tokens that fail signature, expiry or claim checks
var ErrInvalidToken = errors.New("invalid token")

// Claims carries the actor identity of an access token
type Claims struct {
	jwt.RegisteredClaims
	TenantID string        `json:"tenant_id"`
	Role     workflow.Role `json:"role"`
}

// Actor returns the workflow actor the claims describe
func (c *Claims) Actor() workflow.Actor {
	return workflow.Actor{
		TenantID: c.TenantID,
		UserID:   c.Subject,
		Role:     c.Role,
	}
}

// TokenManager issues and validates HS256 access tokens
type TokenManager struct {
	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
}

// NewTokenManager creates a token manager
func NewTokenManager(signingKey []byte, ttl time.Duration) *TokenManager {
	return &TokenManager{signingKey: signingKey, ttl: ttl, now: time.Now}
}

// Issue signs a token for the actor
func (m *TokenManager) Issue(actor workflow.Actor) (string, error) {
	if err := utils.ValidateIdentifier("tenant", actor.TenantID); err != nil {
		return "", err
	}
	if err := utils.ValidateIdentifier("user", actor.UserID); err != nil {
		return "", err
	}
	if !actor.Role.IsValid() {
		return "", fmt.Errorf("unknown role %q", actor.Role)
	}

	now := m.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   actor.UserID,
			Issuer:    issuer,
		},
		TenantID: actor.TenantID,
		Role:     actor.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.signingKey)
}

// Validate parses a token and returns its claims
func (m *TokenManager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TenantID == "" || claims.Subject == "" || !claims.Role.IsValid() {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
