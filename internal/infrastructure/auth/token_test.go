package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smbgAlokk/bharatforce/internal/domain/workflow"
)

func TestTokenManager_IssueAndValidate(t *testing.T) {
	m := NewTokenManager([]byte("secret"), time.Hour)
	actor := workflow.Actor{TenantID: "t1", UserID: "emp-1", Role: workflow.RoleManager}

	token, err := m.Issue(actor)
	require.NoError(t, err)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, actor, claims.Actor())
}

func TestTokenManager_Issue_Invalid(t *testing.T) {
	m := NewTokenManager([]byte("secret"), time.Hour)

	tests := []struct {
		name  string
		actor workflow.Actor
	}{
		{"missing tenant", workflow.Actor{UserID: "u", Role: workflow.RoleEmployee}},
		{"missing user", workflow.Actor{TenantID: "t1", Role: workflow.RoleEmployee}},
		{"unknown role", workflow.Actor{TenantID: "t1", UserID: "u", Role: "ROOT"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Issue(tt.actor)
			assert.Error(t, err)
		})
	}
}

func TestTokenManager_Validate_Rejects(t *testing.T) {
	m := NewTokenManager([]byte("secret"), time.Hour)
	actor := workflow.Actor{TenantID: "t1", UserID: "emp-1", Role: workflow.RoleEmployee}

	t.Run("wrong key", func(t *testing.T) {
		other := NewTokenManager([]byte("other"), time.Hour)
		token, err := other.Issue(actor)
		require.NoError(t, err)

		_, err = m.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		past := NewTokenManager([]byte("secret"), time.Minute)
		past.now = func() time.Time { return time.Now().Add(-time.Hour) }
		token, err := past.Issue(actor)
		require.NoError(t, err)

		_, err = m.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong algorithm", func(t *testing.T) {
		claims := Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "emp-1", Issuer: issuer},
			TenantID:         "t1",
			Role:             workflow.RoleSuperAdmin,
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = m.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := m.Validate("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
