package auth_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/pumpwatch/internal/auth"
	"github.com/gosuda/pumpwatch/internal/domain"
)

func TestJWT_IssueAndValidateRoundTrip(t *testing.T) {
	t.Parallel()

	secret := "test-secret-key-very-long-and-secure"
	userID := uuid.New()

	token, err := auth.IssueAccessToken(secret, userID, domain.RoleTechnician, 5*time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := auth.ValidateToken(secret, token)
	require.NoError(t, err)

	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, "technician", claims.Role)
	assert.Equal(t, "pumpwatch", claims.Issuer)
	assert.NotNil(t, claims.IssuedAt)
	assert.NotNil(t, claims.ExpiresAt)

	actor, err := claims.Actor()
	require.NoError(t, err)
	assert.Equal(t, domain.Actor{ID: userID, Role: domain.RoleTechnician}, actor)
}

func TestJWT_Rejected(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	expired, err := auth.IssueAccessToken("secret", userID, domain.RoleOperator, -time.Second)
	require.NoError(t, err)
	valid, err := auth.IssueAccessToken("correct-secret", userID, domain.RoleOperator, 5*time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{name: "expired", secret: "secret", token: expired},
		{name: "wrong secret", secret: "wrong-secret", token: valid},
		{name: "malformed", secret: "secret", token: "not.a.valid.jwt.token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			claims, err := auth.ValidateToken(tt.secret, tt.token)
			require.Error(t, err)
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
		})
	}
}

func TestClaims_ActorRejectsBadClaims(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		claims auth.Claims
	}{
		{name: "bad user id", claims: auth.Claims{UserID: "nope", Role: "admin"}},
		{name: "unknown role", claims: auth.Claims{UserID: uuid.NewString(), Role: "root"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := tt.claims.Actor()
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
		})
	}
}
