package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/langcenter-api/internal/models"
	appErrors "github.com/noah-isme/langcenter-api/pkg/errors"
)

func signAdminToken(t *testing.T, secret string, claims models.JWTClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func adminClaims(role models.UserRole, expiresAt time.Time) models.JWTClaims {
	return models.JWTClaims{
		UserID: "admin-1",
		Role:   role,
		Email:  "office@example.org",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "langcenter",
			Audience:  jwt.ClaimStrings{"langcenter-api"},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
}

func TestAuthServiceValidateToken(t *testing.T) {
	svc := NewAuthService(AuthConfig{Secret: "secret", Issuer: "langcenter", Audience: []string{"langcenter-api"}}, zap.NewNop())
	token := signAdminToken(t, "secret", adminClaims(models.RoleAdmin, time.Now().Add(time.Hour)))

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestAuthServiceRejectsWrongSecret(t *testing.T) {
	svc := NewAuthService(AuthConfig{Secret: "secret"}, nil)
	token := signAdminToken(t, "other", adminClaims(models.RoleAdmin, time.Now().Add(time.Hour)))

	_, err := svc.ValidateToken(token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRejectsExpiredToken(t *testing.T) {
	svc := NewAuthService(AuthConfig{Secret: "secret"}, nil)
	token := signAdminToken(t, "secret", adminClaims(models.RoleAdmin, time.Now().Add(-time.Minute)))

	_, err := svc.ValidateToken(token)
	require.Error(t, err)
}

func TestAuthServiceRejectsWrongAudience(t *testing.T) {
	svc := NewAuthService(AuthConfig{Secret: "secret", Audience: []string{"billing"}}, nil)
	token := signAdminToken(t, "secret", adminClaims(models.RoleAdmin, time.Now().Add(time.Hour)))

	_, err := svc.ValidateToken(token)
	require.Error(t, err)
}

func TestAuthServiceRejectsUnknownRole(t *testing.T) {
	svc := NewAuthService(AuthConfig{Secret: "secret"}, nil)
	token := signAdminToken(t, "secret", adminClaims(models.UserRole("STUDENT"), time.Now().Add(time.Hour)))

	_, err := svc.ValidateToken(token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
