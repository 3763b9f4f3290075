package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/jobboard/internal/models"
)

func TestNewJWTServiceRequiresSecret(t *testing.T) {
	_, err := NewJWTService(JWTConfig{})
	require.EqualError(t, err, "jwt: secret must be provided")

	svc, err := NewJWTService(JWTConfig{Secret: "s"})
	require.NoError(t, err)
	require.Equal(t, DefaultAccessTokenTTL, svc.TTL())
}

func TestGenerateAndValidateAccessToken(t *testing.T) {
	current := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return current }

	svc, err := NewJWTService(JWTConfig{
		Secret:         "super-secret",
		Issuer:         "jobboard",
		AccessTokenTTL: time.Hour,
		Clock:          now,
	})
	require.NoError(t, err)

	token, err := svc.GenerateAccessToken(AccessTokenInput{
		PrincipalID: "admin-123",
		Kind:        models.PrincipalAdmin,
		SessionID:   "session-456",
	})
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, "admin-123", claims.PrincipalID)
	require.Equal(t, "admin-123", claims.Subject)
	require.Equal(t, models.PrincipalAdmin, claims.Kind)
	require.Equal(t, "session-456", claims.SessionID)
	require.Equal(t, "jobboard", claims.Issuer)
	require.Equal(t, jwt.ClaimStrings{"jobboard:admin"}, claims.Audience)
	require.True(t, claims.IssuedAt.Time.Equal(current))
	require.True(t, claims.ExpiresAt.Time.Equal(current.Add(time.Hour)))
}

func TestGenerateAccessTokenRequiresKind(t *testing.T) {
	svc, err := NewJWTService(JWTConfig{Secret: "secret"})
	require.NoError(t, err)

	_, err = svc.GenerateAccessToken(AccessTokenInput{PrincipalID: "user-1"})
	require.Error(t, err)
	_, err = svc.GenerateAccessToken(AccessTokenInput{Kind: models.PrincipalUser})
	require.Error(t, err)
}

func TestValidateAccessTokenInvalidSignature(t *testing.T) {
	issuer, err := NewJWTService(JWTConfig{Secret: "issuer-secret"})
	require.NoError(t, err)
	token, err := issuer.GenerateAccessToken(AccessTokenInput{PrincipalID: "user-123", Kind: models.PrincipalUser})
	require.NoError(t, err)

	verifier, err := NewJWTService(JWTConfig{Secret: "other-secret"})
	require.NoError(t, err)

	_, err = verifier.ValidateAccessToken(token)
	require.ErrorIs(t, err, ErrTokenInvalid)
	require.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestValidateAccessTokenRejectsForeignIssuer(t *testing.T) {
	other, err := NewJWTService(JWTConfig{Secret: "shared", Issuer: "someone-else"})
	require.NoError(t, err)
	token, err := other.GenerateAccessToken(AccessTokenInput{PrincipalID: "user-1", Kind: models.PrincipalUser})
	require.NoError(t, err)

	svc, err := NewJWTService(JWTConfig{Secret: "shared", Issuer: "jobboard"})
	require.NoError(t, err)
	_, err = svc.ValidateAccessToken(token)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidateAccessTokenRejectsKindAudienceMismatch(t *testing.T) {
	svc, err := NewJWTService(JWTConfig{Secret: "secret"})
	require.NoError(t, err)

	forged := Claims{
		PrincipalID: "user-1",
		Kind:        models.PrincipalAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{"jobboard:user"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, forged).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(token)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidateAccessTokenExpired(t *testing.T) {
	current := time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC)
	now := func() time.Time { return current }

	svc, err := NewJWTService(JWTConfig{
		Secret:         "secret",
		AccessTokenTTL: time.Minute,
		Clock:          now,
	})
	require.NoError(t, err)

	token, err := svc.GenerateAccessToken(AccessTokenInput{PrincipalID: "user-123", Kind: models.PrincipalUser})
	require.NoError(t, err)

	current = current.Add(2 * time.Minute)

	_, err = svc.ValidateAccessToken(token)
	require.True(t, errors.Is(err, ErrTokenExpired))
	require.True(t, errors.Is(err, jwt.ErrTokenExpired))
	require.False(t, errors.Is(err, ErrTokenInvalid))
}
