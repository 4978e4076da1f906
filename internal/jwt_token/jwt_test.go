package jwttoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "permitpulse/pkg/domain-errors"
)

var jwtService = NewJWTService("test-signing-key", DefaultIssuer, DefaultAudience)

func Test_GenerateOperatorToken(t *testing.T) {
	token, err := jwtService.GenerateOperatorToken("ops@permitpulse", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	subject, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@permitpulse", subject)
}

func Test_GenerateOperatorToken_RequiresSubject(t *testing.T) {
	_, err := jwtService.GenerateOperatorToken("", time.Hour)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := jwtService.ValidateToken("invalid-token-string")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	token, err := jwtService.GenerateOperatorToken("ops", -time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token has expired")
}

func Test_ValidateToken_WrongKey(t *testing.T) {
	other := NewJWTService("another-key", DefaultIssuer, DefaultAudience)
	token, err := other.GenerateOperatorToken("ops", time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_WrongAudience(t *testing.T) {
	other := NewJWTService("test-signing-key", DefaultIssuer, "someone-else")
	token, err := other.GenerateOperatorToken("ops", time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_RequiresOperatorRole(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: "viewer",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops",
			Issuer:    DefaultIssuer,
			Audience:  []string{DefaultAudience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("test-signing-key"))
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
}
