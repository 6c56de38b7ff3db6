package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/tmanjupriya-lang/inventory-management/pkg/errors"
)

const testSecret = "test-secret-that-is-long-enough-1234"

func TestPasswordHasher_HashAndVerify(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	digest, err := h.Hash("Str0ng@pass")
	require.NoError(t, err)
	assert.NotEqual(t, "Str0ng@pass", digest)

	assert.True(t, h.Verify("Str0ng@pass", digest))
	assert.False(t, h.Verify("Str0ng@pasS", digest))
	assert.False(t, h.Verify("Str0ng@pass", "not-a-bcrypt-digest"))
}

func TestPasswordHasher_SaltsEachHash(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	a, err := h.Hash("Str0ng@pass")
	require.NoError(t, err)
	b, err := h.Hash("Str0ng@pass")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestNewPasswordHasher_InvalidCostFallsBack(t *testing.T) {
	assert.Equal(t, DefaultBcryptCost, NewPasswordHasher(0).cost)
	assert.Equal(t, DefaultBcryptCost, NewPasswordHasher(99).cost)
}

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantMsg  string
	}{
		{"too short wins over everything", "a", "at least 8 characters"},
		{"missing upper", "lower@123", "uppercase"},
		{"missing lower", "UPPER@123", "lowercase"},
		{"missing digit", "NoDigits@here", "digit"},
		{"missing special", "NoSpecial123", "special character"},
		{"special outside the set", "Hash#Tag123", "special character"},
		{"valid", "Valid@123", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePasswordStrength(tt.password)
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestJWTManager_AccessTokenRoundTrip(t *testing.T) {
	m := NewJWTManager(testSecret, 30*time.Minute, 7*24*time.Hour)

	token, err := m.GenerateAccessToken("user-1", "inventory_manager")
	require.NoError(t, err)

	claims, err := m.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "inventory_manager", claims.Role)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), claims.ExpiresAt.Time, 5*time.Second)
}

func TestJWTManager_RefreshTokensAreUnique(t *testing.T) {
	m := NewJWTManager(testSecret, time.Minute, time.Hour)

	a, expA, err := m.GenerateRefreshToken("user-1")
	require.NoError(t, err)
	b, _, err := m.GenerateRefreshToken("user-1")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expA, 5*time.Second)

	claims, err := m.ValidateRefreshToken(a)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.NotEmpty(t, claims.ID)
}

func TestJWTManager_RejectsExpired(t *testing.T) {
	m := NewJWTManager(testSecret, time.Minute, time.Hour)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }

	token, err := m.GenerateAccessToken("user-1", "user")
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTManager_RejectsWrongSecret(t *testing.T) {
	issuerMgr := NewJWTManager(testSecret, time.Minute, time.Hour)
	other := NewJWTManager(strings.Repeat("x", 40), time.Minute, time.Hour)

	token, err := issuerMgr.GenerateAccessToken("user-1", "user")
	require.NoError(t, err)

	_, err = other.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTManager_TokenTypesAreNotInterchangeable(t *testing.T) {
	m := NewJWTManager(testSecret, time.Minute, time.Hour)

	access, err := m.GenerateAccessToken("user-1", "user")
	require.NoError(t, err)
	refresh, _, err := m.GenerateRefreshToken("user-1")
	require.NoError(t, err)

	_, err = m.ValidateRefreshToken(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = m.ValidateAccessToken(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTManager_RejectsMissingRole(t *testing.T) {
	m := NewJWTManager(testSecret, time.Minute, time.Hour)

	claims := &Claims{
		UserID:    "user-1",
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTManager_RejectsNoneAlgorithm(t *testing.T) {
	m := NewJWTManager(testSecret, time.Minute, time.Hour)

	claims := &Claims{
		UserID:    "user-1",
		Role:      "Admin",
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
