package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gufagu-backend/pkg/constants"
)

func TestNewJWTManager(t *testing.T) {
	secret := "test-secret-key-for-testing-purposes"
	accessExpiry := 15 * time.Minute

	manager := NewJWTManager(secret, accessExpiry)

	assert.NotNil(t, manager)
	assert.Equal(t, secret, manager.secretKey)
	assert.Equal(t, accessExpiry, manager.accessTokenDuration)
}

func TestValidateToken_ValidToken(t *testing.T) {
	manager := NewJWTManager("test-secret", 15*time.Minute)
	userID := uuid.New()

	token, err := manager.GenerateAccessToken(userID, "testuser", "Test User", "user")
	require.NoError(t, err)

	claims, err := manager.ValidateToken(token)

	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "testuser", claims.Username)
	assert.Equal(t, "Test User", claims.Name())
	assert.Equal(t, "user", claims.Role)
	assert.Equal(t, Issuer, claims.Issuer)
	assert.Contains(t, claims.Audience, constants.TokenAudience)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.True(t, claims.ExpiresAt.After(claims.IssuedAt.Time))
}

func TestClaimsName_FallsBackToUsername(t *testing.T) {
	c := &Claims{Username: "testuser"}
	assert.Equal(t, "testuser", c.Name())
}

func TestValidateToken_ExpiredToken(t *testing.T) {
	manager := NewJWTManager("test-secret", 1*time.Nanosecond)

	token, err := manager.GenerateAccessToken(uuid.New(), "testuser", "", "user")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	claims, err := manager.ValidateToken(token)

	assert.Error(t, err)
	assert.Nil(t, claims)
	assert.Contains(t, err.Error(), "expired")
}

func TestValidateToken_InvalidToken(t *testing.T) {
	manager := NewJWTManager("test-secret", 15*time.Minute)

	claims, err := manager.ValidateToken("invalid.token.here")

	assert.Error(t, err)
	assert.Nil(t, claims)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	manager1 := NewJWTManager("secret-1", 15*time.Minute)
	token, err := manager1.GenerateAccessToken(uuid.New(), "testuser", "", "user")
	require.NoError(t, err)

	manager2 := NewJWTManager("secret-2", 15*time.Minute)
	claims, err := manager2.ValidateToken(token)

	assert.Error(t, err)
	assert.Nil(t, claims)
}

func TestValidateToken_WrongAudience(t *testing.T) {
	manager := NewJWTManager("test-secret", 15*time.Minute)
	userID := uuid.New()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{"someone-else"},
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	parsed, err := manager.ValidateToken(token)

	assert.Error(t, err)
	assert.Nil(t, parsed)
}
