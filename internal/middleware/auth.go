package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"gufagu-backend/pkg/jwt"
	"gufagu-backend/pkg/logger"
)

// RevocationChecker defines interface for checking if a token is revoked (blacklisted)
type RevocationChecker interface {
	IsTokenRevoked(ctx context.Context, claims *jwt.Claims) (bool, error)
}

// TokenValidator parses and verifies access tokens
type TokenValidator interface {
	ValidateToken(tokenString string) (*jwt.Claims, error)
}

// Authenticator verifies access tokens for HTTP routes and the realtime upgrade
type Authenticator struct {
	validator  TokenValidator
	revocation RevocationChecker
}

// NewAuthenticator creates an Authenticator. revocation may be nil.
func NewAuthenticator(validator TokenValidator, revocation RevocationChecker) *Authenticator {
	return &Authenticator{validator: validator, revocation: revocation}
}

// Authenticate validates the token and checks revocation. A failing
// revocation lookup lets the token through; its signature already passed.
func (a *Authenticator) Authenticate(ctx context.Context, tokenString string) (*jwt.Claims, error) {
	claims, err := a.validator.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	if a.revocation != nil {
		revoked, err := a.revocation.IsTokenRevoked(ctx, claims)
		if err != nil {
			logger.FromContext(ctx).Warn("Token revocation check failed, allowing token",
				zap.String("user_id", claims.UserID.String()),
				zap.Error(err))
			return claims, nil
		}
		if revoked {
			return nil, fmt.Errorf("token revoked")
		}
	}

	return claims, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header
func BearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// AuthMiddleware creates a Gin middleware that validates JWT tokens.
// If valid, it sets user_id, username, display_name and role in the Gin context.
func AuthMiddleware(auth *Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		tokenString, ok := BearerToken(authHeader)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := auth.Authenticate(c.Request.Context(), tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// setClaims stores the caller's identity on the Gin context
func setClaims(c *gin.Context, claims *jwt.Claims) {
	c.Set("user_id", claims.UserID)
	c.Set("username", claims.Username)
	c.Set("display_name", claims.Name())
	c.Set("role", claims.Role)
}

// GetUserID returns the authenticated user id stored by AuthMiddleware
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	val, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil, false
	}
	userID, ok := val.(uuid.UUID)
	return userID, ok && userID != uuid.Nil
}
