package middleware

import (
	"context"
	"fmt"

	"gufagu-backend/internal/database"
	"gufagu-backend/pkg/jwt"
)

// RedisRevocationChecker implements RevocationChecker using the auth service's Redis blacklist
type RedisRevocationChecker struct {
	client *database.RedisClient
}

// NewRedisRevocationChecker creates a new RedisRevocationChecker
func NewRedisRevocationChecker(client *database.RedisClient) *RedisRevocationChecker {
	return &RedisRevocationChecker{client: client}
}

// IsTokenRevoked checks if the token id is in the Redis blacklist
func (c *RedisRevocationChecker) IsTokenRevoked(ctx context.Context, claims *jwt.Claims) (bool, error) {
	if claims.ID == "" {
		return false, nil
	}

	exists, err := c.client.SafeExists(ctx, "blacklist:"+claims.ID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist in redis: %w", err)
	}

	return exists > 0, nil
}
