package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"gufagu-backend/internal/database"
	"gufagu-backend/pkg/logger"
	"gufagu-backend/pkg/push"
)

// PushTokenRepository reads device tokens registered by the notification service.
// Layout: push:token:{token} -> JSON, push:user:{userID}:tokens -> set of tokens.
type PushTokenRepository struct {
	client *database.RedisClient
}

// NewPushTokenRepository creates a new push token repository
func NewPushTokenRepository(client *database.RedisClient) *PushTokenRepository {
	return &PushTokenRepository{client: client}
}

func tokenKey(token string) string {
	return fmt.Sprintf("push:token:%s", token)
}

func getToken(ctx context.Context, client *database.RedisClient, token string) (*push.Token, error) {
	data, err := client.SafeGet(ctx, tokenKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	var t push.Token
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}
	return &t, nil
}

// GetByUserID retrieves all tokens for a user
func (r *PushTokenRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]*push.Token, error) {
	members, err := r.client.SafeSMembers(ctx, fmt.Sprintf("push:user:%s:tokens", userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get user tokens: %w", err)
	}

	var result []*push.Token
	for _, member := range members {
		t, err := getToken(ctx, r.client, member)
		if err != nil {
			logger.Warn("Failed to get push token",
				zap.String("user_id", userID.String()),
				zap.Error(err))
			continue
		}
		if t != nil {
			result = append(result, t)
		}
	}

	return result, nil
}

// MarkInactive flags a token the provider reported as invalid
func (r *PushTokenRepository) MarkInactive(ctx context.Context, token string) error {
	t, err := getToken(ctx, r.client, token)
	if err != nil || t == nil {
		return err
	}

	t.Active = false
	t.UpdatedAt = time.Now().Unix()

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	if err := r.client.SafeSet(ctx, tokenKey(token), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to update token: %w", err)
	}

	return nil
}
