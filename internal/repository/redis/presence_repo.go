package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gufagu-backend/internal/database"
	"gufagu-backend/internal/domain"
)

const onlineSetKey = "presence:online"

// PresenceRepository publishes which accounts hold a live realtime connection.
// The value of each presence key is the most recent connection handle.
type PresenceRepository struct {
	client *database.RedisClient
	ttl    time.Duration
}

// NewPresenceRepository creates a new PresenceRepository
func NewPresenceRepository(client *database.RedisClient, ttl time.Duration) *PresenceRepository {
	return &PresenceRepository{client: client, ttl: ttl}
}

func presenceKey(userID uuid.UUID) string {
	return fmt.Sprintf("presence:%s", userID)
}

// SetOnline marks the account online behind the given handle
func (r *PresenceRepository) SetOnline(ctx context.Context, userID uuid.UUID, conn domain.ConnID) error {
	if err := r.client.SafeSet(ctx, presenceKey(userID), string(conn), r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set user online: %w", err)
	}

	if err := r.client.SafeSAdd(ctx, onlineSetKey, userID.String()).Err(); err != nil {
		return fmt.Errorf("failed to add to online set: %w", err)
	}

	return nil
}

// SetOffline clears the account's presence
func (r *PresenceRepository) SetOffline(ctx context.Context, userID uuid.UUID) error {
	if err := r.client.SafeDel(ctx, presenceKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete presence: %w", err)
	}

	if err := r.client.SafeSRem(ctx, onlineSetKey, userID.String()).Err(); err != nil {
		return fmt.Errorf("failed to remove from online set: %w", err)
	}

	return nil
}

// Refresh extends the presence TTL (heartbeat)
func (r *PresenceRepository) Refresh(ctx context.Context, userID uuid.UUID) error {
	if err := r.client.SafeExpire(ctx, presenceKey(userID), r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to refresh presence: %w", err)
	}
	return nil
}

// OnlineCount returns number of online accounts
func (r *PresenceRepository) OnlineCount(ctx context.Context) (int64, error) {
	count, err := r.client.SafeSCard(ctx, onlineSetKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count online users: %w", err)
	}
	return count, nil
}
