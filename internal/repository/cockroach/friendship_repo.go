package cockroach

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FriendshipRepository answers relationship checks against the friendships
// table owned by the profile service
type FriendshipRepository struct {
	pool *pgxpool.Pool
}

// NewFriendshipRepository creates a new FriendshipRepository
func NewFriendshipRepository(pool *pgxpool.Pool) *FriendshipRepository {
	return &FriendshipRepository{pool: pool}
}

// AreFriends reports whether two accounts have an accepted friendship and
// neither has blocked the other
func (r *FriendshipRepository) AreFriends(ctx context.Context, userA, userB uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM friendships
			WHERE status = 'accepted'
			  AND ((requester_id = $1 AND addressee_id = $2)
			    OR (requester_id = $2 AND addressee_id = $1))
		) AND NOT EXISTS(
			SELECT 1 FROM blocked_users
			WHERE (blocker_id = $1 AND blocked_id = $2)
			   OR (blocker_id = $2 AND blocked_id = $1)
		)
	`

	var ok bool
	if err := r.pool.QueryRow(ctx, query, userA, userB).Scan(&ok); err != nil {
		return false, fmt.Errorf("failed to check friendship: %w", err)
	}

	return ok, nil
}
