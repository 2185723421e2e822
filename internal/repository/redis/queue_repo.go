package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gufagu-backend/internal/database"
	"gufagu-backend/internal/domain"
)

const waitingSetKey = "queue:waiting"

// QueueRepository keeps the backing record of every waiting participant.
// Records expire on their own after the queue TTL; the waiting index, scored
// by join time, is pruned to the same window whenever it is counted.
type QueueRepository struct {
	client *database.RedisClient
	ttl    time.Duration
	now    func() time.Time
}

// NewQueueRepository creates a new QueueRepository
func NewQueueRepository(client *database.RedisClient, ttl time.Duration) *QueueRepository {
	return &QueueRepository{client: client, ttl: ttl, now: time.Now}
}

func queueEntryKey(conn domain.ConnID) string {
	return fmt.Sprintf("queue:entry:%s", conn)
}

// Save stores the participant's record with the queue TTL
func (r *QueueRepository) Save(ctx context.Context, p *domain.Participant) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal queue entry: %w", err)
	}

	if err := r.client.SafeSet(ctx, queueEntryKey(p.ConnID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save queue entry: %w", err)
	}

	score := float64(p.JoinedAt.UnixMilli())
	if err := r.client.SafeZAdd(ctx, waitingSetKey, string(p.ConnID), score).Err(); err != nil {
		return fmt.Errorf("failed to index queue entry: %w", err)
	}

	return nil
}

// Delete removes the records of the given handles
func (r *QueueRepository) Delete(ctx context.Context, conns ...domain.ConnID) error {
	if len(conns) == 0 {
		return nil
	}

	keys := make([]string, 0, len(conns))
	members := make([]interface{}, 0, len(conns))
	for _, c := range conns {
		keys = append(keys, queueEntryKey(c))
		members = append(members, string(c))
	}

	if err := r.client.SafeDel(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete queue entries: %w", err)
	}

	if err := r.client.SafeZRem(ctx, waitingSetKey, members...).Err(); err != nil {
		return fmt.Errorf("failed to unindex queue entries: %w", err)
	}

	return nil
}

// Count returns how many participants joined within the queue TTL and are
// still indexed as waiting
func (r *QueueRepository) Count(ctx context.Context) (int64, error) {
	cutoff := r.now().Add(-r.ttl).UnixMilli()
	if err := r.client.SafeZRemRangeByScore(ctx, waitingSetKey, "-inf", "("+strconv.FormatInt(cutoff, 10)).Err(); err != nil {
		return 0, fmt.Errorf("failed to prune queue index: %w", err)
	}

	n, err := r.client.SafeZCard(ctx, waitingSetKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count queue entries: %w", err)
	}
	return n, nil
}
