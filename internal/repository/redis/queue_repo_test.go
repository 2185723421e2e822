package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gufagu-backend/internal/database"
	"gufagu-backend/internal/domain"
)

func newQueueRepo(t *testing.T, ttl time.Duration, now time.Time) (*QueueRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := &database.RedisClient{Client: goredis.NewClient(&goredis.Options{Addr: mr.Addr()})}
	t.Cleanup(client.Close)

	repo := NewQueueRepository(client, ttl)
	repo.now = func() time.Time { return now }
	return repo, mr
}

func TestQueueRepository_SaveAndDelete(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	repo, mr := newQueueRepo(t, 10*time.Minute, now)

	require.NoError(t, repo.Save(ctx, &domain.Participant{ConnID: "a", JoinedAt: now}))
	require.NoError(t, repo.Save(ctx, &domain.Participant{ConnID: "b", JoinedAt: now}))

	assert.True(t, mr.Exists("queue:entry:a"))
	assert.Equal(t, 10*time.Minute, mr.TTL("queue:entry:a"))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, repo.Delete(ctx, "a"))
	assert.False(t, mr.Exists("queue:entry:a"))

	n, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestQueueRepository_CountDropsMembersOlderThanTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	repo, mr := newQueueRepo(t, 10*time.Minute, now)

	// left behind by a crashed instance: the entry key expired, the index member did not
	require.NoError(t, repo.Save(ctx, &domain.Participant{ConnID: "stale", JoinedAt: now.Add(-time.Hour)}))
	mr.Del("queue:entry:stale")
	require.NoError(t, repo.Save(ctx, &domain.Participant{ConnID: "edge", JoinedAt: now.Add(-10 * time.Minute)}))
	require.NoError(t, repo.Save(ctx, &domain.Participant{ConnID: "fresh", JoinedAt: now.Add(-time.Minute)}))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	members, err := mr.ZMembers(waitingSetKey)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"edge", "fresh"}, members)
}
