package call

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"gufagu-backend/pkg/cache"
)

// CachedFriends answers friendship checks from a short-lived cache in front
// of the durable store. Lookup errors are never cached.
type CachedFriends struct {
	next  FriendChecker
	cache *cache.MemoryCache[bool]
}

// NewCachedFriends wraps next with a cache of ttl and at most maxSize pairs
func NewCachedFriends(next FriendChecker, ttl time.Duration, maxSize int) *CachedFriends {
	return &CachedFriends{
		next:  next,
		cache: cache.NewMemoryCache[bool](ttl, maxSize),
	}
}

// StartCleanup drops expired pairs every interval until the returned func is called
func (c *CachedFriends) StartCleanup(interval time.Duration) func() {
	return c.cache.StartCleanup(interval)
}

// AreFriends implements FriendChecker
func (c *CachedFriends) AreFriends(ctx context.Context, userA, userB uuid.UUID) (bool, error) {
	key := pairKey(userA, userB)
	if friends, ok := c.cache.Get(key); ok {
		return friends, nil
	}

	friends, err := c.next.AreFriends(ctx, userA, userB)
	if err != nil {
		return false, err
	}
	c.cache.Set(key, friends, 0)
	return friends, nil
}

// pairKey is symmetric in its arguments
func pairKey(a, b uuid.UUID) string {
	x, y := a.String(), b.String()
	if strings.Compare(x, y) > 0 {
		x, y = y, x
	}
	return x + ":" + y
}
