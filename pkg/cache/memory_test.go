package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestCache(ttl time.Duration, maxSize int) (*MemoryCache[int], *time.Time) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache[int](ttl, maxSize)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestMemoryCache_Expiry(t *testing.T) {
	c, now := newTestCache(time.Minute, 0)

	c.Set("a", 1, 0)
	c.Set("b", 2, 10*time.Second)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	*now = now.Add(30 * time.Second)
	_, ok = c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)

	*now = now.Add(time.Minute)
	c.cleanupExpired()
	assert.Equal(t, 0, c.Size())
}

func TestMemoryCache_EvictsOldest(t *testing.T) {
	c, now := newTestCache(time.Minute, 2)

	c.Set("a", 1, 0)
	*now = now.Add(time.Second)
	c.Set("b", 2, 0)
	*now = now.Add(time.Second)
	c.Set("a", 10, 0)
	assert.Equal(t, 2, c.Size())

	*now = now.Add(time.Second)
	c.Set("c", 3, 0)

	_, ok := c.Get("b")
	assert.False(t, ok)
	v, _ := c.Get("a")
	assert.Equal(t, 10, v)
	assert.Equal(t, 2, c.Size())
}

func TestMemoryCache_Delete(t *testing.T) {
	c, _ := newTestCache(time.Minute, 0)
	c.Set("a", 1, 0)
	c.Delete("a")

	_, ok := c.Get("a")
	assert.False(t, ok)
}
