package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
	Timeout  time.Duration
}

// RedisClient wraps the Redis client with degraded mode support.
// While degraded, every Safe* call fails fast instead of waiting on a dead server.
type RedisClient struct {
	Client         *redis.Client
	degradedMode   bool
	degradedModeMu sync.RWMutex
	healthCheckMu  sync.Mutex
	metrics        *redisMetrics
}

type redisMetrics struct {
	degradedMode prometheus.Gauge
	healthCheck  prometheus.Counter
}

// newRedisMetrics builds the degraded-mode gauges and registers them on reg.
// A nil registerer yields no metrics.
func newRedisMetrics(reg prometheus.Registerer) *redisMetrics {
	if reg == nil {
		return nil
	}
	m := &redisMetrics{
		degradedMode: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "redis_degraded_mode",
			Help: "Indicates if Redis is in degraded mode (1 = degraded, 0 = healthy)",
		}),
		healthCheck: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "redis_health_check_total",
			Help: "Total number of Redis health checks",
		}),
	}
	reg.MustRegister(m.degradedMode, m.healthCheck)
	return m
}

// NewRedisDB creates a new Redis client from config with degraded mode support
func NewRedisDB(cfg *RedisConfig, reg prometheus.Registerer) *RedisClient {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
		DialTimeout:  cfg.Timeout,
	})

	return &RedisClient{
		Client:  client,
		metrics: newRedisMetrics(reg),
	}
}

// Close closes the Redis client connection
func (r *RedisClient) Close() {
	r.Client.Close()
}

// StartHealthCheck periodically checks Redis health until ctx is cancelled
func (r *RedisClient) StartHealthCheck(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = r.HealthCheck(ctx)
			}
		}
	}()
}

// IsDegraded returns true if Redis is in degraded mode
func (r *RedisClient) IsDegraded() bool {
	r.degradedModeMu.RLock()
	defer r.degradedModeMu.RUnlock()
	return r.degradedMode
}

func (r *RedisClient) setDegradedState(degraded bool) {
	r.degradedModeMu.Lock()
	defer r.degradedModeMu.Unlock()

	if r.degradedMode == degraded {
		return
	}
	r.degradedMode = degraded
	if r.metrics != nil {
		if degraded {
			r.metrics.degradedMode.Set(1)
		} else {
			r.metrics.degradedMode.Set(0)
		}
	}
}

// HealthCheck pings Redis and updates degraded mode.
// Concurrent checks are serialized so they cannot pile up on a slow server.
func (r *RedisClient) HealthCheck(ctx context.Context) error {
	r.healthCheckMu.Lock()
	defer r.healthCheckMu.Unlock()

	healthCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if r.metrics != nil {
		r.metrics.healthCheck.Inc()
	}

	if err := r.Client.Ping(healthCtx).Err(); err != nil {
		r.setDegradedState(true)
		return fmt.Errorf("redis health check failed: %w", err)
	}

	r.setDegradedState(false)
	return nil
}

// SafePing performs a ping with degraded mode handling
func (r *RedisClient) SafePing(ctx context.Context) error {
	if r.IsDegraded() {
		return fmt.Errorf("redis is in degraded mode, ping skipped")
	}
	return r.Client.Ping(ctx).Err()
}

// SafeGet performs a GET operation with degraded mode handling
func (r *RedisClient) SafeGet(ctx context.Context, key string) *redis.StringCmd {
	if r.IsDegraded() {
		return redis.NewStringResult("", fmt.Errorf("redis is in degraded mode, get skipped"))
	}
	return r.Client.Get(ctx, key)
}

// SafeSet performs a SET operation with degraded mode handling
func (r *RedisClient) SafeSet(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if r.IsDegraded() {
		return redis.NewStatusResult("", fmt.Errorf("redis is in degraded mode, set skipped"))
	}
	return r.Client.Set(ctx, key, value, expiration)
}

// SafeDel performs a DEL operation with degraded mode handling
func (r *RedisClient) SafeDel(ctx context.Context, keys ...string) *redis.IntCmd {
	if r.IsDegraded() {
		return redis.NewIntResult(0, fmt.Errorf("redis is in degraded mode, del skipped"))
	}
	return r.Client.Del(ctx, keys...)
}

// SafeExpire performs an EXPIRE operation with degraded mode handling
func (r *RedisClient) SafeExpire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	if r.IsDegraded() {
		return redis.NewBoolResult(false, fmt.Errorf("redis is in degraded mode, expire skipped"))
	}
	return r.Client.Expire(ctx, key, expiration)
}

// SafeExists performs an EXISTS operation with degraded mode handling
func (r *RedisClient) SafeExists(ctx context.Context, keys ...string) *redis.IntCmd {
	if r.IsDegraded() {
		return redis.NewIntResult(0, fmt.Errorf("redis is in degraded mode, exists skipped"))
	}
	return r.Client.Exists(ctx, keys...)
}

// SafeZAdd performs a ZADD operation with degraded mode handling
func (r *RedisClient) SafeZAdd(ctx context.Context, key string, member interface{}, score float64) *redis.IntCmd {
	if r.IsDegraded() {
		return redis.NewIntResult(0, fmt.Errorf("redis is in degraded mode, zadd skipped"))
	}
	return r.Client.ZAdd(ctx, key, redis.Z{Score: score, Member: member})
}

// SafeZRem performs a ZREM operation with degraded mode handling
func (r *RedisClient) SafeZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd {
	if r.IsDegraded() {
		return redis.NewIntResult(0, fmt.Errorf("redis is in degraded mode, zrem skipped"))
	}
	return r.Client.ZRem(ctx, key, members...)
}

// SafeZCard performs a ZCARD operation with degraded mode handling
func (r *RedisClient) SafeZCard(ctx context.Context, key string) *redis.IntCmd {
	if r.IsDegraded() {
		return redis.NewIntResult(0, fmt.Errorf("redis is in degraded mode, zcard skipped"))
	}
	return r.Client.ZCard(ctx, key)
}

// SafeZRemRangeByScore performs a ZREMRANGEBYSCORE operation with degraded mode handling
func (r *RedisClient) SafeZRemRangeByScore(ctx context.Context, key, from, to string) *redis.IntCmd {
	if r.IsDegraded() {
		return redis.NewIntResult(0, fmt.Errorf("redis is in degraded mode, zremrangebyscore skipped"))
	}
	return r.Client.ZRemRangeByScore(ctx, key, from, to)
}

// SafeSAdd performs a SADD operation with degraded mode handling
func (r *RedisClient) SafeSAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd {
	if r.IsDegraded() {
		return redis.NewIntResult(0, fmt.Errorf("redis is in degraded mode, sadd skipped"))
	}
	return r.Client.SAdd(ctx, key, members...)
}

// SafeSRem performs a SREM operation with degraded mode handling
func (r *RedisClient) SafeSRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd {
	if r.IsDegraded() {
		return redis.NewIntResult(0, fmt.Errorf("redis is in degraded mode, srem skipped"))
	}
	return r.Client.SRem(ctx, key, members...)
}

// SafeSMembers performs a SMEMBERS operation with degraded mode handling
func (r *RedisClient) SafeSMembers(ctx context.Context, key string) *redis.StringSliceCmd {
	if r.IsDegraded() {
		return redis.NewStringSliceResult([]string{}, fmt.Errorf("redis is in degraded mode, smembers skipped"))
	}
	return r.Client.SMembers(ctx, key)
}

// SafeSCard performs a SCARD operation with degraded mode handling
func (r *RedisClient) SafeSCard(ctx context.Context, key string) *redis.IntCmd {
	if r.IsDegraded() {
		return redis.NewIntResult(0, fmt.Errorf("redis is in degraded mode, scard skipped"))
	}
	return r.Client.SCard(ctx, key)
}

// SafeIncrWindow increments a fixed-window counter and sets its expiry on first use
func (r *RedisClient) SafeIncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	if r.IsDegraded() {
		return 0, fmt.Errorf("redis is in degraded mode, incr skipped")
	}
	var incr *redis.IntCmd
	_, err := r.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
