package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		MaxFailures:    2,
		OpenTimeout:    time.Minute,
		MaxAttempts:    1,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	}
}

func TestBreaker_RetriesUntilSuccess(t *testing.T) {
	cfg := testConfig()
	cfg.MaxAttempts = 3
	cfg.MaxFailures = 5
	b := NewBreaker("minio", cfg, prometheus.NewRegistry())

	calls := 0
	err := b.Execute(context.Background(), "put", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, CircuitBreakerClosed, b.State())
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b := NewBreaker("minio", testConfig(), nil)
	boom := errors.New("boom")
	ctx := context.Background()

	assert.ErrorIs(t, b.Execute(ctx, "put", func(context.Context) error { return boom }), boom)
	assert.ErrorIs(t, b.Execute(ctx, "put", func(context.Context) error { return boom }), boom)
	assert.Equal(t, CircuitBreakerOpen, b.State())

	called := false
	err := b.Execute(ctx, "put", func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreaker_HalfOpenTrial(t *testing.T) {
	b := NewBreaker("minio", testConfig(), nil)
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return clock }
	ctx := context.Background()
	fail := func(context.Context) error { return errors.New("timeout") }

	_ = b.Execute(ctx, "put", fail)
	_ = b.Execute(ctx, "put", fail)
	require.Equal(t, CircuitBreakerOpen, b.State())

	clock = clock.Add(2 * time.Minute)
	_ = b.Execute(ctx, "put", fail)
	assert.Equal(t, CircuitBreakerOpen, b.State(), "failed trial re-opens")

	clock = clock.Add(2 * time.Minute)
	require.NoError(t, b.Execute(ctx, "put", func(context.Context) error { return nil }))
	assert.Equal(t, CircuitBreakerClosed, b.State())
}

func TestBreaker_StopsOnContextCancel(t *testing.T) {
	cfg := testConfig()
	cfg.MaxAttempts = 5
	cfg.MaxFailures = 10
	cfg.InitialBackoff = time.Second
	cfg.MaxBackoff = time.Second
	b := NewBreaker("minio", cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := b.Execute(ctx, "put", func(context.Context) error {
		calls++
		cancel()
		return errors.New("boom")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, "none", classifyError(nil))
	assert.Equal(t, "timeout", classifyError(context.DeadlineExceeded))
	assert.Equal(t, "network", classifyError(errors.New("dial tcp: connection refused")))
	assert.Equal(t, "dns", classifyError(errors.New("lookup minio: no such host")))
	assert.Equal(t, "not_found", classifyError(errors.New("The specified bucket not found")))
	assert.Equal(t, "permission", classifyError(errors.New("Access Denied.")))
	assert.Equal(t, "unknown", classifyError(errors.New("weird")))
}
