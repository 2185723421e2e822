package resilience

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"gufagu-backend/pkg/logger"
)

// ErrCircuitOpen is returned while the breaker rejects calls
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerState represents the state of the circuit breaker
type CircuitBreakerState string

const (
	CircuitBreakerClosed   CircuitBreakerState = "closed"
	CircuitBreakerHalfOpen CircuitBreakerState = "half_open"
	CircuitBreakerOpen     CircuitBreakerState = "open"
)

func (s CircuitBreakerState) gauge() float64 {
	switch s {
	case CircuitBreakerHalfOpen:
		return 1
	case CircuitBreakerOpen:
		return 2
	}
	return 0
}

// Config holds circuit breaker and retry settings
type Config struct {
	MaxFailures    int           // consecutive failures before opening
	OpenTimeout    time.Duration // how long the circuit stays open before a trial call
	MaxAttempts    int           // attempts per Execute, including the first
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig returns default circuit breaker settings
func DefaultConfig() Config {
	return Config{
		MaxFailures:    3,
		OpenTimeout:    10 * time.Second,
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
	}
}

// breakerMetrics tracks operations routed through a breaker
type breakerMetrics struct {
	requestsTotal *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	state         prometheus.Gauge
}

func newBreakerMetrics(name string, reg prometheus.Registerer) *breakerMetrics {
	labels := prometheus.Labels{"dependency": name}
	m := &breakerMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "dependency_requests_total",
				Help:        "Total number of requests to an external dependency",
				ConstLabels: labels,
			},
			[]string{"operation", "status"},
		),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "dependency_errors_total",
				Help:        "Total number of external dependency errors",
				ConstLabels: labels,
			},
			[]string{"operation", "error_type"},
		),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "dependency_circuit_breaker_state",
			Help:        "State of the circuit breaker (0=closed, 1=half_open, 2=open)",
			ConstLabels: labels,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.requestsTotal, m.errorsTotal, m.state)
	}
	return m
}

// Breaker wraps calls to an external dependency with retry, backoff and a
// circuit breaker. An open circuit lets one trial call through after OpenTimeout.
type Breaker struct {
	mu       sync.Mutex
	name     string
	cfg      Config
	state    CircuitBreakerState
	failures int
	openedAt time.Time
	metrics  *breakerMetrics
	now      func() time.Time
}

// NewBreaker creates a breaker for the named dependency. reg may be nil.
func NewBreaker(name string, cfg Config, reg prometheus.Registerer) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &Breaker{
		name:    name,
		cfg:     cfg,
		state:   CircuitBreakerClosed,
		metrics: newBreakerMetrics(name, reg),
		now:     time.Now,
	}
}

// Execute runs fn, retrying with linear backoff until it succeeds, the
// attempts run out, ctx ends, or the circuit opens.
func (b *Breaker) Execute(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= b.cfg.MaxAttempts; attempt++ {
		if !b.allow() {
			b.metrics.requestsTotal.WithLabelValues(operation, "circuit_open").Inc()
			logger.Warn("Circuit breaker is open, request blocked",
				zap.String("dependency", b.name),
				zap.String("operation", operation))
			if lastErr != nil {
				return fmt.Errorf("%s %s: %w (last error: %v)", b.name, operation, ErrCircuitOpen, lastErr)
			}
			return fmt.Errorf("%s %s: %w", b.name, operation, ErrCircuitOpen)
		}

		err := fn(ctx)
		if err == nil {
			b.onSuccess()
			b.metrics.requestsTotal.WithLabelValues(operation, "success").Inc()
			return nil
		}

		lastErr = err
		b.onFailure(operation, err)
		b.metrics.errorsTotal.WithLabelValues(operation, classifyError(err)).Inc()
		b.metrics.requestsTotal.WithLabelValues(operation, "failure").Inc()

		if attempt == b.cfg.MaxAttempts {
			break
		}

		backoff := min(time.Duration(attempt)*b.cfg.InitialBackoff, b.cfg.MaxBackoff)
		logger.Debug("Dependency call failed, backing off",
			zap.String("dependency", b.name),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s %s: %w", b.name, operation, ctx.Err())
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("%s %s failed after %d attempts: %w", b.name, operation, b.cfg.MaxAttempts, lastErr)
}

// State returns the current circuit breaker state
func (b *Breaker) State() CircuitBreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitBreakerOpen:
		if b.now().Sub(b.openedAt) < b.cfg.OpenTimeout {
			return false
		}
		b.setState(CircuitBreakerHalfOpen)
		return true
	case CircuitBreakerHalfOpen:
		// one trial call is already in flight
		return false
	}
	return true
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	if b.state != CircuitBreakerClosed {
		logger.Info("Circuit breaker closed", zap.String("dependency", b.name))
		b.setState(CircuitBreakerClosed)
	}
}

func (b *Breaker) onFailure(operation string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.state == CircuitBreakerHalfOpen || b.failures >= b.cfg.MaxFailures {
		if b.state != CircuitBreakerOpen {
			logger.Error("Circuit breaker opened",
				zap.String("dependency", b.name),
				zap.String("operation", operation),
				zap.Int("consecutive_failures", b.failures),
				zap.Error(err))
		}
		b.openedAt = b.now()
		b.setState(CircuitBreakerOpen)
	}
}

func (b *Breaker) setState(s CircuitBreakerState) {
	b.state = s
	b.metrics.state.Set(s.gauge())
}

// classifyError classifies errors for better metrics
func classifyError(err error) string {
	if err == nil {
		return "none"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	errMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "deadline exceeded"):
		return "timeout"
	case strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "network unreachable"):
		return "network"
	case strings.Contains(errMsg, "no such host") || strings.Contains(errMsg, "dns"):
		return "dns"
	case strings.Contains(errMsg, "bucket not found") || strings.Contains(errMsg, "not found"):
		return "not_found"
	case strings.Contains(errMsg, "permission denied") || strings.Contains(errMsg, "access denied"):
		return "permission"
	default:
		return "unknown"
	}
}
