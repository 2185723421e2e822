package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds all Prometheus metrics for the realtime service.
// Every recording method is safe to call on a nil *Metrics, which is what
// services receive in unit tests.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP Request Metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// WebSocket Metrics
	websocketConnections   prometheus.Gauge
	websocketMessagesTotal *prometheus.CounterVec
	websocketErrorsTotal   *prometheus.CounterVec

	// Queue Metrics
	queueWaiting      prometheus.Gauge
	queueJoinsTotal   prometheus.Counter
	queueExpiredTotal prometheus.Counter
	queueWaitSeconds  prometheus.Histogram

	// Match Metrics
	matchesTotal      *prometheus.CounterVec
	matchesActive     prometheus.Gauge
	matchDuration     prometheus.Histogram
	chatMessagesTotal prometheus.Counter

	// Call Metrics
	callsTotal    *prometheus.CounterVec
	callsActive   prometheus.Gauge
	callsDuration *prometheus.HistogramVec

	// Relay Metrics
	relayTotal *prometheus.CounterVec

	// Persistence Metrics
	persistenceErrorsTotal *prometheus.CounterVec

	// Push Notification Metrics
	pushNotificationsTotal  *prometheus.CounterVec
	pushNotificationsFailed *prometheus.CounterVec
}

// NewMetrics creates all metrics on a dedicated registry
func NewMetrics(serviceName string) *Metrics {
	labels := prometheus.Labels{"service": serviceName}
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "http_requests_total",
				Help:        "Total number of HTTP requests",
				ConstLabels: labels,
			},
			[]string{"method", "endpoint", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "http_request_duration_seconds",
				Help:        "HTTP request latency in seconds",
				ConstLabels: labels,
				Buckets:     prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name:        "http_requests_in_flight",
				Help:        "Number of HTTP requests currently being processed",
				ConstLabels: labels,
			},
		),

		websocketConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name:        "websocket_connections",
				Help:        "Number of live realtime connections",
				ConstLabels: labels,
			},
		),
		websocketMessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "websocket_messages_total",
				Help:        "Total number of realtime frames by event and direction",
				ConstLabels: labels,
			},
			[]string{"event", "direction"},
		),
		websocketErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "websocket_errors_total",
				Help:        "Total number of errors reported to realtime clients",
				ConstLabels: labels,
			},
			[]string{"event", "code"},
		),

		queueWaiting: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name:        "matching_queue_waiting",
				Help:        "Number of participants waiting for a match",
				ConstLabels: labels,
			},
		),
		queueJoinsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name:        "matching_queue_joins_total",
				Help:        "Total number of queue joins",
				ConstLabels: labels,
			},
		),
		queueExpiredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name:        "matching_queue_expired_total",
				Help:        "Total number of queue entries removed by the TTL sweep",
				ConstLabels: labels,
			},
		),
		queueWaitSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:        "matching_queue_wait_seconds",
				Help:        "Time a participant waited before being matched",
				ConstLabels: labels,
				Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			},
		),

		matchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "matches_total",
				Help:        "Total number of matches by outcome",
				ConstLabels: labels,
			},
			[]string{"status"},
		),
		matchesActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name:        "matches_active",
				Help:        "Number of active match sessions",
				ConstLabels: labels,
			},
		),
		matchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:        "match_duration_seconds",
				Help:        "Length of finished match sessions",
				ConstLabels: labels,
				Buckets:     []float64{5, 15, 30, 60, 120, 300, 600, 1800, 3600},
			},
		),
		chatMessagesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name:        "match_chat_messages_total",
				Help:        "Total number of chat messages relayed inside matches",
				ConstLabels: labels,
			},
		),

		callsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "calls_total",
				Help:        "Total number of friend calls by type and status",
				ConstLabels: labels,
			},
			[]string{"call_type", "status"},
		),
		callsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name:        "calls_active",
				Help:        "Number of live friend calls",
				ConstLabels: labels,
			},
		),
		callsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "call_duration_seconds",
				Help:        "Length of answered friend calls",
				ConstLabels: labels,
				Buckets:     []float64{5, 15, 30, 60, 120, 300, 600, 1800, 3600},
			},
			[]string{"call_type"},
		),

		relayTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "signaling_relay_total",
				Help:        "Total number of relayed signaling payloads",
				ConstLabels: labels,
			},
			[]string{"event", "result"},
		),

		persistenceErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "persistence_errors_total",
				Help:        "Durable store writes that failed from a realtime handler",
				ConstLabels: labels,
			},
			[]string{"store", "operation"},
		),

		pushNotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "push_notifications_total",
				Help:        "Total number of push notifications sent",
				ConstLabels: labels,
			},
			[]string{"type"},
		),
		pushNotificationsFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "push_notifications_failed_total",
				Help:        "Total number of push notifications that failed",
				ConstLabels: labels,
			},
			[]string{"type"},
		),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.httpRequestsInFlight,
		m.websocketConnections,
		m.websocketMessagesTotal,
		m.websocketErrorsTotal,
		m.queueWaiting,
		m.queueJoinsTotal,
		m.queueExpiredTotal,
		m.queueWaitSeconds,
		m.matchesTotal,
		m.matchesActive,
		m.matchDuration,
		m.chatMessagesTotal,
		m.callsTotal,
		m.callsActive,
		m.callsDuration,
		m.relayTotal,
		m.persistenceErrorsTotal,
		m.pushNotificationsTotal,
		m.pushNotificationsFailed,
	)

	return m
}

// GetRegistry returns the registry the metrics are registered on
func (m *Metrics) GetRegistry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// HTTP Metrics Methods

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// IncrementHTTPRequestsInFlight increments the number of in-flight HTTP requests
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.httpRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements the number of in-flight HTTP requests
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.httpRequestsInFlight.Dec()
}

// WebSocket Metrics Methods

// SetWebSocketConnections sets the number of active WebSocket connections
func (m *Metrics) SetWebSocketConnections(count int) {
	if m == nil {
		return
	}
	m.websocketConnections.Set(float64(count))
}

// RecordWebSocketMessage records a realtime frame; direction is "in" or "out"
func (m *Metrics) RecordWebSocketMessage(event, direction string) {
	if m == nil {
		return
	}
	m.websocketMessagesTotal.WithLabelValues(event, direction).Inc()
}

// RecordWebSocketError records an error frame sent back to a client
func (m *Metrics) RecordWebSocketError(event, code string) {
	if m == nil {
		return
	}
	m.websocketErrorsTotal.WithLabelValues(event, code).Inc()
}

// Queue Metrics Methods

// SetQueueWaiting sets the number of waiting participants
func (m *Metrics) SetQueueWaiting(count int) {
	if m == nil {
		return
	}
	m.queueWaiting.Set(float64(count))
}

// RecordQueueJoin records a queue join
func (m *Metrics) RecordQueueJoin() {
	if m == nil {
		return
	}
	m.queueJoinsTotal.Inc()
}

// RecordQueueExpired records entries removed by the TTL sweep
func (m *Metrics) RecordQueueExpired(count int) {
	if m == nil {
		return
	}
	m.queueExpiredTotal.Add(float64(count))
}

// RecordQueueWait records how long a participant waited before matching
func (m *Metrics) RecordQueueWait(wait time.Duration) {
	if m == nil {
		return
	}
	m.queueWaitSeconds.Observe(wait.Seconds())
}

// Match Metrics Methods

// RecordMatch records a match reaching status (active on creation, terminal on finish)
func (m *Metrics) RecordMatch(status string) {
	if m == nil {
		return
	}
	m.matchesTotal.WithLabelValues(status).Inc()
}

// SetActiveMatches sets the number of active matches
func (m *Metrics) SetActiveMatches(count int) {
	if m == nil {
		return
	}
	m.matchesActive.Set(float64(count))
}

// RecordMatchDuration records the length of a finished match
func (m *Metrics) RecordMatchDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.matchDuration.Observe(duration.Seconds())
}

// RecordChatMessage records a relayed chat message
func (m *Metrics) RecordChatMessage() {
	if m == nil {
		return
	}
	m.chatMessagesTotal.Inc()
}

// Call Metrics Methods

// RecordCall records a call reaching status
func (m *Metrics) RecordCall(callType, status string) {
	if m == nil {
		return
	}
	m.callsTotal.WithLabelValues(callType, status).Inc()
}

// SetActiveCalls sets the number of active calls
func (m *Metrics) SetActiveCalls(count int) {
	if m == nil {
		return
	}
	m.callsActive.Set(float64(count))
}

// RecordCallDuration records the duration of a call
func (m *Metrics) RecordCallDuration(callType string, duration time.Duration) {
	if m == nil {
		return
	}
	m.callsDuration.WithLabelValues(callType).Observe(duration.Seconds())
}

// Relay Metrics Methods

// RecordRelay records a relayed signaling payload; result is "ok" or "dropped"
func (m *Metrics) RecordRelay(event, result string) {
	if m == nil {
		return
	}
	m.relayTotal.WithLabelValues(event, result).Inc()
}

// Persistence Metrics Methods

// RecordPersistenceError records a failed durable write
func (m *Metrics) RecordPersistenceError(store, operation string) {
	if m == nil {
		return
	}
	m.persistenceErrorsTotal.WithLabelValues(store, operation).Inc()
}

// Push Notification Metrics Methods

// RecordPushNotification records a push notification
func (m *Metrics) RecordPushNotification(notifType string) {
	if m == nil {
		return
	}
	m.pushNotificationsTotal.WithLabelValues(notifType).Inc()
}

// RecordPushNotificationFailure records a failed push notification
func (m *Metrics) RecordPushNotificationFailure(notifType string) {
	if m == nil {
		return
	}
	m.pushNotificationsFailed.WithLabelValues(notifType).Inc()
}
