// Package matching pairs waiting participants and runs the resulting random-chat sessions.
package matching

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"gufagu-backend/internal/domain"
	"gufagu-backend/pkg/constants"
	"gufagu-backend/pkg/logger"
	"gufagu-backend/pkg/metrics"
)

// MatchRepository persists match records
type MatchRepository interface {
	Create(ctx context.Context, match *domain.Match) error
	Finish(ctx context.Context, match *domain.Match) error
}

// QueueRepository persists backing records of waiting participants
type QueueRepository interface {
	Save(ctx context.Context, p *domain.Participant) error
	Delete(ctx context.Context, conns ...domain.ConnID) error
}

// TranscriptRepository appends chat messages to the durable transcript
type TranscriptRepository interface {
	Append(ctx context.Context, msg *domain.ChatMessage) error
}

// Reporter is the moderation collaborator
type Reporter interface {
	Report(ctx context.Context, match *domain.Match, reporter domain.ConnID, reason string) error
}

// Emitter delivers events to live handles
type Emitter interface {
	Send(conn domain.ConnID, event string, data any) error
}

// Forwarder relays opaque signaling payloads
type Forwarder interface {
	Forward(ctx context.Context, from, to domain.ConnID, event string, payload json.RawMessage) error
}

// Config holds the queue and session limits
type Config struct {
	QueueTTL          time.Duration
	WaitPerPosition   time.Duration
	MaxInterests      int
	MaxInterestLength int
	MaxMessageLength  int
}

// DefaultConfig returns the production limits
func DefaultConfig() Config {
	return Config{
		QueueTTL:          constants.QueueEntryTTL,
		WaitPerPosition:   constants.QueueWaitPerPosition,
		MaxInterests:      constants.MaxInterests,
		MaxInterestLength: constants.MaxInterestLength,
		MaxMessageLength:  constants.MaxChatMessageLength,
	}
}

// Service owns the matching queue and the active match registry.
// Both share one mutex: a pairing moves two entries from the queue into a
// match in a single critical section. Durable writes and outbound events
// always happen after the lock is released.
type Service struct {
	mu      sync.Mutex
	waiting []*domain.Participant // insertion order
	queued  map[domain.ConnID]*domain.Participant
	active  map[domain.ConnID]*domain.Match

	matchRepo  MatchRepository
	queueRepo  QueueRepository
	transcript TranscriptRepository
	reporter   Reporter
	emitter    Emitter
	relay      Forwarder
	metrics    *metrics.Metrics

	cfg Config
	now func() time.Time
}

// Deps bundles the collaborators of the matching service
type Deps struct {
	Matches    MatchRepository
	Queue      QueueRepository
	Transcript TranscriptRepository
	Reporter   Reporter
	Emitter    Emitter
	Relay      Forwarder
	Metrics    *metrics.Metrics
}

// NewService creates a new matching service
func NewService(deps Deps, cfg Config) *Service {
	return &Service{
		queued:     make(map[domain.ConnID]*domain.Participant),
		active:     make(map[domain.ConnID]*domain.Match),
		matchRepo:  deps.Matches,
		queueRepo:  deps.Queue,
		transcript: deps.Transcript,
		reporter:   deps.Reporter,
		emitter:    deps.Emitter,
		relay:      deps.Relay,
		metrics:    deps.Metrics,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Stats is a point-in-time view of the matching layer
type Stats struct {
	Waiting       int `json:"waiting"`
	ActiveMatches int `json:"activeMatches"`
}

// Stats returns the waiting count and the number of active matches
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsLocked()
}

func (s *Service) statsLocked() Stats {
	// every active match is indexed under both handles
	return Stats{Waiting: len(s.waiting), ActiveMatches: len(s.active) / 2}
}

func (s *Service) publishGauges(st Stats) {
	s.metrics.SetQueueWaiting(st.Waiting)
	s.metrics.SetActiveMatches(st.ActiveMatches)
}

// ActiveMatch returns a copy of the handle's active match
func (s *Service) ActiveMatch(conn domain.ConnID) (*domain.Match, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.active[conn]
	if !ok {
		return nil, false
	}
	return snapshot(m), true
}

// IsQueued reports whether the handle has a waiting entry
func (s *Service) IsQueued(conn domain.ConnID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.queued[conn]
	return ok
}

func snapshot(m *domain.Match) *domain.Match {
	cp := *m
	cp.SharedInterests = append([]string(nil), m.SharedInterests...)
	cp.ChatMessages = append([]domain.ChatMessage(nil), m.ChatMessages...)
	return &cp
}

// emit sends an event and swallows delivery failures; the recipient may
// already be gone and its own disconnect path handles cleanup.
func (s *Service) emit(ctx context.Context, conn domain.ConnID, event string, data any) {
	if err := s.emitter.Send(conn, event, data); err != nil {
		logger.FromContext(ctx).Debug("Event not delivered",
			zap.String("to", conn.String()),
			zap.String("event", event),
			zap.Error(err))
	}
}

// persistCtx detaches durable writes from the inbound event's lifetime
func persistCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), constants.PersistTimeout)
}

func (s *Service) persistFailed(ctx context.Context, store, op string, err error, fields ...zap.Field) {
	s.metrics.RecordPersistenceError(store, op)
	fields = append(fields,
		zap.String("store", store),
		zap.String("operation", op),
		zap.Error(err))
	logger.FromContext(ctx).Error("Persistence failed", fields...)
}
