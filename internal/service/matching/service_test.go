package matching

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"gufagu-backend/internal/domain"
)

// MockMatchRepository is a mock implementation of MatchRepository
type MockMatchRepository struct {
	mock.Mock
}

func (m *MockMatchRepository) Create(ctx context.Context, match *domain.Match) error {
	args := m.Called(ctx, match)
	return args.Error(0)
}

func (m *MockMatchRepository) Finish(ctx context.Context, match *domain.Match) error {
	args := m.Called(ctx, match)
	return args.Error(0)
}

// MockQueueRepository is a mock implementation of QueueRepository
type MockQueueRepository struct {
	mock.Mock
}

func (m *MockQueueRepository) Save(ctx context.Context, p *domain.Participant) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockQueueRepository) Delete(ctx context.Context, conns ...domain.ConnID) error {
	args := m.Called(ctx, conns)
	return args.Error(0)
}

// MockTranscriptRepository is a mock implementation of TranscriptRepository
type MockTranscriptRepository struct {
	mock.Mock
}

func (m *MockTranscriptRepository) Append(ctx context.Context, msg *domain.ChatMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// MockReporter is a mock implementation of Reporter
type MockReporter struct {
	mock.Mock
}

func (m *MockReporter) Report(ctx context.Context, match *domain.Match, reporter domain.ConnID, reason string) error {
	args := m.Called(ctx, match, reporter, reason)
	return args.Error(0)
}

// MockForwarder is a mock implementation of Forwarder
type MockForwarder struct {
	mock.Mock
}

func (m *MockForwarder) Forward(ctx context.Context, from, to domain.ConnID, event string, payload json.RawMessage) error {
	args := m.Called(ctx, from, to, event, payload)
	return args.Error(0)
}

type sent struct {
	to    domain.ConnID
	event string
	data  any
}

// recordingEmitter captures every outbound event in order
type recordingEmitter struct {
	mu     sync.Mutex
	events []sent
}

func (r *recordingEmitter) Send(conn domain.ConnID, event string, data any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sent{to: conn, event: event, data: data})
	return nil
}

func (r *recordingEmitter) to(conn domain.ConnID, event string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, e := range r.events {
		if e.to == conn && e.event == event {
			out = append(out, e.data)
		}
	}
	return out
}

type fixture struct {
	svc        *Service
	matches    *MockMatchRepository
	queue      *MockQueueRepository
	transcript *MockTranscriptRepository
	reporter   *MockReporter
	forwarder  *MockForwarder
	emitter    *recordingEmitter
	clock      time.Time
}

func newFixture() *fixture {
	f := &fixture{
		matches:    new(MockMatchRepository),
		queue:      new(MockQueueRepository),
		transcript: new(MockTranscriptRepository),
		reporter:   new(MockReporter),
		forwarder:  new(MockForwarder),
		emitter:    &recordingEmitter{},
		clock:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	f.matches.On("Create", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.matches.On("Finish", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.queue.On("Save", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.queue.On("Delete", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.transcript.On("Append", mock.Anything, mock.Anything).Return(nil).Maybe()

	f.svc = NewService(Deps{
		Matches:    f.matches,
		Queue:      f.queue,
		Transcript: f.transcript,
		Reporter:   f.reporter,
		Emitter:    f.emitter,
		Relay:      f.forwarder,
	}, DefaultConfig())
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func anon(conn string) domain.ConnInfo {
	return domain.ConnInfo{ConnID: domain.ConnID(conn)}
}

func user(conn string, id uuid.UUID, name string) domain.ConnInfo {
	return domain.ConnInfo{ConnID: domain.ConnID(conn), UserID: id, DisplayName: name}
}

// pair joins two anonymous participants without interests and returns the match
func (f *fixture) pair(a, b string) *domain.Match {
	ctx := context.Background()
	if err := f.svc.Join(ctx, anon(a), nil); err != nil {
		panic(err)
	}
	if err := f.svc.Join(ctx, anon(b), nil); err != nil {
		panic(err)
	}
	m, ok := f.svc.ActiveMatch(domain.ConnID(a))
	if !ok {
		panic("expected an active match")
	}
	return m
}

var errStoreDown = errors.New("store unavailable")
