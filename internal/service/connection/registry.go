// Package connection tracks every live realtime connection of this instance.
package connection

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gufagu-backend/internal/domain"
	"gufagu-backend/pkg/constants"
	apperrors "gufagu-backend/pkg/errors"
	"gufagu-backend/pkg/logger"
	"gufagu-backend/pkg/metrics"
)

// Sender delivers encoded frames to one client
type Sender interface {
	// Send queues a frame without blocking; false means the frame was dropped
	Send(frame []byte) bool
	// Close tears down the underlying connection
	Close()
}

// PresenceStore publishes online state outside this process
type PresenceStore interface {
	SetOnline(ctx context.Context, userID uuid.UUID, conn domain.ConnID) error
	SetOffline(ctx context.Context, userID uuid.UUID) error
	Refresh(ctx context.Context, userID uuid.UUID) error
}

// DisconnectListener is told about every handle that went away
type DisconnectListener func(ctx context.Context, info domain.ConnInfo)

type entry struct {
	info   domain.ConnInfo
	sender Sender
}

// Registry maps connection handles to identities and senders.
// It never calls out to other components while holding its lock.
type Registry struct {
	mu        sync.RWMutex
	conns     map[domain.ConnID]*entry
	byUser    map[uuid.UUID][]domain.ConnID // registration order, newest last
	listeners []DisconnectListener

	presence PresenceStore
	metrics  *metrics.Metrics
}

// NewRegistry creates an empty registry. presence may be nil.
func NewRegistry(presence PresenceStore, m *metrics.Metrics) *Registry {
	return &Registry{
		conns:    make(map[domain.ConnID]*entry),
		byUser:   make(map[uuid.UUID][]domain.ConnID),
		presence: presence,
		metrics:  m,
	}
}

// OnDisconnect adds a listener. Listeners run in the order they were added.
func (r *Registry) OnDisconnect(listener DisconnectListener) {
	r.mu.Lock()
	r.listeners = append(r.listeners, listener)
	r.mu.Unlock()
}

// Register binds a handle to its optional identity and sender
func (r *Registry) Register(ctx context.Context, info domain.ConnInfo, sender Sender) {
	if info.ConnectedAt.IsZero() {
		info.ConnectedAt = time.Now()
	}

	r.mu.Lock()
	r.conns[info.ConnID] = &entry{info: info, sender: sender}
	if info.IsAuthenticated() {
		r.byUser[info.UserID] = append(r.byUser[info.UserID], info.ConnID)
	}
	count := len(r.conns)
	r.mu.Unlock()

	r.metrics.SetWebSocketConnections(count)

	if info.IsAuthenticated() && r.presence != nil {
		pctx, cancel := context.WithTimeout(ctx, constants.PersistTimeout)
		defer cancel()
		if err := r.presence.SetOnline(pctx, info.UserID, info.ConnID); err != nil {
			logger.Warn("Failed to publish presence",
				zap.String("user_id", info.UserID.String()),
				zap.Error(err))
		}
	}
}

// Unregister forgets a handle and notifies disconnect listeners.
// It returns false when the handle was not registered.
func (r *Registry) Unregister(ctx context.Context, conn domain.ConnID) bool {
	r.mu.Lock()
	e, ok := r.conns[conn]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.conns, conn)

	lastHandle := false
	if e.info.IsAuthenticated() {
		handles := removeHandle(r.byUser[e.info.UserID], conn)
		if len(handles) == 0 {
			delete(r.byUser, e.info.UserID)
			lastHandle = true
		} else {
			r.byUser[e.info.UserID] = handles
		}
	}
	listeners := make([]DisconnectListener, len(r.listeners))
	copy(listeners, r.listeners)
	count := len(r.conns)
	r.mu.Unlock()

	r.metrics.SetWebSocketConnections(count)

	for _, l := range listeners {
		l(ctx, e.info)
	}

	if lastHandle && r.presence != nil {
		pctx, cancel := context.WithTimeout(ctx, constants.PersistTimeout)
		defer cancel()
		if err := r.presence.SetOffline(pctx, e.info.UserID); err != nil {
			logger.Warn("Failed to clear presence",
				zap.String("user_id", e.info.UserID.String()),
				zap.Error(err))
		}
	}

	return true
}

// Touch extends the presence of the identity behind a live handle
func (r *Registry) Touch(ctx context.Context, conn domain.ConnID) {
	if r.presence == nil {
		return
	}
	info, ok := r.Identity(conn)
	if !ok || !info.IsAuthenticated() {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, constants.PersistTimeout)
	defer cancel()
	if err := r.presence.Refresh(pctx, info.UserID); err != nil {
		logger.Debug("Failed to refresh presence",
			zap.String("user_id", info.UserID.String()),
			zap.Error(err))
	}
}

func removeHandle(handles []domain.ConnID, conn domain.ConnID) []domain.ConnID {
	out := handles[:0]
	for _, h := range handles {
		if h != conn {
			out = append(out, h)
		}
	}
	return out
}

// Identity returns what is known about a live handle
func (r *Registry) Identity(conn domain.ConnID) (domain.ConnInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.conns[conn]
	if !ok {
		return domain.ConnInfo{}, false
	}
	return e.info, true
}

// HandlesOf returns every live handle of an identity, oldest first
func (r *Registry) HandlesOf(userID uuid.UUID) []domain.ConnID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handles := r.byUser[userID]
	out := make([]domain.ConnID, len(handles))
	copy(out, handles)
	return out
}

// CurrentHandle returns the most recently registered live handle of an identity
func (r *Registry) CurrentHandle(userID uuid.UUID) (domain.ConnID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handles := r.byUser[userID]
	if len(handles) == 0 {
		return "", false
	}
	return handles[len(handles)-1], true
}

// IsOnline reports whether the identity has at least one live handle
func (r *Registry) IsOnline(userID uuid.UUID) bool {
	_, ok := r.CurrentHandle(userID)
	return ok
}

// Count returns the number of live handles
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Send encodes an event and queues it on the handle's connection.
// A client whose buffer is full is dropped.
func (r *Registry) Send(conn domain.ConnID, event string, data any) error {
	r.mu.RLock()
	e, ok := r.conns[conn]
	r.mu.RUnlock()
	if !ok {
		return apperrors.PeerNotConnectedError()
	}

	frame, err := domain.Outbound(event, data)
	if err != nil {
		return apperrors.InternalError("failed to encode event")
	}

	if !e.sender.Send(frame) {
		logger.Warn("Send buffer full, dropping client",
			zap.String("conn_id", conn.String()),
			zap.String("event", event))
		e.sender.Close()
		return apperrors.PeerNotConnectedError()
	}

	r.metrics.RecordWebSocketMessage(event, "outbound")
	return nil
}

// Shutdown closes every live connection
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.RLock()
	senders := make([]Sender, 0, len(r.conns))
	for _, e := range r.conns {
		senders = append(senders, e.sender)
	}
	r.mu.RUnlock()

	for _, s := range senders {
		s.Close()
	}
	logger.FromContext(ctx).Info("Closed realtime connections", zap.Int("count", len(senders)))
}
