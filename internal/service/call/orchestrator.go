package call

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gufagu-backend/internal/domain"
	"gufagu-backend/pkg/constants"
	apperrors "gufagu-backend/pkg/errors"
	"gufagu-backend/pkg/logger"
	"gufagu-backend/pkg/metrics"
	"gufagu-backend/pkg/push"
)

// CallRepository persists call records
type CallRepository interface {
	Create(ctx context.Context, call *domain.Call) error
	UpdateStatus(ctx context.Context, call *domain.Call) error
}

// FriendChecker answers whether two identities may call each other
type FriendChecker interface {
	AreFriends(ctx context.Context, userA, userB uuid.UUID) (bool, error)
}

// MissedCallNotifier pushes a missed-call notification to the callee's devices
type MissedCallNotifier interface {
	SendMissedCallNotification(ctx context.Context, call *push.MissedCall, calleeID uuid.UUID) error
}

// Directory is the slice of the connection registry the orchestrator needs
type Directory interface {
	Identity(conn domain.ConnID) (domain.ConnInfo, bool)
	CurrentHandle(userID uuid.UUID) (domain.ConnID, bool)
	Send(conn domain.ConnID, event string, data any) error
}

// Forwarder relays signaling payloads between handles
type Forwarder interface {
	Forward(ctx context.Context, from, to domain.ConnID, event string, payload json.RawMessage) error
}

// Config holds orchestrator settings
type Config struct {
	RingTimeout time.Duration
}

// Deps groups the orchestrator's collaborators
type Deps struct {
	Calls     CallRepository
	Friends   FriendChecker
	Notifier  MissedCallNotifier
	Directory Directory
	Relay     Forwarder
	Metrics   *metrics.Metrics
}

// Orchestrator drives friend calls from ringing to a terminal status.
// All transitions happen under mu; persistence and emits run after unlock.
type Orchestrator struct {
	mu     sync.Mutex
	calls  map[string]*domain.ActiveCall
	byUser map[uuid.UUID]string

	callRepo CallRepository
	friends  FriendChecker
	notifier MissedCallNotifier
	dir      Directory
	relay    Forwarder
	metrics  *metrics.Metrics

	ringTimeout time.Duration
	now         func() time.Time
}

// NewOrchestrator creates a new call orchestrator
func NewOrchestrator(deps Deps, cfg Config) *Orchestrator {
	if cfg.RingTimeout <= 0 {
		cfg.RingTimeout = constants.RingTimeout
	}
	return &Orchestrator{
		calls:       make(map[string]*domain.ActiveCall),
		byUser:      make(map[uuid.UUID]string),
		callRepo:    deps.Calls,
		friends:     deps.Friends,
		notifier:    deps.Notifier,
		dir:         deps.Directory,
		relay:       deps.Relay,
		metrics:     deps.Metrics,
		ringTimeout: cfg.RingTimeout,
		now:         time.Now,
	}
}

// Initiate starts ringing the callee. It returns the new call id.
func (o *Orchestrator) Initiate(ctx context.Context, caller domain.ConnInfo, calleeID uuid.UUID, callType domain.CallType) (string, error) {
	if !caller.IsAuthenticated() {
		return "", apperrors.UnauthorizedError("Sign in to call friends")
	}
	if !callType.IsValid() {
		return "", apperrors.ValidationError("callType must be voice or video")
	}
	if calleeID == uuid.Nil {
		return "", apperrors.MissingFieldError("friendId")
	}
	if calleeID == caller.UserID {
		return "", apperrors.ValidationError("cannot call yourself")
	}

	friends, err := o.friends.AreFriends(ctx, caller.UserID, calleeID)
	if err != nil {
		return "", apperrors.DatabaseError(fmt.Errorf("failed to check friendship: %w", err))
	}
	if !friends {
		return "", apperrors.NotFriendsError()
	}

	calleeConn, online := o.dir.CurrentHandle(calleeID)
	if !online {
		return "", apperrors.FriendOfflineError()
	}

	o.mu.Lock()
	if _, busy := o.byUser[caller.UserID]; busy {
		o.mu.Unlock()
		return "", apperrors.BusyError()
	}
	if _, busy := o.byUser[calleeID]; busy {
		o.mu.Unlock()
		return "", apperrors.BusyError()
	}

	now := o.now()
	entry := &domain.ActiveCall{
		CallID:       domain.NewCallID(caller.UserID, calleeID, now),
		CallType:     callType,
		CallerID:     caller.UserID,
		ReceiverID:   calleeID,
		CallerConn:   caller.ConnID,
		ReceiverConn: calleeConn,
		CallerName:   caller.DisplayName,
		Status:       domain.CallStatusRinging,
		StartedAt:    now,
	}
	callID := entry.CallID
	entry.RingTimer = time.AfterFunc(o.ringTimeout, func() {
		o.onRingTimeout(callID)
	})
	o.calls[callID] = entry
	o.byUser[caller.UserID] = callID
	o.byUser[calleeID] = callID
	record := entry.Snapshot()
	o.publishGauge()
	o.mu.Unlock()

	o.metrics.RecordCall(string(callType), string(domain.CallStatusRinging))
	logger.FromContext(ctx).Info("Call ringing",
		zap.String("call_id", callID),
		zap.String("caller_id", caller.UserID.String()),
		zap.String("receiver_id", calleeID.String()),
		zap.String("call_type", string(callType)))

	pctx, cancel := persistCtx()
	if err := o.callRepo.Create(pctx, record); err != nil {
		o.persistFailed(ctx, "create_call", callID, err)
	}
	cancel()

	o.emit(ctx, calleeConn, domain.EventIncomingCall, domain.IncomingCall{
		CallID:     callID,
		CallerID:   caller.UserID,
		CallerName: caller.DisplayName,
		CallType:   callType,
	})
	o.emit(ctx, caller.ConnID, domain.EventCallInitiated, domain.CallUpdate{
		CallID:   callID,
		FriendID: calleeID,
		CallType: callType,
		Status:   domain.CallStatusRinging,
	})

	return callID, nil
}

// Accept answers a ringing call. Only the first accept wins.
func (o *Orchestrator) Accept(ctx context.Context, callID string, responder domain.ConnInfo) error {
	o.mu.Lock()
	entry, ok := o.calls[callID]
	if !ok {
		o.mu.Unlock()
		return apperrors.CallNotFoundError()
	}
	if responder.UserID != entry.ReceiverID {
		o.mu.Unlock()
		return apperrors.ForbiddenError("Only the receiver can accept this call")
	}
	switch entry.Status {
	case domain.CallStatusRinging:
	case domain.CallStatusAnswered:
		o.mu.Unlock()
		return apperrors.CallAlreadyAnsweredError()
	default:
		o.mu.Unlock()
		return apperrors.InvalidStateError("Call is not ringing")
	}

	stopTimer(entry)
	now := o.now()
	entry.Status = domain.CallStatusAnswered
	entry.AnsweredAt = &now
	entry.ReceiverConn = responder.ConnID
	entry.CallerConn = o.handleOf(entry.CallerID, entry.CallerConn)
	callerConn := entry.CallerConn
	record := entry.Snapshot()
	o.mu.Unlock()

	o.metrics.RecordCall(string(record.CallType), string(domain.CallStatusAnswered))
	o.persist(ctx, "answer_call", record)

	o.emit(ctx, callerConn, domain.EventCallAccepted, domain.CallUpdate{
		CallID:   callID,
		FriendID: record.ReceiverID,
		CallType: record.CallType,
		Status:   domain.CallStatusAnswered,
	})
	o.emit(ctx, callerConn, domain.EventCallConnected, domain.CallConnected{
		CallID:   callID,
		PeerConn: responder.ConnID,
		CallType: record.CallType,
	})
	o.emit(ctx, responder.ConnID, domain.EventCallConnected, domain.CallConnected{
		CallID:   callID,
		PeerConn: callerConn,
		CallType: record.CallType,
	})
	return nil
}

// Decline rejects a ringing call on the receiver's behalf
func (o *Orchestrator) Decline(ctx context.Context, callID string, responder domain.ConnInfo) error {
	o.mu.Lock()
	entry, ok := o.calls[callID]
	if !ok {
		o.mu.Unlock()
		return apperrors.CallNotFoundError()
	}
	if responder.UserID != entry.ReceiverID {
		o.mu.Unlock()
		return apperrors.ForbiddenError("Only the receiver can decline this call")
	}
	if entry.Status != domain.CallStatusRinging {
		o.mu.Unlock()
		return apperrors.InvalidStateError("Call is not ringing")
	}
	final := o.closeLocked(entry, domain.CallStatusDeclined, domain.CallEndDeclined)
	o.mu.Unlock()

	o.complete(ctx, final)
	o.emit(ctx, o.handleOf(final.CallerID, entry.CallerConn), domain.EventCallDeclined, domain.CallUpdate{
		CallID:   callID,
		FriendID: final.ReceiverID,
		CallType: final.CallType,
		Status:   domain.CallStatusDeclined,
		Reason:   domain.CallEndDeclined,
	})
	return nil
}

// End hangs up a live call from either side. Hanging up while it still rings
// cancels it.
func (o *Orchestrator) End(ctx context.Context, callID string, party domain.ConnInfo) error {
	o.mu.Lock()
	entry, ok := o.calls[callID]
	if !ok {
		o.mu.Unlock()
		return apperrors.CallNotFoundError()
	}
	if party.UserID != entry.CallerID && party.UserID != entry.ReceiverID {
		o.mu.Unlock()
		return apperrors.ForbiddenError("Not a participant of this call")
	}
	reason := domain.CallEndCompleted
	if entry.Status == domain.CallStatusRinging {
		reason = domain.CallEndCancelled
	}
	final := o.closeLocked(entry, domain.CallStatusEnded, reason)
	peerID := entry.PeerOf(party.UserID)
	peerConn := entry.ReceiverConn
	if peerID == entry.CallerID {
		peerConn = entry.CallerConn
	}
	o.mu.Unlock()

	o.complete(ctx, final)
	o.emit(ctx, o.handleOf(peerID, peerConn), domain.EventCallEnded, domain.CallUpdate{
		CallID:   callID,
		FriendID: party.UserID,
		CallType: final.CallType,
		Status:   domain.CallStatusEnded,
		Duration: final.Duration,
		Reason:   reason,
	})
	return nil
}

// Disconnect tears down the live call a closed handle takes part in.
// A ringing call fails; an answered one ends with its duration.
func (o *Orchestrator) Disconnect(ctx context.Context, info domain.ConnInfo) {
	if !info.IsAuthenticated() {
		return
	}

	o.mu.Lock()
	callID, ok := o.byUser[info.UserID]
	if !ok {
		o.mu.Unlock()
		return
	}
	entry := o.calls[callID]
	var reason string
	var peerID uuid.UUID
	var peerConn domain.ConnID
	switch info.ConnID {
	case entry.CallerConn:
		reason, peerID, peerConn = domain.CallEndCallerDisconnected, entry.ReceiverID, entry.ReceiverConn
	case entry.ReceiverConn:
		reason, peerID, peerConn = domain.CallEndReceiverDisconnected, entry.CallerID, entry.CallerConn
	default:
		// another device of the same identity; the call lives on elsewhere
		o.mu.Unlock()
		return
	}
	status := domain.CallStatusFailed
	if entry.Status == domain.CallStatusAnswered {
		status = domain.CallStatusEnded
	}
	final := o.closeLocked(entry, status, reason)
	o.mu.Unlock()

	o.complete(ctx, final)
	o.emit(ctx, o.handleOf(peerID, peerConn), domain.EventCallEnded, domain.CallUpdate{
		CallID:   callID,
		FriendID: info.UserID,
		CallType: final.CallType,
		Status:   status,
		Duration: final.Duration,
		Reason:   reason,
	})
}

// Relay forwards friend_call_offer/answer/ice_candidate between the two
// parties of an answered call. An empty to defaults to the peer.
func (o *Orchestrator) Relay(ctx context.Context, from domain.ConnInfo, to domain.ConnID, event string, payload json.RawMessage) error {
	o.mu.Lock()
	callID, ok := o.byUser[from.UserID]
	if !from.IsAuthenticated() || !ok {
		o.mu.Unlock()
		return apperrors.CallNotFoundError()
	}
	entry := o.calls[callID]
	if entry.Status != domain.CallStatusAnswered {
		o.mu.Unlock()
		return apperrors.InvalidStateError("Call is not connected")
	}
	var peer domain.ConnID
	switch from.ConnID {
	case entry.CallerConn:
		peer = entry.ReceiverConn
	case entry.ReceiverConn:
		peer = entry.CallerConn
	default:
		o.mu.Unlock()
		return apperrors.NotPartnerError()
	}
	o.mu.Unlock()

	if to != "" && to != peer {
		return apperrors.NotPartnerError()
	}
	return o.relay.Forward(ctx, from.ConnID, peer, event, payload)
}

// onRingTimeout marks a still-ringing call missed
func (o *Orchestrator) onRingTimeout(callID string) {
	o.mu.Lock()
	entry, ok := o.calls[callID]
	if !ok || entry.Status != domain.CallStatusRinging {
		o.mu.Unlock()
		return
	}
	final := o.closeLocked(entry, domain.CallStatusMissed, domain.CallEndMissed)
	callerConn, receiverConn, callerName := entry.CallerConn, entry.ReceiverConn, entry.CallerName
	o.mu.Unlock()

	ctx := context.Background()
	o.complete(ctx, final)

	update := domain.CallUpdate{
		CallID:   callID,
		CallType: final.CallType,
		Status:   domain.CallStatusMissed,
		Reason:   domain.CallEndMissed,
	}
	toCaller := update
	toCaller.FriendID = final.ReceiverID
	o.emit(ctx, o.handleOf(final.CallerID, callerConn), domain.EventCallMissed, toCaller)
	toReceiver := update
	toReceiver.FriendID = final.CallerID
	o.emit(ctx, receiverConn, domain.EventCallMissed, toReceiver)

	pctx, cancel := persistCtx()
	defer cancel()
	err := o.notifier.SendMissedCallNotification(pctx, &push.MissedCall{
		CallID:     callID,
		CallerID:   final.CallerID,
		CallerName: callerName,
		CallType:   string(final.CallType),
	}, final.ReceiverID)
	if err != nil {
		logger.Warn("Failed to send missed call notification",
			zap.String("call_id", callID),
			zap.Error(err))
	}
}

// Stats holds live call counters
type Stats struct {
	ActiveCalls int `json:"activeCalls"`
}

// Stats returns live call counters
func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Stats{ActiveCalls: len(o.calls)}
}

// Active returns a copy of a live call entry
func (o *Orchestrator) Active(callID string) (*domain.Call, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	entry, ok := o.calls[callID]
	if !ok {
		return nil, false
	}
	return entry.Snapshot(), true
}

// Shutdown stops every ring timer. Live calls are left to their durable records.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, entry := range o.calls {
		stopTimer(entry)
	}
	logger.Info("Call orchestrator stopped", zap.Int("live_calls", len(o.calls)))
	o.calls = make(map[string]*domain.ActiveCall)
	o.byUser = make(map[uuid.UUID]string)
}

// closeLocked applies a terminal transition and discards the live entry
func (o *Orchestrator) closeLocked(entry *domain.ActiveCall, status domain.CallStatus, reason string) *domain.Call {
	stopTimer(entry)
	now := o.now()
	entry.Status = status

	delete(o.calls, entry.CallID)
	if o.byUser[entry.CallerID] == entry.CallID {
		delete(o.byUser, entry.CallerID)
	}
	if o.byUser[entry.ReceiverID] == entry.CallID {
		delete(o.byUser, entry.ReceiverID)
	}
	o.publishGauge()

	final := entry.Snapshot()
	final.EndedAt = &now
	final.EndReason = reason
	if entry.AnsweredAt != nil {
		final.Duration = max(int(now.Sub(*entry.AnsweredAt)/time.Second), 0)
	}
	return final
}

// complete records metrics and the terminal record of a call
func (o *Orchestrator) complete(ctx context.Context, final *domain.Call) {
	o.metrics.RecordCall(string(final.CallType), string(final.Status))
	if final.AnsweredAt != nil {
		o.metrics.RecordCallDuration(string(final.CallType), time.Duration(final.Duration)*time.Second)
	}
	logger.FromContext(ctx).Info("Call finished",
		zap.String("call_id", final.CallID),
		zap.String("status", string(final.Status)),
		zap.String("reason", final.EndReason),
		zap.Int("duration", final.Duration))

	o.persist(ctx, "finish_call", final)
}

func (o *Orchestrator) persist(ctx context.Context, op string, record *domain.Call) {
	pctx, cancel := persistCtx()
	defer cancel()
	if err := o.callRepo.UpdateStatus(pctx, record); err != nil {
		o.persistFailed(ctx, op, record.CallID, err)
	}
}

// handleOf keeps the cached handle while it is still live for userID and
// otherwise resolves the identity's newest handle.
func (o *Orchestrator) handleOf(userID uuid.UUID, cached domain.ConnID) domain.ConnID {
	if info, ok := o.dir.Identity(cached); ok && info.UserID == userID {
		return cached
	}
	if current, ok := o.dir.CurrentHandle(userID); ok {
		return current
	}
	return cached
}

func (o *Orchestrator) emit(ctx context.Context, conn domain.ConnID, event string, data any) {
	if err := o.dir.Send(conn, event, data); err != nil {
		logger.FromContext(ctx).Debug("Event not delivered",
			zap.String("to", conn.String()),
			zap.String("event", event),
			zap.Error(err))
	}
}

func (o *Orchestrator) publishGauge() {
	o.metrics.SetActiveCalls(len(o.calls))
}

func (o *Orchestrator) persistFailed(ctx context.Context, op, callID string, err error) {
	o.metrics.RecordPersistenceError("cockroach", op)
	logger.FromContext(ctx).Error("Persistence failed",
		zap.String("store", "cockroach"),
		zap.String("operation", op),
		zap.String("call_id", callID),
		zap.Error(err))
}

func stopTimer(entry *domain.ActiveCall) {
	if entry.RingTimer != nil {
		entry.RingTimer.Stop()
	}
}

// persistCtx detaches durable writes from the inbound event's lifetime
func persistCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), constants.PersistTimeout)
}
