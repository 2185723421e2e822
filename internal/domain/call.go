package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CallType is the media kind of a friend call
type CallType string

const (
	CallTypeVoice CallType = "voice"
	CallTypeVideo CallType = "video"
)

// IsValid reports whether the call type is supported
func (t CallType) IsValid() bool {
	return t == CallTypeVoice || t == CallTypeVideo
}

// CallStatus is the state of a friend call
type CallStatus string

const (
	CallStatusInitiated CallStatus = "initiated"
	CallStatusRinging   CallStatus = "ringing"
	CallStatusAnswered  CallStatus = "answered"
	CallStatusDeclined  CallStatus = "declined"
	CallStatusMissed    CallStatus = "missed"
	CallStatusEnded     CallStatus = "ended"
	CallStatusFailed    CallStatus = "failed"
)

// IsTerminal reports whether no further transition may leave this status
func (s CallStatus) IsTerminal() bool {
	switch s {
	case CallStatusDeclined, CallStatusMissed, CallStatusEnded, CallStatusFailed:
		return true
	}
	return false
}

// Call end reasons
const (
	CallEndCompleted            = "completed"
	CallEndDeclined             = "declined"
	CallEndMissed               = "missed"
	CallEndCancelled            = "cancelled"
	CallEndCallerDisconnected   = "caller_disconnected"
	CallEndReceiverDisconnected = "receiver_disconnected"
)

// Call represents the durable record of a friend call
type Call struct {
	CallID     string     `json:"call_id"`
	CallerID   uuid.UUID  `json:"caller_id"`
	ReceiverID uuid.UUID  `json:"receiver_id"`
	CallType   CallType   `json:"call_type"`
	Status     CallStatus `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	AnsweredAt *time.Time `json:"answered_at,omitempty"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Duration   int        `json:"duration"` // in seconds
	EndReason  string     `json:"end_reason,omitempty"`
}

// NewCallID builds the composite caller+callee+timestamp identifier
func NewCallID(callerID, receiverID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("call_%s_%s_%d", callerID, receiverID, at.UnixMilli())
}

// ActiveCall is the in-memory entry of a live call. It exists only until the
// call reaches a terminal status.
type ActiveCall struct {
	CallID       string
	CallType     CallType
	CallerID     uuid.UUID
	ReceiverID   uuid.UUID
	CallerConn   ConnID
	ReceiverConn ConnID
	CallerName   string
	Status       CallStatus
	StartedAt    time.Time
	AnsweredAt   *time.Time

	// RingTimer fires the missed transition; stopped on every terminal transition
	RingTimer *time.Timer
}

// Snapshot converts the live entry into its durable shape
func (a *ActiveCall) Snapshot() *Call {
	return &Call{
		CallID:     a.CallID,
		CallerID:   a.CallerID,
		ReceiverID: a.ReceiverID,
		CallType:   a.CallType,
		Status:     a.Status,
		StartedAt:  a.StartedAt,
		AnsweredAt: a.AnsweredAt,
	}
}

// PeerOf returns the other party's identity
func (a *ActiveCall) PeerOf(userID uuid.UUID) uuid.UUID {
	if userID == a.CallerID {
		return a.ReceiverID
	}
	return a.CallerID
}

// IncomingCall is sent to the callee when a call starts ringing
type IncomingCall struct {
	CallID     string    `json:"callId"`
	CallerID   uuid.UUID `json:"callerId"`
	CallerName string    `json:"callerName"`
	CallType   CallType  `json:"callType"`
}

// CallUpdate is the payload of call_initiated/accepted/declined/missed/ended
type CallUpdate struct {
	CallID   string     `json:"callId"`
	FriendID uuid.UUID  `json:"friendId"`
	CallType CallType   `json:"callType,omitempty"`
	Status   CallStatus `json:"status"`
	Duration int        `json:"duration,omitempty"`
	Reason   string     `json:"reason,omitempty"`
}

// CallConnected hands each party the peer handle for the signaling phase
type CallConnected struct {
	CallID   string   `json:"callId"`
	PeerConn ConnID   `json:"peerId"`
	CallType CallType `json:"callType"`
}
