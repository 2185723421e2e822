package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Frame is the wire envelope of every realtime message in both directions
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Outbound builds the JSON frame for an event and its payload
func Outbound(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}

// RelayMessage is the payload of a forwarded signaling or typing event
type RelayMessage struct {
	From    ConnID          `json:"from"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ChatDelivery is the payload delivered to the partner for a chat message
type ChatDelivery struct {
	From    ConnID    `json:"from"`
	MatchID uuid.UUID `json:"matchId"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sentAt"`
}

// ErrorPayload reports a failed inbound event to the originating connection
type ErrorPayload struct {
	Event   string `json:"event"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Connected greets a freshly registered connection with its handle
type Connected struct {
	ConnID        ConnID    `json:"connectionId"`
	UserID        uuid.UUID `json:"userId,omitempty"`
	Authenticated bool      `json:"authenticated"`
}

// Outbound event names
const (
	EventConnected           = "connected"
	EventError               = "error"
	EventQueuePosition       = "queue_position"
	EventQueueExpired        = "queue_expired"
	EventMatchFound          = "match_found"
	EventPartnerSkipped      = "partner_skipped"
	EventPartnerDisconnected = "partner_disconnected"
	EventMatchEnded          = "match_ended"
	EventIncomingCall        = "incoming_call"
	EventCallInitiated       = "call_initiated"
	EventCallAccepted        = "call_accepted"
	EventCallConnected       = "call_connected"
	EventCallDeclined        = "call_declined"
	EventCallMissed          = "call_missed"
	EventCallEnded           = "call_ended"
)

// Events relayed in both directions
const (
	EventChatMessage        = "chat_message"
	EventTypingStart        = "typing_start"
	EventTypingStop         = "typing_stop"
	EventWebRTCOffer        = "webrtc_offer"
	EventWebRTCAnswer       = "webrtc_answer"
	EventWebRTCICECandidate = "webrtc_ice_candidate"
	EventFriendCallOffer    = "friend_call_offer"
	EventFriendCallAnswer   = "friend_call_answer"
	EventFriendCallICE      = "friend_call_ice_candidate"
)

// Inbound event names; relayed events above are accepted too
const (
	EventJoinQueue         = "join_queue"
	EventLeaveQueue        = "leave_queue"
	EventSkipPartner       = "skip_partner"
	EventEndChat           = "end_chat"
	EventReportPartner     = "report_partner"
	EventConnectionQuality = "connection_quality"
	EventCallFriend        = "call_friend"
	EventAcceptCall        = "accept_call"
	EventDeclineCall       = "decline_call"
	EventEndFriendCall     = "end_friend_call"
)
