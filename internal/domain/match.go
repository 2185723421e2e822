package domain

import (
	"time"

	"github.com/google/uuid"
)

// MatchStatus is the state of a random-chat pairing
type MatchStatus string

const (
	MatchStatusActive   MatchStatus = "active"
	MatchStatusEnded    MatchStatus = "ended"
	MatchStatusSkipped  MatchStatus = "skipped"
	MatchStatusReported MatchStatus = "reported"
)

// IsTerminal reports whether no further transition may leave this status
func (s MatchStatus) IsTerminal() bool {
	return s != MatchStatusActive
}

// Match end reasons
const (
	MatchEndUserSkipped    = "user_skipped"
	MatchEndPartnerSkipped = "partner_skipped"
	MatchEndUserEnded      = "user_ended"
	MatchEndPartnerEnded   = "partner_ended"
	MatchEndDisconnect     = "disconnect"
	MatchEndReported       = "reported"
)

// Match is a tracked pairing of two participants
type Match struct {
	MatchID           uuid.UUID     `json:"match_id"`
	User1Conn         ConnID        `json:"user1_handle"`
	User2Conn         ConnID        `json:"user2_handle"`
	User1ID           uuid.UUID     `json:"user1_id,omitempty"`
	User2ID           uuid.UUID     `json:"user2_id,omitempty"`
	User1Name         string        `json:"user1_name"`
	User2Name         string        `json:"user2_name"`
	SharedInterests   []string      `json:"shared_interests"`
	StartTime         time.Time     `json:"start_time"`
	EndTime           *time.Time    `json:"end_time,omitempty"`
	Status            MatchStatus   `json:"status"`
	EndReason         string        `json:"end_reason,omitempty"`
	Duration          int           `json:"duration"` // in seconds
	ConnectionQuality string        `json:"connection_quality,omitempty"`
	ChatMessages      []ChatMessage `json:"chat_messages,omitempty"`
}

// Partner returns the other handle of the match and whether conn is a party
func (m *Match) Partner(conn ConnID) (ConnID, bool) {
	switch conn {
	case m.User1Conn:
		return m.User2Conn, true
	case m.User2Conn:
		return m.User1Conn, true
	}
	return "", false
}

// Involves reports whether the user is one of the two parties
func (m *Match) Involves(userID uuid.UUID) bool {
	return userID != uuid.Nil && (m.User1ID == userID || m.User2ID == userID)
}

// ChatMessage is one entry of a match transcript
type ChatMessage struct {
	MatchID    uuid.UUID `json:"match_id"`
	MessageID  uuid.UUID `json:"message_id"`
	SenderConn ConnID    `json:"sender_handle"`
	SenderID   uuid.UUID `json:"sender_id,omitempty"`
	Text       string    `json:"text"`
	SentAt     time.Time `json:"sent_at"`
}

// MatchFound is sent to both parties when a pairing is committed
type MatchFound struct {
	MatchID          uuid.UUID `json:"matchId"`
	PartnerID        ConnID    `json:"partnerId"`
	PartnerName      string    `json:"partnerName"`
	PartnerInterests []string  `json:"partnerInterests"`
	SharedInterests  []string  `json:"sharedInterests"`
	IsInitiator      bool      `json:"isInitiator"`
}

// MatchEnded is sent to a party when its match reaches a terminal status
type MatchEnded struct {
	MatchID  uuid.UUID `json:"matchId"`
	Duration int       `json:"duration"`
	Reason   string    `json:"reason"`
}

// PartnerLeft is sent when the partner skipped or disconnected
type PartnerLeft struct {
	MatchID uuid.UUID `json:"matchId"`
}
