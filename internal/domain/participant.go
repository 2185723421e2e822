package domain

import (
	"time"

	"github.com/google/uuid"
)

// QueueStatus is the state of a matching queue entry
type QueueStatus string

const (
	QueueStatusWaiting QueueStatus = "waiting"
	QueueStatusMatched QueueStatus = "matched"
	QueueStatusExpired QueueStatus = "expired"
)

// Participant is a connection waiting in the matching queue
type Participant struct {
	ConnID      ConnID      `json:"handle"`
	UserID      uuid.UUID   `json:"user_id,omitempty"`
	DisplayName string      `json:"display_name"`
	Interests   []string    `json:"interests"`
	Status      QueueStatus `json:"status"`
	JoinedAt    time.Time   `json:"joined_at"`
	ExpiresAt   time.Time   `json:"expires_at"`
}

// SharesIdentityWith reports whether both participants belong to the same account.
// Anonymous participants never share an identity.
func (p *Participant) SharesIdentityWith(other *Participant) bool {
	return p.UserID != uuid.Nil && p.UserID == other.UserID
}

// QueuePosition is sent to a participant that is still waiting
type QueuePosition struct {
	Position      int `json:"position"`
	EstimatedWait int `json:"estimatedWait"` // seconds
}

// QueueExpired is sent to a participant whose entry outlived the queue TTL
type QueueExpired struct {
	Waited int `json:"waited"` // seconds
}
