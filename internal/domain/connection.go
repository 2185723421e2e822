package domain

import (
	"time"

	"github.com/google/uuid"
)

// ConnID is the opaque handle of one client's live realtime connection
type ConnID string

// NewConnID allocates a fresh connection handle
func NewConnID() ConnID {
	return ConnID(uuid.New().String())
}

// String returns the handle as a plain string
func (c ConnID) String() string {
	return string(c)
}

// ConnInfo describes who sits behind a connection handle.
// UserID is uuid.Nil for anonymous connections.
type ConnInfo struct {
	ConnID      ConnID    `json:"conn_id"`
	UserID      uuid.UUID `json:"user_id,omitempty"`
	DisplayName string    `json:"display_name"`
	ConnectedAt time.Time `json:"connected_at"`
}

// IsAuthenticated reports whether the connection is bound to an account
func (c ConnInfo) IsAuthenticated() bool {
	return c.UserID != uuid.Nil
}
