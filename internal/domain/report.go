package domain

import (
	"time"

	"github.com/google/uuid"
)

// MatchReport is the moderation record created when a participant reports a partner
type MatchReport struct {
	ReportID     uuid.UUID `json:"report_id"`
	MatchID      uuid.UUID `json:"match_id"`
	ReporterConn ConnID    `json:"reporter_handle"`
	ReporterID   uuid.UUID `json:"reporter_id,omitempty"`
	ReportedConn ConnID    `json:"reported_handle"`
	ReportedID   uuid.UUID `json:"reported_id,omitempty"`
	Reason       string    `json:"reason"`
	EvidenceKey  string    `json:"evidence_key,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
