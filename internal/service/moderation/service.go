package moderation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gufagu-backend/internal/domain"
	apperrors "gufagu-backend/pkg/errors"
	"gufagu-backend/pkg/logger"
	"gufagu-backend/pkg/metrics"
)

// ReportRepository persists report records
type ReportRepository interface {
	Create(ctx context.Context, report *domain.MatchReport) error
}

// EvidenceStore keeps evidence snapshots
type EvidenceStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// Evidence is the snapshot of a reported match handed to moderators
type Evidence struct {
	ReportID          uuid.UUID            `json:"report_id"`
	MatchID           uuid.UUID            `json:"match_id"`
	ReporterConn      domain.ConnID        `json:"reporter_handle"`
	ReporterID        uuid.UUID            `json:"reporter_id,omitempty"`
	ReportedConn      domain.ConnID        `json:"reported_handle"`
	ReportedID        uuid.UUID            `json:"reported_id,omitempty"`
	Reason            string               `json:"reason"`
	SharedInterests   []string             `json:"shared_interests"`
	StartTime         time.Time            `json:"start_time"`
	EndTime           *time.Time           `json:"end_time,omitempty"`
	ConnectionQuality string               `json:"connection_quality,omitempty"`
	Transcript        []domain.ChatMessage `json:"transcript"`
	CapturedAt        time.Time            `json:"captured_at"`
}

// Service files match reports: an evidence snapshot plus a report record
type Service struct {
	reports  ReportRepository
	evidence EvidenceStore
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewService creates a new moderation service. evidence may be nil.
func NewService(reports ReportRepository, evidence EvidenceStore, m *metrics.Metrics) *Service {
	return &Service{
		reports:  reports,
		evidence: evidence,
		metrics:  m,
		now:      time.Now,
	}
}

// EvidenceKey is the object key of a report's evidence snapshot
func EvidenceKey(matchID, reportID uuid.UUID) string {
	return fmt.Sprintf("reports/%s/%s.json", matchID, reportID)
}

// Report files a report against the reporter's partner in m. A failed
// evidence upload still files the record, without an evidence key.
func (s *Service) Report(ctx context.Context, m *domain.Match, reporter domain.ConnID, reason string) error {
	reported, ok := m.Partner(reporter)
	if !ok {
		return apperrors.NotPartnerError()
	}

	report := &domain.MatchReport{
		ReportID:     uuid.New(),
		MatchID:      m.MatchID,
		ReporterConn: reporter,
		ReporterID:   identityOf(m, reporter),
		ReportedConn: reported,
		ReportedID:   identityOf(m, reported),
		Reason:       reason,
		CreatedAt:    s.now(),
	}

	if s.evidence != nil {
		key := EvidenceKey(m.MatchID, report.ReportID)
		if err := s.putEvidence(ctx, key, m, report); err != nil {
			s.metrics.RecordPersistenceError("minio", "put_evidence")
			logger.FromContext(ctx).Warn("Failed to store report evidence",
				zap.String("match_id", m.MatchID.String()),
				zap.String("report_id", report.ReportID.String()),
				zap.Error(err))
		} else {
			report.EvidenceKey = key
		}
	}

	if err := s.reports.Create(ctx, report); err != nil {
		return apperrors.DatabaseError(fmt.Errorf("failed to create report: %w", err))
	}

	logger.FromContext(ctx).Info("Match reported",
		zap.String("match_id", m.MatchID.String()),
		zap.String("report_id", report.ReportID.String()),
		zap.Bool("evidence", report.EvidenceKey != ""))
	return nil
}

func (s *Service) putEvidence(ctx context.Context, key string, m *domain.Match, report *domain.MatchReport) error {
	transcript := m.ChatMessages
	if transcript == nil {
		transcript = []domain.ChatMessage{}
	}
	body, err := json.Marshal(Evidence{
		ReportID:          report.ReportID,
		MatchID:           m.MatchID,
		ReporterConn:      report.ReporterConn,
		ReporterID:        report.ReporterID,
		ReportedConn:      report.ReportedConn,
		ReportedID:        report.ReportedID,
		Reason:            report.Reason,
		SharedInterests:   m.SharedInterests,
		StartTime:         m.StartTime,
		EndTime:           m.EndTime,
		ConnectionQuality: m.ConnectionQuality,
		Transcript:        transcript,
		CapturedAt:        report.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode evidence: %w", err)
	}
	return s.evidence.Put(ctx, key, body, "application/json")
}

func identityOf(m *domain.Match, conn domain.ConnID) uuid.UUID {
	if conn == m.User1Conn {
		return m.User1ID
	}
	return m.User2ID
}
