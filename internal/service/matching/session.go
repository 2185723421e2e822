package matching

import (
	"context"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gufagu-backend/internal/domain"
	"gufagu-backend/pkg/constants"
	apperrors "gufagu-backend/pkg/errors"
	"gufagu-backend/pkg/logger"
	"gufagu-backend/pkg/sanitize"
)

// Skip ends the handle's match on the skipper's behalf. Neither side is re-queued.
func (s *Service) Skip(ctx context.Context, conn domain.ConnID) error {
	final, partner, err := s.terminate(conn, domain.MatchStatusSkipped, domain.MatchEndUserSkipped)
	if err != nil {
		return err
	}

	s.emit(ctx, partner, domain.EventPartnerSkipped, domain.PartnerLeft{MatchID: final.MatchID})
	s.emit(ctx, partner, domain.EventMatchEnded, domain.MatchEnded{
		MatchID:  final.MatchID,
		Duration: final.Duration,
		Reason:   domain.MatchEndPartnerSkipped,
	})
	s.emit(ctx, conn, domain.EventMatchEnded, domain.MatchEnded{
		MatchID:  final.MatchID,
		Duration: final.Duration,
		Reason:   domain.MatchEndUserSkipped,
	})

	s.finish(ctx, final)
	return nil
}

// End closes the handle's match normally
func (s *Service) End(ctx context.Context, conn domain.ConnID) error {
	final, partner, err := s.terminate(conn, domain.MatchStatusEnded, domain.MatchEndUserEnded)
	if err != nil {
		return err
	}

	s.emit(ctx, conn, domain.EventMatchEnded, domain.MatchEnded{
		MatchID:  final.MatchID,
		Duration: final.Duration,
		Reason:   domain.MatchEndUserEnded,
	})
	s.emit(ctx, partner, domain.EventMatchEnded, domain.MatchEnded{
		MatchID:  final.MatchID,
		Duration: final.Duration,
		Reason:   domain.MatchEndPartnerEnded,
	})

	s.finish(ctx, final)
	return nil
}

// Disconnect cleans up after a closed connection: its queue entry goes away
// and its active match, if any, ends with reason disconnect.
func (s *Service) Disconnect(ctx context.Context, conn domain.ConnID) {
	s.Leave(ctx, conn)

	final, partner, err := s.terminate(conn, domain.MatchStatusEnded, domain.MatchEndDisconnect)
	if err != nil {
		return
	}

	s.emit(ctx, partner, domain.EventPartnerDisconnected, domain.PartnerLeft{MatchID: final.MatchID})
	s.finish(ctx, final)
}

// Report hands the match to moderation and ends it with status reported
func (s *Service) Report(ctx context.Context, conn domain.ConnID, reason string) error {
	reason = sanitize.Line(reason)
	if reason == "" || utf8.RuneCountInString(reason) > constants.MaxReportReasonLength {
		return apperrors.ValidationError("report reason must be 1-200 characters")
	}

	final, partner, err := s.terminate(conn, domain.MatchStatusReported, domain.MatchEndReported)
	if err != nil {
		return err
	}

	pctx, cancel := persistCtx()
	if err := s.reporter.Report(pctx, final, conn, reason); err != nil {
		s.persistFailed(ctx, "moderation", "report", err, zap.String("match_id", final.MatchID.String()))
	}
	cancel()

	ended := domain.MatchEnded{
		MatchID:  final.MatchID,
		Duration: final.Duration,
		Reason:   domain.MatchEndReported,
	}
	s.emit(ctx, conn, domain.EventMatchEnded, ended)
	s.emit(ctx, partner, domain.EventMatchEnded, ended)

	s.finish(ctx, final)
	return nil
}

// Chat delivers a message to the partner and appends it to the transcript
func (s *Service) Chat(ctx context.Context, conn, to domain.ConnID, text string) error {
	text = sanitize.Message(text)
	if strings.TrimSpace(text) == "" {
		return apperrors.ValidationError("message is required")
	}
	if utf8.RuneCountInString(text) > s.cfg.MaxMessageLength {
		return apperrors.ValidationError("message too long")
	}

	s.mu.Lock()
	m, partner, err := s.partnerLocked(conn, to)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	msg := domain.ChatMessage{
		MatchID:    m.MatchID,
		MessageID:  uuid.New(),
		SenderConn: conn,
		SenderID:   identityOf(m, conn),
		Text:       text,
		SentAt:     s.now(),
	}
	m.ChatMessages = append(m.ChatMessages, msg)
	s.mu.Unlock()

	s.metrics.RecordChatMessage()
	s.emit(ctx, partner, domain.EventChatMessage, domain.ChatDelivery{
		From:    conn,
		MatchID: msg.MatchID,
		Message: msg.Text,
		SentAt:  msg.SentAt,
	})

	pctx, cancel := persistCtx()
	defer cancel()
	if err := s.transcript.Append(pctx, &msg); err != nil {
		s.persistFailed(ctx, "cassandra", "append_transcript", err, zap.String("match_id", msg.MatchID.String()))
	}
	return nil
}

// Typing relays typing_start / typing_stop to the partner
func (s *Service) Typing(ctx context.Context, conn, to domain.ConnID, event string) error {
	s.mu.Lock()
	_, partner, err := s.partnerLocked(conn, to)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.emit(ctx, partner, event, domain.RelayMessage{From: conn})
	return nil
}

// Relay forwards a WebRTC payload to the partner of an active match
func (s *Service) Relay(ctx context.Context, conn, to domain.ConnID, event string, payload json.RawMessage) error {
	s.mu.Lock()
	_, partner, err := s.partnerLocked(conn, to)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	return s.relay.Forward(ctx, conn, partner, event, payload)
}

// UpdateQuality records the latest connection quality reported for the match
func (s *Service) UpdateQuality(ctx context.Context, conn domain.ConnID, quality string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.active[conn]
	if !ok {
		return apperrors.MatchNotFoundError()
	}
	m.ConnectionQuality = quality
	logger.FromContext(ctx).Debug("Connection quality updated",
		zap.String("match_id", m.MatchID.String()),
		zap.String("quality", quality))
	return nil
}

// partnerLocked resolves the partner of conn's active match. A non-empty to
// must name that partner.
func (s *Service) partnerLocked(conn, to domain.ConnID) (*domain.Match, domain.ConnID, error) {
	m, ok := s.active[conn]
	if !ok {
		return nil, "", apperrors.MatchNotFoundError()
	}
	partner, _ := m.Partner(conn)
	if to != "" && to != partner {
		return nil, "", apperrors.NotPartnerError()
	}
	return m, partner, nil
}

// terminate moves conn's active match into a terminal status and detaches
// both handles. It returns a snapshot of the final match and the partner.
func (s *Service) terminate(conn domain.ConnID, status domain.MatchStatus, reason string) (*domain.Match, domain.ConnID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.active[conn]
	if !ok {
		return nil, "", apperrors.MatchNotFoundError()
	}
	partner, _ := m.Partner(conn)

	now := s.now()
	m.Status = status
	m.EndReason = reason
	m.EndTime = &now
	m.Duration = max(int(now.Sub(m.StartTime)/time.Second), 0)

	delete(s.active, m.User1Conn)
	delete(s.active, m.User2Conn)

	s.publishGauges(s.statsLocked())
	return snapshot(m), partner, nil
}

// finish records metrics and the durable terminal state of a match
func (s *Service) finish(ctx context.Context, final *domain.Match) {
	s.metrics.RecordMatch(string(final.Status))
	s.metrics.RecordMatchDuration(time.Duration(final.Duration) * time.Second)

	logger.FromContext(ctx).Info("Match finished",
		zap.String("match_id", final.MatchID.String()),
		zap.String("status", string(final.Status)),
		zap.String("reason", final.EndReason),
		zap.Int("duration", final.Duration))

	pctx, cancel := persistCtx()
	defer cancel()
	if err := s.matchRepo.Finish(pctx, final); err != nil {
		s.persistFailed(ctx, "cockroach", "finish_match", err, zap.String("match_id", final.MatchID.String()))
	}
}

func identityOf(m *domain.Match, conn domain.ConnID) uuid.UUID {
	if conn == m.User1Conn {
		return m.User1ID
	}
	return m.User2ID
}
