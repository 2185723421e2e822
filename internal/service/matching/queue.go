package matching

import (
	"context"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"gufagu-backend/internal/domain"
	"gufagu-backend/pkg/constants"
	apperrors "gufagu-backend/pkg/errors"
	"gufagu-backend/pkg/logger"
	"gufagu-backend/pkg/sanitize"
)

// Join queues a participant and immediately tries to pair it.
// A handle that is already queued is re-queued at the back.
func (s *Service) Join(ctx context.Context, info domain.ConnInfo, rawInterests []string) error {
	interests, err := s.normaliseInterests(rawInterests)
	if err != nil {
		return err
	}

	name := info.DisplayName
	if name == "" {
		name = constants.AnonymousDisplayName
	}

	now := s.now()
	p := &domain.Participant{
		ConnID:      info.ConnID,
		UserID:      info.UserID,
		DisplayName: name,
		Interests:   interests,
		Status:      domain.QueueStatusWaiting,
		JoinedAt:    now,
		ExpiresAt:   now.Add(s.cfg.QueueTTL),
	}

	s.mu.Lock()
	if _, busy := s.active[p.ConnID]; busy {
		s.mu.Unlock()
		return apperrors.AlreadyInMatchError()
	}

	s.removeLocked(p.ConnID)

	var (
		match    *domain.Match
		partner  = s.findCandidateLocked(p)
		position int
		record   domain.Participant
	)
	if partner != nil {
		s.removeLocked(partner.ConnID)
		match = s.commitLocked(partner, p, now)
	} else {
		s.waiting = append(s.waiting, p)
		s.queued[p.ConnID] = p
		position = len(s.waiting)
		record = *p
	}
	st := s.statsLocked()
	s.mu.Unlock()

	s.metrics.RecordQueueJoin()
	s.publishGauges(st)

	if match == nil {
		s.saveEntry(ctx, &record)
		wait := time.Duration(position) * s.cfg.WaitPerPosition
		s.emit(ctx, p.ConnID, domain.EventQueuePosition, domain.QueuePosition{
			Position:      position,
			EstimatedWait: int(wait / time.Second),
		})
		return nil
	}

	s.announce(ctx, match, partner, p)
	return nil
}

// Leave removes the handle's waiting entry. Unknown handles are ignored.
func (s *Service) Leave(ctx context.Context, conn domain.ConnID) {
	s.mu.Lock()
	p := s.removeLocked(conn)
	st := s.statsLocked()
	s.mu.Unlock()

	if p == nil {
		return
	}

	s.publishGauges(st)
	s.deleteEntries(ctx, conn)
}

// Sweep expires every waiting entry older than the queue TTL and returns how many it removed
func (s *Service) Sweep(ctx context.Context) int {
	now := s.now()

	s.mu.Lock()
	expired := lo.Filter(s.waiting, func(p *domain.Participant, _ int) bool {
		return now.Sub(p.JoinedAt) >= s.cfg.QueueTTL
	})
	for _, p := range expired {
		p.Status = domain.QueueStatusExpired
		s.removeLocked(p.ConnID)
	}
	st := s.statsLocked()
	s.mu.Unlock()

	if len(expired) == 0 {
		return 0
	}

	s.publishGauges(st)
	s.metrics.RecordQueueExpired(len(expired))

	conns := lo.Map(expired, func(p *domain.Participant, _ int) domain.ConnID { return p.ConnID })
	s.deleteEntries(ctx, conns...)

	for _, p := range expired {
		s.emit(ctx, p.ConnID, domain.EventQueueExpired, domain.QueueExpired{
			Waited: int(now.Sub(p.JoinedAt) / time.Second),
		})
	}

	logger.FromContext(ctx).Info("Expired queue entries", zap.Int("count", len(expired)))
	return len(expired)
}

// normaliseInterests cleans, lower-cases and de-duplicates interest tags
func (s *Service) normaliseInterests(raw []string) ([]string, error) {
	if len(raw) > s.cfg.MaxInterests {
		return nil, apperrors.ValidationError("too many interests")
	}

	interests := make([]string, 0, len(raw))
	for _, tag := range raw {
		tag = sanitize.Tag(tag)
		if tag == "" || utf8.RuneCountInString(tag) > s.cfg.MaxInterestLength {
			return nil, apperrors.ValidationError("invalid interest tag")
		}
		interests = append(interests, tag)
	}

	return lo.Uniq(interests), nil
}

// compatible applies the interest rule: an empty set on either side matches anything
func compatible(a, b *domain.Participant) bool {
	if len(a.Interests) == 0 || len(b.Interests) == 0 {
		return true
	}
	return len(lo.Intersect(a.Interests, b.Interests)) > 0
}

// findCandidateLocked returns the first compatible waiting entry in insertion order
func (s *Service) findCandidateLocked(p *domain.Participant) *domain.Participant {
	for _, c := range s.waiting {
		if c.ConnID == p.ConnID || p.SharesIdentityWith(c) {
			continue
		}
		if compatible(p, c) {
			return c
		}
	}
	return nil
}

func (s *Service) removeLocked(conn domain.ConnID) *domain.Participant {
	p, ok := s.queued[conn]
	if !ok {
		return nil
	}
	delete(s.queued, conn)
	s.waiting = slices.DeleteFunc(s.waiting, func(x *domain.Participant) bool {
		return x.ConnID == conn
	})
	return p
}

// commitLocked creates the match of two entries that already left the queue.
// first is the earlier-queued participant.
func (s *Service) commitLocked(first, second *domain.Participant, now time.Time) *domain.Match {
	shared := lo.Intersect(first.Interests, second.Interests)
	if shared == nil {
		shared = []string{}
	}

	first.Status = domain.QueueStatusMatched
	second.Status = domain.QueueStatusMatched

	match := &domain.Match{
		MatchID:         uuid.New(),
		User1Conn:       first.ConnID,
		User2Conn:       second.ConnID,
		User1ID:         first.UserID,
		User2ID:         second.UserID,
		User1Name:       first.DisplayName,
		User2Name:       second.DisplayName,
		SharedInterests: shared,
		StartTime:       now,
		Status:          domain.MatchStatusActive,
	}
	s.active[first.ConnID] = match
	s.active[second.ConnID] = match
	return match
}

// announce runs the post-commit side effects of a pairing
func (s *Service) announce(ctx context.Context, match *domain.Match, first, second *domain.Participant) {
	s.metrics.RecordMatch(string(domain.MatchStatusActive))
	s.metrics.RecordQueueWait(match.StartTime.Sub(first.JoinedAt))

	s.deleteEntries(ctx, first.ConnID, second.ConnID)

	s.emit(ctx, first.ConnID, domain.EventMatchFound, domain.MatchFound{
		MatchID:          match.MatchID,
		PartnerID:        second.ConnID,
		PartnerName:      second.DisplayName,
		PartnerInterests: second.Interests,
		SharedInterests:  match.SharedInterests,
		IsInitiator:      true,
	})
	s.emit(ctx, second.ConnID, domain.EventMatchFound, domain.MatchFound{
		MatchID:          match.MatchID,
		PartnerID:        first.ConnID,
		PartnerName:      first.DisplayName,
		PartnerInterests: first.Interests,
		SharedInterests:  match.SharedInterests,
		IsInitiator:      false,
	})

	logger.FromContext(ctx).Info("Match created",
		zap.String("match_id", match.MatchID.String()),
		zap.Strings("shared_interests", match.SharedInterests))

	pctx, cancel := persistCtx()
	defer cancel()
	if err := s.matchRepo.Create(pctx, snapshot(match)); err != nil {
		s.persistFailed(ctx, "cockroach", "create_match", err, zap.String("match_id", match.MatchID.String()))
	}
}

func (s *Service) saveEntry(ctx context.Context, p *domain.Participant) {
	pctx, cancel := persistCtx()
	defer cancel()

	if err := s.queueRepo.Save(pctx, p); err != nil {
		s.persistFailed(ctx, "redis", "save_queue_entry", err, zap.String("conn_id", p.ConnID.String()))
	}
}

func (s *Service) deleteEntries(ctx context.Context, conns ...domain.ConnID) {
	pctx, cancel := persistCtx()
	defer cancel()

	if err := s.queueRepo.Delete(pctx, conns...); err != nil {
		s.persistFailed(ctx, "redis", "delete_queue_entry", err)
	}
}
