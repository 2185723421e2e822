package matching

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gufagu-backend/internal/domain"
	apperrors "gufagu-backend/pkg/errors"
)

func TestJoin_DisjointInterestsNeverPair(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.Join(ctx, anon("a"), []string{"music"}))
	require.NoError(t, f.svc.Join(ctx, anon("b"), []string{"chess"}))

	_, matched := f.svc.ActiveMatch("a")
	assert.False(t, matched)
	assert.Empty(t, f.emitter.to("a", domain.EventMatchFound))
	assert.Empty(t, f.emitter.to("b", domain.EventMatchFound))
	assert.Equal(t, Stats{Waiting: 2}, f.svc.Stats())
}

func TestJoin_OverlappingInterestsPair(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.Join(ctx, anon("a"), []string{"music"}))
	require.NoError(t, f.svc.Join(ctx, anon("b"), []string{"music", "art"}))

	foundA := f.emitter.to("a", domain.EventMatchFound)
	foundB := f.emitter.to("b", domain.EventMatchFound)
	require.Len(t, foundA, 1)
	require.Len(t, foundB, 1)

	a := foundA[0].(domain.MatchFound)
	b := foundB[0].(domain.MatchFound)
	assert.Equal(t, a.MatchID, b.MatchID)
	assert.True(t, a.IsInitiator)
	assert.False(t, b.IsInitiator)
	assert.Equal(t, domain.ConnID("b"), a.PartnerID)
	assert.Equal(t, domain.ConnID("a"), b.PartnerID)
	assert.Equal(t, []string{"music", "art"}, a.PartnerInterests)
	assert.Equal(t, []string{"music"}, a.SharedInterests)

	m, ok := f.svc.ActiveMatch("b")
	require.True(t, ok)
	assert.Equal(t, domain.MatchStatusActive, m.Status)
	assert.Equal(t, Stats{Waiting: 0, ActiveMatches: 1}, f.svc.Stats())

	f.matches.AssertCalled(t, "Create", mock.Anything, mock.MatchedBy(func(m *domain.Match) bool {
		return m.MatchID == a.MatchID
	}))
	f.queue.AssertCalled(t, "Delete", mock.Anything, []domain.ConnID{"a", "b"})
}

func TestJoin_SameIdentityNeverPairs(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, f.svc.Join(ctx, user("phone", id, "sam"), []string{"music"}))
	require.NoError(t, f.svc.Join(ctx, user("laptop", id, "sam"), []string{"music"}))

	_, matched := f.svc.ActiveMatch("phone")
	assert.False(t, matched)

	require.NoError(t, f.svc.Join(ctx, anon("stranger"), []string{"music"}))
	m, ok := f.svc.ActiveMatch("stranger")
	require.True(t, ok)
	assert.Equal(t, domain.ConnID("phone"), m.User1Conn)
	assert.True(t, f.svc.IsQueued("laptop"))
}

func TestJoin_EmptyInterestsMatchUnconditionally(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.Join(ctx, anon("a"), []string{"music"}))
	require.NoError(t, f.svc.Join(ctx, anon("b"), nil))

	m, ok := f.svc.ActiveMatch("a")
	require.True(t, ok)
	assert.Empty(t, m.SharedInterests)
	assert.NotNil(t, m.SharedInterests)
}

func TestJoin_FirstCompatibleCandidateWins(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.Join(ctx, anon("chess"), []string{"chess"}))
	require.NoError(t, f.svc.Join(ctx, anon("first"), []string{"art"}))
	require.NoError(t, f.svc.Join(ctx, anon("second"), []string{"art"}))

	m, ok := f.svc.ActiveMatch("second")
	require.True(t, ok)
	assert.Equal(t, domain.ConnID("first"), m.User1Conn)
	assert.True(t, f.svc.IsQueued("chess"))
}

func TestJoin_QueuePositionEstimate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.Join(ctx, anon("a"), []string{"music"}))
	require.NoError(t, f.svc.Join(ctx, anon("b"), []string{"chess"}))

	posB := f.emitter.to("b", domain.EventQueuePosition)
	require.Len(t, posB, 1)
	assert.Equal(t, domain.QueuePosition{Position: 2, EstimatedWait: 10}, posB[0])

	f.queue.AssertCalled(t, "Save", mock.Anything, mock.MatchedBy(func(p *domain.Participant) bool {
		return p.ConnID == "b" &&
			p.Status == domain.QueueStatusWaiting &&
			p.ExpiresAt.Sub(p.JoinedAt) == 10*time.Minute
	}))
}

func TestJoin_RejoinIsIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.Join(ctx, anon("a"), []string{"music"}))
	require.NoError(t, f.svc.Join(ctx, anon("a"), []string{"art"}))

	assert.Equal(t, 1, f.svc.Stats().Waiting)

	require.NoError(t, f.svc.Join(ctx, anon("b"), []string{"art"}))
	_, ok := f.svc.ActiveMatch("a")
	assert.True(t, ok)
}

func TestJoin_RejectsHandleInActiveMatch(t *testing.T) {
	f := newFixture()
	f.pair("a", "b")

	err := f.svc.Join(context.Background(), anon("a"), nil)

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAlreadyInMatch))
	assert.Equal(t, 0, f.svc.Stats().Waiting)
}

func TestJoin_NormalisesInterests(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.Join(ctx, anon("a"), []string{" Music", "music ", "ART"}))
	require.NoError(t, f.svc.Join(ctx, anon("b"), []string{"art"}))

	found := f.emitter.to("b", domain.EventMatchFound)
	require.Len(t, found, 1)
	assert.Equal(t, []string{"music", "art"}, found[0].(domain.MatchFound).PartnerInterests)
}

func TestJoin_ValidatesInterests(t *testing.T) {
	tooMany := make([]string, 11)
	for i := range tooMany {
		tooMany[i] = string(rune('a' + i))
	}

	tests := []struct {
		name      string
		interests []string
	}{
		{"too many tags", tooMany},
		{"empty tag", []string{"music", "  "}},
		{"tag too long", []string{strings.Repeat("x", 33)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()

			err := f.svc.Join(context.Background(), anon("a"), tt.interests)

			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
			assert.False(t, f.svc.IsQueued("a"))
			f.queue.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		})
	}
}

func TestJoin_PersistenceFailureKeepsMatch(t *testing.T) {
	f := newFixture()
	f.matches.ExpectedCalls = nil
	f.matches.On("Create", mock.Anything, mock.Anything).Return(errStoreDown)

	m := f.pair("a", "b")

	assert.Equal(t, domain.MatchStatusActive, m.Status)
	assert.Len(t, f.emitter.to("a", domain.EventMatchFound), 1)
	assert.Len(t, f.emitter.to("b", domain.EventMatchFound), 1)
}

func TestLeave_NonQueuedIsNoop(t *testing.T) {
	f := newFixture()

	f.svc.Leave(context.Background(), "nobody")

	f.queue.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	assert.Empty(t, f.emitter.events)
}

func TestLeave_RemovesEntry(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	require.NoError(t, f.svc.Join(ctx, anon("a"), []string{"music"}))

	f.svc.Leave(ctx, "a")

	assert.False(t, f.svc.IsQueued("a"))
	f.queue.AssertCalled(t, "Delete", mock.Anything, []domain.ConnID{"a"})

	require.NoError(t, f.svc.Join(ctx, anon("b"), []string{"music"}))
	_, ok := f.svc.ActiveMatch("b")
	assert.False(t, ok)
}

func TestSweep_ExpiresStaleEntries(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.Join(ctx, anon("old"), []string{"music"}))
	f.advance(6 * time.Minute)
	require.NoError(t, f.svc.Join(ctx, anon("young"), []string{"chess"}))
	f.advance(4 * time.Minute)

	assert.Equal(t, 1, f.svc.Sweep(ctx))

	assert.False(t, f.svc.IsQueued("old"))
	assert.True(t, f.svc.IsQueued("young"))

	expired := f.emitter.to("old", domain.EventQueueExpired)
	require.Len(t, expired, 1)
	assert.Equal(t, domain.QueueExpired{Waited: 600}, expired[0])
	assert.Empty(t, f.emitter.to("young", domain.EventQueueExpired))
}

func TestSweep_NothingToExpire(t *testing.T) {
	f := newFixture()

	assert.Equal(t, 0, f.svc.Sweep(context.Background()))
	f.queue.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}
