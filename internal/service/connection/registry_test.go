package connection

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gufagu-backend/internal/domain"
	apperrors "gufagu-backend/pkg/errors"
)

type fakeSender struct {
	mu     sync.Mutex
	frames [][]byte
	full   bool
	closed bool
}

func (f *fakeSender) Send(frame []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return false
	}
	f.frames = append(f.frames, frame)
	return true
}

func (f *fakeSender) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

// MockPresenceStore is a mock implementation of PresenceStore
type MockPresenceStore struct {
	mock.Mock
}

func (m *MockPresenceStore) SetOnline(ctx context.Context, userID uuid.UUID, conn domain.ConnID) error {
	args := m.Called(ctx, userID, conn)
	return args.Error(0)
}

func (m *MockPresenceStore) SetOffline(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockPresenceStore) Refresh(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func TestRegistry_RegisterAndIdentity(t *testing.T) {
	reg := NewRegistry(nil, nil)
	userID := uuid.New()

	reg.Register(context.Background(), domain.ConnInfo{ConnID: "c1", UserID: userID, DisplayName: "alice"}, &fakeSender{})
	reg.Register(context.Background(), domain.ConnInfo{ConnID: "anon"}, &fakeSender{})

	info, ok := reg.Identity("c1")
	require.True(t, ok)
	assert.Equal(t, userID, info.UserID)
	assert.Equal(t, "alice", info.DisplayName)
	assert.False(t, info.ConnectedAt.IsZero())

	anon, ok := reg.Identity("anon")
	require.True(t, ok)
	assert.False(t, anon.IsAuthenticated())

	_, ok = reg.Identity("missing")
	assert.False(t, ok)
	assert.Equal(t, 2, reg.Count())
}

func TestRegistry_CurrentHandleIsNewest(t *testing.T) {
	reg := NewRegistry(nil, nil)
	userID := uuid.New()

	reg.Register(context.Background(), domain.ConnInfo{ConnID: "old", UserID: userID}, &fakeSender{})
	reg.Register(context.Background(), domain.ConnInfo{ConnID: "new", UserID: userID}, &fakeSender{})

	current, ok := reg.CurrentHandle(userID)
	require.True(t, ok)
	assert.Equal(t, domain.ConnID("new"), current)
	assert.Equal(t, []domain.ConnID{"old", "new"}, reg.HandlesOf(userID))

	reg.Unregister(context.Background(), "new")
	current, ok = reg.CurrentHandle(userID)
	require.True(t, ok)
	assert.Equal(t, domain.ConnID("old"), current)
	assert.True(t, reg.IsOnline(userID))

	reg.Unregister(context.Background(), "old")
	assert.False(t, reg.IsOnline(userID))
	assert.Empty(t, reg.HandlesOf(userID))
}

func TestRegistry_PresenceFollowsLastHandle(t *testing.T) {
	presence := new(MockPresenceStore)
	reg := NewRegistry(presence, nil)
	userID := uuid.New()

	presence.On("SetOnline", mock.Anything, userID, domain.ConnID("a")).Return(nil)
	presence.On("SetOnline", mock.Anything, userID, domain.ConnID("b")).Return(nil)
	presence.On("SetOffline", mock.Anything, userID).Return(nil).Once()

	reg.Register(context.Background(), domain.ConnInfo{ConnID: "a", UserID: userID}, &fakeSender{})
	reg.Register(context.Background(), domain.ConnInfo{ConnID: "b", UserID: userID}, &fakeSender{})

	reg.Unregister(context.Background(), "a")
	presence.AssertNotCalled(t, "SetOffline", mock.Anything, userID)

	reg.Unregister(context.Background(), "b")
	presence.AssertExpectations(t)
}

func TestRegistry_AnonymousSkipsPresence(t *testing.T) {
	presence := new(MockPresenceStore)
	reg := NewRegistry(presence, nil)

	reg.Register(context.Background(), domain.ConnInfo{ConnID: "anon"}, &fakeSender{})
	reg.Unregister(context.Background(), "anon")

	presence.AssertNotCalled(t, "SetOnline", mock.Anything, mock.Anything, mock.Anything)
	presence.AssertNotCalled(t, "SetOffline", mock.Anything, mock.Anything)
}

func TestRegistry_UnregisterNotifiesListenersInOrder(t *testing.T) {
	reg := NewRegistry(nil, nil)
	var order []string

	reg.OnDisconnect(func(_ context.Context, info domain.ConnInfo) {
		order = append(order, "queue:"+info.ConnID.String())
	})
	reg.OnDisconnect(func(_ context.Context, info domain.ConnInfo) {
		order = append(order, "calls:"+info.ConnID.String())
	})

	reg.Register(context.Background(), domain.ConnInfo{ConnID: "c1"}, &fakeSender{})
	assert.True(t, reg.Unregister(context.Background(), "c1"))
	assert.False(t, reg.Unregister(context.Background(), "c1"))

	assert.Equal(t, []string{"queue:c1", "calls:c1"}, order)
}

func TestRegistry_SendEncodesFrame(t *testing.T) {
	reg := NewRegistry(nil, nil)
	sender := &fakeSender{}
	reg.Register(context.Background(), domain.ConnInfo{ConnID: "c1"}, sender)

	err := reg.Send("c1", domain.EventQueuePosition, domain.QueuePosition{Position: 2, EstimatedWait: 10})
	require.NoError(t, err)
	require.Len(t, sender.frames, 1)

	var frame domain.Frame
	require.NoError(t, json.Unmarshal(sender.frames[0], &frame))
	assert.Equal(t, domain.EventQueuePosition, frame.Event)
	assert.JSONEq(t, `{"position":2,"estimatedWait":10}`, string(frame.Data))
}

func TestRegistry_SendToUnknownHandle(t *testing.T) {
	reg := NewRegistry(nil, nil)

	err := reg.Send("ghost", domain.EventMatchEnded, nil)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodePeerNotConnected))
}

func TestRegistry_SendDropsSlowClient(t *testing.T) {
	reg := NewRegistry(nil, nil)
	sender := &fakeSender{full: true}
	reg.Register(context.Background(), domain.ConnInfo{ConnID: "slow"}, sender)

	err := reg.Send("slow", domain.EventChatMessage, map[string]string{"message": "hi"})
	assert.Error(t, err)
	assert.True(t, sender.closed)
}

func TestRegistry_TouchRefreshesAuthenticatedPresence(t *testing.T) {
	presence := new(MockPresenceStore)
	reg := NewRegistry(presence, nil)
	userID := uuid.New()
	presence.On("SetOnline", mock.Anything, userID, domain.ConnID("c1")).Return(nil)
	presence.On("Refresh", mock.Anything, userID).Return(nil).Once()

	reg.Register(context.Background(), domain.ConnInfo{ConnID: "c1", UserID: userID}, &fakeSender{})
	reg.Register(context.Background(), domain.ConnInfo{ConnID: "anon"}, &fakeSender{})

	reg.Touch(context.Background(), "c1")
	reg.Touch(context.Background(), "anon")
	reg.Touch(context.Background(), "gone")

	presence.AssertExpectations(t)
}
