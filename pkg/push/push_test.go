package push

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockTokenRepository is a mock implementation of TokenRepository
type MockTokenRepository struct {
	mock.Mock
}

func (m *MockTokenRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]*Token, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Token), args.Error(1)
}

func (m *MockTokenRepository) MarkInactive(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

// MockSender is a mock implementation of Provider
type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, notification *Notification, tokens []string) (*SendResult, error) {
	args := m.Called(ctx, notification, tokens)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SendResult), args.Error(1)
}

var (
	callee = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	missed = &MissedCall{
		CallID:     "call_1",
		CallerID:   uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		CallerName: "Alice",
		CallType:   "video",
	}
)

func TestSendMissedCallNotification(t *testing.T) {
	repo := new(MockTokenRepository)
	provider := &MockProvider{}
	svc := NewService(provider, repo, nil)
	repo.On("GetByUserID", mock.Anything, callee).Return([]*Token{
		{UserID: callee, Token: "phone", Active: true},
		{UserID: callee, Token: "old-tablet", Active: false},
	}, nil)

	require.NoError(t, svc.SendMissedCallNotification(context.Background(), missed, callee))

	require.Equal(t, 1, provider.Count())
	sent := provider.Sent[0]
	assert.Equal(t, "Missed Call", sent.Title)
	assert.Equal(t, "You missed a video call from Alice", sent.Body)
	assert.Equal(t, "missed_call", sent.Data["type"])
	assert.Equal(t, "call_1", sent.Data["call_id"])
}

func TestSendMissedCallNotification_OnlyActiveTokensAndPruning(t *testing.T) {
	repo := new(MockTokenRepository)
	provider := new(MockSender)
	svc := NewService(provider, repo, nil)
	repo.On("GetByUserID", mock.Anything, callee).Return([]*Token{
		{Token: "phone", Active: true},
		{Token: "stale", Active: true},
		{Token: "off", Active: false},
	}, nil)
	provider.On("Send", mock.Anything, mock.Anything, []string{"phone", "stale"}).
		Return(&SendResult{SuccessCount: 1, FailureCount: 1, InvalidTokens: []string{"stale"}}, nil)
	repo.On("MarkInactive", mock.Anything, "stale").Return(nil).Once()

	require.NoError(t, svc.SendMissedCallNotification(context.Background(), missed, callee))

	provider.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestSendMissedCallNotification_NoTokens(t *testing.T) {
	repo := new(MockTokenRepository)
	provider := new(MockSender)
	svc := NewService(provider, repo, nil)
	repo.On("GetByUserID", mock.Anything, callee).Return([]*Token{}, nil)

	require.NoError(t, svc.SendMissedCallNotification(context.Background(), missed, callee))

	provider.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendMissedCallNotification_Failures(t *testing.T) {
	repo := new(MockTokenRepository)
	provider := new(MockSender)
	svc := NewService(provider, repo, nil)

	repo.On("GetByUserID", mock.Anything, callee).Return(nil, errors.New("redis down")).Once()
	err := svc.SendMissedCallNotification(context.Background(), missed, callee)
	assert.ErrorContains(t, err, "failed to get push tokens")

	repo.On("GetByUserID", mock.Anything, callee).Return([]*Token{{Token: "phone", Active: true}}, nil)
	provider.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("fcm unavailable"))
	err = svc.SendMissedCallNotification(context.Background(), missed, callee)
	assert.ErrorContains(t, err, "failed to send missed_call notification")
}
