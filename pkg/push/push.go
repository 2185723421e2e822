package push

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gufagu-backend/pkg/logger"
	"gufagu-backend/pkg/metrics"
)

// Provider defines interface for sending push notifications
type Provider interface {
	Send(ctx context.Context, notification *Notification, tokens []string) (*SendResult, error)
}

// SendResult contains the result of a push notification send operation
type SendResult struct {
	SuccessCount  int
	FailureCount  int
	InvalidTokens []string
}

// Notification represents a push notification
type Notification struct {
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
	Priority string            `json:"priority,omitempty"` // high, normal
	Sound    string            `json:"sound,omitempty"`
	Category string            `json:"category,omitempty"`
}

// MissedCall describes the call a missed-call notification refers to
type MissedCall struct {
	CallID     string
	CallerID   uuid.UUID
	CallerName string
	CallType   string
}

// Token represents a push notification token registered for a user
type Token struct {
	UserID    uuid.UUID `json:"user_id"`
	Token     string    `json:"token"`
	Platform  string    `json:"platform,omitempty"` // ios, android, web
	Active    bool      `json:"active"`
	UpdatedAt int64     `json:"updated_at"`
}

// TokenRepository is the read side of the device token store
type TokenRepository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]*Token, error)
	MarkInactive(ctx context.Context, token string) error
}

// Service handles push notification operations
type Service struct {
	provider Provider
	repo     TokenRepository
	metrics  *metrics.Metrics
}

// NewService creates a new push notification service
func NewService(provider Provider, repo TokenRepository, m *metrics.Metrics) *Service {
	return &Service{
		provider: provider,
		repo:     repo,
		metrics:  m,
	}
}

// SendMissedCallNotification tells the callee's devices about a call they did not pick up
func (s *Service) SendMissedCallNotification(ctx context.Context, call *MissedCall, calleeID uuid.UUID) error {
	notification := &Notification{
		Title:    "Missed Call",
		Body:     fmt.Sprintf("You missed a %s call from %s", call.CallType, call.CallerName),
		Priority: "normal",
		Sound:    "default",
		Category: "MISSED_CALL",
		Data: map[string]string{
			"type":        "missed_call",
			"call_id":     call.CallID,
			"caller_id":   call.CallerID.String(),
			"caller_name": call.CallerName,
			"call_type":   call.CallType,
		},
	}

	return s.sendToUser(ctx, "missed_call", notification, calleeID)
}

func (s *Service) sendToUser(ctx context.Context, kind string, notification *Notification, userID uuid.UUID) error {
	tokens, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		s.metrics.RecordPushNotificationFailure(kind)
		return fmt.Errorf("failed to get push tokens: %w", err)
	}

	var active []string
	for _, token := range tokens {
		if token.Active {
			active = append(active, token.Token)
		}
	}

	if len(active) == 0 {
		logger.Debug("No active push tokens for user",
			zap.String("user_id", userID.String()),
			zap.String("type", kind))
		return nil
	}

	result, err := s.provider.Send(ctx, notification, active)
	if err != nil {
		s.metrics.RecordPushNotificationFailure(kind)
		return fmt.Errorf("failed to send %s notification: %w", kind, err)
	}

	s.metrics.RecordPushNotification(kind)
	logger.Info("Push notification sent",
		zap.String("type", kind),
		zap.String("user_id", userID.String()),
		zap.Int("success_count", result.SuccessCount),
		zap.Int("failure_count", result.FailureCount))

	for _, token := range result.InvalidTokens {
		if err := s.repo.MarkInactive(ctx, token); err != nil {
			logger.Warn("Failed to mark token as inactive", zap.Error(err))
		}
	}

	return nil
}

// MockProvider records notifications instead of delivering them
type MockProvider struct {
	mu   sync.Mutex
	Sent []*Notification
}

// Send implements Provider interface
func (m *MockProvider) Send(_ context.Context, notification *Notification, tokens []string) (*SendResult, error) {
	m.mu.Lock()
	m.Sent = append(m.Sent, notification)
	m.mu.Unlock()

	logger.Debug("MockProvider: Sending notification",
		zap.String("title", notification.Title),
		zap.Int("token_count", len(tokens)))

	return &SendResult{SuccessCount: len(tokens)}, nil
}

// Count returns how many notifications were sent
func (m *MockProvider) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}
