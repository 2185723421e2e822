package call

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gufagu-backend/internal/domain"
	apperrors "gufagu-backend/pkg/errors"
)

// MockHistory is a mock implementation of History
type MockHistory struct {
	mock.Mock
}

func (m *MockHistory) GetByID(ctx context.Context, callID string) (*domain.Call, error) {
	args := m.Called(ctx, callID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Call), args.Error(1)
}

func (m *MockHistory) GetUserCalls(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Call, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Call), args.Error(1)
}

type liveCalls map[string]*domain.Call

func (l liveCalls) Active(callID string) (*domain.Call, bool) {
	c, ok := l[callID]
	return c, ok
}

var (
	alice = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	bob   = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	carol = uuid.MustParse("33333333-3333-3333-3333-333333333333")
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func serve(h *Handler, as uuid.UUID, method, target string) (*httptest.ResponseRecorder, envelope) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if as != uuid.Nil {
			c.Set("user_id", as)
		}
		c.Next()
	})
	r.GET("/v1/calls", h.ListCalls)
	r.GET("/v1/calls/:id", h.GetCall)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, nil))

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func record(id string, status domain.CallStatus) *domain.Call {
	return &domain.Call{
		CallID:     id,
		CallerID:   alice,
		ReceiverID: bob,
		CallType:   domain.CallTypeVoice,
		Status:     status,
		StartedAt:  time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestListCalls_Paginates(t *testing.T) {
	history := new(MockHistory)
	h := NewHandler(history, nil)
	history.On("GetUserCalls", mock.Anything, bob, 3, 2).
		Return([]*domain.Call{record("c1", domain.CallStatusEnded), record("c2", domain.CallStatusMissed), record("c3", domain.CallStatusDeclined)}, nil)

	w, env := serve(h, bob, http.MethodGet, "/v1/calls?page=2&limit=2")

	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Page    int            `json:"page"`
		HasMore bool           `json:"has_more"`
		Data    []*domain.Call `json:"data"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, 2, page.Page)
	assert.True(t, page.HasMore)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "c1", page.Data[0].CallID)
	history.AssertExpectations(t)
}

func TestListCalls_Errors(t *testing.T) {
	history := new(MockHistory)
	h := NewHandler(history, nil)

	w, _ := serve(h, uuid.Nil, http.MethodGet, "/v1/calls")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = serve(h, bob, http.MethodGet, "/v1/calls?page=x")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	history.On("GetUserCalls", mock.Anything, bob, 21, 0).Return(nil, errors.New("connection reset"))
	w, env := serve(h, bob, http.MethodGet, "/v1/calls")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INTERNAL_ERROR", env.Error.Code)
}

func TestGetCall(t *testing.T) {
	history := new(MockHistory)
	live := liveCalls{"ringing": record("ringing", domain.CallStatusRinging)}
	h := NewHandler(history, live)
	history.On("GetByID", mock.Anything, "done").Return(record("done", domain.CallStatusEnded), nil)
	history.On("GetByID", mock.Anything, "nope").Return(nil, apperrors.CallNotFoundError())

	tests := []struct {
		name       string
		as         uuid.UUID
		id         string
		wantStatus int
		wantCall   domain.CallStatus
	}{
		{"live call from memory", bob, "ringing", http.StatusOK, domain.CallStatusRinging},
		{"finished call from history", alice, "done", http.StatusOK, domain.CallStatusEnded},
		{"outsider", carol, "done", http.StatusForbidden, ""},
		{"unknown", alice, "nope", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := serve(h, tt.as, http.MethodGet, "/v1/calls/"+tt.id)
			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCall == "" {
				return
			}
			var got domain.Call
			require.NoError(t, json.Unmarshal(env.Data, &got))
			assert.Equal(t, tt.wantCall, got.Status)
		})
	}

	history.AssertNotCalled(t, "GetByID", mock.Anything, "ringing")
}
