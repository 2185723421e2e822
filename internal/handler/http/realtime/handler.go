package realtime

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gufagu-backend/internal/service/call"
	"gufagu-backend/internal/service/matching"
	"gufagu-backend/pkg/logger"
	"gufagu-backend/pkg/response"
)

// MatchStats reports the matching layer's live counters
type MatchStats interface {
	Stats() matching.Stats
}

// CallStats reports the call layer's live counters
type CallStats interface {
	Stats() call.Stats
}

// ConnCounter reports the number of live connections
type ConnCounter interface {
	Count() int
}

// OnlineCounter counts accounts online across every instance
type OnlineCounter interface {
	OnlineCount(ctx context.Context) (int64, error)
}

// QueueCounter counts waiting backing records across every instance
type QueueCounter interface {
	Count(ctx context.Context) (int64, error)
}

// StatsResponse is the body of the realtime stats endpoint. Cluster-wide
// counters are omitted when their store cannot be read.
type StatsResponse struct {
	Connections    int    `json:"connections"`
	Waiting        int    `json:"waiting"`
	ActiveMatches  int    `json:"activeMatches"`
	ActiveCalls    int    `json:"activeCalls"`
	OnlineAccounts *int64 `json:"onlineAccounts,omitempty"`
	QueuedCluster  *int64 `json:"queuedCluster,omitempty"`
}

// Handler serves live realtime counters
type Handler struct {
	matches MatchStats
	calls   CallStats
	conns   ConnCounter
	online  OnlineCounter
	queue   QueueCounter
}

// NewHandler creates a new stats handler. online and queue may be nil.
func NewHandler(matches MatchStats, calls CallStats, conns ConnCounter, online OnlineCounter, queue QueueCounter) *Handler {
	return &Handler{
		matches: matches,
		calls:   calls,
		conns:   conns,
		online:  online,
		queue:   queue,
	}
}

// Stats returns the current counters
// GET /v1/realtime/stats
func (h *Handler) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	m := h.matches.Stats()
	resp := StatsResponse{
		Connections:   h.conns.Count(),
		Waiting:       m.Waiting,
		ActiveMatches: m.ActiveMatches,
		ActiveCalls:   h.calls.Stats().ActiveCalls,
	}

	if h.online != nil {
		if n, err := h.online.OnlineCount(ctx); err == nil {
			resp.OnlineAccounts = &n
		} else {
			logger.FromContext(ctx).Warn("Failed to count online accounts", zap.Error(err))
		}
	}
	if h.queue != nil {
		if n, err := h.queue.Count(ctx); err == nil {
			resp.QueuedCluster = &n
		} else {
			logger.FromContext(ctx).Warn("Failed to count queue entries", zap.Error(err))
		}
	}

	response.Success(c, http.StatusOK, resp)
}
