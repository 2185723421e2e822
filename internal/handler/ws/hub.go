// Package ws serves the realtime websocket endpoint and routes inbound events
// to the matching, session and call components.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"gufagu-backend/internal/domain"
	"gufagu-backend/internal/middleware"
	"gufagu-backend/internal/service/connection"
	"gufagu-backend/pkg/constants"
	apperrors "gufagu-backend/pkg/errors"
	"gufagu-backend/pkg/logger"
	"gufagu-backend/pkg/metrics"
	"gufagu-backend/pkg/response"
	"gufagu-backend/pkg/sanitize"
)

// Registry is the connection registry as seen by the hub
type Registry interface {
	Register(ctx context.Context, info domain.ConnInfo, sender connection.Sender)
	Unregister(ctx context.Context, conn domain.ConnID) bool
	Touch(ctx context.Context, conn domain.ConnID)
	Send(conn domain.ConnID, event string, data any) error
	OnDisconnect(listener connection.DisconnectListener)
}

// Matchmaker covers the matching queue and match session operations
type Matchmaker interface {
	Join(ctx context.Context, info domain.ConnInfo, interests []string) error
	Leave(ctx context.Context, conn domain.ConnID)
	Skip(ctx context.Context, conn domain.ConnID) error
	End(ctx context.Context, conn domain.ConnID) error
	Report(ctx context.Context, conn domain.ConnID, reason string) error
	Chat(ctx context.Context, conn, to domain.ConnID, text string) error
	Typing(ctx context.Context, conn, to domain.ConnID, event string) error
	Relay(ctx context.Context, conn, to domain.ConnID, event string, payload json.RawMessage) error
	UpdateQuality(ctx context.Context, conn domain.ConnID, quality string) error
	Disconnect(ctx context.Context, conn domain.ConnID)
}

// CallControl covers the friend call operations
type CallControl interface {
	Initiate(ctx context.Context, caller domain.ConnInfo, calleeID uuid.UUID, callType domain.CallType) (string, error)
	Accept(ctx context.Context, callID string, responder domain.ConnInfo) error
	Decline(ctx context.Context, callID string, responder domain.ConnInfo) error
	End(ctx context.Context, callID string, party domain.ConnInfo) error
	Relay(ctx context.Context, from domain.ConnInfo, to domain.ConnID, event string, payload json.RawMessage) error
	Disconnect(ctx context.Context, info domain.ConnInfo)
}

// Config holds per-connection limits
type Config struct {
	MaxConnections int
	SendBufferSize int
	MaxFrameSize   int64
	PingInterval   time.Duration
}

// Hub accepts realtime connections and owns their read/write pumps
type Hub struct {
	registry Registry
	matching Matchmaker
	calls    CallControl
	auth     *middleware.Authenticator
	metrics  *metrics.Metrics
	validate *validator.Validate
	cfg      Config

	upgrader websocket.Upgrader
	// semaphore caps concurrent connections
	semaphore chan struct{}
	wg        sync.WaitGroup
}

// Deps groups the hub's collaborators
type Deps struct {
	Registry      Registry
	Matching      Matchmaker
	Calls         CallControl
	Authenticator *middleware.Authenticator
	Origins       middleware.OriginChecker
	Metrics       *metrics.Metrics
}

// NewHub creates the hub and subscribes matching and calls to disconnects
func NewHub(deps Deps, cfg Config) *Hub {
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = constants.DefaultMaxConnections
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = constants.SendBufferSize
	}
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = constants.MaxFrameSize
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = constants.WebSocketPingInterval
	}

	origins := deps.Origins
	if origins == nil {
		origins = func(string) bool { return false }
	}

	h := &Hub{
		registry:  deps.Registry,
		matching:  deps.Matching,
		calls:     deps.Calls,
		auth:      deps.Authenticator,
		metrics:   deps.Metrics,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		cfg:       cfg,
		semaphore: make(chan struct{}, cfg.MaxConnections),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// native clients send no origin
				return origin == "" || origins(origin)
			},
		},
	}

	h.registry.OnDisconnect(func(ctx context.Context, info domain.ConnInfo) {
		h.matching.Disconnect(ctx, info.ConnID)
	})
	h.registry.OnDisconnect(func(ctx context.Context, info domain.ConnInfo) {
		h.calls.Disconnect(ctx, info)
	})

	return h
}

// ServeWS upgrades the request. A token (query parameter or bearer header)
// binds the connection to an identity; without one it stays anonymous.
func (h *Hub) ServeWS(c *gin.Context) {
	select {
	case h.semaphore <- struct{}{}:
	default:
		logger.Warn("WebSocket connection rejected: max connections reached",
			zap.Int("max_connections", h.cfg.MaxConnections))
		response.FromError(c, apperrors.ServiceUnavailableError("Server at capacity, please try again later"))
		return
	}
	release := func() { <-h.semaphore }

	info := domain.ConnInfo{
		ConnID:      domain.NewConnID(),
		DisplayName: constants.AnonymousDisplayName,
		ConnectedAt: time.Now(),
	}

	token := c.Query("token")
	if token == "" {
		token, _ = middleware.BearerToken(c.GetHeader("Authorization"))
	}
	if token != "" {
		claims, err := h.auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			release()
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}
		info.UserID = claims.UserID
		if name := sanitize.Line(claims.Name()); name != "" {
			info.DisplayName = name
		}
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		release()
		logger.Warn("WebSocket upgrade failed",
			zap.String("user_id", info.UserID.String()),
			zap.Error(err))
		return
	}

	client := newClient(h, conn, info)
	ctx := logger.WithConnID(context.Background(), info.ConnID.String())

	h.registry.Register(ctx, info, client)
	_ = h.registry.Send(info.ConnID, domain.EventConnected, domain.Connected{
		ConnID:        info.ConnID,
		UserID:        info.UserID,
		Authenticated: info.IsAuthenticated(),
	})

	logger.FromContext(ctx).Info("Realtime connection opened",
		zap.String("user_id", info.UserID.String()),
		zap.Bool("authenticated", info.IsAuthenticated()))

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		defer release()
		client.readPump(ctx)
	}()
}

// Wait blocks until every pump has exited or ctx ends
func (h *Hub) Wait(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
