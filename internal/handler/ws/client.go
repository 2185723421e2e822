package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"gufagu-backend/internal/domain"
	"gufagu-backend/pkg/constants"
	"gufagu-backend/pkg/logger"
)

// Client is one live websocket connection
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	info domain.ConnInfo

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(h *Hub, conn *websocket.Conn, info domain.ConnInfo) *Client {
	return &Client{
		hub:  h,
		conn: conn,
		info: info,
		send: make(chan []byte, h.cfg.SendBufferSize),
		done: make(chan struct{}),
	}
}

// Send queues a frame without blocking
func (c *Client) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close stops the write pump, which closes the socket and ends the read pump
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// readPump reads frames and dispatches them one at a time, which keeps
// per-connection ordering.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.registry.Unregister(ctx, c.info.ConnID)
		c.Close()
		c.conn.Close()
		logger.FromContext(ctx).Info("Realtime connection closed")
	}()

	pongWait := c.hub.cfg.PingInterval + c.hub.cfg.PingInterval/2
	c.conn.SetReadLimit(c.hub.cfg.MaxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.hub.registry.Touch(ctx, c.info.ConnID)
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.FromContext(ctx).Debug("WebSocket connection closed unexpectedly", zap.Error(err))
			}
			return
		}
		c.hub.dispatch(ctx, c.info, message)
	}
}

// writePump writes queued frames and keeps the connection alive with pings
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
