package control

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// connection owns one websocket. Only writeLoop writes to ws; everything else
// goes through send.
type connection struct {
	ws      *websocket.Conn
	send    chan any
	limiter *rate.Limiter
	config  Config
	logger  *slog.Logger
}

func newConnection(ws *websocket.Conn, config Config, logger *slog.Logger) *connection {
	c := &connection{
		ws:      ws,
		send:    make(chan any, 128),
		limiter: rate.NewLimiter(rate.Limit(config.CommandRate), config.CommandBurst),
		config:  config,
		logger:  logger,
	}

	pongWait := config.PingInterval * 2
	ws.SetReadLimit(config.MaxMessageBytes)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	return c
}

// enqueue hands v to the writer. A full queue drops the message.
func (c *connection) enqueue(v any) {
	select {
	case c.send <- v:
	default:
		c.logger.Debug("control send queue full, message dropped")
	}
}

// writeLoop drains send until ctx is cancelled or a write fails. It closes
// the socket on exit, which also unblocks the reader.
func (c *connection) writeLoop(ctx context.Context) {
	ping := time.NewTicker(c.config.PingInterval)
	defer func() {
		ping.Stop()
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.ws.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case v := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.ws.WriteJSON(v); err != nil {
				c.logger.Debug("control write failed", "error", err)
				return
			}
		case <-ping.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.config.WriteTimeout)); err != nil {
				c.logger.Debug("control ping failed", "error", err)
				return
			}
		}
	}
}
