package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/star/orrery/internal/metrics"
)

// client manages a single SSE connection's write operations.
type client struct {
	w         http.ResponseWriter
	flusher   http.Flusher
	rc        *http.ResponseController
	ip        string
	ctx       context.Context
	bandwidth *rate.Limiter // nil means unlimited
	logger    *slog.Logger

	messagesSent int64
	bytesSent    int64
}

// sendJSON marshals v as JSON and sends it as an SSE "data:" message.
func (c *client) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	return c.sendRaw(data)
}

// sendRaw sends pre-encoded JSON as an SSE message.
// SSE format: "data: {json}\n\n"
func (c *client) sendRaw(data []byte) error {
	if err := c.throttle(len(data) + 8); err != nil {
		return err
	}

	// Extend write deadline before each write to prevent timeout on long-lived connections.
	if err := c.rc.SetWriteDeadline(time.Now().Add(30 * time.Second)); err != nil {
		c.logger.Debug("could not set write deadline", "error", err)
	}

	n, err := fmt.Fprintf(c.w, "data: %s\n\n", data)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}

	c.flusher.Flush()
	c.messagesSent++
	c.bytesSent += int64(n)
	metrics.IncStreamMessages()
	metrics.AddStreamBytes(int64(n))

	return nil
}

// throttle waits until the per-stream byte budget allows n more bytes.
func (c *client) throttle(n int) error {
	if c.bandwidth == nil {
		return nil
	}
	if burst := c.bandwidth.Burst(); n > burst {
		n = burst
	}
	if err := c.bandwidth.WaitN(c.ctx, n); err != nil {
		return fmt.Errorf("bandwidth wait: %w", err)
	}
	return nil
}

// sendKeepalive sends an SSE comment line to keep the connection alive.
// SSE comment format: ":\n\n"
func (c *client) sendKeepalive() error {
	if err := c.rc.SetWriteDeadline(time.Now().Add(30 * time.Second)); err != nil {
		c.logger.Debug("could not set write deadline", "error", err)
	}

	n, err := fmt.Fprint(c.w, ":\n\n")
	if err != nil {
		return fmt.Errorf("keepalive write: %w", err)
	}

	c.flusher.Flush()
	c.bytesSent += int64(n)
	metrics.AddStreamBytes(int64(n))

	return nil
}
