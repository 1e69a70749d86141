// Package stream implements Server-Sent Events (SSE) streaming of scene
// frames. Clients connect via GET /api/v1/stream/frames and receive the
// latest frame published by the session loop at the requested interval.
//
// SSE message format:
//
//	data: {"type":"frame","seq":42,"t":1234.5,"speed":0.5,"camera":{...},"nodes":[...]}\n\n
//
// First message is always metadata:
//
//	data: {"type":"metadata","bodies":9,"nodes":19,"interval_ms":33}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval when no frame
// changed. Reconnecting clients receive a fresh metadata message on each
// connection.
package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/star/orrery/internal/body"
	"github.com/star/orrery/internal/httputil"
	"github.com/star/orrery/internal/metrics"
	"github.com/star/orrery/internal/session"
)

// Config holds streaming configuration loaded from environment variables.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	MaxTotal           int           // Max concurrent streams overall (default: 1000).
	BandwidthLimit     int           // Bytes per second per stream (default: 1048576).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 30s).
	DefaultInterval    time.Duration // Frame interval when the client gives none (default: 33ms).
	TrustProxy         bool          // Honour X-Forwarded-For for the per-IP limit.
}

// Interval bounds accepted from the ?interval= query parameter, in ms.
const (
	minIntervalMs = 16
	maxIntervalMs = 1000
)

// FrameSource supplies the most recent frame.
type FrameSource interface {
	Latest() *session.Frame
}

// Handler manages SSE streaming connections.
type Handler struct {
	source  FrameSource
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger
}

// NewHandler creates a new streaming handler.
func NewHandler(source FrameSource, config Config, logger *slog.Logger) *Handler {
	if config.DefaultInterval <= 0 {
		config.DefaultInterval = 33 * time.Millisecond
	}
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	if config.MaxTotal <= 0 {
		config.MaxTotal = 1000
	}
	return &Handler{
		source:  source,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP, config.MaxTotal),
		logger:  logger,
	}
}

// HandleFrames serves the SSE frame stream.
// GET /api/v1/stream/frames?interval=33
func (h *Handler) HandleFrames(w http.ResponseWriter, r *http.Request) {
	interval := h.config.DefaultInterval
	if v := r.URL.Query().Get("interval"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < minIntervalMs || n > maxIntervalMs {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("invalid interval parameter, must be %d-%d", minIntervalMs, maxIntervalMs))
			return
		}
		interval = time.Duration(n) * time.Millisecond
	}

	// Rate limiting: enforce concurrent stream limit per IP.
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	release, reason := h.limiter.acquire(ip)
	if release == nil {
		perIP, total := h.limiter.count(ip)
		metrics.IncStreamErrors(reason)
		h.logger.Warn("stream limit exceeded",
			"remote_ip", ip,
			"reason", reason,
			"ip_streams", perIP,
			"total_streams", total,
		)
		w.Header().Set("Retry-After", "30")
		if reason == limitTotal {
			writeError(w, http.StatusTooManyRequests, "server is at its stream capacity")
		} else {
			writeError(w, http.StatusTooManyRequests, "too many concurrent streams")
		}
		return
	}

	metrics.IncStreamConnections("connect")
	metrics.IncStreamsActive()

	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"interval_ms", interval.Milliseconds(),
	)

	defer func() {
		release()
		metrics.IncStreamConnections("disconnect")
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Clear the server's default WriteTimeout for this long-lived connection.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	ctx := r.Context()
	c := &client{
		w:       w,
		flusher: flusher,
		rc:      rc,
		ip:      ip,
		ctx:     ctx,
		logger:  h.logger,
	}
	if h.config.BandwidthLimit > 0 {
		c.bandwidth = rate.NewLimiter(rate.Limit(h.config.BandwidthLimit), h.config.BandwidthLimit)
	}

	// Jittered retry interval (3-7s) so a server restart does not bring every
	// client back at once.
	retryMs := 3000 + rand.Intn(4000)
	fmt.Fprintf(w, "retry: %d\n\n", retryMs)
	flusher.Flush()

	latest := h.source.Latest()
	meta := metadataMessage{
		Type:       "metadata",
		Bodies:     body.Count,
		IntervalMs: interval.Milliseconds(),
	}
	if latest != nil {
		meta.Nodes = len(latest.Nodes)
	}
	if err := c.sendJSON(meta); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	keepaliveTicker := time.NewTicker(h.config.KeepaliveInterval)
	defer keepaliveTicker.Stop()

	var lastSeq uint64
	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			f := h.source.Latest()
			if f == nil || f.Seq == lastSeq {
				continue
			}
			lastSeq = f.Seq

			data, err := json.Marshal(frameMessage{Type: "frame", Frame: f})
			if err != nil {
				metrics.IncStreamErrors("marshal_error")
				h.logger.Warn("stream marshal error", "remote_ip", ip, "error", err)
				continue
			}
			if err := c.sendRaw(data); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
				return
			}

			keepaliveTicker.Reset(h.config.KeepaliveInterval)

		case <-keepaliveTicker.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// SSE message payload types.

type metadataMessage struct {
	Type       string `json:"type"`
	Bodies     int    `json:"bodies"`
	Nodes      int    `json:"nodes"`
	IntervalMs int64  `json:"interval_ms"`
}

type frameMessage struct {
	Type string `json:"type"`
	*session.Frame
}
