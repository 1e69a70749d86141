package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orrery_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orrery_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	framesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orrery_frames_total",
		Help: "Animation frames stepped by the session loop.",
	})

	frameDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "orrery_frame_duration_seconds",
		Help:    "Time spent stepping, syncing and snapshotting one frame.",
		Buckets: []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .025},
	})

	clampedFramesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orrery_frames_clamped_total",
		Help: "Frames whose elapsed time exceeded the step clamp.",
	})

	droppedCommandsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orrery_session_commands_dropped_total",
		Help: "Queued session work dropped because the command queue was full.",
	})

	picksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orrery_picks_total",
			Help: "Pointer picks by outcome.",
		},
		[]string{"outcome"},
	)

	selectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orrery_selection_transitions_total",
			Help: "Selection state transitions.",
		},
		[]string{"transition"},
	)

	speedMultiplier = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orrery_speed_multiplier",
		Help: "Current global speed multiplier.",
	})

	assetLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orrery_asset_loads_total",
			Help: "Asset loads by kind and result.",
		},
		[]string{"kind", "result"},
	)

	assetLoadDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orrery_asset_load_duration_seconds",
			Help:    "Asset load duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orrery_stream_connections_total",
			Help: "SSE stream connection events.",
		},
		[]string{"event"},
	)

	streamsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orrery_streams_active",
		Help: "Currently connected SSE clients.",
	})

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orrery_stream_errors_total",
			Help: "SSE stream errors by reason.",
		},
		[]string{"reason"},
	)

	streamMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orrery_stream_messages_total",
		Help: "SSE messages sent.",
	})

	streamBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orrery_stream_bytes_total",
		Help: "SSE bytes sent.",
	})

	wsConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orrery_ws_connections_active",
		Help: "Currently connected control websocket clients.",
	})

	wsCommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orrery_ws_commands_total",
			Help: "Control commands received over websocket by type and result.",
		},
		[]string{"type", "result"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		framesTotal,
		frameDurationSeconds,
		clampedFramesTotal,
		droppedCommandsTotal,
		picksTotal,
		selectionsTotal,
		speedMultiplier,
		assetLoadsTotal,
		assetLoadDurationSeconds,
		streamConnectionsTotal,
		streamsActive,
		streamErrorsTotal,
		streamMessagesTotal,
		streamBytesTotal,
		wsConnectionsActive,
		wsCommandsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFrame records one stepped frame.
func ObserveFrame(d time.Duration, clamped bool) {
	framesTotal.Inc()
	frameDurationSeconds.Observe(d.Seconds())
	if clamped {
		clampedFramesTotal.Inc()
	}
}

func IncPicks(outcome string)         { picksTotal.WithLabelValues(outcome).Inc() }
func IncSelections(transition string) { selectionsTotal.WithLabelValues(transition).Inc() }
func SetSpeedMultiplier(v float64)    { speedMultiplier.Set(v) }
func IncDroppedCommands()             { droppedCommandsTotal.Inc() }

// ObserveAssetLoad records a texture or audio load.
func ObserveAssetLoad(kind, result string, d time.Duration) {
	assetLoadsTotal.WithLabelValues(kind, result).Inc()
	assetLoadDurationSeconds.WithLabelValues(kind).Observe(d.Seconds())
}

func IncStreamConnections(event string) { streamConnectionsTotal.WithLabelValues(event).Inc() }
func IncStreamsActive()                 { streamsActive.Inc() }
func DecStreamsActive()                 { streamsActive.Dec() }
func IncStreamErrors(reason string)     { streamErrorsTotal.WithLabelValues(reason).Inc() }
func IncStreamMessages()                { streamMessagesTotal.Inc() }
func AddStreamBytes(n int64)            { streamBytesTotal.Add(float64(n)) }

func IncWSConnections()                    { wsConnectionsActive.Inc() }
func DecWSConnections()                    { wsConnectionsActive.Dec() }
func IncWSCommands(cmdType, result string) { wsCommandsTotal.WithLabelValues(cmdType, result).Inc() }

// knownRoutes are exact paths recorded under their own label.
var knownRoutes = map[string]bool{
	"/":                     true,
	"/healthz":              true,
	"/readyz":               true,
	"/metrics":              true,
	"/api/v1/bodies":        true,
	"/api/v1/state":         true,
	"/api/v1/speed":         true,
	"/api/v1/pick":          true,
	"/api/v1/reset":         true,
	"/api/v1/audio/toggle":  true,
	"/api/v1/help":          true,
	"/api/v1/client":        true,
	"/api/v1/stream/frames": true,
	"/api/v1/ws":            true,
	"/index.html":           true,
	"/app.js":               true,
	"/styles.css":           true,
}

// normalizeRoute maps a request path to a bounded set of labels so bots and
// per-body paths cannot blow up series cardinality.
func normalizeRoute(p string) string {
	if knownRoutes[p] {
		return p
	}
	if rest, ok := strings.CutPrefix(p, "/api/v1/bodies/"); ok && rest != "" {
		if strings.HasSuffix(rest, "/curiosity") && strings.Count(rest, "/") == 1 {
			return "/api/v1/bodies/{id}/curiosity"
		}
		if !strings.Contains(rest, "/") {
			return "/api/v1/bodies/{id}"
		}
	}
	if rest, ok := strings.CutPrefix(p, "/api/v1/select/"); ok && rest != "" && !strings.Contains(rest, "/") {
		return "/api/v1/select/{id}"
	}
	if strings.HasPrefix(p, "/assets/") {
		return "/assets/*"
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Flush keeps SSE working through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets the websocket upgrader take over the connection.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
