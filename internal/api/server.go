package api

import (
	"bufio"
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/star/orrery/internal/auth"
	"github.com/star/orrery/internal/health"
	"github.com/star/orrery/internal/metrics"
	"github.com/star/orrery/internal/session"
	"github.com/star/orrery/internal/stream"
)

// Config holds what the server needs beyond the session.
type Config struct {
	Addr      string
	Auth      auth.Config
	Web       fs.FS  // Embedded frontend, served at /.
	Assets    fs.FS  // Optional local texture and sound tree, served at /assets/.
	AssetBase string // Prefix for asset paths in the browser; empty means same origin.
	Stream    *stream.Handler
	WS        http.Handler // Websocket control channel.
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(cfg Config, sess *session.Session, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           NewHandler(cfg, sess, logger),
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// NewHandler builds the routed handler with its middleware chain.
func NewHandler(cfg Config, sess *session.Session, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	h := &handlers{session: sess, assetBase: cfg.AssetBase, logger: logger}

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(sess.Ready))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/bodies", h.listBodies)
	mux.HandleFunc("GET /api/v1/bodies/{id}", h.getBody)
	mux.HandleFunc("GET /api/v1/bodies/{id}/curiosity", h.getCuriosity)
	mux.HandleFunc("GET /api/v1/state", h.getState)
	mux.HandleFunc("GET /api/v1/help", h.getHelp)
	mux.HandleFunc("GET /api/v1/client", h.getClient)
	mux.HandleFunc("POST /api/v1/speed", h.setSpeed)
	mux.HandleFunc("POST /api/v1/select/{id}", h.selectBody)
	mux.HandleFunc("POST /api/v1/pick", h.pick)
	mux.HandleFunc("POST /api/v1/reset", h.reset)
	mux.HandleFunc("POST /api/v1/audio/toggle", h.toggleAudio)

	if cfg.Stream != nil {
		mux.HandleFunc("GET /api/v1/stream/frames", cfg.Stream.HandleFrames)
	}
	if cfg.WS != nil {
		mux.Handle("GET /api/v1/ws", cfg.WS)
	}
	if cfg.Assets != nil {
		mux.Handle("GET /assets/", http.FileServerFS(cfg.Assets))
	}
	if cfg.Web != nil {
		mux.Handle("GET /", http.FileServerFS(cfg.Web))
	}

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(cfg.Auth)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = metrics.Middleware(handler)
	return handler
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the connection through the
// recorder (flushing, write deadlines, websocket hijacking).
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := sr.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}
