// Package control implements the websocket control channel. The browser sends
// JSON commands (clicks, slider moves, camera moves, audio state) and receives
// command acknowledgements plus session events on the same connection.
//
// Inbound message format:
//
//	{"type":"pick","id":"7","x":0.12,"y":-0.4}
//	{"type":"speed","speed":0.75}
//	{"type":"camera","camera":{"position":[0,40,150],"target":[0,0,0],"aspect":1.6}}
//
// Every command gets exactly one "ack" or "error" reply carrying the same id.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gorilla/websocket"

	"github.com/star/orrery/internal/audio"
	"github.com/star/orrery/internal/body"
	"github.com/star/orrery/internal/httputil"
	"github.com/star/orrery/internal/interact"
	"github.com/star/orrery/internal/metrics"
	"github.com/star/orrery/internal/session"
)

// Session is the part of the session the control channel drives.
type Session interface {
	Pick(ctx context.Context, ndc mgl64.Vec2) (interact.Outcome, error)
	Select(ctx context.Context, id body.ID) (interact.Outcome, error)
	SetSpeed(ctx context.Context, v float64) (float64, error)
	ToggleAudio(ctx context.Context) (audio.Action, error)
	AudioResult(ctx context.Context, ok bool) error
	Gesture(ctx context.Context) error
	ResetView(ctx context.Context) error
	UpdateCamera(ctx context.Context, u session.CameraUpdate) error
	Subscribe(buffer int) (<-chan session.Event, func())
}

// Config holds control channel settings loaded from environment variables.
type Config struct {
	CommandRate     float64       // Sustained commands per second per connection (default: 60).
	CommandBurst    int           // Burst allowance (default: 120).
	PingInterval    time.Duration // Server ping period (default: 20s).
	WriteTimeout    time.Duration // Per-message write deadline (default: 10s).
	MaxMessageBytes int64         // Inbound message size limit (default: 4096).
	AllowAnyOrigin  bool          // Skip the origin check (development only).
	AllowedOrigins  []string      // Extra browser origins (scheme://host) besides the serving host.
	TrustProxy      bool          // Log the forwarded client address.
}

func (c *Config) applyDefaults() {
	if c.CommandRate <= 0 {
		c.CommandRate = 60
	}
	if c.CommandBurst <= 0 {
		c.CommandBurst = 120
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 20 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = 4096
	}
}

// Message types.
const (
	TypePick        = "pick"
	TypeSelect      = "select"
	TypeSpeed       = "speed"
	TypeAudioToggle = "audio_toggle"
	TypeAudioResult = "audio_result"
	TypeGesture     = "gesture"
	TypeReset       = "reset"
	TypeCamera      = "camera"
)

// Command is an inbound message.
type Command struct {
	Type   string                `json:"type"`
	ID     string                `json:"id,omitempty"`
	X      float64               `json:"x,omitempty"`
	Y      float64               `json:"y,omitempty"`
	Body   string                `json:"body,omitempty"`
	Speed  *float64              `json:"speed,omitempty"`
	OK     bool                  `json:"ok,omitempty"`
	Camera *session.CameraUpdate `json:"camera,omitempty"`
}

// Reply answers one command.
type Reply struct {
	Type       string   `json:"type"` // "ack" or "error"
	ID         string   `json:"id,omitempty"`
	Command    string   `json:"command"`
	Outcome    string   `json:"outcome,omitempty"`
	Body       string   `json:"body,omitempty"`
	Transition string   `json:"transition,omitempty"`
	Speed      *float64 `json:"speed,omitempty"`
	Action     string   `json:"action,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// commandFunc executes one command type against the session.
type commandFunc func(ctx context.Context, s Session, cmd Command) (Reply, error)

// Handler upgrades requests to websocket control connections.
type Handler struct {
	session  Session
	config   Config
	upgrader websocket.Upgrader
	commands map[string]commandFunc
	logger   *slog.Logger
}

// NewHandler creates a control handler.
func NewHandler(s Session, config Config, logger *slog.Logger) *Handler {
	config.applyDefaults()
	h := &Handler{
		session: s,
		config:  config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		commands: make(map[string]commandFunc),
		logger:   logger,
	}
	h.upgrader.CheckOrigin = func(r *http.Request) bool {
		return config.AllowAnyOrigin || httputil.OriginAllowed(r, config.AllowedOrigins)
	}

	h.register(TypePick, handlePick)
	h.register(TypeSelect, handleSelect)
	h.register(TypeSpeed, handleSpeed)
	h.register(TypeAudioToggle, handleAudioToggle)
	h.register(TypeAudioResult, handleAudioResult)
	h.register(TypeGesture, handleGesture)
	h.register(TypeReset, handleReset)
	h.register(TypeCamera, handleCamera)
	return h
}

func (h *Handler) register(msgType string, fn commandFunc) {
	h.commands[msgType] = fn
}

// ServeHTTP serves GET /api/v1/ws.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response.
		h.logger.Warn("websocket upgrade failed", "remote_ip", ip, "origin", r.Header.Get("Origin"), "error", err)
		return
	}

	metrics.IncWSConnections()
	defer metrics.DecWSConnections()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := newConnection(ws, h.config, h.logger.With("remote_ip", ip))
	h.logger.Info("control connected", "remote_ip", ip)
	start := time.Now()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writeLoop(ctx)
	}()

	events, unsubscribe := h.session.Subscribe(64)
	go func() {
		for e := range events {
			c.enqueue(e)
		}
	}()

	h.readLoop(ctx, c)

	unsubscribe()
	cancel()
	<-done
	h.logger.Info("control disconnected",
		"remote_ip", ip,
		"duration_seconds", int(time.Since(start).Seconds()),
	)
}

func (h *Handler) readLoop(ctx context.Context, c *connection) {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("control read ended", "error", err)
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			metrics.IncWSCommands("invalid", "error")
			c.enqueue(Reply{Type: "error", Command: "invalid", Error: "malformed JSON"})
			continue
		}

		if !c.limiter.Allow() {
			metrics.IncWSCommands(h.label(cmd.Type), "rate_limited")
			c.enqueue(Reply{Type: "error", ID: cmd.ID, Command: cmd.Type, Error: "rate limit exceeded"})
			continue
		}

		c.enqueue(h.execute(ctx, cmd))
	}
}

// label bounds metric cardinality to the registered command types.
func (h *Handler) label(msgType string) string {
	if _, ok := h.commands[msgType]; ok {
		return msgType
	}
	return "unknown"
}

func (h *Handler) execute(ctx context.Context, cmd Command) Reply {
	fn, ok := h.commands[cmd.Type]
	if !ok {
		metrics.IncWSCommands("unknown", "error")
		return Reply{Type: "error", ID: cmd.ID, Command: cmd.Type, Error: fmt.Sprintf("unknown command type %q", cmd.Type)}
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	reply, err := fn(ctx, h.session, cmd)
	if err != nil {
		metrics.IncWSCommands(cmd.Type, "error")
		return Reply{Type: "error", ID: cmd.ID, Command: cmd.Type, Error: err.Error()}
	}
	metrics.IncWSCommands(cmd.Type, "ok")
	reply.Type = "ack"
	reply.ID = cmd.ID
	reply.Command = cmd.Type
	return reply
}

func outcomeReply(out interact.Outcome) Reply {
	r := Reply{Outcome: out.Kind.String()}
	if out.Kind != interact.OutcomeNone {
		r.Body = out.Body.String()
	}
	if out.Kind == interact.OutcomeSelect {
		r.Transition = out.Transition.String()
	}
	return r
}

func handlePick(ctx context.Context, s Session, cmd Command) (Reply, error) {
	if cmd.X < -1 || cmd.X > 1 || cmd.Y < -1 || cmd.Y > 1 {
		return Reply{}, fmt.Errorf("pick coordinates must be in [-1, 1]")
	}
	out, err := s.Pick(ctx, mgl64.Vec2{cmd.X, cmd.Y})
	if err != nil {
		return Reply{}, err
	}
	return outcomeReply(out), nil
}

func handleSelect(ctx context.Context, s Session, cmd Command) (Reply, error) {
	id, err := body.ParseID(cmd.Body)
	if err != nil {
		return Reply{}, err
	}
	out, err := s.Select(ctx, id)
	if err != nil {
		return Reply{}, err
	}
	return outcomeReply(out), nil
}

func handleSpeed(ctx context.Context, s Session, cmd Command) (Reply, error) {
	if cmd.Speed == nil {
		return Reply{}, fmt.Errorf("missing speed")
	}
	if *cmd.Speed < 0 || *cmd.Speed > 1 {
		return Reply{}, fmt.Errorf("speed must be in [0, 1]")
	}
	v, err := s.SetSpeed(ctx, *cmd.Speed)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Speed: &v}, nil
}

func handleAudioToggle(ctx context.Context, s Session, _ Command) (Reply, error) {
	a, err := s.ToggleAudio(ctx)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Action: a.String()}, nil
}

func handleAudioResult(ctx context.Context, s Session, cmd Command) (Reply, error) {
	return Reply{}, s.AudioResult(ctx, cmd.OK)
}

func handleGesture(ctx context.Context, s Session, _ Command) (Reply, error) {
	return Reply{}, s.Gesture(ctx)
}

func handleReset(ctx context.Context, s Session, _ Command) (Reply, error) {
	return Reply{}, s.ResetView(ctx)
}

func handleCamera(ctx context.Context, s Session, cmd Command) (Reply, error) {
	if cmd.Camera == nil {
		return Reply{}, fmt.Errorf("missing camera")
	}
	return Reply{}, s.UpdateCamera(ctx, *cmd.Camera)
}
