// Package session owns the running visualisation: the body registry, the
// scene graph, the camera, selection and audio state, and the speed
// multiplier.
//
// All of that state belongs to one goroutine, the one running Run. Other
// goroutines (HTTP handlers, the websocket reader, the asset pool) never touch
// it directly; they queue commands that Run executes between frames, and read
// the latest published Frame.
package session

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/star/orrery/internal/animation"
	"github.com/star/orrery/internal/audio"
	"github.com/star/orrery/internal/body"
	"github.com/star/orrery/internal/camera"
	"github.com/star/orrery/internal/interact"
	"github.com/star/orrery/internal/metrics"
	"github.com/star/orrery/internal/scene"
	"github.com/star/orrery/internal/selection"
)

// DefaultSpeed is the speed multiplier on start (the slider at 50%).
const DefaultSpeed = 0.5

// ErrStopped is returned for commands sent after Run has exited.
var ErrStopped = errors.New("session stopped")

// Clock supplies wall time to the frame loop.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Config holds session settings.
type Config struct {
	FrameInterval time.Duration   // Tick period of the frame loop (default: 16ms).
	Speed         float64         // Initial speed multiplier (default: 0.5).
	Aspect        float64         // Initial viewport aspect ratio (default: 16/9).
	BaseSpeeds    body.BaseSpeeds // Reference angular speeds.
	Clock         Clock           // Defaults to the system clock.
}

// DefaultConfig returns the settings the visualisation ships with.
func DefaultConfig() Config {
	return Config{
		FrameInterval: 16 * time.Millisecond,
		Speed:         DefaultSpeed,
		Aspect:        16.0 / 9.0,
		BaseSpeeds:    body.DefaultBaseSpeeds,
	}
}

// Frame is an immutable picture of the scene after one step.
type Frame struct {
	Seq      uint64            `json:"seq"`
	TimeMs   float64           `json:"t"`
	Speed    float64           `json:"speed"`
	Selected string            `json:"selected,omitempty"`
	Audio    bool              `json:"audio"`
	Camera   camera.Rig        `json:"camera"`
	Nodes    []scene.NodeFrame `json:"nodes"`
}

type command struct {
	fn   func()
	done chan struct{}
}

// Session is the explicit context object for one visualisation.
type Session struct {
	cfg    Config
	clock  Clock
	logger *slog.Logger

	reg        *body.Registry
	graph      *scene.Graph
	rig        camera.Rig
	sel        *selection.Machine
	dispatcher *interact.Dispatcher
	audio      *audio.Controller
	speed      float64

	start time.Time
	last  time.Time
	seq   uint64

	cmds    chan command
	stopped chan struct{}
	running atomic.Bool

	latest atomic.Pointer[Frame]

	mu      sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// New builds a session with every body already in place, shaded with its
// fallback appearance. Textures that load later only refine the look.
func New(cfg Config, logger *slog.Logger) *Session {
	def := DefaultConfig()
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = def.FrameInterval
	}
	if cfg.BaseSpeeds == (body.BaseSpeeds{}) {
		cfg.BaseSpeeds = def.BaseSpeeds
	}
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}

	s := &Session{
		cfg:     cfg,
		clock:   cfg.Clock,
		logger:  logger,
		reg:     body.NewRegistry(),
		graph:   scene.NewGraph(),
		rig:     camera.Default(cfg.Aspect),
		audio:   audio.NewController(),
		speed:   clampSpeed(cfg.Speed),
		cmds:    make(chan command, 64),
		stopped: make(chan struct{}),
		subs:    make(map[int]chan Event),
	}

	body.NewFactory(cfg.BaseSpeeds).Populate(s.reg)
	s.graph.Attach(s.reg)
	s.graph.Sync(s.reg)

	s.sel = selection.NewMachine(&s.rig)
	s.dispatcher = interact.NewDispatcher(s.reg, s.graph, &s.rig, s.sel, overlay{s}, loopScheduler{s}, logger)

	s.start = s.clock.Now()
	s.last = s.start
	s.publish(0)
	metrics.SetSpeedMultiplier(s.speed)

	logger.Info("session created",
		"bodies", s.reg.Len(),
		"nodes", s.graph.Len(),
		"speed", s.speed,
	)
	return s
}

// Ready reports whether every body exists.
func (s *Session) Ready() bool {
	return s.reg.Complete()
}

// Latest returns the most recently published frame. Never nil.
func (s *Session) Latest() *Frame {
	return s.latest.Load()
}

// Run drives the frame loop until ctx is cancelled. Commands queued between
// ticks run before the next step.
func (s *Session) Run(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Error("session already running")
		return
	}
	defer close(s.stopped)

	ticker := time.NewTicker(s.cfg.FrameInterval)
	defer ticker.Stop()

	s.last = s.clock.Now()
	s.logger.Info("frame loop started", "interval", s.cfg.FrameInterval.String())

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("frame loop stopped", "frames", s.seq)
			return
		case c := <-s.cmds:
			s.exec(c)
		case <-ticker.C:
			s.drain()
			s.Advance(s.clock.Now())
		}
	}
}

// Advance steps the scene to now and publishes a frame. Only the goroutine
// that owns the session may call it: Run does, and so can a headless caller
// that never starts Run.
func (s *Session) Advance(now time.Time) {
	started := time.Now()

	deltaMs := float64(now.Sub(s.last)) / float64(time.Millisecond)
	s.last = now
	nowMs := float64(now.Sub(s.start)) / float64(time.Millisecond)

	animation.Step(s.reg, deltaMs, s.speed, nowMs)
	s.graph.Sync(s.reg)
	s.publish(nowMs)

	metrics.ObserveFrame(time.Since(started), deltaMs > animation.MaxDeltaMs)
}

func (s *Session) publish(nowMs float64) {
	s.seq++
	f := &Frame{
		Seq:    s.seq,
		TimeMs: nowMs,
		Speed:  s.speed,
		Audio:  s.audio.Enabled(),
		Camera: s.rig,
		Nodes:  s.graph.Snapshot(),
	}
	if id, ok := s.sel.Selected(); ok {
		f.Selected = id.String()
	}
	s.latest.Store(f)
}

// refresh republishes the current scene after a command changed it, at the
// same scene time. Animation only moves in Advance.
func (s *Session) refresh() {
	s.graph.Sync(s.reg)
	s.publish(s.latest.Load().TimeMs)
}

func (s *Session) exec(c command) {
	c.fn()
	if c.done != nil {
		close(c.done)
	}
}

func (s *Session) drain() {
	for {
		select {
		case c := <-s.cmds:
			s.exec(c)
		default:
			return
		}
	}
}

// do runs fn on the session goroutine and waits for it to finish.
func (s *Session) do(ctx context.Context, fn func()) error {
	c := command{fn: fn, done: make(chan struct{})}
	select {
	case s.cmds <- c:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		return ErrStopped
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		return ErrStopped
	}
}

// post queues fn without waiting for it. When the queue is full the work is
// dropped, so a timer or loader never blocks on a loop that is not draining.
func (s *Session) post(fn func()) {
	select {
	case s.cmds <- command{fn: fn}:
	case <-s.stopped:
	default:
		metrics.IncDroppedCommands()
		s.logger.Warn("command queue full, dropping queued work", "queued", len(s.cmds))
	}
}

// loopScheduler runs delayed work back on the session goroutine.
type loopScheduler struct{ s *Session }

func (l loopScheduler) After(d time.Duration, fn func()) {
	time.AfterFunc(d, func() {
		l.s.post(func() {
			fn()
			l.s.refresh()
		})
	})
}

// overlay turns curiosity requests into events for connected clients.
type overlay struct{ s *Session }

func (o overlay) OpenInfo(id body.ID, label, text string) {
	o.s.emit(Event{Type: EventInfo, Body: id.String(), Label: label, Text: text})
	o.s.cue(audio.CueCuriosity)
}

func clampSpeed(v float64) float64 {
	if math.IsNaN(v) {
		return DefaultSpeed
	}
	return math.Max(0, math.Min(1, v))
}
