package session

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/star/orrery/internal/audio"
	"github.com/star/orrery/internal/body"
	"github.com/star/orrery/internal/interact"
	"github.com/star/orrery/internal/metrics"
	"github.com/star/orrery/internal/selection"
)

// Pick handles a click at normalised device coordinates.
func (s *Session) Pick(ctx context.Context, ndc mgl64.Vec2) (interact.Outcome, error) {
	var out interact.Outcome
	err := s.do(ctx, func() {
		out = s.dispatcher.Pick(ndc)
		metrics.IncPicks(out.Kind.String())
		s.afterSelect(out)
		s.refresh()
	})
	return out, err
}

// Select toggles focus on id as if its body had been clicked.
func (s *Session) Select(ctx context.Context, id body.ID) (interact.Outcome, error) {
	var out interact.Outcome
	err := s.do(ctx, func() {
		out = s.dispatcher.Select(id)
		s.afterSelect(out)
		s.refresh()
	})
	return out, err
}

func (s *Session) afterSelect(out interact.Outcome) {
	if out.Kind != interact.OutcomeSelect {
		return
	}
	metrics.IncSelections(out.Transition.String())
	s.logger.Debug("selection changed", "body", out.Body.String(), "transition", out.Transition.String())
	s.emit(Event{Type: EventSelection, Body: out.Body.String(), Transition: out.Transition.String()})
	s.emitCamera()
	s.cue(audio.CueSelect)
}

// SetSpeed sets the global speed multiplier, clamped to [0, 1], and returns
// the value in effect.
func (s *Session) SetSpeed(ctx context.Context, v float64) (float64, error) {
	var got float64
	err := s.do(ctx, func() {
		if !math.IsNaN(v) {
			s.speed = clampSpeed(v)
		}
		got = s.speed
		metrics.SetSpeedMultiplier(got)
		s.refresh()
	})
	return got, err
}

// ToggleAudio flips the soundtrack and returns what the browser should do.
func (s *Session) ToggleAudio(ctx context.Context) (audio.Action, error) {
	var a audio.Action
	err := s.do(ctx, func() {
		a = s.audio.Toggle()
		s.emitAudio(a)
		s.refresh()
	})
	return a, err
}

// AudioResult reports whether the browser managed to start playback.
func (s *Session) AudioResult(ctx context.Context, ok bool) error {
	return s.do(ctx, func() {
		prompt := s.audio.PlaybackResult(ok)
		s.emitAudio(audio.ActionNone)
		if prompt {
			s.emit(Event{Type: EventPrompt, Text: audioPrompt})
		}
		s.refresh()
	})
}

// Gesture records a user interaction with the page.
func (s *Session) Gesture(ctx context.Context) error {
	return s.do(ctx, func() {
		if a := s.audio.Gesture(); a != audio.ActionNone {
			s.emitAudio(a)
			s.refresh()
		}
	})
}

// ResetView clears any selection and returns the camera home.
func (s *Session) ResetView(ctx context.Context) error {
	return s.do(ctx, func() {
		if id, ok := s.sel.Selected(); ok {
			metrics.IncSelections(selection.Cleared.String())
			s.emit(Event{Type: EventSelection, Body: id.String(), Transition: selection.Cleared.String()})
		}
		s.sel.Reset()
		s.emitCamera()
		s.refresh()
	})
}

// CameraUpdate is an orbit-control move reported by the browser.
type CameraUpdate struct {
	Position mgl64.Vec3 `json:"position"`
	Target   mgl64.Vec3 `json:"target"`
	Aspect   float64    `json:"aspect,omitempty"`
}

func (u CameraUpdate) validate() error {
	for _, v := range append(u.Position[:], u.Target[:]...) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("camera coordinates must be finite")
		}
	}
	if u.Position.Sub(u.Target).Len() == 0 {
		return fmt.Errorf("camera position equals target")
	}
	if u.Aspect < 0 || math.IsNaN(u.Aspect) || math.IsInf(u.Aspect, 0) {
		return fmt.Errorf("invalid aspect ratio %v", u.Aspect)
	}
	return nil
}

// UpdateCamera applies an orbit-control move, keeping the eye inside the
// current zoom range.
func (s *Session) UpdateCamera(ctx context.Context, u CameraUpdate) error {
	if err := u.validate(); err != nil {
		return err
	}
	return s.do(ctx, func() {
		s.rig.Position = u.Position
		s.rig.Target = u.Target
		if u.Aspect > 0 {
			s.rig.Aspect = u.Aspect
		}
		s.rig.ClampZoom()
		s.refresh()
	})
}

// BodyView is a copy of one body's state.
type BodyView struct {
	ID              body.ID         `json:"id"`
	Kind            string          `json:"kind"`
	Label           string          `json:"label"`
	Radius          float64         `json:"radius"`
	OrbitalDistance float64         `json:"orbital_distance"`
	OrbitalAngle    float64         `json:"orbital_angle"`
	OrbitalSpeed    float64         `json:"orbital_speed"`
	RotationAngle   float64         `json:"rotation_angle"`
	RotationSpeed   float64         `json:"rotation_speed"`
	Position        [3]float64      `json:"position"`
	Marker          bool            `json:"marker"`
	Ring            bool            `json:"ring"`
	Appearance      body.Appearance `json:"appearance"`
}

func viewOf(b *body.Body) BodyView {
	return BodyView{
		ID:              b.ID,
		Kind:            b.Kind.String(),
		Label:           b.Label,
		Radius:          b.Radius,
		OrbitalDistance: b.OrbitalDistance,
		OrbitalAngle:    b.OrbitalAngle,
		OrbitalSpeed:    b.OrbitalAngularSpeed,
		RotationAngle:   b.RotationAngle,
		RotationSpeed:   b.RotationAngularSpeed,
		Position:        [3]float64(b.Position),
		Marker:          b.HasMarker(),
		Ring:            b.Ring != nil,
		Appearance:      b.Appearance,
	}
}

// Bodies returns every body in id order.
func (s *Session) Bodies(ctx context.Context) ([]BodyView, error) {
	var out []BodyView
	err := s.do(ctx, func() {
		out = make([]BodyView, 0, s.reg.Len())
		s.reg.Each(func(b *body.Body) {
			out = append(out, viewOf(b))
		})
	})
	return out, err
}

// Body returns one body, or false if it is not registered.
func (s *Session) Body(ctx context.Context, id body.ID) (BodyView, bool, error) {
	var (
		v     BodyView
		found bool
	)
	err := s.do(ctx, func() {
		if b := s.reg.Get(id); b != nil {
			v, found = viewOf(b), true
		}
	})
	return v, found, err
}

// Step advances the scene to now on the session goroutine and returns the
// resulting frame. It lets a caller on a synthetic clock drive frames while
// Run serves commands.
func (s *Session) Step(ctx context.Context, now time.Time) (*Frame, error) {
	var f *Frame
	err := s.do(ctx, func() {
		s.Advance(now)
		f = s.latest.Load()
	})
	return f, err
}
