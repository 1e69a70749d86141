package interact

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/star/orrery/internal/body"
	"github.com/star/orrery/internal/camera"
	"github.com/star/orrery/internal/scene"
	"github.com/star/orrery/internal/selection"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

type fakePicker struct {
	hits []scene.Hit
	err  error
}

func (p *fakePicker) PickAt(mgl64.Vec2, *camera.Rig) ([]scene.Hit, error) {
	return p.hits, p.err
}

type recordingOverlay struct {
	opened []body.ID
	texts  []string
}

func (o *recordingOverlay) OpenInfo(id body.ID, label, text string) {
	o.opened = append(o.opened, id)
	o.texts = append(o.texts, text)
}

type manualScheduler struct {
	pending []func()
	delays  []time.Duration
}

func (s *manualScheduler) After(d time.Duration, fn func()) {
	s.delays = append(s.delays, d)
	s.pending = append(s.pending, fn)
}

func (s *manualScheduler) fire() {
	for _, fn := range s.pending {
		fn()
	}
	s.pending = nil
}

type fixture struct {
	d       *Dispatcher
	picker  *fakePicker
	overlay *recordingOverlay
	sched   *manualScheduler
	sel     *selection.Machine
	reg     *body.Registry
}

func newFixture() *fixture {
	reg := body.NewRegistry()
	body.NewFactory(body.DefaultBaseSpeeds).Populate(reg)
	rig := camera.Default(1)
	sel := selection.NewMachine(&rig)
	f := &fixture{
		picker:  &fakePicker{},
		overlay: &recordingOverlay{},
		sched:   &manualScheduler{},
		sel:     sel,
		reg:     reg,
	}
	f.d = NewDispatcher(reg, f.picker, &rig, sel, f.overlay, f.sched, testLogger())
	return f
}

func TestPickMarkerOpensInfo(t *testing.T) {
	f := newFixture()
	f.picker.hits = []scene.Hit{
		{Kind: scene.NodeMarker, Owner: body.Saturn, Distance: 10},
		{Kind: scene.NodeBody, Owner: body.Saturn, Distance: 12},
	}

	out := f.d.Pick(mgl64.Vec2{})
	if out.Kind != OutcomeInfo || out.Body != body.Saturn {
		t.Fatalf("outcome = %+v, want info for saturn", out)
	}
	if len(f.overlay.opened) != 1 || f.overlay.opened[0] != body.Saturn {
		t.Fatalf("overlay opened %v", f.overlay.opened)
	}
	if f.overlay.texts[0] != body.Curiosity(body.Saturn) {
		t.Errorf("overlay text = %q", f.overlay.texts[0])
	}
	if _, ok := f.sel.Selected(); ok {
		t.Error("marker click changed the selection")
	}

	m := f.reg.Get(body.Saturn).Marker
	if !m.Acknowledged || m.Color() != body.MarkerAckColor {
		t.Error("marker not acknowledged after click")
	}
	if len(f.sched.delays) != 1 || f.sched.delays[0] != AckDuration {
		t.Errorf("scheduled delays = %v", f.sched.delays)
	}

	f.sched.fire()
	if m.Acknowledged {
		t.Error("marker acknowledgement not reverted")
	}
}

func TestPickBodySelects(t *testing.T) {
	f := newFixture()
	f.picker.hits = []scene.Hit{{Kind: scene.NodeBody, Owner: body.Mars, Distance: 3}}

	out := f.d.Pick(mgl64.Vec2{})
	if out.Kind != OutcomeSelect || out.Transition != selection.Entered {
		t.Fatalf("outcome = %+v", out)
	}
	out = f.d.Pick(mgl64.Vec2{})
	if out.Transition != selection.Cleared {
		t.Fatalf("second pick = %+v, want cleared", out)
	}
	if len(f.overlay.opened) != 0 {
		t.Error("body click opened the overlay")
	}
}

func TestPickNearestOnly(t *testing.T) {
	f := newFixture()
	f.picker.hits = []scene.Hit{
		{Kind: scene.NodeBody, Owner: body.Sun, Distance: 1},
		{Kind: scene.NodeMarker, Owner: body.Earth, Distance: 2},
	}
	out := f.d.Pick(mgl64.Vec2{})
	if out.Kind != OutcomeSelect || out.Body != body.Sun {
		t.Errorf("outcome = %+v, want sun selected", out)
	}
	if len(f.overlay.opened) != 0 {
		t.Error("farther marker handled")
	}
}

func TestPickIgnored(t *testing.T) {
	tests := []struct {
		name string
		hits []scene.Hit
		err  error
	}{
		{"miss", nil, nil},
		{"ring", []scene.Hit{{Kind: scene.NodeRing, Owner: body.Saturn, Distance: 1}}, nil},
		{"unknown kind", []scene.Hit{{Kind: scene.NodeKind(99), Owner: body.Earth, Distance: 1}}, nil},
		{"unknown owner", []scene.Hit{{Kind: scene.NodeMarker, Owner: body.ID(77), Distance: 1}}, nil},
		{"picker error", nil, errors.New("degenerate camera transform")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.picker.hits, f.picker.err = tt.hits, tt.err

			out := f.d.Pick(mgl64.Vec2{0.3, -0.2})
			if out.Kind != OutcomeNone {
				t.Errorf("outcome = %+v, want none", out)
			}
			if _, ok := f.sel.Selected(); ok {
				t.Error("selection changed")
			}
			if len(f.overlay.opened) != 0 || len(f.sched.pending) != 0 {
				t.Error("side effects on ignored pick")
			}
		})
	}
}

func TestPickWithRealGraph(t *testing.T) {
	reg := body.NewRegistry()
	body.NewFactory(body.DefaultBaseSpeeds).Populate(reg)
	g := scene.NewGraph()
	g.Attach(reg)
	g.Sync(reg)

	rig := camera.Default(16.0 / 9.0)
	sel := selection.NewMachine(&rig)
	d := NewDispatcher(reg, g, &rig, sel, &recordingOverlay{}, &manualScheduler{}, testLogger())

	out := d.Pick(mgl64.Vec2{0, 0})
	if out.Kind != OutcomeSelect || out.Body != body.Sun {
		t.Fatalf("center pick = %+v, want sun selected", out)
	}
	if rig.MaxDistance != 10*selection.ZoomFactor*selection.ZoomRangeFactor {
		t.Errorf("max distance = %v", rig.MaxDistance)
	}
}
