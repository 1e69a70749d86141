// Package interact turns a screen pick into an action: open the curiosity
// overlay for a marker, or toggle camera focus on a body.
package interact

import (
	"log/slog"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/star/orrery/internal/body"
	"github.com/star/orrery/internal/camera"
	"github.com/star/orrery/internal/scene"
	"github.com/star/orrery/internal/selection"
)

// AckDuration is how long a clicked marker shows its acknowledged colour.
const AckDuration = 300 * time.Millisecond

// Overlay receives requests to show a body's informational text.
type Overlay interface {
	OpenInfo(id body.ID, label, text string)
}

// Scheduler runs fn once after d on the goroutine that owns the registry.
// After must not block the caller.
type Scheduler interface {
	After(d time.Duration, fn func())
}

// Picker resolves a screen point to scene hits.
type Picker interface {
	PickAt(ndc mgl64.Vec2, rig *camera.Rig) ([]scene.Hit, error)
}

// Outcome describes what a pick did.
type Outcome struct {
	Kind       OutcomeKind
	Body       body.ID
	Transition selection.Transition
}

// OutcomeKind classifies a pick result.
type OutcomeKind int

const (
	OutcomeNone OutcomeKind = iota
	OutcomeInfo
	OutcomeSelect
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeInfo:
		return "info"
	case OutcomeSelect:
		return "select"
	default:
		return "none"
	}
}

// Dispatcher maps picks to overlay and selection actions.
type Dispatcher struct {
	reg       *body.Registry
	picker    Picker
	rig       *camera.Rig
	selection *selection.Machine
	overlay   Overlay
	scheduler Scheduler
	logger    *slog.Logger
}

// NewDispatcher wires a dispatcher to the session's state.
func NewDispatcher(reg *body.Registry, picker Picker, rig *camera.Rig, sel *selection.Machine, overlay Overlay, scheduler Scheduler, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		reg:       reg,
		picker:    picker,
		rig:       rig,
		selection: sel,
		overlay:   overlay,
		scheduler: scheduler,
		logger:    logger,
	}
}

// Pick handles a click at ndc. Only the nearest hit counts; misses and hits
// on unclassified nodes change nothing.
func (d *Dispatcher) Pick(ndc mgl64.Vec2) Outcome {
	hits, err := d.picker.PickAt(ndc, d.rig)
	if err != nil {
		d.logger.Debug("pick failed", "x", ndc.X(), "y", ndc.Y(), "error", err)
		return Outcome{}
	}
	if len(hits) == 0 {
		return Outcome{}
	}

	hit := hits[0]
	switch hit.Kind {
	case scene.NodeMarker:
		return d.openInfo(hit.Owner)
	case scene.NodeBody:
		return d.Select(hit.Owner)
	default:
		return Outcome{}
	}
}

// Select drives the selection machine directly, as a body click would.
func (d *Dispatcher) Select(id body.ID) Outcome {
	t := d.selection.Select(id, d.reg)
	if t == selection.Ignored {
		return Outcome{}
	}
	return Outcome{Kind: OutcomeSelect, Body: id, Transition: t}
}

func (d *Dispatcher) openInfo(owner body.ID) Outcome {
	b := d.reg.Get(owner)
	if b == nil || b.Marker == nil {
		return Outcome{}
	}

	d.overlay.OpenInfo(owner, b.Label, body.Curiosity(owner))

	m := b.Marker
	m.Acknowledged = true
	d.scheduler.After(AckDuration, func() {
		m.Acknowledged = false
	})

	return Outcome{Kind: OutcomeInfo, Body: owner}
}
