// Package selection tracks which body the camera is focused on.
//
// States are Unselected and Selected(id). Selecting the focused body clears
// the focus; selecting another body replaces it directly. Transitions only
// move the camera; body data is never touched.
package selection

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/star/orrery/internal/body"
	"github.com/star/orrery/internal/camera"
)

const (
	// ZoomFactor is the eye distance from a focused body in body radii.
	ZoomFactor = 8.0
	// ZoomRangeFactor widens the max zoom-out relative to the eye distance.
	ZoomRangeFactor = 2.0
)

// framing gives an angled view rather than a straight top-down or side shot.
var framing = mgl64.Vec3{0.8, 0.4, 1.0}

// Transition names what a Select call did.
type Transition int

const (
	// Ignored means the id was not registered; nothing changed.
	Ignored Transition = iota
	// Entered is Unselected -> Selected.
	Entered
	// Replaced is Selected(b) -> Selected(b') with b' != b.
	Replaced
	// Cleared is Selected(b) -> Unselected.
	Cleared
)

func (t Transition) String() string {
	switch t {
	case Entered:
		return "entered"
	case Replaced:
		return "replaced"
	case Cleared:
		return "cleared"
	default:
		return "ignored"
	}
}

// Machine holds the current selection and drives the camera rig.
type Machine struct {
	rig      *camera.Rig
	selected body.ID
	active   bool
}

// NewMachine returns an Unselected machine that frames rig.
func NewMachine(rig *camera.Rig) *Machine {
	return &Machine{rig: rig}
}

// Selected returns the focused body, if any.
func (m *Machine) Selected() (body.ID, bool) {
	return m.selected, m.active
}

// Select toggles focus on id.
func (m *Machine) Select(id body.ID, reg *body.Registry) Transition {
	b := reg.Get(id)
	if b == nil {
		return Ignored
	}

	if m.active && m.selected == id {
		m.Clear()
		return Cleared
	}

	t := Entered
	if m.active {
		t = Replaced
	}
	m.selected = id
	m.active = true
	m.frame(b)
	return t
}

// Clear returns to Unselected and restores the whole-system target and zoom
// range. The eye stays where it is.
func (m *Machine) Clear() {
	m.active = false
	m.selected = 0
	m.rig.Target = mgl64.Vec3{}
	m.rig.MaxDistance = camera.DefaultMaxDistance
}

// Reset clears the selection and also returns the eye to its home position.
func (m *Machine) Reset() {
	m.Clear()
	m.rig.Position = camera.HomePosition
}

func (m *Machine) frame(b *body.Body) {
	zoom := b.Radius * ZoomFactor
	m.rig.Target = b.Position
	m.rig.Position = b.Position.Add(mgl64.Vec3{
		framing.X() * zoom,
		framing.Y() * zoom,
		framing.Z() * zoom,
	})
	m.rig.MaxDistance = zoom * ZoomRangeFactor
}
