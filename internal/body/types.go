package body

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// ID identifies one of the nine bodies. The set is closed; every table in this
// package is an array indexed by ID.
type ID int

const (
	Sun ID = iota
	Mercury
	Venus
	Earth
	Mars
	Jupiter
	Saturn
	Uranus
	Neptune

	// Count is the number of bodies.
	Count = int(Neptune) + 1
)

// PlanetCount is the number of planets distributed around the orbit circle.
const PlanetCount = Count - 1

var names = [Count]string{
	Sun:     "sun",
	Mercury: "mercury",
	Venus:   "venus",
	Earth:   "earth",
	Mars:    "mars",
	Jupiter: "jupiter",
	Saturn:  "saturn",
	Uranus:  "uranus",
	Neptune: "neptune",
}

// String returns the lowercase wire name ("earth").
func (id ID) String() string {
	if !id.Valid() {
		return fmt.Sprintf("body(%d)", int(id))
	}
	return names[id]
}

// Valid reports whether id is one of the nine known bodies.
func (id ID) Valid() bool {
	return id >= Sun && id <= Neptune
}

// MarshalText encodes the ID as its wire name.
func (id ID) MarshalText() ([]byte, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("invalid body id %d", int(id))
	}
	return []byte(names[id]), nil
}

// UnmarshalText decodes a wire name.
func (id *ID) UnmarshalText(b []byte) error {
	parsed, err := ParseID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseID resolves a wire name to an ID.
func ParseID(s string) (ID, error) {
	for i, n := range names {
		if n == s {
			return ID(i), nil
		}
	}
	return 0, fmt.Errorf("unknown body %q", s)
}

// All returns every ID in registry order.
func All() []ID {
	ids := make([]ID, Count)
	for i := range ids {
		ids[i] = ID(i)
	}
	return ids
}

// Kind distinguishes the central star from orbiting planets.
type Kind int

const (
	KindSun Kind = iota
	KindPlanet
)

func (k Kind) String() string {
	if k == KindSun {
		return "sun"
	}
	return "planet"
}

// Appearance describes how the renderer should shade a node.
type Appearance struct {
	Texture           string  `json:"texture,omitempty"`
	Color             uint32  `json:"color"`
	Emissive          uint32  `json:"emissive,omitempty"`
	EmissiveIntensity float64 `json:"emissive_intensity,omitempty"`
	Roughness         float64 `json:"roughness,omitempty"`
	Metalness         float64 `json:"metalness,omitempty"`
	Opacity           float64 `json:"opacity"`
	Fallback          bool    `json:"fallback"`
}

// Marker is the small interactive sphere floating above a body.
type Marker struct {
	Owner  ID
	Offset float64 // height above the owner's centre

	SpinAngle  float64
	PulseScale float64

	// Acknowledged is set for a short time after the marker is clicked.
	Acknowledged bool
}

// Color returns the marker colour for its current acknowledgement state.
func (m *Marker) Color() uint32 {
	if m.Acknowledged {
		return MarkerAckColor
	}
	return MarkerColor
}

// Ring is a flat annulus attached to a body (Saturn).
type Ring struct {
	Inner      float64
	Outer      float64
	Tilt       float64
	Appearance Appearance
}

// Body is the animated state of the sun or a planet.
type Body struct {
	ID    ID
	Kind  Kind
	Label string

	Radius          float64
	OrbitalDistance float64

	OrbitalAngle         float64
	OrbitalAngularSpeed  float64 // rad/ms
	RotationAngle        float64
	RotationAngularSpeed float64 // rad/ms

	Position mgl64.Vec3

	Appearance Appearance
	Marker     *Marker
	Ring       *Ring
}

// HasMarker reports whether the body carries a curiosity marker.
func (b *Body) HasMarker() bool {
	return b.Marker != nil
}

// MarkerPosition returns the marker's world position.
func (b *Body) MarkerPosition() mgl64.Vec3 {
	if b.Marker == nil {
		return b.Position
	}
	return b.Position.Add(mgl64.Vec3{0, b.Marker.Offset, 0})
}
