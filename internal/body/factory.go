package body

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Factory builds Body records from descriptors and registers them.
type Factory struct {
	base BaseSpeeds
}

// NewFactory creates a factory using the given base speeds.
func NewFactory(base BaseSpeeds) *Factory {
	return &Factory{base: base}
}

// InitialOrbitalAngle spreads planets evenly around the circle.
func InitialOrbitalAngle(index, total int) float64 {
	return float64(index) / float64(total) * 2 * math.Pi
}

// OrbitPosition is the point on a circular orbit of the given distance.
func OrbitPosition(angle, distance float64) mgl64.Vec3 {
	return mgl64.Vec3{math.Cos(angle) * distance, 0, math.Sin(angle) * distance}
}

// CreateSun builds the sun and registers it.
func (f *Factory) CreateSun(reg *Registry, appearance Appearance) *Body {
	d := SunDescriptor
	b := &Body{
		ID:                   Sun,
		Kind:                 KindSun,
		Label:                d.Label,
		Radius:               d.Radius,
		RotationAngularSpeed: f.base.Rotation * d.RotationSpeedMultiplier,
		Appearance:           appearance,
	}
	if d.Marker {
		b.Marker = newMarker(b)
	}
	reg.add(b)
	return b
}

// CreatePlanet builds the planet at position index of PlanetCount and
// registers it.
func (f *Factory) CreatePlanet(reg *Registry, index int, d Descriptor, appearance Appearance) *Body {
	angle := InitialOrbitalAngle(index, PlanetCount)
	b := &Body{
		ID:                   d.ID,
		Kind:                 KindPlanet,
		Label:                d.Label,
		Radius:               d.Radius,
		OrbitalDistance:      d.Distance,
		OrbitalAngle:         angle,
		OrbitalAngularSpeed:  f.base.Orbit * d.OrbitSpeedMultiplier,
		RotationAngularSpeed: f.base.Rotation * d.RotationSpeedMultiplier,
		Position:             OrbitPosition(angle, d.Distance),
		Appearance:           appearance,
	}
	if d.Marker {
		b.Marker = newMarker(b)
	}
	if d.Ring {
		b.Ring = newRing(d.Radius)
	}
	reg.add(b)
	return b
}

// Populate creates all nine bodies with their fallback appearance.
func (f *Factory) Populate(reg *Registry) {
	f.CreateSun(reg, FallbackAppearance(Sun))
	for i, d := range Planets {
		f.CreatePlanet(reg, i, d, FallbackAppearance(d.ID))
	}
}

func newMarker(b *Body) *Marker {
	return &Marker{
		Owner:      b.ID,
		Offset:     b.Radius + MarkerClearance,
		PulseScale: 1,
	}
}
