// Package animation advances body and marker state by one frame.
//
// Step is a pure function of the registry state and its arguments: it never
// reads a clock, performs no I/O and cannot fail. Angles grow without bound;
// they are only consumed through sin/cos, so no modulo is applied.
package animation

import (
	"math"

	"github.com/star/orrery/internal/body"
)

const (
	// MaxDeltaMs caps a single frame's elapsed time so a backgrounded tab
	// does not make bodies jump.
	MaxDeltaMs = 100.0

	// MarkerSpinRate is the marker spin in rad/ms, independent of the owner.
	MarkerSpinRate = 0.001

	// PulseFrequency scales nowMs into the marker pulse phase.
	PulseFrequency = 0.001

	pulseAmplitude = 0.1
)

// ClampDelta bounds deltaMs to [0, MaxDeltaMs].
func ClampDelta(deltaMs float64) float64 {
	if deltaMs < 0 || math.IsNaN(deltaMs) {
		return 0
	}
	if deltaMs > MaxDeltaMs {
		return MaxDeltaMs
	}
	return deltaMs
}

// PulseScale is the uniform marker scale at nowMs.
func PulseScale(nowMs float64) float64 {
	return math.Sin(nowMs*PulseFrequency)*pulseAmplitude + 1
}

// Step advances every registered body by deltaMs scaled by speed.
func Step(reg *body.Registry, deltaMs, speed, nowMs float64) {
	dt := ClampDelta(deltaMs)
	pulse := PulseScale(nowMs)

	reg.Each(func(b *body.Body) {
		b.RotationAngle += b.RotationAngularSpeed * speed * dt

		if b.Kind == body.KindPlanet {
			b.OrbitalAngle += b.OrbitalAngularSpeed * speed * dt
			b.Position = body.OrbitPosition(b.OrbitalAngle, b.OrbitalDistance)
		}

		if m := b.Marker; m != nil {
			m.SpinAngle += MarkerSpinRate * speed * dt
			m.PulseScale = pulse
		}
	})
}
