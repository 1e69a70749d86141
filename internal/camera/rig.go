// Package camera models the orbit-control camera: where the eye sits, what it
// looks at, how far it may zoom out, and how a screen point becomes a world
// ray for picking.
package camera

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Defaults for the whole-system view.
const (
	DefaultFOVDegrees  = 60.0
	DefaultNear        = 0.1
	DefaultFar         = 2000.0
	DefaultMinDistance = 10.0
	DefaultMaxDistance = 500.0
)

// HomePosition is where the eye starts and returns to on a view reset.
var HomePosition = mgl64.Vec3{0, 40, 150}

// Rig is the camera state shared by the selection machine (which writes the
// target and zoom range) and the interaction dispatcher (which reads the
// transform for picking).
type Rig struct {
	Position mgl64.Vec3 `json:"position"`
	Target   mgl64.Vec3 `json:"target"`
	Up       mgl64.Vec3 `json:"up"`

	FOVDegrees float64 `json:"fov"`
	Aspect     float64 `json:"aspect"`
	Near       float64 `json:"near"`
	Far        float64 `json:"far"`

	MinDistance float64 `json:"min_distance"`
	MaxDistance float64 `json:"max_distance"`
}

// Default returns the whole-system camera for the given viewport aspect ratio.
func Default(aspect float64) Rig {
	if aspect <= 0 || math.IsNaN(aspect) || math.IsInf(aspect, 0) {
		aspect = 16.0 / 9.0
	}
	return Rig{
		Position:    HomePosition,
		Up:          mgl64.Vec3{0, 1, 0},
		FOVDegrees:  DefaultFOVDegrees,
		Aspect:      aspect,
		Near:        DefaultNear,
		Far:         DefaultFar,
		MinDistance: DefaultMinDistance,
		MaxDistance: DefaultMaxDistance,
	}
}

// Ray is a half-line in world space. Dir is unit length.
type Ray struct {
	Origin mgl64.Vec3
	Dir    mgl64.Vec3
}

// At returns the point t units along the ray.
func (r Ray) At(t float64) mgl64.Vec3 {
	return r.Origin.Add(r.Dir.Mul(t))
}

// View returns the world-to-camera matrix.
func (r *Rig) View() mgl64.Mat4 {
	return mgl64.LookAtV(r.Position, r.Target, r.Up)
}

// Projection returns the perspective projection matrix.
func (r *Rig) Projection() mgl64.Mat4 {
	return mgl64.Perspective(mgl64.DegToRad(r.FOVDegrees), r.Aspect, r.Near, r.Far)
}

// Ray converts a normalized device coordinate (x, y in [-1, 1], y up) into a
// world-space ray leaving the camera.
func (r *Rig) Ray(ndc mgl64.Vec2) (Ray, error) {
	inv := r.Projection().Mul4(r.View()).Inv()

	near := unproject(inv, mgl64.Vec4{ndc.X(), ndc.Y(), -1, 1})
	far := unproject(inv, mgl64.Vec4{ndc.X(), ndc.Y(), 1, 1})
	dir := far.Sub(near)
	if dir.Len() == 0 || math.IsNaN(dir.Len()) {
		return Ray{}, fmt.Errorf("degenerate camera transform")
	}
	return Ray{Origin: r.Position, Dir: dir.Normalize()}, nil
}

func unproject(inv mgl64.Mat4, clip mgl64.Vec4) mgl64.Vec3 {
	w := inv.Mul4x1(clip)
	return w.Vec3().Mul(1 / w.W())
}

// Distance is the eye's distance from the target.
func (r *Rig) Distance() float64 {
	return r.Position.Sub(r.Target).Len()
}

// ClampZoom moves the eye along its line of sight so its distance from the
// target stays within [MinDistance, MaxDistance].
func (r *Rig) ClampZoom() {
	offset := r.Position.Sub(r.Target)
	d := offset.Len()
	if d == 0 {
		return
	}
	switch {
	case d < r.MinDistance:
		r.Position = r.Target.Add(offset.Mul(r.MinDistance / d))
	case d > r.MaxDistance:
		r.Position = r.Target.Add(offset.Mul(r.MaxDistance / d))
	}
}
