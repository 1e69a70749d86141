package animation

import (
	"math"
	"testing"

	"github.com/star/orrery/internal/body"
)

const tol = 1e-9

func newSystem() *body.Registry {
	reg := body.NewRegistry()
	body.NewFactory(body.DefaultBaseSpeeds).Populate(reg)
	return reg
}

type angles struct {
	rot, orb, spin float64
	x, z           float64
}

func capture(reg *body.Registry) []angles {
	var out []angles
	reg.Each(func(b *body.Body) {
		a := angles{rot: b.RotationAngle, orb: b.OrbitalAngle, x: b.Position.X(), z: b.Position.Z()}
		if b.Marker != nil {
			a.spin = b.Marker.SpinAngle
		}
		out = append(out, a)
	})
	return out
}

func TestStepZeroDeltaIsIdentity(t *testing.T) {
	reg := newSystem()
	Step(reg, 300, 0.7, 1234)
	before := capture(reg)

	Step(reg, 0, 0.7, 5678)
	after := capture(reg)

	for i := range before {
		if before[i] != after[i] {
			t.Errorf("body %d changed with zero delta: %+v -> %+v", i, before[i], after[i])
		}
	}
}

func TestStepZeroSpeedFreezesAngles(t *testing.T) {
	reg := newSystem()
	before := capture(reg)

	for _, dt := range []float64{1, 16.6, 100, 5000, 0.001} {
		Step(reg, dt, 0, dt*3)
	}
	after := capture(reg)

	for i := range before {
		if before[i] != after[i] {
			t.Errorf("body %d changed at zero speed: %+v -> %+v", i, before[i], after[i])
		}
	}
}

func TestStepLinearInDelta(t *testing.T) {
	once := newSystem()
	twice := newSystem()

	Step(once, 80, 0.5, 0)
	Step(twice, 40, 0.5, 0)
	Step(twice, 40, 0.5, 0)

	a, b := capture(once), capture(twice)
	for i := range a {
		if math.Abs(a[i].rot-b[i].rot) > tol || math.Abs(a[i].orb-b[i].orb) > tol || math.Abs(a[i].spin-b[i].spin) > tol {
			t.Errorf("body %d: 2d=%+v d+d=%+v", i, a[i], b[i])
		}
		if math.Abs(a[i].x-b[i].x) > tol || math.Abs(a[i].z-b[i].z) > tol {
			t.Errorf("body %d position: 2d=(%v,%v) d+d=(%v,%v)", i, a[i].x, a[i].z, b[i].x, b[i].z)
		}
	}
}

func TestPlanetStaysOnOrbit(t *testing.T) {
	reg := newSystem()
	for i := 0; i < 500; i++ {
		Step(reg, float64(i%120), float64(i%11)/10, float64(i)*16)
	}
	reg.Each(func(b *body.Body) {
		if math.Abs(b.Position.Len()-b.OrbitalDistance) > tol {
			t.Errorf("%s |position| = %v, want %v", b.ID, b.Position.Len(), b.OrbitalDistance)
		}
		if b.Position.Y() != 0 {
			t.Errorf("%s left the orbital plane: y=%v", b.ID, b.Position.Y())
		}
	})
}

func TestSunStaysAtOrigin(t *testing.T) {
	reg := newSystem()
	Step(reg, 50, 1, 0)
	sun := reg.Get(body.Sun)
	if sun.Position.Len() != 0 {
		t.Errorf("sun moved to %v", sun.Position)
	}
	if sun.OrbitalAngle != 0 {
		t.Errorf("sun orbital angle = %v", sun.OrbitalAngle)
	}
	if math.Abs(sun.RotationAngle-0.0005*50) > tol {
		t.Errorf("sun rotation = %v, want %v", sun.RotationAngle, 0.0005*50)
	}
}

func TestEarthOrbitIncrement(t *testing.T) {
	reg := body.NewRegistry()
	f := body.NewFactory(body.BaseSpeeds{Orbit: 0.00005, Rotation: 0.001})
	earth := f.CreatePlanet(reg, 2, body.Planets[2], body.FallbackAppearance(body.Earth))
	start := earth.OrbitalAngle

	// Exercise the real step with a delta under the clamp, ten times.
	for i := 0; i < 10; i++ {
		Step(reg, 100, 1.0, 0)
	}
	if got := earth.OrbitalAngle - start; math.Abs(got-0.05) > 1e-12 {
		t.Errorf("orbital angle increase = %v, want 0.05", got)
	}
}

func TestEarthOrbitIncrementSingleStep(t *testing.T) {
	// A single 1000 ms step is clamped to 100 ms.
	reg := newSystem()
	earth := reg.Get(body.Earth)
	start := earth.OrbitalAngle

	Step(reg, 1000, 1.0, 0)
	if got := earth.OrbitalAngle - start; math.Abs(got-0.005) > 1e-12 {
		t.Errorf("clamped increase = %v, want 0.005", got)
	}
}

func TestClampDelta(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{5000, 100},
		{100, 100},
		{16, 16},
		{0, 0},
		{-20, 0},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := ClampDelta(tt.in); got != tt.want {
			t.Errorf("ClampDelta(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}

	clamped, capped := newSystem(), newSystem()
	Step(clamped, 5000, 1, 0)
	Step(capped, 100, 1, 0)
	if a, b := capture(clamped), capture(capped); a[3] != b[3] {
		t.Errorf("5000 ms step = %+v, want same as 100 ms %+v", a[3], b[3])
	}
}

func TestPulseScale(t *testing.T) {
	if got := PulseScale(0); got != 1.0 {
		t.Errorf("PulseScale(0) = %v, want exactly 1", got)
	}
	peak := math.Pi / 2 / PulseFrequency
	if got := PulseScale(peak); math.Abs(got-1.1) > tol {
		t.Errorf("PulseScale(peak) = %v, want 1.1", got)
	}

	reg := newSystem()
	Step(reg, 16, 1, peak)
	reg.Each(func(b *body.Body) {
		if math.Abs(b.Marker.PulseScale-1.1) > tol {
			t.Errorf("%s marker pulse = %v", b.ID, b.Marker.PulseScale)
		}
	})
}

func TestMarkerSpinIndependentOfBody(t *testing.T) {
	reg := newSystem()
	Step(reg, 50, 0.5, 0)
	want := MarkerSpinRate * 0.5 * 50
	reg.Each(func(b *body.Body) {
		if math.Abs(b.Marker.SpinAngle-want) > tol {
			t.Errorf("%s marker spin = %v, want %v", b.ID, b.Marker.SpinAngle, want)
		}
	})
}

func TestDeterministicReplay(t *testing.T) {
	frames := []struct{ dt, speed, now float64 }{
		{16.7, 0.5, 16.7}, {16.6, 0.5, 33.3}, {250, 1, 283.3}, {0, 1, 283.3},
		{33, 0.25, 316.3}, {16.7, 0, 333}, {99.9, 0.9, 432.9},
	}
	run := func() [][]angles {
		reg := newSystem()
		var out [][]angles
		for _, f := range frames {
			Step(reg, f.dt, f.speed, f.now)
			out = append(out, capture(reg))
		}
		return out
	}

	a, b := run(), run()
	for i := range a {
		for j := range a[i] {
			if math.Float64bits(a[i][j].orb) != math.Float64bits(b[i][j].orb) ||
				math.Float64bits(a[i][j].rot) != math.Float64bits(b[i][j].rot) {
				t.Fatalf("frame %d body %d differs between runs", i, j)
			}
		}
	}
}

func BenchmarkStep(b *testing.B) {
	reg := newSystem()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Step(reg, 16.7, 0.5, float64(i)*16.7)
	}
}
