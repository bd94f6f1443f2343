package core

import (
	"context"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/scopefoundry/smallsat-simulator/internal/logging"
	"github.com/scopefoundry/smallsat-simulator/model"
)

func testPropagator() *Propagator {
	return NewPropagator(model.DefaultSatelliteConfig(), logging.Noop())
}

func circularOrbit(altKm float64) model.OrbitalState {
	r := model.EarthRadiusKm + altKm
	return model.OrbitalState{
		Position: model.Vec3{X: r},
		Velocity: model.Vec3{Y: math.Sqrt(model.EarthMu / r)},
	}
}

func TestPropagateOrbitConservesEnergyAndMomentum(t *testing.T) {
	ctx := context.Background()
	p := testPropagator()
	st := circularOrbit(1000)

	energy := func(s model.OrbitalState) float64 {
		v := s.Velocity.Norm()
		return v*v/2 - model.EarthMu/s.Position.Norm()
	}
	momentum := func(s model.OrbitalState) float64 {
		return s.Position.Cross(s.Velocity).Norm()
	}

	e0, h0 := energy(st), momentum(st)
	dt := 10.0
	steps := int(OrbitalPeriod(st.Position.Norm())/dt) + 1
	for i := 0; i < steps; i++ {
		st = p.PropagateOrbit(ctx, st, dt, model.Vec3{})
	}

	// J2 makes the two-body energy breathe slightly over an orbit; drag at
	// 1000 km is negligible over a single period.
	if rel := math.Abs((energy(st) - e0) / e0); rel > 1e-4 {
		t.Fatalf("energy drift over one orbit: %v relative", rel)
	}
	if rel := math.Abs((momentum(st) - h0) / h0); rel > 1e-5 {
		t.Fatalf("angular momentum drift over one orbit: %v relative", rel)
	}
}

func TestPropagateOrbitStaysNearCircular(t *testing.T) {
	ctx := context.Background()
	p := testPropagator()
	st := circularOrbit(1000)

	dt := 10.0
	steps := int(OrbitalPeriod(st.Position.Norm())/dt) + 1
	for i := 0; i < steps; i++ {
		st = p.PropagateOrbit(ctx, st, dt, model.Vec3{})
		alt := st.Position.Norm() - model.EarthRadiusKm
		if alt < 975 || alt > 1025 {
			t.Fatalf("altitude left circular band at step %d: %v km", i, alt)
		}
	}
}

func TestPropagateOrbitNonFiniteKeepsPreviousState(t *testing.T) {
	ctx := context.Background()
	p := testPropagator()
	st := circularOrbit(500)

	got := p.PropagateOrbit(ctx, st, 10, model.Vec3{X: math.Inf(1)})
	if got != st {
		t.Fatalf("non-finite thrust: got %+v, want input state back", got)
	}

	got = p.PropagateOrbit(ctx, st, 10, model.Vec3{Y: math.NaN()})
	if got != st {
		t.Fatalf("NaN thrust: got %+v, want input state back", got)
	}
}

func TestPropagateAttitudeResetsOnNonFiniteInput(t *testing.T) {
	ctx := context.Background()
	p := testPropagator()

	bad := model.AttitudeState{
		Attitude:        model.Quaternion{W: math.NaN()},
		AngularVelocity: model.Vec3{X: 0.01},
	}
	if got := p.PropagateAttitude(ctx, bad, 10, model.Vec3{}, model.Vec3{}, nil); got != model.SafeAttitudeState() {
		t.Fatalf("NaN attitude input: got %+v, want safe reset", got)
	}

	ok := model.AttitudeState{Attitude: model.IdentityQuaternion()}
	if got := p.PropagateAttitude(ctx, ok, 10, model.Vec3{Z: math.Inf(-1)}, model.Vec3{}, nil); got != model.SafeAttitudeState() {
		t.Fatalf("Inf control torque: got %+v, want safe reset", got)
	}
}

func TestPropagateAttitudeZeroRateHoldsOrientation(t *testing.T) {
	ctx := context.Background()
	p := testPropagator()

	st := model.AttitudeState{Attitude: model.Quaternion{W: 0.5, X: 0.5, Y: 0.5, Z: 0.5}}
	got := p.PropagateAttitude(ctx, st, 10, model.Vec3{}, model.Vec3{}, nil)
	if got.Attitude != st.Attitude {
		t.Fatalf("orientation changed with zero rates: %+v", got.Attitude)
	}
	if got.AngularVelocity != (model.Vec3{}) || got.WheelMomentum != (model.Vec3{}) {
		t.Fatalf("rates changed with zero torques: %+v", got)
	}
}

func TestPropagateAttitudeSpinAboutZ(t *testing.T) {
	// A torque-free spin about a principal axis has no gyroscopic
	// coupling, so the exponential map should track the closed-form
	// rotation exactly.
	ctx := context.Background()
	p := testPropagator()

	const omega = 0.01 // rad/s
	st := model.AttitudeState{
		Attitude:        model.IdentityQuaternion(),
		AngularVelocity: model.Vec3{Z: omega},
	}

	const dt = 0.5
	const steps = 100
	for i := 0; i < steps; i++ {
		st = p.PropagateAttitude(ctx, st, dt, model.Vec3{}, model.Vec3{}, nil)
	}

	half := omega * dt * steps / 2
	if !scalar.EqualWithinAbs(st.Attitude.W, math.Cos(half), 1e-9) {
		t.Fatalf("W: got %v, want %v", st.Attitude.W, math.Cos(half))
	}
	if !scalar.EqualWithinAbs(st.Attitude.Z, math.Sin(half), 1e-9) {
		t.Fatalf("Z: got %v, want %v", st.Attitude.Z, math.Sin(half))
	}
	if !scalar.EqualWithinAbs(st.AngularVelocity.Z, omega, 1e-12) {
		t.Fatalf("spin rate drifted: %v", st.AngularVelocity.Z)
	}
}

func TestPropagateAttitudeWheelMomentumIntegration(t *testing.T) {
	ctx := context.Background()
	p := testPropagator()

	// Below the 70% desaturation threshold the wheels integrate the
	// commanded torque directly.
	st := model.AttitudeState{
		Attitude:      model.IdentityQuaternion(),
		WheelMomentum: model.Vec3{X: 5},
	}
	torque := model.Vec3{X: 0.01}
	got := p.PropagateAttitude(ctx, st, 2, torque, model.Vec3{}, nil)
	if !scalar.EqualWithinAbs(got.WheelMomentum.X, 5+0.01*2, 1e-12) {
		t.Fatalf("wheel momentum: got %v, want %v", got.WheelMomentum.X, 5.02)
	}

	// Above the threshold the desaturation term enters the integration
	// with the ramp strength (ratio-0.7)/0.3.
	st.WheelMomentum = model.Vec3{X: 8}
	strength := (0.8 - 0.7) / 0.3
	want := 8 + (0+0.02*strength*8)*2.0
	got = p.PropagateAttitude(ctx, st, 2, model.Vec3{}, model.Vec3{}, nil)
	if !scalar.EqualWithinAbs(got.WheelMomentum.X, want, 1e-9) {
		t.Fatalf("desaturating wheel momentum: got %v, want %v", got.WheelMomentum.X, want)
	}
}

func TestPropagateAttitudeGravityGradientOnlyWithPosition(t *testing.T) {
	ctx := context.Background()
	p := testPropagator()

	st := model.AttitudeState{Attitude: model.IdentityQuaternion()}
	pos := model.Vec3{X: model.EarthRadiusKm + 500}

	without := p.PropagateAttitude(ctx, st, 10, model.Vec3{}, model.Vec3{}, nil)
	with := p.PropagateAttitude(ctx, st, 10, model.Vec3{}, model.Vec3{}, &pos)

	if without.AngularVelocity != (model.Vec3{}) {
		t.Fatalf("no position: angular velocity should stay zero, got %+v", without.AngularVelocity)
	}
	if with.AngularVelocity == (model.Vec3{}) {
		t.Fatal("position given: gravity gradient should torque the body")
	}
	// Radial unit along +X crossed with body Z gives a -Y torque.
	if with.AngularVelocity.Y >= 0 {
		t.Fatalf("gravity gradient direction: got %+v", with.AngularVelocity)
	}
}

func TestPropagateAttitudeQuaternionNormInvariant(t *testing.T) {
	ctx := context.Background()
	p := testPropagator()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	small := gen.Float64Range(-0.05, 0.05)
	properties.Property("propagated quaternion stays unit length", prop.ForAll(
		func(wx, wy, wz, tx, ty, tz float64) bool {
			st := model.AttitudeState{
				Attitude:        model.Quaternion{W: 0.9, X: 0.1, Y: -0.2, Z: 0.3},
				AngularVelocity: model.Vec3{X: wx, Y: wy, Z: wz},
			}
			next := p.PropagateAttitude(ctx, st, 10, model.Vec3{X: tx, Y: ty, Z: tz}, model.Vec3{}, nil)
			return math.Abs(next.Attitude.Norm()-1) <= 1e-9
		},
		small, small, small, small, small, small,
	))

	properties.TestingRun(t)
}
