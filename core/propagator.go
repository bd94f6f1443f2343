package core

import (
	"context"
	"math"

	"github.com/scopefoundry/smallsat-simulator/internal/logging"
	"github.com/scopefoundry/smallsat-simulator/model"
)

// Propagator advances orbital and attitude states across fixed timesteps.
// Orbit propagation integrates two-body gravity, the J2 zonal perturbation,
// atmospheric drag, and commanded thrust with a fourth-order Runge-Kutta
// step. Attitude propagation is rigid-body dynamics with reaction wheel
// momentum exchange, passive magnetic desaturation, and exact exponential-map
// quaternion integration.
type Propagator struct {
	sat model.SatelliteConfig
	log logging.Logger
}

// NewPropagator constructs a propagator for the given spacecraft.
func NewPropagator(sat model.SatelliteConfig, log logging.Logger) *Propagator {
	if log == nil {
		log = logging.Noop()
	}
	return &Propagator{sat: sat, log: log}
}

// dragAcceleration returns drag in km/s^2. Drag forces work in SI units
// internally, so velocity converts to m/s and the result scales back.
func (p *Propagator) dragAcceleration(st model.OrbitalState, altKm float64) model.Vec3 {
	rho := AtmosphericDensity(altKm)
	vRel := st.Velocity.Scale(1000)
	vMag := vRel.Norm()
	if vMag < 0.01 {
		return model.Vec3{}
	}
	force := vRel.Scale(-0.5 * rho * p.sat.DragCoefficient * p.sat.CrossSectionAreaM2 * vMag)
	return force.Scale(1 / p.sat.MassKg / 1000)
}

func (p *Propagator) orbitDerivatives(st model.OrbitalState, thrustAccel model.Vec3) (dPos, dVel model.Vec3) {
	r := st.Position
	rMag := r.Norm()
	if rMag < 1e-10 {
		// Degenerate radius: no defined gravity direction.
		return st.Velocity, thrustAccel
	}

	gravity := r.Scale(-model.EarthMu / (rMag * rMag * rMag))

	j2Factor := 1.5 * model.EarthJ2 * model.EarthMu *
		model.EarthRadiusKm * model.EarthRadiusKm / math.Pow(rMag, 5)
	z2 := 5 * r.Z * r.Z / (rMag * rMag)
	j2 := model.Vec3{
		X: r.X * (z2 - 1),
		Y: r.Y * (z2 - 1),
		Z: r.Z * (z2 - 3),
	}.Scale(j2Factor)

	drag := p.dragAcceleration(st, rMag-model.EarthRadiusKm)

	return st.Velocity, gravity.Add(j2).Add(drag).Add(thrustAccel)
}

// PropagateOrbit integrates the orbital state over dt seconds. thrustAccel
// (km/s^2) is held constant across the step. A step that produces any
// non-finite component is discarded and the input state returned unchanged.
func (p *Propagator) PropagateOrbit(ctx context.Context, st model.OrbitalState, dt float64, thrustAccel model.Vec3) model.OrbitalState {
	k1v, k1a := p.orbitDerivatives(st, thrustAccel)
	st2 := model.OrbitalState{
		Position: st.Position.Add(k1v.Scale(dt / 2)),
		Velocity: st.Velocity.Add(k1a.Scale(dt / 2)),
	}
	k2v, k2a := p.orbitDerivatives(st2, thrustAccel)
	st3 := model.OrbitalState{
		Position: st.Position.Add(k2v.Scale(dt / 2)),
		Velocity: st.Velocity.Add(k2a.Scale(dt / 2)),
	}
	k3v, k3a := p.orbitDerivatives(st3, thrustAccel)
	st4 := model.OrbitalState{
		Position: st.Position.Add(k3v.Scale(dt)),
		Velocity: st.Velocity.Add(k3a.Scale(dt)),
	}
	k4v, k4a := p.orbitDerivatives(st4, thrustAccel)

	next := model.OrbitalState{
		Position: st.Position.Add(k1v.Add(k2v.Scale(2)).Add(k3v.Scale(2)).Add(k4v).Scale(dt / 6)),
		Velocity: st.Velocity.Add(k1a.Add(k2a.Scale(2)).Add(k3a.Scale(2)).Add(k4a).Scale(dt / 6)),
	}
	if !next.IsFinite() {
		p.log.Warn(ctx, "orbit propagation produced non-finite state, keeping previous state",
			logging.Any("position", st.Position),
			logging.Any("velocity", st.Velocity),
			logging.Any("thrust_accel", thrustAccel),
		)
		return st
	}
	return next
}

// gravityGradientTorque is a small restoring torque toward nadir,
// proportional to mu/r^3 and scaled down to perturbation magnitude.
func (p *Propagator) gravityGradientTorque(position model.Vec3) model.Vec3 {
	rMag := position.Norm()
	if rMag < 1e-10 {
		return model.Vec3{}
	}
	coeff := 3 * model.EarthMu / (rMag * rMag * rMag)
	magnitude := coeff * p.sat.Inertia.Z * 1e-12
	return position.Unit().Cross(model.Vec3{Z: 1}).Scale(magnitude)
}

// PropagateAttitude advances orientation, body rates, and wheel momentum
// over dt seconds. controlTorque is commanded into the wheels and reacts on
// the body; externalTorque applies to the body directly. A non-nil position
// adds the gravity-gradient torque. Once wheel momentum passes 70% of its
// rated maximum a desaturation torque ramps in linearly and acts on the
// body opposite the stored momentum.
//
// Any non-finite input or output discards the step and returns the safe
// reset state. The returned quaternion is always renormalized.
func (p *Propagator) PropagateAttitude(ctx context.Context, st model.AttitudeState, dt float64, controlTorque, externalTorque model.Vec3, position *model.Vec3) model.AttitudeState {
	if !st.IsFinite() || !controlTorque.IsFinite() || !externalTorque.IsFinite() {
		p.log.Warn(ctx, "non-finite attitude input, resetting to safe state",
			logging.Any("attitude", st.Attitude),
			logging.Any("angular_velocity", st.AngularVelocity),
			logging.Any("control_torque", controlTorque),
		)
		return model.SafeAttitudeState()
	}

	q := st.Attitude.Normalize()
	w := st.AngularVelocity
	h := st.WheelMomentum
	inertia := p.sat.Inertia

	if position != nil {
		externalTorque = externalTorque.Add(p.gravityGradientTorque(*position))
	}

	var desat model.Vec3
	if ratio := h.Norm() / p.sat.WheelMaxMomentum; ratio > 0.7 {
		strength := (ratio - 0.7) / 0.3
		desat = h.Scale(-0.02 * strength)
	}

	// Euler's rotational equation with the wheels' gyroscopic coupling
	// folded into the external torque.
	totalExternal := externalTorque.Add(desat).Sub(w.Cross(h))
	total := controlTorque.Add(totalExternal)
	iw := model.Vec3{X: inertia.X * w.X, Y: inertia.Y * w.Y, Z: inertia.Z * w.Z}
	gyro := w.Cross(iw)
	wDot := model.Vec3{
		X: (total.X - gyro.X) / inertia.X,
		Y: (total.Y - gyro.Y) / inertia.Y,
		Z: (total.Z - gyro.Z) / inertia.Z,
	}

	newW := w.Add(wDot.Scale(dt))

	// Control torque loads the wheels; desaturation enters the wheel
	// integration with opposite sign.
	newH := h.Add(controlTorque.Sub(desat).Scale(dt))

	newQ := q
	if wMag := newW.Norm(); wMag >= 1e-12 {
		theta := wMag * dt
		axis := newW.Scale(1 / wMag)
		sinHalf := math.Sin(theta / 2)
		dq := model.Quaternion{
			W: math.Cos(theta / 2),
			X: sinHalf * axis.X,
			Y: sinHalf * axis.Y,
			Z: sinHalf * axis.Z,
		}
		newQ = dq.Mul(q)
	}
	newQ = newQ.Normalize()

	next := model.AttitudeState{Attitude: newQ, AngularVelocity: newW, WheelMomentum: newH}
	if !next.IsFinite() {
		p.log.Error(ctx, "attitude propagation produced non-finite state, resetting",
			logging.Any("input_attitude", st.Attitude),
			logging.Any("input_angular_velocity", st.AngularVelocity),
			logging.Any("control_torque", controlTorque),
			logging.Any("angular_accel", wDot),
		)
		return model.SafeAttitudeState()
	}
	return next
}
