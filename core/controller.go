package core

import (
	"context"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/scopefoundry/smallsat-simulator/internal/logging"
	"github.com/scopefoundry/smallsat-simulator/model"
)

// Controller turns state error into actuator commands: a proportional
// altitude-keeping thrust law with a dead-band, and a quaternion PD attitude
// law with gain scheduling. Both add zero-mean Gaussian actuator noise drawn
// from the injected source, so runs reproduce under a fixed seed.
type Controller struct {
	cfg model.ControlConfig
	log logging.Logger

	thrustNoise distuv.Normal
	torqueNoise distuv.Normal
}

// NewController constructs a controller whose actuator noise draws from src.
func NewController(cfg model.ControlConfig, src rand.Source, log logging.Logger) *Controller {
	if log == nil {
		log = logging.Noop()
	}
	return &Controller{
		cfg:         cfg,
		log:         log,
		thrustNoise: distuv.Normal{Mu: 0, Sigma: cfg.ThrustNoiseStd, Src: src},
		torqueNoise: distuv.Normal{Mu: 0, Sigma: cfg.TorqueNoiseStd, Src: src},
	}
}

func noise3(dist distuv.Normal) model.Vec3 {
	return model.Vec3{X: dist.Rand(), Y: dist.Rand(), Z: dist.Rand()}
}

// OrbitControl returns a radial thrust acceleration (km/s^2) correcting the
// altitude toward the target. Errors under 5 km sit inside the dead-band and
// return exactly zero, preventing actuator chatter.
func (c *Controller) OrbitControl(st model.OrbitalState, targetAltKm float64) model.Vec3 {
	rMag := st.Position.Norm()
	if rMag < 1e-10 {
		return model.Vec3{}
	}
	altErr := targetAltKm - (rMag - model.EarthRadiusKm)
	if math.Abs(altErr) < 5.0 {
		return model.Vec3{}
	}
	thrust := st.Position.Scale(altErr * c.cfg.OrbitGain / rMag)
	return thrust.Add(noise3(c.thrustNoise))
}

// AttitudeControl returns a PD wheel torque (N*m) driving the attitude
// toward identity, which encodes nadir pointing in this frame. Every stage
// guards a numeric failure mode and degrades to zero torque rather than
// emitting a non-finite value.
func (c *Controller) AttitudeControl(ctx context.Context, st model.AttitudeState) model.Vec3 {
	// 1) Reject degenerate orientations outright.
	if st.Attitude.Norm() < 1e-10 {
		return model.Vec3{}
	}
	q := st.Attitude.Normalize()

	// 2) Shortest path: q and -q encode the same rotation.
	if q.W < 0 {
		q = q.Neg()
	}

	// 3) Orientation error relative to the identity target.
	qErr := model.IdentityQuaternion().Mul(q.Conjugate())

	// 4) Clamp the scalar before arccos. A clamp that moves the value by
	// more than 1e-6 means the quaternion drifted off the unit sphere:
	// renormalize and retry once.
	wErr := clamp(qErr.W, -1, 1)
	if math.Abs(qErr.W-wErr) > 1e-6 {
		if qErr.Norm() < 1e-10 {
			return model.Vec3{}
		}
		qErr = qErr.Normalize()
		wErr = clamp(qErr.W, -1, 1)
	}

	// 5) Axis-angle extraction. Small angles use the 2*vector
	// approximation, which avoids dividing by a near-zero sin(angle/2).
	errAngle := 2 * math.Acos(wErr)
	vec := qErr.Vector()
	var errVec model.Vec3
	switch {
	case vec.Norm() < 1e-10:
		// no rotation error
	case errAngle < 0.1:
		errVec = vec.Scale(2)
	default:
		if math.Abs(math.Sin(errAngle/2)) >= 1e-10 {
			errVec = vec.Unit().Scale(errAngle)
		}
	}

	// 6) Gain schedule: full strength near zero error, tapering to 20%
	// at large errors to avoid overshoot.
	errDeg := errAngle * 180 / math.Pi
	scale := 0.2 + 0.8/(1+(errDeg/30)*(errDeg/30))

	// 7) PD law plus actuator noise.
	torque := errVec.Scale(c.cfg.AttitudeGainP * scale).
		Sub(st.AngularVelocity.Scale(c.cfg.AttitudeGainD * scale)).
		Add(noise3(c.torqueNoise))

	// 8) Final gate: never emit a non-finite torque.
	if !torque.IsFinite() {
		c.log.Error(ctx, "attitude control produced non-finite torque, substituting zero",
			logging.Any("attitude", st.Attitude),
			logging.Any("angular_velocity", st.AngularVelocity),
			logging.Any("error_angle_rad", errAngle),
			logging.Any("error_vector", errVec),
		)
		return model.Vec3{}
	}
	return torque
}
