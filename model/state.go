package model

// OrbitalState is the translational state of the spacecraft in the ECI
// frame: position in km, velocity in km/s. Only the propagator produces new
// values; the simulation loop owns the current one.
type OrbitalState struct {
	Position Vec3
	Velocity Vec3
}

// IsFinite reports whether every component of the state is finite.
func (s OrbitalState) IsFinite() bool {
	return s.Position.IsFinite() && s.Velocity.IsFinite()
}

// AttitudeState is the rotational state: body orientation relative to ECI as
// a unit quaternion, body angular velocity in rad/s, and stored reaction
// wheel momentum in N*m*s.
type AttitudeState struct {
	Attitude        Quaternion
	AngularVelocity Vec3
	WheelMomentum   Vec3
}

// SafeAttitudeState is the recovery value substituted whenever attitude
// propagation sees a non-finite input or output: identity orientation, zero
// rates, zero wheel momentum.
func SafeAttitudeState() AttitudeState {
	return AttitudeState{Attitude: IdentityQuaternion()}
}

// IsFinite reports whether every component of the state is finite.
func (s AttitudeState) IsFinite() bool {
	return s.Attitude.IsFinite() && s.AngularVelocity.IsFinite() && s.WheelMomentum.IsFinite()
}

// PowerState is the electrical subsystem snapshot after an update step.
type PowerState struct {
	BatteryChargeWh   float64
	SolarGenerationW  float64
	PowerConsumptionW float64
	BatteryVoltage    float64
	BatteryTempK      float64
}

// ThermalState is the thermal subsystem snapshot: per-component temperatures
// in kelvin plus the heat flows that produced them.
type ThermalState struct {
	ComponentTempsK  map[string]float64
	HeatGenerationW  float64
	HeatDissipationW float64
}

// CommsState is the link-geometry snapshot for the single ground station.
type CommsState struct {
	LinkActive     bool
	SignalStrength float64 // 0..1 linear
	RangeKm        float64
	DopplerHz      float64
	ElevationDeg   float64
}
