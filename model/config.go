package model

// SimulationConfig controls the outer fixed-step loop.
type SimulationConfig struct {
	Steps         int     `yaml:"steps" validate:"gt=0"`
	TimestepS     float64 `yaml:"timestep_s" validate:"gt=0"`
	BaseErrorRate float64 `yaml:"base_error_rate" validate:"gte=0,lte=1"`
	LogFile       string  `yaml:"log_file"`
	// Seed drives every stochastic draw in a run. Zero means derive a seed
	// from entropy; any other value reproduces the run exactly.
	Seed uint64 `yaml:"seed"`
}

// DefaultSimulationConfig returns the stock run profile.
func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		Steps:         20000,
		TimestepS:     10,
		BaseErrorRate: 0.9,
		LogFile:       "telemetry_log.csv",
	}
}

// SatelliteConfig is the physical description of the spacecraft.
type SatelliteConfig struct {
	MassKg float64 `yaml:"mass_kg" validate:"gt=0"`

	// Principal moments of inertia in kg*m^2. Every component must be
	// positive; the loader checks this since the tag syntax cannot reach
	// inside Vec3.
	Inertia Vec3 `yaml:"inertia"`

	WheelMaxTorque   float64 `yaml:"wheel_max_torque" validate:"gt=0"`   // N*m
	WheelMaxMomentum float64 `yaml:"wheel_max_momentum" validate:"gt=0"` // N*m*s

	DragCoefficient    float64 `yaml:"drag_coefficient" validate:"gte=0"`
	CrossSectionAreaM2 float64 `yaml:"cross_section_area_m2" validate:"gte=0"`

	SolarPanelAreaM2  float64 `yaml:"solar_panel_area_m2" validate:"gte=0"`
	SolarEfficiency   float64 `yaml:"solar_efficiency" validate:"gte=0,lte=1"`
	BatteryCapacityWh float64 `yaml:"battery_capacity_wh" validate:"gt=0"`
	BaselinePowerW    float64 `yaml:"baseline_power_w" validate:"gte=0"`

	ThermalMassJPerK float64 `yaml:"thermal_mass_j_per_k" validate:"gt=0"`
	Emissivity       float64 `yaml:"emissivity" validate:"gte=0,lte=1"`
	Absorptivity     float64 `yaml:"absorptivity" validate:"gte=0,lte=1"`
}

// DefaultSatelliteConfig describes a 100 kg smallsat bus.
func DefaultSatelliteConfig() SatelliteConfig {
	return SatelliteConfig{
		MassKg:             100,
		Inertia:            Vec3{X: 10, Y: 10, Z: 15},
		WheelMaxTorque:     0.1,
		WheelMaxMomentum:   10,
		DragCoefficient:    2.2,
		CrossSectionAreaM2: 1.5,
		SolarPanelAreaM2:   2.0,
		SolarEfficiency:    0.28,
		BatteryCapacityWh:  20000,
		BaselinePowerW:     50,
		ThermalMassJPerK:   500,
		Emissivity:         0.85,
		Absorptivity:       0.9,
	}
}

// GroundStationConfig describes the single ground station the comms model
// evaluates visibility against.
type GroundStationConfig struct {
	LatitudeDeg     float64 `yaml:"latitude_deg" validate:"gte=-90,lte=90"`
	LongitudeDeg    float64 `yaml:"longitude_deg" validate:"gte=-180,lte=180"`
	MinElevationDeg float64 `yaml:"min_elevation_deg" validate:"gte=0,lte=90"`
	MaxRangeKm      float64 `yaml:"max_range_km" validate:"gt=0"`
	FrequencyHz     float64 `yaml:"frequency_hz" validate:"gt=0"`
}

// DefaultGroundStationConfig is an S-band station in New Mexico.
func DefaultGroundStationConfig() GroundStationConfig {
	return GroundStationConfig{
		LatitudeDeg:     34.5,
		LongitudeDeg:    -106.5,
		MinElevationDeg: 10,
		MaxRangeKm:      2500,
		FrequencyHz:     2.2e9,
	}
}

// ControlConfig holds the control-law gains and actuator noise levels.
type ControlConfig struct {
	OrbitGain      float64 `yaml:"orbit_gain" validate:"gte=0"`
	AttitudeGainP  float64 `yaml:"attitude_gain_p" validate:"gte=0"`
	AttitudeGainD  float64 `yaml:"attitude_gain_d" validate:"gte=0"`
	ThrustNoiseStd float64 `yaml:"thrust_noise_std" validate:"gte=0"`
	TorqueNoiseStd float64 `yaml:"torque_noise_std" validate:"gte=0"`
}

// DefaultControlConfig returns gentle gains suited to the default bus.
func DefaultControlConfig() ControlConfig {
	return ControlConfig{
		OrbitGain:      1e-5,
		AttitudeGainP:  0.02,
		AttitudeGainD:  0.05,
		ThrustNoiseStd: 1e-4,
		TorqueNoiseStd: 1e-3,
	}
}

// DefenseConfig selects which command defenses are active on the satellite
// side. With authentication off the verifier accepts every command body,
// which is the baseline for attack comparison runs.
type DefenseConfig struct {
	EnableCommandAuth bool `yaml:"enable_command_auth"`
}

// DefaultDefenseConfig enables signature authentication.
func DefaultDefenseConfig() DefenseConfig {
	return DefenseConfig{EnableCommandAuth: true}
}
