// Package sim wires the propagator, controller, command pipeline, and
// subsystem models into the fixed-step run loop, and owns run I/O:
// configuration loading, the telemetry CSV, the mission summary, and the
// ground-track render.
package sim

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	satellite "github.com/joshuaferrara/go-satellite"
	"gopkg.in/yaml.v3"

	"github.com/scopefoundry/smallsat-simulator/cyber"
	"github.com/scopefoundry/smallsat-simulator/model"
	"github.com/scopefoundry/smallsat-simulator/timectrl"
)

// DefaultAltitudeKm is the starting circular-orbit altitude used when the
// configuration gives neither an altitude nor a TLE.
const DefaultAltitudeKm = 1000

var validate = validator.New()

// Config is a fully resolved run configuration: every value the Simulator
// needs, with the initial orbital state already computed from either a
// circular-orbit altitude or a TLE.
type Config struct {
	Simulation model.SimulationConfig
	Satellite  model.SatelliteConfig
	Ground     model.GroundStationConfig
	Control    model.ControlConfig
	Defense    model.DefenseConfig

	InitialOrbit     model.OrbitalState
	InitialAttitude  model.AttitudeState
	TargetAltitudeKm float64

	Scenarios []cyber.Scenario
	Pacing    timectrl.Mode
}

// DefaultConfig returns the stock run profile: the default spacecraft on a
// 1000 km circular equatorial orbit with a slight initial tumble, no attack
// scenarios, accelerated pacing.
func DefaultConfig() Config {
	return Config{
		Simulation:       model.DefaultSimulationConfig(),
		Satellite:        model.DefaultSatelliteConfig(),
		Ground:           model.DefaultGroundStationConfig(),
		Control:          model.DefaultControlConfig(),
		Defense:          model.DefaultDefenseConfig(),
		InitialOrbit:     circularOrbit(DefaultAltitudeKm),
		InitialAttitude:  defaultAttitude(),
		TargetAltitudeKm: DefaultAltitudeKm,
	}
}

func circularOrbit(altitudeKm float64) model.OrbitalState {
	r := model.EarthRadiusKm + altitudeKm
	return model.OrbitalState{
		Position: model.Vec3{X: r},
		Velocity: model.Vec3{Y: math.Sqrt(model.EarthMu / r)},
	}
}

func defaultAttitude() model.AttitudeState {
	return model.AttitudeState{
		Attitude:        model.IdentityQuaternion(),
		AngularVelocity: model.Vec3{X: 0.001, Y: -0.0005, Z: 0.002},
	}
}

// internal YAML shapes; kept unexported so the file format can evolve
// independently of the domain types.
type rawConfig struct {
	Simulation    model.SimulationConfig    `yaml:"simulation"`
	Satellite     model.SatelliteConfig     `yaml:"satellite"`
	GroundStation model.GroundStationConfig `yaml:"ground_station"`
	Control       model.ControlConfig       `yaml:"control"`
	Defense       model.DefenseConfig       `yaml:"defense"`
	Initial       rawInitialState           `yaml:"initial_state"`
	Scenarios     []rawScenario             `yaml:"scenarios"`
	Pacing        string                    `yaml:"pacing"` // accelerated | realtime
}

type rawInitialState struct {
	AltitudeKm float64 `yaml:"altitude_km"`

	// A TLE pair takes precedence over altitude_km. The state is taken
	// from SGP4 at the given epoch (RFC 3339; defaults to now).
	TLELine1 string `yaml:"tle_line1"`
	TLELine2 string `yaml:"tle_line2"`
	Epoch    string `yaml:"epoch"`

	AngularRateRadS [3]float64 `yaml:"angular_rate_rad_s"`
}

type rawScenario struct {
	Attack         string  `yaml:"attack"`
	StartTimeS     float64 `yaml:"start_time_s"`
	DurationS      float64 `yaml:"duration_s"`
	Intensity      float64 `yaml:"intensity"`
	SpoofMode      string  `yaml:"spoof_mode"`
	CompromisedKey bool    `yaml:"compromised_key"`
}

// LoadConfig reads a YAML run configuration. Absent keys keep their
// defaults, so a file only needs the values it wants to change.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return parseConfig(data)
}

func parseConfig(data []byte) (Config, error) {
	raw := rawConfig{
		Simulation:    model.DefaultSimulationConfig(),
		Satellite:     model.DefaultSatelliteConfig(),
		GroundStation: model.DefaultGroundStationConfig(),
		Control:       model.DefaultControlConfig(),
		Defense:       model.DefaultDefenseConfig(),
		Initial: rawInitialState{
			AltitudeKm:      DefaultAltitudeKm,
			AngularRateRadS: [3]float64{0.001, -0.0005, 0.002},
		},
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg := Config{
		Simulation: raw.Simulation,
		Satellite:  raw.Satellite,
		Ground:     raw.GroundStation,
		Control:    raw.Control,
		Defense:    raw.Defense,
	}

	mode, err := timectrl.ParseMode(raw.Pacing)
	if err != nil {
		return Config{}, err
	}
	cfg.Pacing = mode

	orbit, target, err := raw.Initial.orbitalState()
	if err != nil {
		return Config{}, err
	}
	cfg.InitialOrbit = orbit
	cfg.TargetAltitudeKm = target
	cfg.InitialAttitude = model.AttitudeState{
		Attitude: model.IdentityQuaternion(),
		AngularVelocity: model.Vec3{
			X: raw.Initial.AngularRateRadS[0],
			Y: raw.Initial.AngularRateRadS[1],
			Z: raw.Initial.AngularRateRadS[2],
		},
	}

	for i, rs := range raw.Scenarios {
		sc, err := buildScenario(rs)
		if err != nil {
			return Config{}, fmt.Errorf("scenario %d: %w", i, err)
		}
		cfg.Scenarios = append(cfg.Scenarios, sc)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (r rawInitialState) orbitalState() (model.OrbitalState, float64, error) {
	if r.TLELine1 != "" || r.TLELine2 != "" {
		if r.TLELine1 == "" || r.TLELine2 == "" {
			return model.OrbitalState{}, 0, fmt.Errorf("initial_state: tle_line1 and tle_line2 must both be set")
		}
		epoch := time.Now().UTC()
		if r.Epoch != "" {
			parsed, err := time.Parse(time.RFC3339, r.Epoch)
			if err != nil {
				return model.OrbitalState{}, 0, fmt.Errorf("initial_state: bad epoch: %w", err)
			}
			epoch = parsed.UTC()
		}
		st, err := stateFromTLE(r.TLELine1, r.TLELine2, epoch)
		if err != nil {
			return model.OrbitalState{}, 0, err
		}
		return st, st.Position.Norm() - model.EarthRadiusKm, nil
	}

	if r.AltitudeKm <= 0 {
		return model.OrbitalState{}, 0, fmt.Errorf("initial_state: altitude_km must be positive")
	}
	return circularOrbit(r.AltitudeKm), r.AltitudeKm, nil
}

// stateFromTLE runs SGP4 at the epoch and takes the resulting TEME position
// and velocity as the starting ECI state.
func stateFromTLE(line1, line2 string, epoch time.Time) (model.OrbitalState, error) {
	sat := satellite.TLEToSat(strings.TrimSpace(line1), strings.TrimSpace(line2), satellite.GravityWGS72)

	year, month, day := epoch.Date()
	hour, min, sec := epoch.Clock()
	pos, vel := satellite.Propagate(sat, year, int(month), day, hour, min, sec)

	st := model.OrbitalState{
		Position: model.Vec3{X: pos.X, Y: pos.Y, Z: pos.Z},
		Velocity: model.Vec3{X: vel.X, Y: vel.Y, Z: vel.Z},
	}
	if !st.IsFinite() || st.Position.Norm() <= model.EarthRadiusKm {
		return model.OrbitalState{}, fmt.Errorf("tle propagation produced an unusable state at %s", epoch.Format(time.RFC3339))
	}
	return st, nil
}

func buildScenario(raw rawScenario) (cyber.Scenario, error) {
	kind, err := cyber.ParseAttackKind(raw.Attack)
	if err != nil {
		return cyber.Scenario{}, err
	}

	var attack cyber.Attack
	switch kind {
	case cyber.AttackNone:
		attack = cyber.NoAttack{}
	case cyber.AttackCommandSpoofing:
		if raw.SpoofMode == "" {
			return cyber.Scenario{}, fmt.Errorf("command_spoofing requires spoof_mode")
		}
		mode, err := cyber.ParseSpoofMode(raw.SpoofMode)
		if err != nil {
			return cyber.Scenario{}, err
		}
		attack = cyber.CommandSpoofing{Mode: mode, HasCompromisedKey: raw.CompromisedKey}
	case cyber.AttackTelemetryFalsification:
		attack = cyber.TelemetryFalsification{}
	case cyber.AttackDenialOfService:
		attack = cyber.DenialOfService{}
	case cyber.AttackBatteryDepletion:
		attack = cyber.BatteryDepletion{}
	case cyber.AttackMaliciousDetumble:
		attack = cyber.MaliciousDetumble{HasCompromisedKey: raw.CompromisedKey}
	case cyber.AttackOrbitManipulation:
		attack = cyber.OrbitManipulation{HasCompromisedKey: raw.CompromisedKey}
	default:
		return cyber.Scenario{}, fmt.Errorf("unhandled attack kind %q", raw.Attack)
	}

	if raw.DurationS < 0 {
		return cyber.Scenario{}, fmt.Errorf("duration_s must not be negative")
	}
	if raw.Intensity < 0 || raw.Intensity > 1 {
		return cyber.Scenario{}, fmt.Errorf("intensity must be within [0, 1], got %v", raw.Intensity)
	}

	return cyber.Scenario{
		Attack:    attack,
		StartTime: raw.StartTimeS,
		Duration:  raw.DurationS,
		Intensity: raw.Intensity,
	}, nil
}

// Validate checks the resolved configuration, including the constraints the
// struct tags cannot express.
func (c Config) Validate() error {
	for _, section := range []struct {
		name  string
		value any
	}{
		{"simulation", c.Simulation},
		{"satellite", c.Satellite},
		{"ground_station", c.Ground},
		{"control", c.Control},
	} {
		if err := validate.Struct(section.value); err != nil {
			return fmt.Errorf("%s config: %w", section.name, err)
		}
	}

	if c.Satellite.Inertia.X <= 0 || c.Satellite.Inertia.Y <= 0 || c.Satellite.Inertia.Z <= 0 {
		return fmt.Errorf("satellite config: inertia components must be positive, got %+v", c.Satellite.Inertia)
	}
	if !c.InitialOrbit.IsFinite() || c.InitialOrbit.Position.Norm() <= model.EarthRadiusKm {
		return fmt.Errorf("initial orbit is below the surface or not finite")
	}
	return nil
}
