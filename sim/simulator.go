package sim

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/exp/rand"

	"github.com/scopefoundry/smallsat-simulator/bus"
	"github.com/scopefoundry/smallsat-simulator/core"
	"github.com/scopefoundry/smallsat-simulator/cyber"
	"github.com/scopefoundry/smallsat-simulator/internal/logging"
	"github.com/scopefoundry/smallsat-simulator/internal/observability"
	"github.com/scopefoundry/smallsat-simulator/model"
	"github.com/scopefoundry/smallsat-simulator/subsystems"
	"github.com/scopefoundry/smallsat-simulator/timectrl"
)

const tracerName = "github.com/scopefoundry/smallsat-simulator/sim"

// Simulator owns one mission run: the dynamics core, the bus subsystems, the
// signed command pipeline with its attack engine, and the run's telemetry
// log. Build one per run; Run may be called once.
type Simulator struct {
	cfg Config
	log logging.Logger

	propagator *core.Propagator
	controller *core.Controller
	signer     *cyber.Signer
	verifier   *cyber.Verifier
	engine     *cyber.Engine
	channel    *cyber.Channel
	power      *subsystems.Power
	thermal    *subsystems.Thermal
	comms      *subsystems.Comms
	swbus      *bus.Bus
	pacer      *timectrl.Pacer

	flight   *observability.SimCollector
	pipeline *observability.CyberCollector

	stepListeners []func(StepRecord)

	seed     uint64
	orbital  model.OrbitalState
	attitude model.AttitudeState
	history  History
	ran      bool
}

// NewSimulator wires a run from a validated configuration. A fresh Ed25519
// keypair is derived per run: the private key stays on the ground side of
// the loop, the public key goes to the on-board verifier. All stochastic
// state fans out from one master seed in a fixed order, so a nonzero
// Simulation.Seed reproduces a run bit for bit, signatures included.
func NewSimulator(cfg Config, log logging.Logger) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.Noop()
	}

	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	master := rand.New(rand.NewSource(seed))

	// Draw order is part of the reproducibility contract.
	controllerSrc := rand.NewSource(master.Uint64())
	engineSrc := rand.NewSource(master.Uint64())
	channelSrc := rand.NewSource(master.Uint64())
	thermalSrc := rand.NewSource(master.Uint64())
	var keySeed [ed25519.SeedSize]byte
	if _, err := master.Read(keySeed[:]); err != nil {
		return nil, fmt.Errorf("deriving signing key: %w", err)
	}
	signer := cyber.NewSignerFromSeed(keySeed[:])

	s := &Simulator{
		cfg:        cfg,
		log:        log,
		propagator: core.NewPropagator(cfg.Satellite, log),
		controller: core.NewController(cfg.Control, controllerSrc, log),
		signer:     signer,
		verifier:   cyber.NewVerifier(signer.Public(), cfg.Defense.EnableCommandAuth),
		engine:     cyber.NewEngine(cfg.Scenarios, cfg.Simulation.BaseErrorRate, signer, engineSrc, log),
		channel:    cyber.NewChannel(channelSrc),
		power:      subsystems.NewPower(cfg.Satellite),
		thermal:    subsystems.NewThermal(cfg.Satellite, thermalSrc),
		comms:      subsystems.NewComms(cfg.Ground),
		swbus:      bus.New(),
		pacer:      timectrl.NewPacer(cfg.Pacing, time.Duration(cfg.Simulation.TimestepS*float64(time.Second))),
		seed:       seed,
		orbital:    cfg.InitialOrbit,
		attitude:   cfg.InitialAttitude,
	}
	return s, nil
}

// Bus exposes the software bus so callers can subscribe to telemetry before
// starting the run.
func (s *Simulator) Bus() *bus.Bus { return s.swbus }

// Seed returns the master seed in effect, resolved from entropy when the
// configuration left it zero.
func (s *Simulator) Seed() uint64 { return s.seed }

// AttachMetrics points the run at Prometheus collectors. Either may be nil.
func (s *Simulator) AttachMetrics(flight *observability.SimCollector, pipeline *observability.CyberCollector) {
	s.flight = flight
	s.pipeline = pipeline
}

// RegisterStepListener adds a callback invoked after every completed step,
// on the run goroutine. Listeners must not block in realtime runs.
func (s *Simulator) RegisterStepListener(fn func(StepRecord)) {
	s.stepListeners = append(s.stepListeners, fn)
}

// History returns the per-step records accumulated so far.
func (s *Simulator) History() History { return s.history }

// Summary condenses the run so far into headline mission numbers.
func (s *Simulator) Summary() Summary {
	return summarize(s.history, s.cfg.Simulation.TimestepS, s.cfg.TargetAltitudeKm, s.cfg.Satellite, s.power.State())
}

// Run executes the configured number of steps, writing one telemetry CSV row
// per step. A canceled context stops the run between steps and is returned
// as the error; the rows already written stay on disk.
func (s *Simulator) Run(ctx context.Context) error {
	if s.ran {
		return errors.New("simulator already ran")
	}
	s.ran = true

	ctx, log := logging.WithRunLogger(ctx, s.log)
	ctx, span := otel.Tracer(tracerName).Start(ctx, "Simulation/Run", trace.WithAttributes(
		attribute.Int("sim.steps", s.cfg.Simulation.Steps),
		attribute.Float64("sim.timestep_s", s.cfg.Simulation.TimestepS),
		attribute.Int("sim.scenarios", len(s.cfg.Scenarios)),
	))
	defer span.End()

	tlog, err := newTelemetryLog(s.cfg.Simulation.LogFile)
	if err != nil {
		span.RecordError(err)
		return err
	}
	defer tlog.Close()

	log.Info(ctx, "simulation starting",
		logging.Int("steps", s.cfg.Simulation.Steps),
		logging.Any("timestep_s", s.cfg.Simulation.TimestepS),
		logging.Any("target_altitude_km", s.cfg.TargetAltitudeKm),
		logging.Any("seed", s.seed),
		logging.Any("command_auth", s.cfg.Defense.EnableCommandAuth),
		logging.String("log_file", s.cfg.Simulation.LogFile),
	)
	s.history = make(History, 0, s.cfg.Simulation.Steps)

	for step := 0; step < s.cfg.Simulation.Steps; step++ {
		if err := s.pacer.Wait(ctx); err != nil {
			span.RecordError(err)
			log.Warn(ctx, "simulation interrupted",
				logging.Int("completed_steps", step),
				logging.Any("reason", err),
			)
			return err
		}

		started := time.Now()
		rec := s.step(ctx, step)
		if s.flight != nil {
			s.flight.RecordStep(time.Since(started))
			s.flight.SetSpacecraft(rec.AltitudeKm, rec.BatterySOCPct, rec.AttitudeErrDeg, rec.LinkActive)
		}

		s.history = append(s.history, rec)
		if err := tlog.Write(rec); err != nil {
			span.RecordError(err)
			return fmt.Errorf("writing telemetry log: %w", err)
		}

		for _, fn := range s.stepListeners {
			fn(rec)
		}
	}

	if err := tlog.Close(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("closing telemetry log: %w", err)
	}

	sum := s.Summary()
	log.Info(ctx, "simulation complete",
		logging.Any("orbits", sum.TotalOrbits),
		logging.Any("final_altitude_km", sum.FinalAltitudeKm),
		logging.Any("final_battery_soc_pct", sum.FinalBatterySOCPct),
		logging.Any("command_success_rate_pct", sum.CmdSuccessRatePct),
		logging.Any("attack_min", sum.AttackMin),
	)
	return nil
}

// step advances the mission by one timestep: command generation and signing,
// attack application, the corrupt-verify-apply pipeline, dynamics
// propagation, and subsystem updates, in that order.
func (s *Simulator) step(ctx context.Context, step int) StepRecord {
	dt := s.cfg.Simulation.TimestepS
	t := float64(step) * dt

	scenario, attacking := s.engine.ActiveScenario(t)

	// Ground side: compute controls and sign one command per axis.
	thrustCmd := s.controller.OrbitControl(s.orbital, s.cfg.TargetAltitudeKm)
	torqueCmd := s.controller.AttitudeControl(ctx, s.attitude)

	kinds := cyber.AllCommandKinds()
	base := make([]cyber.Envelope, 0, len(kinds))
	for _, kind := range kinds {
		value := torqueCmd.Axis(kind.Axis())
		if kind.IsThrust() {
			value = thrustCmd.Axis(kind.Axis())
		}
		base = append(base, s.signer.Sign(cyber.Command{Kind: kind, Value: value}))
	}

	// Telemetry snapshot the attacker sees: state before this step's updates.
	telemetry := cyber.Telemetry{
		cyber.TelemetryBatterySOC:       100 * s.power.SOC(),
		cyber.TelemetryAltitude:         s.orbital.Position.Norm() - model.EarthRadiusKm,
		cyber.TelemetryPowerConsumption: s.power.State().PowerConsumptionW,
	}

	commands := base
	errorRate := s.engine.BaseErrorRate()
	if attacking {
		commands, telemetry, errorRate = s.engine.Apply(ctx, scenario, base, telemetry)
	}
	if s.pipeline != nil {
		if d := len(commands) - len(base); d > 0 {
			s.pipeline.AddInjected(d)
		} else if d < 0 {
			s.pipeline.AddDropped(-d)
		}
	}

	// Satellite side: every command crosses the noisy channel, then the
	// verifier. Verified bodies that fail to parse are counted as received
	// but actuate nothing.
	var thrustActual, torqueActual model.Vec3
	verified := 0
	for _, env := range commands {
		noisy := s.channel.Corrupt(env, errorRate)
		body, err := s.verifier.Verify(noisy)
		if err != nil {
			s.recordRejection(noisy, err)
			continue
		}
		verified++
		if s.pipeline != nil {
			s.pipeline.IncVerified()
		}
		cmd, err := cyber.ParseCommand(body)
		if err != nil {
			if s.pipeline != nil {
				s.pipeline.IncRejected(observability.ReasonMalformed)
			}
			continue
		}
		if cmd.Kind.IsThrust() {
			thrustActual = thrustActual.WithAxis(cmd.Kind.Axis(), cmd.Value)
		} else {
			torqueActual = torqueActual.WithAxis(cmd.Kind.Axis(), cmd.Value)
		}
	}

	s.orbital = s.propagator.PropagateOrbit(ctx, s.orbital, dt, thrustActual)
	s.attitude = s.propagator.PropagateAttitude(ctx, s.attitude, dt, torqueActual, model.Vec3{}, &s.orbital.Position)

	altitude := s.orbital.Position.Norm() - model.EarthRadiusKm
	velocity := s.orbital.Velocity.Norm()
	inEclipse := core.CheckEclipse(s.orbital.Position)
	lat, lon, _ := core.ECIToLatLonAlt(s.orbital.Position)

	comms := s.comms.Update(s.orbital.Position, s.orbital.Velocity)

	consumption := s.cfg.Satellite.BaselinePowerW
	if comms.LinkActive {
		consumption += 25
	}
	if !inEclipse {
		consumption += 5
	}
	if attacking {
		if _, ok := scenario.Attack.(cyber.BatteryDepletion); ok {
			// The flight software trusts the inflated consumption figure.
			consumption = telemetry[cyber.TelemetryPowerConsumption]
		}
	}

	batteryTemp := s.thermal.State().ComponentTempsK[subsystems.ComponentBattery]
	power := s.power.Update(inEclipse, dt/3600, consumption, batteryTemp)
	thermal := s.thermal.Update(consumption, inEclipse, dt)

	attErrDeg := 2 * math.Acos(math.Min(1, math.Abs(s.attitude.Attitude.W))) * 180 / math.Pi
	batterySOC := 100 * s.power.SOC()

	// Falsified telemetry replaces the displayed values only; the physical
	// state above is untouched.
	if attacking {
		if _, ok := scenario.Attack.(cyber.TelemetryFalsification); ok {
			batterySOC = telemetry[cyber.TelemetryBatterySOC]
			altitude = telemetry[cyber.TelemetryAltitude]
		}
	}

	pkt := s.swbus.CreatePacket(bus.APIDTelemetry, bus.TypeTelemetry, map[string]any{
		"altitude":       altitude,
		"velocity":       velocity,
		"battery_soc":    batterySOC,
		"attitude_error": attErrDeg,
		"link_active":    comms.LinkActive,
		"in_eclipse":     inEclipse,
	}, t)
	s.swbus.Publish(bus.TopicTelemetry, pkt)

	attackActive := attacking && scenario.Attack.Kind() != cyber.AttackNone
	if s.pipeline != nil {
		s.pipeline.SetAttackActive(attackActive)
	}
	kind := cyber.AttackNone
	if attacking {
		kind = scenario.Attack.Kind()
	}

	return StepRecord{
		Step:            step,
		TimeS:           t,
		AltitudeKm:      altitude,
		LatDeg:          lat,
		LonDeg:          lon,
		VelocityKmS:     velocity,
		BatterySOCPct:   batterySOC,
		BatteryTempK:    power.BatteryTempK,
		AttitudeErrDeg:  attErrDeg,
		RWMomentumNms:   s.attitude.WheelMomentum.Norm(),
		AngularRateDegS: s.attitude.AngularVelocity.Norm() * 180 / math.Pi,
		InEclipse:       inEclipse,
		SolarGenW:       power.SolarGenerationW,
		CPUTempK:        thermal.ComponentTempsK[subsystems.ComponentCPU],
		LinkActive:      comms.LinkActive,
		RangeKm:         comms.RangeKm,
		ElevationDeg:    comms.ElevationDeg,
		DopplerHz:       comms.DopplerHz,
		VerifiedCmds:    verified,
		AttackActive:    attackActive,
		AttackKind:      kind,
	}
}

// recordRejection classifies a verification failure for the pipeline
// metrics. A failed signature over a wire whose checksum still matches is a
// forgery or tamper; a broken checksum means channel corruption.
func (s *Simulator) recordRejection(env cyber.Envelope, err error) {
	if s.pipeline == nil {
		return
	}
	switch {
	case errors.Is(err, cyber.ErrNoPublicKey):
		s.pipeline.IncRejected(observability.ReasonNoPublicKey)
	case errors.Is(err, cyber.ErrSignatureInvalid):
		if _, cerr := cyber.VerifyChecksum(env.Command); cerr != nil {
			s.pipeline.IncRejected(observability.ReasonCorrupted)
		} else {
			s.pipeline.IncRejected(observability.ReasonBadSignature)
		}
	default:
		s.pipeline.IncRejected(observability.ReasonMalformed)
	}
}
