package cyber

import (
	"context"
	"encoding/hex"
	"strings"

	"golang.org/x/exp/rand"

	"github.com/scopefoundry/smallsat-simulator/internal/logging"
)

// Telemetry is the step snapshot handed to the attack engine. Recognized
// keys are the constants below; unrecognized keys pass through unmodified.
type Telemetry map[string]float64

const (
	TelemetryBatterySOC       = "battery_soc"       // percent
	TelemetryAltitude         = "altitude"          // km
	TelemetryPowerConsumption = "power_consumption" // W
)

func (t Telemetry) clone() Telemetry {
	out := make(Telemetry, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Engine schedules attack scenarios over simulation time and applies the
// active one to each step's command batch and telemetry snapshot. All
// randomness draws from the injected source so runs reproduce under a fixed
// seed. The signer is the run's real signing key, used only to model key
// compromise.
type Engine struct {
	scenarios     []Scenario
	baseErrorRate float64
	signer        *Signer
	rng           *rand.Rand
	log           logging.Logger
}

// NewEngine builds an attack engine over the given scenario schedule.
func NewEngine(scenarios []Scenario, baseErrorRate float64, signer *Signer, src rand.Source, log logging.Logger) *Engine {
	if log == nil {
		log = logging.Noop()
	}
	return &Engine{
		scenarios:     scenarios,
		baseErrorRate: baseErrorRate,
		signer:        signer,
		rng:           rand.New(src),
		log:           log,
	}
}

// BaseErrorRate returns the channel error rate outside attack windows.
func (e *Engine) BaseErrorRate() float64 { return e.baseErrorRate }

// ActiveScenario scans the schedule in order and returns the first scenario
// whose window contains t. Windows are half-open, so a scenario is inactive
// at exactly StartTime+Duration.
func (e *Engine) ActiveScenario(t float64) (Scenario, bool) {
	for _, s := range e.scenarios {
		if s.Contains(t) {
			return s, true
		}
	}
	return Scenario{}, false
}

// Apply runs the scenario's attack over the step's commands and telemetry,
// returning the transformed batch, the transformed telemetry snapshot, and
// the effective channel error rate. Inputs are never mutated.
func (e *Engine) Apply(ctx context.Context, s Scenario, commands []Envelope, telemetry Telemetry) ([]Envelope, Telemetry, float64) {
	cmds := append([]Envelope(nil), commands...)
	tel := telemetry.clone()
	rate := e.baseErrorRate

	switch a := s.Attack.(type) {
	case NoAttack, nil:
		// Quiet window.

	case CommandSpoofing:
		cmds = e.spoof(a, s.Intensity, cmds)

	case TelemetryFalsification:
		if v, ok := tel[TelemetryBatterySOC]; ok {
			tel[TelemetryBatterySOC] = v * (1 + s.Intensity*0.5)
		}
		if v, ok := tel[TelemetryAltitude]; ok {
			tel[TelemetryAltitude] = v * (1 + s.Intensity*0.1)
		}

	case DenialOfService:
		rate = e.baseErrorRate + s.Intensity*0.7
		drop := int(float64(len(cmds)) * s.Intensity)
		if drop < 0 {
			drop = 0
		}
		if drop > len(cmds) {
			drop = len(cmds)
		}
		cmds = cmds[drop:]

	case BatteryDepletion:
		consumption, ok := tel[TelemetryPowerConsumption]
		if !ok {
			consumption = 50
		}
		tel[TelemetryPowerConsumption] = consumption * (1 + s.Intensity*2)

	case MaliciousDetumble:
		for i, env := range cmds {
			if !strings.Contains(env.Command, "RW_TORQUE") {
				continue
			}
			body, _, err := SplitWire(env.Command)
			if err != nil {
				continue
			}
			cmd, err := ParseCommand(body)
			if err != nil {
				continue
			}
			forged := Command{Kind: cmd.Kind, Value: -cmd.Value * 1.5}
			if a.HasCompromisedKey && e.signer != nil {
				cmds[i] = e.signer.SignWire(forged.Wire())
			} else {
				// Tampered wire under the original signature.
				cmds[i].Command = forged.Wire()
			}
		}

	case OrbitManipulation:
		forged := Command{Kind: ThrustZ, Value: -0.005}
		for i := 0; i < int(s.Intensity*3); i++ {
			cmds = append(cmds, e.envelopeFor(forged.Wire(), a.HasCompromisedKey))
		}
	}

	e.log.Debug(ctx, "attack applied",
		logging.String("attack", s.Attack.Kind().String()),
		logging.Int("commands_in", len(commands)),
		logging.Int("commands_out", len(cmds)),
		logging.Any("error_rate", rate),
	)
	return cmds, tel, rate
}

// spoof generates forged envelopes and works them into the batch according
// to the configured mode.
func (e *Engine) spoof(a CommandSpoofing, intensity float64, cmds []Envelope) []Envelope {
	kinds := AllCommandKinds()

	n := int(float64(len(cmds)) * intensity)
	if intensity > 0 && n == 0 {
		n = 1
	}
	if n < 1 {
		return cmds
	}

	switch a.Mode {
	case SpoofInsert:
		for i := 0; i < n; i++ {
			kind := kinds[e.rng.Intn(len(kinds))]
			env := e.makeSpoofed(kind, a.HasCompromisedKey)
			pos := e.rng.Intn(len(cmds) + 1)
			cmds = append(cmds, Envelope{})
			copy(cmds[pos+1:], cmds[pos:])
			cmds[pos] = env
		}

	case SpoofReplace:
		count := n
		if count > len(cmds) {
			count = len(cmds)
		}
		for _, idx := range e.rng.Perm(len(cmds))[:count] {
			// Keeping the original command's kind is more deceptive, so
			// replacement prefers it most of the time.
			kind, ok := wireKind(cmds[idx].Command)
			if !ok || e.rng.Float64() >= 0.8 {
				kind = kinds[e.rng.Intn(len(kinds))]
			}
			cmds[idx] = e.makeSpoofed(kind, a.HasCompromisedKey)
		}

	default:
		for i := 0; i < n; i++ {
			kind := kinds[e.rng.Intn(len(kinds))]
			cmds = append(cmds, e.makeSpoofed(kind, a.HasCompromisedKey))
		}
	}
	return cmds
}

// makeSpoofed forges one complete envelope. Thrust values are mostly subtle
// perturbations with occasional large bogus commands; wheel torques stay
// subtle so they survive casual inspection.
func (e *Engine) makeSpoofed(kind CommandKind, compromised bool) Envelope {
	var value float64
	if kind.IsThrust() && e.rng.Float64() >= 0.7 {
		value = e.uniform(-2000, 2000)
	} else {
		value = e.uniform(-0.01, 0.01)
	}
	cmd := Command{Kind: kind, Value: value}
	return e.envelopeFor(cmd.Wire(), compromised)
}

// envelopeFor wraps a wire string either with a real signature (compromised
// key) or with random bytes that cannot verify.
func (e *Engine) envelopeFor(wire string, compromised bool) Envelope {
	if compromised && e.signer != nil {
		return e.signer.SignWire(wire)
	}
	var fake [16]byte
	e.rng.Read(fake[:])
	return Envelope{
		Command:   wire,
		Auth:      AuthScheme,
		Signature: hex.EncodeToString(fake[:]),
	}
}

func (e *Engine) uniform(lo, hi float64) float64 {
	return lo + e.rng.Float64()*(hi-lo)
}

// wireKind extracts the command kind from a wire string, reporting whether
// it named a valid kind.
func wireKind(wire string) (CommandKind, bool) {
	name, _, found := strings.Cut(wire, ":")
	if !found {
		return 0, false
	}
	kind, err := ParseKind(name)
	return kind, err == nil
}
