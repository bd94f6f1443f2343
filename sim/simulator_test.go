package sim

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scopefoundry/smallsat-simulator/bus"
	"github.com/scopefoundry/smallsat-simulator/cyber"
	"github.com/scopefoundry/smallsat-simulator/internal/logging"
)

// testConfig returns a short, fully deterministic run profile: fixed seed,
// noiseless channel, no scenarios.
func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Simulation.Steps = 40
	cfg.Simulation.TimestepS = 10
	cfg.Simulation.BaseErrorRate = 0
	cfg.Simulation.Seed = 42
	cfg.Simulation.LogFile = filepath.Join(t.TempDir(), "telemetry.csv")
	return cfg
}

func runSim(t *testing.T, cfg Config) *Simulator {
	t.Helper()
	s, err := NewSimulator(cfg, logging.Noop())
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))
	return s
}

func fullWindow(cfg Config, attack cyber.Attack, intensity float64) Config {
	cfg.Scenarios = []cyber.Scenario{{
		Attack:    attack,
		StartTime: 0,
		Duration:  float64(cfg.Simulation.Steps)*cfg.Simulation.TimestepS + 1,
		Intensity: intensity,
	}}
	return cfg
}

func TestRunProducesFullHistoryAndLog(t *testing.T) {
	cfg := testConfig(t)
	s := runSim(t, cfg)

	h := s.History()
	require.Len(t, h, cfg.Simulation.Steps)
	for i, rec := range h {
		assert.Equal(t, i, rec.Step)
		assert.Equal(t, float64(i)*cfg.Simulation.TimestepS, rec.TimeS)
		assert.Equal(t, 6, rec.VerifiedCmds, "noiseless channel, no attacks")
		assert.False(t, rec.AttackActive)
		assert.InDelta(t, DefaultAltitudeKm, rec.AltitudeKm, 5.0, "station keeping holds the orbit")
	}

	f, err := os.Open(cfg.Simulation.LogFile)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, cfg.Simulation.Steps+1)
	assert.Equal(t, telemetryColumns, rows[0])
	for _, row := range rows[1:] {
		assert.Len(t, row, len(telemetryColumns))
	}
	assert.Equal(t, "0", rows[1][18], "attack flag logs as 0/1")
}

func TestTelemetryPublishedEveryStep(t *testing.T) {
	cfg := testConfig(t)
	s, err := NewSimulator(cfg, logging.Noop())
	require.NoError(t, err)

	var packets []bus.Packet
	s.Bus().Subscribe(bus.TopicTelemetry, func(p bus.Packet) {
		packets = append(packets, p)
	})
	require.NoError(t, s.Run(context.Background()))

	require.Len(t, packets, cfg.Simulation.Steps)
	for i, p := range packets {
		assert.Equal(t, bus.APIDTelemetry, p.APID)
		assert.Equal(t, bus.TypeTelemetry, p.Type)
		assert.Equal(t, i, p.SequenceCount)
		assert.True(t, p.ChecksumValid())
		for _, key := range []string{"altitude", "velocity", "battery_soc", "attitude_error", "link_active", "in_eclipse"} {
			assert.Contains(t, p.Data, key)
		}
	}
}

func TestRunsReproduceUnderFixedSeed(t *testing.T) {
	cfg1 := testConfig(t)
	cfg1.Simulation.Seed = 7
	cfg2 := cfg1
	cfg2.Simulation.LogFile = filepath.Join(t.TempDir(), "telemetry.csv")

	s1 := runSim(t, cfg1)
	s2 := runSim(t, cfg2)
	require.Equal(t, s1.History(), s2.History())
	assert.Equal(t, s1.Seed(), s2.Seed())

	b1, err := os.ReadFile(cfg1.Simulation.LogFile)
	require.NoError(t, err)
	b2, err := os.ReadFile(cfg2.Simulation.LogFile)
	require.NoError(t, err)
	assert.Equal(t, b1, b2, "identical runs write identical logs")

	cfg3 := cfg1
	cfg3.Simulation.Seed = 8
	cfg3.Simulation.LogFile = filepath.Join(t.TempDir(), "telemetry.csv")
	s3 := runSim(t, cfg3)
	assert.NotEqual(t, s1.History(), s3.History(), "different seed, different actuator noise")
}

func TestAuthenticationBlocksSpoofedCommands(t *testing.T) {
	base := testConfig(t)
	base.Simulation.Steps = 20
	spoof := cyber.CommandSpoofing{Mode: cyber.SpoofInsert}

	authOn := fullWindow(base, spoof, 1.0)
	authOn.Simulation.LogFile = filepath.Join(t.TempDir(), "on.csv")
	for _, rec := range runSim(t, authOn).History() {
		assert.True(t, rec.AttackActive)
		assert.Equal(t, cyber.AttackCommandSpoofing, rec.AttackKind)
		assert.Equal(t, 6, rec.VerifiedCmds, "forged signatures rejected, real ones pass")
	}

	authOff := fullWindow(base, spoof, 1.0)
	authOff.Defense.EnableCommandAuth = false
	authOff.Simulation.LogFile = filepath.Join(t.TempDir(), "off.csv")
	for _, rec := range runSim(t, authOff).History() {
		assert.Equal(t, 12, rec.VerifiedCmds, "without auth every forgery is accepted")
	}
}

func TestCompromisedKeyDefeatsAuthentication(t *testing.T) {
	cfg := testConfig(t)
	cfg.Simulation.Steps = 20
	cfg = fullWindow(cfg, cyber.CommandSpoofing{Mode: cyber.SpoofAppend, HasCompromisedKey: true}, 1.0)

	for _, rec := range runSim(t, cfg).History() {
		assert.Equal(t, 12, rec.VerifiedCmds, "stolen key signs forgeries that verify")
	}
}

func TestDenialOfServiceDropsWholeBatch(t *testing.T) {
	cfg := testConfig(t)
	cfg.Simulation.Steps = 20
	cfg.Scenarios = []cyber.Scenario{{
		Attack:    cyber.DenialOfService{},
		StartTime: 0,
		Duration:  100, // covers steps 0..9 at dt=10
		Intensity: 1.0,
	}}

	s := runSim(t, cfg)
	for i, rec := range s.History() {
		if i < 10 {
			assert.Equal(t, 0, rec.VerifiedCmds, "step %d inside DoS window", i)
			assert.True(t, rec.AttackActive)
		} else {
			assert.Equal(t, 6, rec.VerifiedCmds, "step %d after the window", i)
			assert.False(t, rec.AttackActive)
		}
	}
	assert.InDelta(t, 50.0, s.Summary().CmdSuccessRatePct, 1e-9)
	assert.InDelta(t, 100.0/60, s.Summary().AttackMin, 1e-9)
}

func TestBatteryDepletionDrainsCharge(t *testing.T) {
	base := testConfig(t)
	base.Simulation.Steps = 60

	baseline := runSim(t, base).History()
	attackedCfg := fullWindow(base, cyber.BatteryDepletion{}, 1.0)
	attackedCfg.Simulation.LogFile = filepath.Join(t.TempDir(), "attacked.csv")
	attacked := runSim(t, attackedCfg).History()

	// The inflated consumption figure feeds back into the next step's
	// telemetry, so the load compounds until the battery empties.
	assert.Greater(t, baseline[len(baseline)-1].BatterySOCPct, 70.0)
	assert.Less(t, attacked[len(attacked)-1].BatterySOCPct, 5.0)
}

func TestTelemetryFalsificationSkewsDisplayOnly(t *testing.T) {
	base := testConfig(t)
	base.Simulation.Steps = 20

	baseline := runSim(t, base).History()
	falsifiedCfg := fullWindow(base, cyber.TelemetryFalsification{}, 0.7)
	falsifiedCfg.Simulation.LogFile = filepath.Join(t.TempDir(), "falsified.csv")
	falsified := runSim(t, falsifiedCfg).History()

	require.Len(t, falsified, len(baseline))
	for i := range falsified {
		// The physical trajectory is identical; the falsification engine
		// draws nothing from the shared random sources.
		assert.Equal(t, baseline[i].VelocityKmS, falsified[i].VelocityKmS, "step %d", i)
		assert.Equal(t, baseline[i].LatDeg, falsified[i].LatDeg, "step %d", i)

		// Displayed values are inflated: SOC by 1.35x, altitude by 1.07x.
		assert.Greater(t, falsified[i].BatterySOCPct, 100.0, "step %d reports an impossible SOC", i)
		assert.InDelta(t, baseline[i].AltitudeKm*1.07, falsified[i].AltitudeKm, 2.0, "step %d", i)
	}
}

func TestNoAttackWindowStaysQuiet(t *testing.T) {
	cfg := testConfig(t)
	cfg.Simulation.Steps = 10
	cfg = fullWindow(cfg, cyber.NoAttack{}, 0)

	for _, rec := range runSim(t, cfg).History() {
		assert.False(t, rec.AttackActive, "a NONE window never counts as an attack")
		assert.Equal(t, cyber.AttackNone, rec.AttackKind)
		assert.Equal(t, 6, rec.VerifiedCmds)
	}
}

func TestRunHonorsContextCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Simulation.Steps = 100000

	s, err := NewSimulator(cfg, logging.Noop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	s.RegisterStepListener(func(rec StepRecord) {
		if rec.Step == 4 {
			cancel()
		}
	})

	err = s.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 5, len(s.History()), "stops at the step boundary after cancel")
}

func TestRunRefusesSecondCall(t *testing.T) {
	cfg := testConfig(t)
	cfg.Simulation.Steps = 2
	s, err := NewSimulator(cfg, logging.Noop())
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))
	assert.Error(t, s.Run(context.Background()))
}

func TestZeroSeedResolvesFromEntropy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Simulation.Seed = 0
	s, err := NewSimulator(cfg, logging.Noop())
	require.NoError(t, err)
	assert.NotZero(t, s.Seed())
}

func TestStepListenersRunInOrder(t *testing.T) {
	cfg := testConfig(t)
	cfg.Simulation.Steps = 6
	s, err := NewSimulator(cfg, logging.Noop())
	require.NoError(t, err)

	var first, second []int
	s.RegisterStepListener(func(rec StepRecord) { first = append(first, rec.Step) })
	s.RegisterStepListener(func(rec StepRecord) { second = append(second, rec.Step) })
	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, first)
	assert.Equal(t, first, second)
}

func TestNewSimulatorRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Simulation.Steps = 0
	_, err := NewSimulator(cfg, logging.Noop())
	assert.Error(t, err)
}
