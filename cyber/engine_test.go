package cyber

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/scopefoundry/smallsat-simulator/internal/logging"
)

func newTestEngine(t *testing.T, scenarios []Scenario, baseRate float64, seed uint64) (*Engine, *Signer) {
	t.Helper()
	signer := NewSignerFromSeed(bytes.Repeat([]byte{3}, 32))
	return NewEngine(scenarios, baseRate, signer, rand.NewSource(seed), logging.Noop()), signer
}

// baseBatch signs one command per kind, the shape the control loop emits
// each step.
func baseBatch(signer *Signer) []Envelope {
	kinds := AllCommandKinds()
	out := make([]Envelope, 0, len(kinds))
	for i, kind := range kinds {
		out = append(out, signer.Sign(Command{Kind: kind, Value: 0.001 * float64(i+1)}))
	}
	return out
}

func TestActiveScenarioHalfOpenWindows(t *testing.T) {
	scenarios := []Scenario{
		{Attack: TelemetryFalsification{}, StartTime: 0, Duration: 500, Intensity: 0.3},
		{Attack: DenialOfService{}, StartTime: 5000, Duration: 3000, Intensity: 0.9},
	}
	e, _ := newTestEngine(t, scenarios, 0.2, 1)

	_, ok := e.ActiveScenario(500)
	assert.False(t, ok, "upper bound is exclusive")

	s, ok := e.ActiveScenario(5000)
	require.True(t, ok, "lower bound is inclusive")
	assert.Equal(t, AttackDenialOfService, s.Attack.Kind())

	s, ok = e.ActiveScenario(250)
	require.True(t, ok)
	assert.Equal(t, AttackTelemetryFalsification, s.Attack.Kind())

	_, ok = e.ActiveScenario(7999.9)
	assert.True(t, ok)
	_, ok = e.ActiveScenario(8000)
	assert.False(t, ok)
	_, ok = e.ActiveScenario(2000)
	assert.False(t, ok, "gap between windows")
}

func TestActiveScenarioFirstMatchWins(t *testing.T) {
	scenarios := []Scenario{
		{Attack: BatteryDepletion{}, StartTime: 0, Duration: 1000},
		{Attack: DenialOfService{}, StartTime: 0, Duration: 1000},
	}
	e, _ := newTestEngine(t, scenarios, 0.2, 1)

	s, ok := e.ActiveScenario(100)
	require.True(t, ok)
	assert.Equal(t, AttackBatteryDepletion, s.Attack.Kind())
}

func TestSpoofInsertCountAndVerifiability(t *testing.T) {
	ctx := context.Background()
	scenario := Scenario{
		Attack:    CommandSpoofing{Mode: SpoofInsert},
		StartTime: 5000, Duration: 3000, Intensity: 0.5,
	}
	e, signer := newTestEngine(t, []Scenario{scenario}, 0.2, 7)
	verifier := NewVerifier(signer.Public(), true)
	base := baseBatch(signer)

	out, _, rate := e.Apply(ctx, scenario, base, Telemetry{})
	assert.Len(t, out, 9, "intensity 0.5 over 6 commands inserts 3")
	assert.Equal(t, 0.2, rate, "spoofing leaves the error rate alone")

	originals := make(map[Envelope]bool, len(base))
	for _, env := range base {
		originals[env] = true
	}
	verified, forged := 0, 0
	for _, env := range out {
		if _, err := verifier.Verify(env); err == nil {
			verified++
		}
		if !originals[env] {
			forged++
		}
	}
	assert.Equal(t, 6, verified, "only the originals verify without key compromise")
	assert.Equal(t, 3, forged)
}

func TestSpoofWithCompromisedKeyVerifies(t *testing.T) {
	ctx := context.Background()
	scenario := Scenario{
		Attack:    CommandSpoofing{Mode: SpoofInsert, HasCompromisedKey: true},
		StartTime: 0, Duration: 100, Intensity: 0.5,
	}
	e, signer := newTestEngine(t, []Scenario{scenario}, 0.2, 7)
	verifier := NewVerifier(signer.Public(), true)

	out, _, _ := e.Apply(ctx, scenario, baseBatch(signer), Telemetry{})
	require.Len(t, out, 9)
	for i, env := range out {
		_, err := verifier.Verify(env)
		assert.NoError(t, err, "envelope %d should carry a real signature", i)
	}
}

func TestSpoofReplaceKeepsBatchSize(t *testing.T) {
	ctx := context.Background()
	scenario := Scenario{
		Attack:    CommandSpoofing{Mode: SpoofReplace},
		StartTime: 0, Duration: 100, Intensity: 0.5,
	}
	e, signer := newTestEngine(t, []Scenario{scenario}, 0.2, 11)
	base := baseBatch(signer)

	out, _, _ := e.Apply(ctx, scenario, base, Telemetry{})
	require.Len(t, out, len(base))

	originals := make(map[Envelope]bool, len(base))
	for _, env := range base {
		originals[env] = true
	}
	replaced := 0
	for _, env := range out {
		if !originals[env] {
			replaced++
			_, err := VerifyChecksum(env.Command)
			assert.NoError(t, err, "forged wire should carry a consistent checksum")
		}
	}
	assert.Equal(t, 3, replaced)
}

func TestSpoofReplaceClampsToBatchSize(t *testing.T) {
	ctx := context.Background()
	scenario := Scenario{
		Attack:    CommandSpoofing{Mode: SpoofReplace},
		StartTime: 0, Duration: 100, Intensity: 1.0,
	}
	e, signer := newTestEngine(t, []Scenario{scenario}, 0.2, 11)

	// Replacing at full intensity can never grow the batch.
	out, _, _ := e.Apply(ctx, scenario, baseBatch(signer)[:2], Telemetry{})
	assert.Len(t, out, 2)
}

func TestSpoofAppendPreservesPrefix(t *testing.T) {
	ctx := context.Background()
	scenario := Scenario{
		Attack:    CommandSpoofing{Mode: SpoofAppend},
		StartTime: 0, Duration: 100, Intensity: 0.5,
	}
	e, signer := newTestEngine(t, []Scenario{scenario}, 0.2, 13)
	base := baseBatch(signer)

	out, _, _ := e.Apply(ctx, scenario, base, Telemetry{})
	require.Len(t, out, 9)
	assert.Equal(t, base, out[:6], "append mode leaves existing commands in place")
}

func TestSpoofFloorsAtOneCommand(t *testing.T) {
	ctx := context.Background()
	scenario := Scenario{
		Attack:    CommandSpoofing{Mode: SpoofInsert},
		StartTime: 0, Duration: 100, Intensity: 0.1,
	}
	e, signer := newTestEngine(t, []Scenario{scenario}, 0.2, 17)

	out, _, _ := e.Apply(ctx, scenario, baseBatch(signer)[:1], Telemetry{})
	assert.Len(t, out, 2, "nonzero intensity spoofs at least one command")
}

func TestSpoofZeroIntensityIsNoop(t *testing.T) {
	ctx := context.Background()
	scenario := Scenario{
		Attack:    CommandSpoofing{Mode: SpoofInsert},
		StartTime: 0, Duration: 100, Intensity: 0,
	}
	e, signer := newTestEngine(t, []Scenario{scenario}, 0.2, 17)
	base := baseBatch(signer)

	out, _, _ := e.Apply(ctx, scenario, base, Telemetry{})
	assert.Equal(t, base, out)
}

func TestDenialOfServiceDropsAndRaisesRate(t *testing.T) {
	ctx := context.Background()
	scenario := Scenario{
		Attack:    DenialOfService{},
		StartTime: 0, Duration: 100, Intensity: 0.9,
	}
	e, signer := newTestEngine(t, []Scenario{scenario}, 0.2, 19)

	base := make([]Envelope, 0, 10)
	for i := 0; i < 10; i++ {
		base = append(base, signer.Sign(Command{Kind: ThrustX, Value: float64(i)}))
	}

	out, _, rate := e.Apply(ctx, scenario, base, Telemetry{})
	require.Len(t, out, 1, "intensity 0.9 drops the first 9 of 10")
	assert.Equal(t, base[9], out[0])
	assert.InDelta(t, 0.2+0.63, rate, 1e-12)
}

func TestTelemetryFalsificationScalesSnapshot(t *testing.T) {
	ctx := context.Background()
	scenario := Scenario{
		Attack:    TelemetryFalsification{},
		StartTime: 0, Duration: 100, Intensity: 0.7,
	}
	e, signer := newTestEngine(t, []Scenario{scenario}, 0.2, 23)

	in := Telemetry{
		TelemetryBatterySOC: 80,
		TelemetryAltitude:   1000,
		"custom_key":        42,
	}
	_, out, _ := e.Apply(ctx, scenario, baseBatch(signer), in)

	assert.InDelta(t, 80*1.35, out[TelemetryBatterySOC], 1e-9)
	assert.InDelta(t, 1000*1.07, out[TelemetryAltitude], 1e-9)
	assert.Equal(t, 42.0, out["custom_key"], "unrecognized keys pass through")
	assert.Equal(t, 80.0, in[TelemetryBatterySOC], "input snapshot is not mutated")
}

func TestBatteryDepletionScalesConsumption(t *testing.T) {
	ctx := context.Background()
	scenario := Scenario{
		Attack:    BatteryDepletion{},
		StartTime: 0, Duration: 100, Intensity: 0.5,
	}
	e, signer := newTestEngine(t, []Scenario{scenario}, 0.2, 29)

	_, out, _ := e.Apply(ctx, scenario, baseBatch(signer), Telemetry{TelemetryPowerConsumption: 150})
	assert.InDelta(t, 300, out[TelemetryPowerConsumption], 1e-9)

	_, out, _ = e.Apply(ctx, scenario, nil, Telemetry{})
	assert.InDelta(t, 100, out[TelemetryPowerConsumption], 1e-9, "missing consumption defaults to 50 W")
}

func TestMaliciousDetumbleInvertsWheelTorques(t *testing.T) {
	ctx := context.Background()
	scenario := Scenario{
		Attack:    MaliciousDetumble{},
		StartTime: 0, Duration: 100, Intensity: 1,
	}
	e, signer := newTestEngine(t, []Scenario{scenario}, 0.2, 31)
	verifier := NewVerifier(signer.Public(), true)

	base := []Envelope{
		signer.Sign(Command{ThrustX, 0.002}),
		signer.Sign(Command{RWTorqueY, 0.004}),
	}
	out, _, _ := e.Apply(ctx, scenario, base, Telemetry{})
	require.Len(t, out, 2)

	// The thrust command is untouched and still verifies.
	assert.Equal(t, base[0], out[0])
	_, err := verifier.Verify(out[0])
	assert.NoError(t, err)

	// The wheel torque is inverted and amplified with a consistent
	// checksum, but the stale signature fails verification.
	body, err := VerifyChecksum(out[1].Command)
	require.NoError(t, err)
	cmd, err := ParseCommand(body)
	require.NoError(t, err)
	assert.Equal(t, RWTorqueY, cmd.Kind)
	assert.InDelta(t, -0.006, cmd.Value, 1e-9)
	assert.Equal(t, base[1].Signature, out[1].Signature)
	_, err = verifier.Verify(out[1])
	assert.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestMaliciousDetumbleWithCompromisedKeyVerifies(t *testing.T) {
	ctx := context.Background()
	scenario := Scenario{
		Attack:    MaliciousDetumble{HasCompromisedKey: true},
		StartTime: 0, Duration: 100, Intensity: 1,
	}
	e, signer := newTestEngine(t, []Scenario{scenario}, 0.2, 31)
	verifier := NewVerifier(signer.Public(), true)

	base := []Envelope{signer.Sign(Command{RWTorqueZ, -0.002})}
	out, _, _ := e.Apply(ctx, scenario, base, Telemetry{})

	body, err := verifier.Verify(out[0])
	require.NoError(t, err, "re-signed tampering passes verification")
	cmd, err := ParseCommand(body)
	require.NoError(t, err)
	assert.InDelta(t, 0.003, cmd.Value, 1e-9)
}

func TestOrbitManipulationAppendsRetrogradeThrust(t *testing.T) {
	ctx := context.Background()
	scenario := Scenario{
		Attack:    OrbitManipulation{},
		StartTime: 0, Duration: 100, Intensity: 1,
	}
	e, signer := newTestEngine(t, []Scenario{scenario}, 0.2, 37)
	verifier := NewVerifier(signer.Public(), true)
	base := baseBatch(signer)

	out, _, _ := e.Apply(ctx, scenario, base, Telemetry{})
	require.Len(t, out, len(base)+3)

	for _, env := range out[len(base):] {
		body, err := VerifyChecksum(env.Command)
		require.NoError(t, err)
		assert.Equal(t, "THRUST_Z:-0.005000", body)
		_, err = verifier.Verify(env)
		assert.ErrorIs(t, err, ErrSignatureInvalid)
	}
}

func TestNoAttackWindowPassesThrough(t *testing.T) {
	ctx := context.Background()
	scenario := Scenario{Attack: NoAttack{}, StartTime: 0, Duration: 500}
	e, signer := newTestEngine(t, []Scenario{scenario}, 0.35, 41)
	base := baseBatch(signer)
	in := Telemetry{TelemetryBatterySOC: 90}

	out, tel, rate := e.Apply(ctx, scenario, base, in)
	assert.Equal(t, base, out)
	assert.Equal(t, in, tel)
	assert.Equal(t, 0.35, rate)
}

func TestApplyIsDeterministicUnderSeed(t *testing.T) {
	ctx := context.Background()
	scenario := Scenario{
		Attack:    CommandSpoofing{Mode: SpoofInsert},
		StartTime: 0, Duration: 100, Intensity: 0.5,
	}
	a, signer := newTestEngine(t, []Scenario{scenario}, 0.2, 99)
	b, _ := newTestEngine(t, []Scenario{scenario}, 0.2, 99)
	base := baseBatch(signer)

	outA, _, _ := a.Apply(ctx, scenario, base, Telemetry{})
	outB, _, _ := b.Apply(ctx, scenario, base, Telemetry{})
	assert.Equal(t, outA, outB)
}
