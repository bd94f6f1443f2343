package cyber

import "fmt"

// AttackKind identifies an attack model for display and logging.
type AttackKind int

const (
	AttackNone AttackKind = iota
	AttackCommandSpoofing
	AttackTelemetryFalsification
	AttackDenialOfService
	AttackBatteryDepletion
	AttackMaliciousDetumble
	AttackOrbitManipulation
)

var attackNames = [...]string{
	AttackNone:                   "none",
	AttackCommandSpoofing:        "command_spoofing",
	AttackTelemetryFalsification: "telemetry_falsification",
	AttackDenialOfService:        "denial_of_service",
	AttackBatteryDepletion:       "battery_depletion",
	AttackMaliciousDetumble:      "malicious_detumble",
	AttackOrbitManipulation:      "orbit_manipulation",
}

func (k AttackKind) String() string {
	if k < 0 || int(k) >= len(attackNames) {
		return fmt.Sprintf("AttackKind(%d)", int(k))
	}
	return attackNames[k]
}

// ParseAttackKind maps a scenario file name like "command_spoofing" to its
// kind.
func ParseAttackKind(s string) (AttackKind, error) {
	for i, name := range attackNames {
		if s == name {
			return AttackKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown attack kind %q", s)
}

// SpoofMode selects where spoofed commands land in the batch.
type SpoofMode int

const (
	// SpoofInsert places each spoofed command at a random position.
	SpoofInsert SpoofMode = iota
	// SpoofReplace overwrites a random subset of existing commands.
	SpoofReplace
	// SpoofAppend adds spoofed commands at the end of the batch.
	SpoofAppend
)

var spoofModeNames = [...]string{
	SpoofInsert:  "insert",
	SpoofReplace: "replace",
	SpoofAppend:  "append",
}

func (m SpoofMode) String() string {
	if m < 0 || int(m) >= len(spoofModeNames) {
		return fmt.Sprintf("SpoofMode(%d)", int(m))
	}
	return spoofModeNames[m]
}

// ParseSpoofMode maps a scenario file name like "replace" to its mode.
func ParseSpoofMode(s string) (SpoofMode, error) {
	for i, name := range spoofModeNames {
		if s == name {
			return SpoofMode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown spoof mode %q", s)
}

// Attack is the closed set of attack models. Each variant carries only the
// parameters its kind needs; shared window and intensity parameters live on
// Scenario. The unexported method keeps the set closed so the engine's
// dispatch covers every variant.
type Attack interface {
	Kind() AttackKind
	isAttack()
}

// NoAttack is a quiet window. It keeps the base error rate and passes
// commands and telemetry through unchanged.
type NoAttack struct{}

// CommandSpoofing forges complete signed-looking envelopes and works them
// into the batch according to Mode. With a compromised key the forgeries
// carry real signatures and are cryptographically indistinguishable from
// legitimate traffic.
type CommandSpoofing struct {
	Mode              SpoofMode
	HasCompromisedKey bool
}

// TelemetryFalsification inflates the reported battery state of charge and
// altitude. The true physical state is untouched; only the telemetry
// snapshot used for display and bookkeeping is altered.
type TelemetryFalsification struct{}

// DenialOfService raises the channel error rate and drops the front of the
// command batch.
type DenialOfService struct{}

// BatteryDepletion inflates the reported power consumption, which the
// surrounding loop feeds back into the power model.
type BatteryDepletion struct{}

// MaliciousDetumble negates and amplifies wheel torque values in flight.
// The tampered wire keeps a consistent checksum but is not re-signed, so it
// fails verification unless the signing key is compromised.
type MaliciousDetumble struct {
	HasCompromisedKey bool
}

// OrbitManipulation appends forged retrograde thrust commands with correct
// checksums and, without a compromised key, signatures that cannot verify.
type OrbitManipulation struct {
	HasCompromisedKey bool
}

func (NoAttack) Kind() AttackKind               { return AttackNone }
func (CommandSpoofing) Kind() AttackKind        { return AttackCommandSpoofing }
func (TelemetryFalsification) Kind() AttackKind { return AttackTelemetryFalsification }
func (DenialOfService) Kind() AttackKind        { return AttackDenialOfService }
func (BatteryDepletion) Kind() AttackKind       { return AttackBatteryDepletion }
func (MaliciousDetumble) Kind() AttackKind      { return AttackMaliciousDetumble }
func (OrbitManipulation) Kind() AttackKind      { return AttackOrbitManipulation }

func (NoAttack) isAttack()               {}
func (CommandSpoofing) isAttack()        {}
func (TelemetryFalsification) isAttack() {}
func (DenialOfService) isAttack()        {}
func (BatteryDepletion) isAttack()       {}
func (MaliciousDetumble) isAttack()      {}
func (OrbitManipulation) isAttack()      {}

// Scenario schedules one attack over a half-open time window
// [StartTime, StartTime+Duration).
type Scenario struct {
	Attack    Attack
	StartTime float64 // seconds from run start
	Duration  float64 // seconds
	Intensity float64 // 0.0 to 1.0
}

// Contains reports whether t falls inside the scenario window.
func (s Scenario) Contains(t float64) bool {
	return t >= s.StartTime && t < s.StartTime+s.Duration
}
