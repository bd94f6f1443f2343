// Package cyber implements the command integrity pipeline and the attack
// models exercised against it: Ed25519-signed command envelopes, a legacy
// MD5 wire checksum, a scenario-driven attack engine, and a probabilistic
// bit-flip corruption channel.
package cyber

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// CommandKind identifies one actuator channel addressed by a command.
type CommandKind int

const (
	ThrustX CommandKind = iota
	ThrustY
	ThrustZ
	RWTorqueX
	RWTorqueY
	RWTorqueZ
)

var kindNames = [...]string{
	ThrustX:   "THRUST_X",
	ThrustY:   "THRUST_Y",
	ThrustZ:   "THRUST_Z",
	RWTorqueX: "RW_TORQUE_X",
	RWTorqueY: "RW_TORQUE_Y",
	RWTorqueZ: "RW_TORQUE_Z",
}

// AllCommandKinds lists every valid kind, in wire order.
func AllCommandKinds() []CommandKind {
	return []CommandKind{ThrustX, ThrustY, ThrustZ, RWTorqueX, RWTorqueY, RWTorqueZ}
}

func (k CommandKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("CommandKind(%d)", int(k))
	}
	return kindNames[k]
}

// IsThrust reports whether the kind addresses a thruster axis rather than a
// reaction wheel.
func (k CommandKind) IsThrust() bool { return k >= ThrustX && k <= ThrustZ }

// Axis returns the axis index (0=X, 1=Y, 2=Z) the kind addresses.
func (k CommandKind) Axis() int {
	switch k {
	case ThrustX, RWTorqueX:
		return 0
	case ThrustY, RWTorqueY:
		return 1
	default:
		return 2
	}
}

// ParseKind maps a wire name like "RW_TORQUE_Y" back to its kind.
func ParseKind(s string) (CommandKind, error) {
	for i, name := range kindNames {
		if s == name {
			return CommandKind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown kind %q", ErrMalformedCommand, s)
}

// Command is one actuator instruction before wire encoding.
type Command struct {
	Kind  CommandKind
	Value float64
}

// Body renders the command payload, "<KIND>:<value>" with the value fixed to
// six decimals.
func (c Command) Body() string {
	return fmt.Sprintf("%s:%.6f", c.Kind, c.Value)
}

// Wire renders the full wire string, "<body>|<checksum>".
func (c Command) Wire() string {
	body := c.Body()
	return body + "|" + Checksum(body)
}

// Checksum returns the legacy 6-hex-character MD5 prefix over the body. It is
// a wire-format compatibility field, not a security boundary; tampering
// protection comes from the envelope signature.
func Checksum(body string) string {
	sum := md5.Sum([]byte(body))
	return hex.EncodeToString(sum[:])[:6]
}

// ParseCommand parses a verified body back into a Command. It rejects
// anything but exactly "<KIND>:<float>".
func ParseCommand(body string) (Command, error) {
	parts := strings.Split(body, ":")
	if len(parts) != 2 {
		return Command{}, fmt.Errorf("%w: want KIND:value, got %q", ErrMalformedCommand, body)
	}
	kind, err := ParseKind(parts[0])
	if err != nil {
		return Command{}, err
	}
	value, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return Command{}, fmt.Errorf("%w: bad value in %q", ErrMalformedCommand, body)
	}
	return Command{Kind: kind, Value: value}, nil
}

// SplitWire separates a wire string into body and checksum without
// validating either.
func SplitWire(wire string) (body, checksum string, err error) {
	parts := strings.Split(wire, "|")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("%w: want body|checksum, got %q", ErrMalformedCommand, wire)
	}
	return parts[0], parts[1], nil
}

// VerifyChecksum splits a wire string and checks its MD5 prefix, returning
// the body on success. Signature verification supersedes this check when
// authentication is enabled; it remains useful for classifying why a command
// failed (channel corruption versus forgery).
func VerifyChecksum(wire string) (string, error) {
	body, checksum, err := SplitWire(wire)
	if err != nil {
		return "", err
	}
	if Checksum(body) != checksum {
		return "", fmt.Errorf("%w: body %q", ErrChecksumMismatch, body)
	}
	return body, nil
}
