package cyber

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandBodyFormat(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{Command{ThrustX, 0.001}, "THRUST_X:0.001000"},
		{Command{ThrustZ, -0.005}, "THRUST_Z:-0.005000"},
		{Command{RWTorqueY, 0}, "RW_TORQUE_Y:0.000000"},
		{Command{RWTorqueZ, 1234.5678901}, "RW_TORQUE_Z:1234.567890"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.cmd.Body())
	}
}

func TestCommandWireCarriesChecksum(t *testing.T) {
	wire := Command{ThrustY, 0.25}.Wire()

	body, checksum, err := SplitWire(wire)
	require.NoError(t, err)
	assert.Equal(t, "THRUST_Y:0.250000", body)
	assert.Len(t, checksum, 6)
	assert.Equal(t, Checksum(body), checksum)
}

func TestParseCommandRoundTrip(t *testing.T) {
	for _, kind := range AllCommandKinds() {
		cmd := Command{Kind: kind, Value: -0.003217}
		parsed, err := ParseCommand(cmd.Body())
		require.NoError(t, err)
		assert.Equal(t, cmd, parsed)
	}
}

func TestParseCommandRejectsMalformed(t *testing.T) {
	bad := []string{
		"",
		"THRUST_X",
		"THRUST_X:1:2",
		"WARP_DRIVE:0.5",
		"THRUST_X:not-a-number",
	}
	for _, body := range bad {
		_, err := ParseCommand(body)
		assert.ErrorIs(t, err, ErrMalformedCommand, "body %q", body)
	}
}

func TestVerifyChecksum(t *testing.T) {
	wire := Command{RWTorqueX, 0.004}.Wire()

	body, err := VerifyChecksum(wire)
	require.NoError(t, err)
	assert.Equal(t, "RW_TORQUE_X:0.004000", body)

	tampered := strings.Replace(wire, "0.004000", "0.007500", 1)
	_, err = VerifyChecksum(tampered)
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	_, err = VerifyChecksum("no separator here")
	assert.ErrorIs(t, err, ErrMalformedCommand)
}

func TestCommandKindProperties(t *testing.T) {
	assert.True(t, ThrustX.IsThrust())
	assert.True(t, ThrustZ.IsThrust())
	assert.False(t, RWTorqueX.IsThrust())

	assert.Equal(t, 0, ThrustX.Axis())
	assert.Equal(t, 1, ThrustY.Axis())
	assert.Equal(t, 2, ThrustZ.Axis())
	assert.Equal(t, 0, RWTorqueX.Axis())
	assert.Equal(t, 1, RWTorqueY.Axis())
	assert.Equal(t, 2, RWTorqueZ.Axis())

	for _, kind := range AllCommandKinds() {
		parsed, err := ParseKind(kind.String())
		require.NoError(t, err)
		assert.Equal(t, kind, parsed)
	}
}
