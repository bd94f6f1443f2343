package cyber

import "errors"

// Command pipeline failures are recovered locally by dropping the offending
// command; none of them abort a step or a run.
var (
	// ErrMalformedCommand marks a wire string or body that does not parse.
	ErrMalformedCommand = errors.New("malformed command")

	// ErrChecksumMismatch marks a wire string whose MD5 prefix does not
	// match its body.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrSignatureInvalid marks an envelope whose signature failed
	// verification, including malformed hex and auth scheme mismatches.
	ErrSignatureInvalid = errors.New("signature invalid")

	// ErrNoPublicKey marks verification attempted with authentication
	// enabled but no public key provisioned. Verification fails closed.
	ErrNoPublicKey = errors.New("no public key configured")
)
