package cyber

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// AuthScheme is the only signature scheme the pipeline accepts.
const AuthScheme = "ed25519"

// Envelope is the unit that travels from ground to satellite: the wire
// command string, the auth scheme tag, and a hex-encoded signature over the
// full wire string.
type Envelope struct {
	Command   string `json:"command"`
	Auth      string `json:"auth"`
	Signature string `json:"signature"`
}

// Signer holds the ground-side private key for a run. Keys are generated
// once per run and never rotated.
type Signer struct {
	priv ed25519.PrivateKey
}

// GenerateSigner creates a signer with a fresh Ed25519 key pair.
func GenerateSigner() (*Signer, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating ed25519 key: %w", err)
	}
	return &Signer{priv: priv}, nil
}

// NewSignerFromSeed derives a signer deterministically from a 32-byte seed.
func NewSignerFromSeed(seed []byte) *Signer {
	return &Signer{priv: ed25519.NewKeyFromSeed(seed)}
}

// Public returns the verifying key to hand across the trust boundary.
func (s *Signer) Public() ed25519.PublicKey {
	return s.priv.Public().(ed25519.PublicKey)
}

// Sign encodes the command to its wire form and wraps it in a signed
// envelope.
func (s *Signer) Sign(cmd Command) Envelope {
	return s.SignWire(cmd.Wire())
}

// SignWire signs an already-encoded wire string. The attack engine uses this
// to model an adversary holding a compromised signing key.
func (s *Signer) SignWire(wire string) Envelope {
	sig := ed25519.Sign(s.priv, []byte(wire))
	return Envelope{
		Command:   wire,
		Auth:      AuthScheme,
		Signature: hex.EncodeToString(sig),
	}
}

// Verifier is the satellite-side check applied to every received envelope.
// With authentication disabled it passes everything through; enabled but
// missing a public key, it fails closed.
type Verifier struct {
	enabled bool
	pub     ed25519.PublicKey
}

// NewVerifier builds a verifier. pub may be nil only when enabled is false.
func NewVerifier(pub ed25519.PublicKey, enabled bool) *Verifier {
	return &Verifier{enabled: enabled, pub: pub}
}

// Verify checks an envelope and returns the command body (the text before
// the "|" separator). When authentication is disabled the body is returned
// unconditionally, modeling a disabled defense for comparison runs. Any
// failure returns a non-nil error; callers drop the command and continue.
func (v *Verifier) Verify(env Envelope) (string, error) {
	if !v.enabled {
		return bodyOf(env.Command), nil
	}
	if len(v.pub) != ed25519.PublicKeySize {
		return "", ErrNoPublicKey
	}
	if env.Auth != AuthScheme {
		return "", fmt.Errorf("%w: auth scheme %q", ErrSignatureInvalid, env.Auth)
	}
	sig, err := hex.DecodeString(env.Signature)
	if err != nil {
		return "", fmt.Errorf("%w: signature is not hex", ErrSignatureInvalid)
	}
	if len(sig) != ed25519.SignatureSize || !ed25519.Verify(v.pub, []byte(env.Command), sig) {
		return "", ErrSignatureInvalid
	}
	return bodyOf(env.Command), nil
}

func bodyOf(wire string) string {
	if i := strings.Index(wire, "|"); i >= 0 {
		return wire[:i]
	}
	return wire
}
