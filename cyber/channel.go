package cyber

import (
	"strings"

	"golang.org/x/exp/rand"
)

// forcedAlphabet supplies the substitute character when bit flips were
// masked by lossy decoding.
const forcedAlphabet = "XYZ123!@#"

// Channel models a lossy command link. With probability errorRate it flips
// a fixed number of distinct bits in the envelope's command string. The
// signature is never touched, so a corrupted body fails verification against
// its original signature; corruption models channel damage, not forgery.
type Channel struct {
	rng   *rand.Rand
	flips int
}

// NewChannel builds a channel flipping two bits per corrupted command.
func NewChannel(src rand.Source) *Channel {
	return &Channel{rng: rand.New(src), flips: 2}
}

// Corrupt passes the envelope through the channel. A corrupted envelope is
// guaranteed to differ visibly from the input: if the bit flips are masked
// by replacement-character decoding, one character is substituted outright.
func (c *Channel) Corrupt(env Envelope, errorRate float64) Envelope {
	if c.rng.Float64() >= errorRate || len(env.Command) == 0 {
		return env
	}

	raw := []byte(env.Command)
	totalBits := len(raw) * 8
	flips := c.flips
	if flips > totalBits {
		flips = totalBits
	}
	for _, bit := range c.rng.Perm(totalBits)[:flips] {
		raw[bit/8] ^= 1 << (bit % 8)
	}

	// Lossy decode: invalid UTF-8 becomes replacement characters rather
	// than propagating as an error.
	corrupted := strings.ToValidUTF8(string(raw), "�")
	if corrupted == env.Command {
		corrupted = c.forceChange(env.Command)
	}

	env.Command = corrupted
	return env
}

// forceChange substitutes one character so the result always differs from
// the original.
func (c *Channel) forceChange(msg string) string {
	raw := []byte(msg)
	pos := c.rng.Intn(len(raw))
	ch := forcedAlphabet[c.rng.Intn(len(forcedAlphabet))]
	if raw[pos] == ch {
		ch = forcedAlphabet[(strings.IndexByte(forcedAlphabet, ch)+1)%len(forcedAlphabet)]
	}
	raw[pos] = ch
	return strings.ToValidUTF8(string(raw), "�")
}
