// Package dither generates the per-pulse pseudorandom phase rotation applied
// on transmit and removed on receive.
//
// Each role owns an independent Mersenne Twister seeded identically, so the
// n-th transmit phase always equals the n-th receive phase no matter how the
// two loops interleave.
package dither

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/mathext/prng"
)

// Role selects which side's generator advances.
type Role int

const (
	Transmit Role = iota
	Receive
)

type stream struct {
	mu  sync.Mutex
	src *prng.MT19937
}

func newStream(seed uint64) *stream {
	src := prng.NewMT19937()
	src.Seed(seed)
	return &stream{src: src}
}

func (s *stream) next() float64 {
	s.mu.Lock()
	v := s.src.Uint32()
	s.mu.Unlock()
	return 2 * math.Pi * float64(v) / (1 << 32)
}

// Codec applies matched phase dithering. A disabled Codec never rotates and
// never advances its generators.
type Codec struct {
	enabled bool
	seed    uint64
	streams [2]*stream
}

// New returns a codec whose transmit and receive streams start from seed.
func New(seed uint64, enabled bool) *Codec {
	return &Codec{
		enabled: enabled,
		seed:    seed,
		streams: [2]*stream{newStream(seed), newStream(seed)},
	}
}

// Enabled reports whether phases are applied.
func (c *Codec) Enabled() bool { return c.enabled }

// Seed returns the generator seed.
func (c *Codec) Seed() uint64 { return c.seed }

// NextPhase advances the role's generator and returns an angle in [0, 2π).
// It returns 0 without advancing when dithering is disabled.
func (c *Codec) NextPhase(role Role) float64 {
	if !c.enabled {
		return 0
	}
	return c.streams[role].next()
}

// Modulate writes src rotated by the next transmit phase into dst and
// returns dst. When disabled src is returned unchanged.
func (c *Codec) Modulate(dst, src []complex64) []complex64 {
	if !c.enabled {
		return src
	}
	Rotate(dst, src, c.NextPhase(Transmit), 1)
	return dst
}

// Demodulate removes the next receive phase from window and divides it by
// presums in a single pass.
func (c *Codec) Demodulate(window []complex64, presums int) {
	Rotate(window, window, -c.NextPhase(Receive), 1/float64(presums))
}

// Skip advances the receive stream for a pulse that was discarded, keeping
// it aligned with the transmit stream.
func (c *Codec) Skip() {
	c.NextPhase(Receive)
}

// Rotate computes dst[i] = src[i]·scale·exp(iφ). dst and src may alias.
func Rotate(dst, src []complex64, phase, scale float64) {
	sin, cos := math.Sincos(phase)
	rot := complex(cos*scale, sin*scale)
	for i, s := range src {
		dst[i] = complex64(complex128(s) * rot)
	}
}

// Phases returns the first n transmit phases for seed, as written by phasegen.
func Phases(seed uint64, n int) []float32 {
	s := newStream(seed)
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(s.next())
	}
	return out
}
