// Package pcg64 implements a small, dependency-free PCG-style generator
// with 64-bit state and the XSH-RR 32-bit output function. Wheeler Memory needs a deterministic, seedable generator for
// frame codec draws and for the fixed Johnson-Lindenstrauss projection
// matrix; no PCG implementation appears anywhere in the example pack, so
// this is hand-rolled rather than imported (see DESIGN.md).
package pcg64

import "math"

const (
	multiplier uint64 = 6364136223846793005
	increment  uint64 = 1442695040888963407
)

// Gen is a PCG64-style generator seeded from a single 64-bit value.
// It is not bit-compatible with numpy's PCG64 (which runs a 128-bit state);
// it only needs to be deterministic and well distributed within this Go
// module, across runs and platforms.
type Gen struct {
	state uint64
}

// New creates a generator seeded with the given 64-bit seed.
func New(seed uint64) *Gen {
	g := &Gen{state: 0}
	g.state = g.state*multiplier + (increment | 1)
	g.state += seed
	g.state = g.state*multiplier + (increment | 1)
	return g
}

// Uint32 returns the next pseudo-random 32-bit output using the XSH-RR
// (xorshift high, random rotate) output function.
func (g *Gen) Uint32() uint32 {
	old := g.state
	g.state = old*multiplier + (increment | 1)

	xorshifted := uint32(((old >> 18) ^ old) >> 27)
	rot := uint32(old >> 59)
	return (xorshifted >> rot) | (xorshifted << ((-rot) & 31))
}

// Float64 returns a pseudo-random float64 in [0, 1).
func (g *Gen) Float64() float64 {
	hi := uint64(g.Uint32())
	lo := uint64(g.Uint32())
	combined := (hi << 32) | lo
	// 53 significant bits, matching float64 mantissa precision.
	return float64(combined>>11) / float64(uint64(1)<<53)
}

// Uniform returns a pseudo-random float32 uniformly distributed in [lo, hi).
func (g *Gen) Uniform(lo, hi float32) float32 {
	return lo + float32(g.Float64())*(hi-lo)
}

// StandardNormal draws one sample from a standard normal distribution using
// the Box-Muller transform. It consumes u1 in (0,1), redrawing any exact 0,
// and u2 in [0,1).
func (g *Gen) StandardNormal() float64 {
	// Avoid exactly 0 for u1 (log(0) is undefined).
	var u1 float64
	for u1 == 0 {
		u1 = g.Float64()
	}
	u2 := g.Float64()
	const twoPi = 6.283185307179586
	r := math.Sqrt(-2 * math.Log(u1))
	return r * math.Cos(twoPi*u2)
}
