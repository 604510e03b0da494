// Package rng provides the two random sources used by the simulation:
// a seeded deterministic source for reproducible historical backfill,
// and a live (unseeded) source for organic real-time price movement.
//
// The distinction is deliberate and load-bearing: a chart rebuilt from
// the same asset symbol must be bit-for-bit identical across restarts,
// while live ticks must not repeat. Every call site states which source
// it uses by passing a Source value explicitly — there is no implicit
// fallback between the two.
package rng

import (
	"math"
	"math/rand"
)

// Source yields uniform draws in [0, 1). The offset parameter selects
// an independent draw within a single price update (base draw, shock
// roll, shock magnitude); seeded sources derive it from the seed, live
// sources ignore it.
type Source interface {
	Draw(offset float64) float64
}

// SeededSource is a deterministic Source: the same seed always produces
// the same sequence of draws. Used for historical backfill only.
type SeededSource struct {
	seed float64
}

// Seeded returns a deterministic source anchored at seed.
func Seeded(seed float64) SeededSource {
	return SeededSource{seed: seed}
}

// Draw returns the deterministic uniform value for seed+offset:
//
//	|frac(sin(seed+offset) * 10000)| ∈ [0, 1)
//
// The sine-fraction construction is cheap, stateless, and good enough
// for synthetic market noise; it is not a cryptographic PRNG and is
// never used where unpredictability matters.
func (s SeededSource) Draw(offset float64) float64 {
	v := math.Mod(math.Sin(s.seed+offset)*10000, 1)
	return math.Abs(v)
}

// LiveSource draws from the process-wide PRNG. Non-deterministic across
// runs; used for live ticking only, never for backfill.
type LiveSource struct{}

// Live returns the non-deterministic source.
func Live() LiveSource {
	return LiveSource{}
}

// Draw returns a uniform value in [0, 1). The offset is ignored.
func (LiveSource) Draw(_ float64) float64 {
	return rand.Float64()
}

// SeedFromLabel derives a numeric base seed from a label such as an
// asset symbol or "portfolio". The sum is position-weighted so that
// anagrams ("BTC" vs "TCB") map to different seeds.
func SeedFromLabel(label string) float64 {
	var sum float64
	for i, r := range label {
		sum += float64(r) * float64(i+1)
	}
	return sum
}
