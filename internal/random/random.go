// =============================================================================
// SPED Anonymizer - Randomness Source
// =============================================================================
//
// This module supplies the synthetic digits the anonymizer draws from.
//
// The engine never owns a generator: callers inject a Source, which keeps
// the transform deterministic under a seeded source and lets tests script
// exact draws.
//
// =============================================================================

package random

import (
	"hash/fnv"
	"math/rand/v2"
	"strings"
)

// Source is the injected randomness capability.
// *rand.Rand from math/rand/v2 satisfies it.
type Source interface {
	// IntN returns a value in [0, n). It panics if n <= 0.
	IntN(n int) int
}

// New returns a PCG-backed source. A zero seed draws a random one.
func New(seed uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// ForStream derives an independent source for one named stream (a file)
// from a base seed, so concurrent files never share a generator and the same
// seed always reproduces the same file output.
func ForStream(seed uint64, name string) *rand.Rand {
	if seed == 0 {
		return New(0)
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return rand.New(rand.NewPCG(seed, h.Sum64()))
}

// Digits returns an n-digit decimal string drawn uniformly from
// [10^(n-1), 10^n - 1]: the leading digit is never zero.
func Digits(src Source, n int) string {
	if n <= 0 {
		return ""
	}
	var b strings.Builder
	b.Grow(n)
	b.WriteByte(byte('1' + src.IntN(9)))
	for i := 1; i < n; i++ {
		b.WriteByte(byte('0' + src.IntN(10)))
	}
	return b.String()
}

// Between returns an integer in the closed range [lo, hi].
func Between(src Source, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + src.IntN(hi-lo+1)
}

// Choice returns an index in [0, n).
func Choice(src Source, n int) int {
	if n <= 1 {
		return 0
	}
	return src.IntN(n)
}
