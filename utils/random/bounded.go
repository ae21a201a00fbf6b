package random

import (
	"math/rand"

	"lukechampine.com/uint128"
)

// Uint64n returns a uniformly distributed value in [0, n).
// It panics if n is 0.
func Uint64n(rng *rand.Rand, n uint64) uint64 {
	if n == 0 {
		panic("random: Uint64n called with zero bound")
	}
	if n&(n-1) == 0 {
		return rng.Uint64() & (n - 1)
	}
	// Values below 2^64 mod n would overrepresent low residues, so
	// redraw until clear of them.
	threshold := -n % n
	for {
		v := rng.Uint64()
		if v >= threshold {
			return v % n
		}
	}
}

// Uint128n returns a uniformly distributed value in [0, n).
// It panics if n is 0.
func Uint128n(rng *rand.Rand, n uint128.Uint128) uint128.Uint128 {
	if n.IsZero() {
		panic("random: Uint128n called with zero bound")
	}
	if n.Hi == 0 {
		return uint128.From64(Uint64n(rng, n.Lo))
	}
	// Same rejection scheme as Uint64n: threshold is 2^128 mod n,
	// computed as (Max - n + 1) mod n without wrapping since n > 2^64.
	threshold := uint128.Max.Sub(n).Add64(1).Mod(n)
	for {
		v := uint128.New(rng.Uint64(), rng.Uint64())
		if v.Cmp(threshold) >= 0 {
			return v.Mod(n)
		}
	}
}
