package random

import (
	"math/rand"
	"testing"

	"lukechampine.com/uint128"
)

func TestUint64nBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, n := range []uint64{1, 2, 3, 7, 8, 1000, 1 << 32, 1<<64 - 1} {
		for i := 0; i < 100; i++ {
			if v := Uint64n(rng, n); v >= n {
				t.Fatalf("Uint64n(%d) returned out-of-range value %d", n, v)
			}
		}
	}
}

func TestUint64nDistribution(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	const n, draws = 3, 3000
	var buckets [n]int
	for i := 0; i < draws; i++ {
		buckets[Uint64n(rng, n)]++
	}
	for i, c := range buckets {
		if c < draws/n/2 {
			t.Errorf("value %d drawn only %d times out of %d", i, c, draws)
		}
	}
}

func TestUint128nBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	bounds := []uint128.Uint128{
		uint128.From64(1),
		uint128.From64(5),
		uint128.New(0, 1),
		uint128.New(12345, 67890),
		uint128.Max,
	}
	for _, n := range bounds {
		for i := 0; i < 100; i++ {
			if v := Uint128n(rng, n); v.Cmp(n) >= 0 {
				t.Fatalf("Uint128n(%s) returned out-of-range value %s", n, v)
			}
		}
	}
}

func TestUint128nSmallBoundHitsAll(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	seen := make(map[uint64]struct{})
	for i := 0; i < 200; i++ {
		seen[Uint128n(rng, uint128.From64(4)).Lo] = struct{}{}
	}
	if len(seen) != 4 {
		t.Errorf("expected all 4 values drawn, got %d", len(seen))
	}
}
