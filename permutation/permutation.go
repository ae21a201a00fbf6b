// Package permutation yields every address of an IP range exactly once
// in uniformly random order.
//
// It is a lazy variant of the Fisher-Yates shuffle. Addresses are never
// materialized as a list: position i of the imaginary array initially
// holds start+i, and only positions whose occupant was displaced by a
// swap are recorded. Memory use is therefore proportional to the number
// of displaced positions, not to the range size, which makes iteration
// over huge IPv6 ranges practical.
package permutation

import (
	"math/big"
	"math/rand"
	"net/netip"

	"lukechampine.com/uint128"

	"github.com/Snawoot/randlease/iprange"
	"github.com/Snawoot/randlease/utils/random"
)

// Permutation is a stateful generator over one address range. It is not
// safe for concurrent use; callers sharing an instance must serialize
// access externally.
type Permutation struct {
	r      iprange.Range
	cursor uint128.Uint128
	state  map[uint128.Uint128]netip.Addr
	rng    *rand.Rand
	done   bool
}

// New returns a permutation over r with a generator freshly seeded from
// the OS entropy source, so permutations over the same range produced by
// separate New calls are independent.
func New(r iprange.Range) *Permutation {
	return NewWithRand(r, random.NewEntropySeededRand())
}

// NewWithRand returns a permutation drawing from the supplied generator.
// The permutation takes exclusive ownership of rng.
func NewWithRand(r iprange.Range, rng *rand.Rand) *Permutation {
	return &Permutation{
		r:      r,
		cursor: r.Distance(),
		state:  make(map[uint128.Uint128]netip.Addr),
		rng:    rng,
	}
}

// Range returns the address range this permutation iterates over.
func (p *Permutation) Range() iprange.Range {
	return p.r
}

// Exhausted reports whether all addresses have already been returned.
func (p *Permutation) Exhausted() bool {
	return p.done
}

// Remaining returns the number of addresses not yet returned. The count
// can reach 2^128, hence the big.Int.
func (p *Permutation) Remaining() *big.Int {
	if p.done {
		return new(big.Int)
	}
	return new(big.Int).Add(p.cursor.Big(), big.NewInt(1))
}

// Next returns the next address of the permutation. done is true when
// the returned address is the last one, and stays true on all further
// calls, which then return the zero address of the range's family.
func (p *Permutation) Next() (addr netip.Addr, done bool) {
	if p.done {
		if p.r.Is4() {
			return netip.IPv4Unspecified(), true
		}
		return netip.IPv6Unspecified(), true
	}

	// One position left, necessarily position 0. For a single-address
	// range this is also the very first call, so the swap table may
	// have no entry for it and the natural-address fallback applies.
	if p.cursor.IsZero() {
		p.done = true
		return p.addrAt(uint128.Zero), true
	}

	pick := random.Uint128n(p.rng, p.cursor)
	addr = p.addrAt(pick)

	// A real Fisher-Yates pass would swap positions pick and cursor.
	// The occupant of pick is being returned and its position is never
	// examined again, so only the other half of the swap is recorded.
	p.state[pick] = p.addrAt(p.cursor)
	p.cursor = p.cursor.Sub64(1)
	return addr, false
}

// addrAt resolves the current occupant of a position: the recorded swap
// if the position was displaced, its natural address otherwise.
func (p *Permutation) addrAt(pos uint128.Uint128) netip.Addr {
	if addr, ok := p.state[pos]; ok {
		return addr
	}
	return p.r.At(pos)
}
