// Package allocator offers addresses from one or more IP ranges in
// random order, each address at most once per allocation pass.
package allocator

import (
	"errors"
	"math/big"
	"math/rand"
	"net/netip"
	"sync"

	"github.com/Snawoot/randlease/iprange"
	"github.com/Snawoot/randlease/permutation"
	"github.com/Snawoot/randlease/utils/random"
)

var (
	ErrNoRanges  = errors.New("allocator needs at least one address range")
	ErrExhausted = errors.New("all addresses in the pool have been offered")
)

type pool struct {
	r    iprange.Range
	perm *permutation.Permutation
}

// Allocator draws addresses from a set of ranges. The permutation
// engines it owns are single-threaded, so all access goes through one
// mutex; Allocator itself is safe for concurrent use.
type Allocator struct {
	rng    *rand.Rand
	ranges []iprange.Range

	mux   sync.Mutex
	pools []*pool
}

func New(ranges ...iprange.Range) (*Allocator, error) {
	if len(ranges) == 0 {
		return nil, ErrNoRanges
	}
	a := &Allocator{
		rng:    random.NewTimeSeededRand(),
		ranges: ranges,
	}
	a.pools = freshPools(ranges)
	return a, nil
}

func freshPools(ranges []iprange.Range) []*pool {
	pools := make([]*pool, 0, len(ranges))
	for _, r := range ranges {
		pools = append(pools, &pool{r: r, perm: permutation.New(r)})
	}
	return pools
}

// Next returns an address not yet offered during the current pass,
// picked from a randomly chosen pool. It returns ErrExhausted once
// every address of every range has been offered.
func (a *Allocator) Next() (netip.Addr, error) {
	a.mux.Lock()
	defer a.mux.Unlock()

	if len(a.pools) == 0 {
		return netip.Addr{}, ErrExhausted
	}

	i := a.rng.Intn(len(a.pools))
	addr, done := a.pools[i].perm.Next()
	if done {
		// The final draw of a pool is still a valid address: pools are
		// retired right here, so no pool in the list has reported done
		// before.
		a.pools = append(a.pools[:i], a.pools[i+1:]...)
	}
	return addr, nil
}

// Reset starts a new allocation pass: every address becomes available
// again, in a new independent random order.
func (a *Allocator) Reset() {
	a.mux.Lock()
	defer a.mux.Unlock()
	a.pools = freshPools(a.ranges)
}

// Remaining returns the number of addresses not yet offered during the
// current pass.
func (a *Allocator) Remaining() *big.Int {
	a.mux.Lock()
	defer a.mux.Unlock()

	total := new(big.Int)
	for _, p := range a.pools {
		total.Add(total, p.perm.Remaining())
	}
	return total
}

// Ranges returns the configured address ranges.
func (a *Allocator) Ranges() []iprange.Range {
	return a.ranges
}

// Contains reports whether any configured range covers the address.
func (a *Allocator) Contains(addr netip.Addr) bool {
	for _, r := range a.ranges {
		if r.Contains(addr) {
			return true
		}
	}
	return false
}
