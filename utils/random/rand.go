// Package random provides seeded pseudo-random generators and unbiased
// bounded draws used by the permutation engine and the allocator.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"sync"
	"time"
)

type concurrentRandomSource struct {
	src rand.Source64
	mux sync.Mutex
}

// NewConcurrentRandomSource wraps existing rand.Source64 making it safe
// for concurrent use
func NewConcurrentRandomSource(src rand.Source64) rand.Source64 {
	return &concurrentRandomSource{
		src: src,
	}
}

// Seed is a part of rand.Source interface
func (s *concurrentRandomSource) Seed(seed int64) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.src.Seed(seed)
}

// Int63 is a part of rand.Source interface
func (s *concurrentRandomSource) Int63() int64 {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.src.Int63()
}

// Uint64 is a part of rand.Source64 interface
func (s *concurrentRandomSource) Uint64() uint64 {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.src.Uint64()
}

// NewTimeSeededRand creates *rand.Rand seeded with current time
// and safe for concurrent use
func NewTimeSeededRand() *rand.Rand {
	return rand.New(
		NewConcurrentRandomSource(
			rand.NewSource(
				time.Now().UnixNano(),
			).(rand.Source64),
		),
	)
}

// NewEntropySeededRand creates *rand.Rand seeded with a fresh value from
// the OS entropy source. One seed is drawn per call, so generators made
// by separate calls are uncorrelated. The returned generator is not safe
// for concurrent use.
func NewEntropySeededRand() *rand.Rand {
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err != nil {
		// Entropy source failure is exotic enough to fall back silently.
		return rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return rand.New(rand.NewSource(int64(binary.LittleEndian.Uint64(buf[:]))))
}
