// Package iprange provides an immutable contiguous IP address range with
// offset arithmetic wide enough for the whole IPv6 address space.
package iprange

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"net/netip"
	"strings"

	"lukechampine.com/uint128"
)

var (
	ErrInvalidAddress     = errors.New("invalid address")
	ErrMixedAddressFamily = errors.New("range endpoints belong to different address families")
	ErrBadOrder           = errors.New("end of range is less than start of range")
)

// Range is an inclusive span of addresses of a single family.
// The zero Range is not valid; construct one with New or Parse.
type Range struct {
	start netip.Addr
	end   netip.Addr
}

func New(start, end netip.Addr) (Range, error) {
	if !start.IsValid() || !end.IsValid() {
		return Range{}, ErrInvalidAddress
	}
	start, end = start.Unmap(), end.Unmap()
	if start.Is4() != end.Is4() {
		return Range{}, ErrMixedAddressFamily
	}
	if end.Less(start) {
		return Range{}, ErrBadOrder
	}
	return Range{start: start, end: end}, nil
}

// Parse accepts "start-end" or a single address meaning a range of one.
func Parse(s string) (Range, error) {
	first, second, found := strings.Cut(s, "-")
	if !found {
		second = first
	}
	start, err := netip.ParseAddr(strings.TrimSpace(first))
	if err != nil {
		return Range{}, fmt.Errorf("can't parse range start: %w", err)
	}
	end, err := netip.ParseAddr(strings.TrimSpace(second))
	if err != nil {
		return Range{}, fmt.Errorf("can't parse range end: %w", err)
	}
	return New(start, end)
}

func (r Range) Start() netip.Addr {
	return r.start
}

func (r Range) End() netip.Addr {
	return r.end
}

func (r Range) Is4() bool {
	return r.start.Is4()
}

func (r Range) String() string {
	return r.start.String() + "-" + r.end.String()
}

// Distance returns numeric(end) - numeric(start). Unlike the address
// count it fits 128 bits even for the full IPv6 space.
func (r Range) Distance() uint128.Uint128 {
	if r.start.Is4() {
		s := binary.BigEndian.Uint32(r.start.AsSlice())
		e := binary.BigEndian.Uint32(r.end.AsSlice())
		return uint128.From64(uint64(e - s))
	}
	return toUint128(r.end).Sub(toUint128(r.start))
}

// Size returns the number of addresses in the range (Distance + 1).
func (r Range) Size() *big.Int {
	return new(big.Int).Add(r.Distance().Big(), big.NewInt(1))
}

// At returns the address at the given offset from the range start.
// The offset must not exceed Distance.
func (r Range) At(offset uint128.Uint128) netip.Addr {
	if r.start.Is4() {
		base := binary.BigEndian.Uint32(r.start.AsSlice())
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], base+uint32(offset.Lo))
		return netip.AddrFrom4(b)
	}
	return fromUint128(toUint128(r.start).Add(offset))
}

func (r Range) Contains(addr netip.Addr) bool {
	addr = addr.Unmap()
	if addr.Is4() != r.start.Is4() {
		return false
	}
	return !addr.Less(r.start) && !r.end.Less(addr)
}

func toUint128(addr netip.Addr) uint128.Uint128 {
	b := addr.As16()
	return uint128.New(
		binary.BigEndian.Uint64(b[8:]),
		binary.BigEndian.Uint64(b[:8]),
	)
}

func fromUint128(v uint128.Uint128) netip.Addr {
	var b [16]byte
	binary.BigEndian.PutUint64(b[:8], v.Hi)
	binary.BigEndian.PutUint64(b[8:], v.Lo)
	return netip.AddrFrom16(b)
}
