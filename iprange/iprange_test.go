package iprange

import (
	"errors"
	"math/big"
	"net/netip"
	"testing"

	"lukechampine.com/uint128"
)

func TestNewValidation(t *testing.T) {
	_, err := New(netip.MustParseAddr("10.0.0.1"), netip.MustParseAddr("2001:db8::1"))
	if !errors.Is(err, ErrMixedAddressFamily) {
		t.Errorf("expected ErrMixedAddressFamily, got %v", err)
	}
	_, err = New(netip.MustParseAddr("10.0.0.2"), netip.MustParseAddr("10.0.0.1"))
	if !errors.Is(err, ErrBadOrder) {
		t.Errorf("expected ErrBadOrder, got %v", err)
	}
	_, err = New(netip.Addr{}, netip.MustParseAddr("10.0.0.1"))
	if !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("expected ErrInvalidAddress, got %v", err)
	}
	if _, err = New(netip.MustParseAddr("10.0.0.1"), netip.MustParseAddr("10.0.0.1")); err != nil {
		t.Errorf("single address range rejected: %v", err)
	}
}

func TestParse(t *testing.T) {
	r, err := Parse("192.0.2.1 - 192.0.2.5")
	if err != nil {
		t.Fatalf("can't parse range: %v", err)
	}
	if r.String() != "192.0.2.1-192.0.2.5" {
		t.Errorf("unexpected range: %s", r)
	}
	r, err = Parse("2001:db8::7")
	if err != nil {
		t.Fatalf("can't parse single-address range: %v", err)
	}
	if r.Start() != r.End() {
		t.Errorf("single-address range has different endpoints: %s", r)
	}
	if _, err = Parse("not-an-address"); err == nil {
		t.Errorf("garbage accepted as range")
	}
}

func TestDistanceAndSize(t *testing.T) {
	r, _ := New(netip.MustParseAddr("172.24.0.0"), netip.MustParseAddr("172.24.255.255"))
	if d := r.Distance(); !d.Equals64(65535) {
		t.Errorf("unexpected distance: %s", d)
	}
	if s := r.Size(); s.Cmp(big.NewInt(65536)) != 0 {
		t.Errorf("unexpected size: %s", s)
	}

	full, _ := New(netip.MustParseAddr("::"), netip.MustParseAddr("ffff:ffff:ffff:ffff:ffff:ffff:ffff:ffff"))
	if d := full.Distance(); !d.Equals(uint128.Max) {
		t.Errorf("unexpected full-space distance: %s", d)
	}
	wantSize := new(big.Int).Lsh(big.NewInt(1), 128)
	if s := full.Size(); s.Cmp(wantSize) != 0 {
		t.Errorf("unexpected full-space size: %s", s)
	}
}

func TestAt(t *testing.T) {
	r, _ := Parse("192.0.2.1-192.0.2.10")
	if got := r.At(uint128.From64(5)); got != netip.MustParseAddr("192.0.2.6") {
		t.Errorf("unexpected v4 offset address: %s", got)
	}
	if got := r.At(uint128.Zero); got != r.Start() {
		t.Errorf("zero offset is not range start: %s", got)
	}

	r6, _ := Parse("2001:db8::1-2001:db8::ff")
	if got := r6.At(uint128.From64(0x10)); got != netip.MustParseAddr("2001:db8::11") {
		t.Errorf("unexpected v6 offset address: %s", got)
	}
	if got := r6.At(r6.Distance()); got != r6.End() {
		t.Errorf("distance offset is not range end: %s", got)
	}

	// Offset of 2^64 crosses the low 64-bit word boundary.
	wide, _ := Parse("2001:db8::-2001:db8:0:1::")
	if got := wide.At(uint128.New(0, 1)); got != netip.MustParseAddr("2001:db8:0:1::") {
		t.Errorf("unexpected carried v6 offset address: %s", got)
	}
}

func TestContains(t *testing.T) {
	r, _ := Parse("192.0.2.1-192.0.2.5")
	for _, sample := range []string{"192.0.2.1", "192.0.2.3", "192.0.2.5"} {
		if !r.Contains(netip.MustParseAddr(sample)) {
			t.Errorf("range %s should contain %s", r, sample)
		}
	}
	for _, sample := range []string{"192.0.2.0", "192.0.2.6", "2001:db8::1"} {
		if r.Contains(netip.MustParseAddr(sample)) {
			t.Errorf("range %s should not contain %s", r, sample)
		}
	}
}
