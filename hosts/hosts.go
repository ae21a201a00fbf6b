// Package hosts keeps static host reservations: clients that must always
// receive one fixed address.
package hosts

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
)

var (
	ErrDuplicateClient  = errors.New("client already has a reservation")
	ErrDuplicateAddress = errors.New("address already reserved for another client")
)

type Reservations struct {
	byClient map[string]netip.Addr
	byAddr   map[netip.Addr]string
}

func New() *Reservations {
	return &Reservations{
		byClient: make(map[string]netip.Addr),
		byAddr:   make(map[netip.Addr]string),
	}
}

// Parse builds reservations from a "client=addr[,client=addr...]" spec.
// An empty spec yields an empty set.
func Parse(spec string) (*Reservations, error) {
	res := New()
	if spec == "" {
		return res, nil
	}
	for _, pair := range strings.Split(spec, ",") {
		client, addrStr, found := strings.Cut(pair, "=")
		client = strings.TrimSpace(client)
		if !found || client == "" {
			return nil, fmt.Errorf("malformed reservation %q", pair)
		}
		addr, err := netip.ParseAddr(strings.TrimSpace(addrStr))
		if err != nil {
			return nil, fmt.Errorf("malformed reservation %q: %w", pair, err)
		}
		if err := res.Add(client, addr); err != nil {
			return nil, fmt.Errorf("reservation %q: %w", pair, err)
		}
	}
	return res, nil
}

func (r *Reservations) Add(clientID string, addr netip.Addr) error {
	addr = addr.Unmap()
	if _, ok := r.byClient[clientID]; ok {
		return ErrDuplicateClient
	}
	if _, ok := r.byAddr[addr]; ok {
		return ErrDuplicateAddress
	}
	r.byClient[clientID] = addr
	r.byAddr[addr] = clientID
	return nil
}

// Lookup returns the address reserved for the client, if any.
func (r *Reservations) Lookup(clientID string) (netip.Addr, bool) {
	addr, ok := r.byClient[clientID]
	return addr, ok
}

// Holder returns the client an address is reserved for, if any.
func (r *Reservations) Holder(addr netip.Addr) (string, bool) {
	client, ok := r.byAddr[addr.Unmap()]
	return client, ok
}

func (r *Reservations) Len() int {
	return len(r.byClient)
}
