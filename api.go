package ddns

import (
	"context"
	"net/netip"

	"github.com/libdns/libdns"
)

// Resolver discovers the current address for one IP family.
//
// A zero netip.Addr with a nil error means no address is available,
// which is not a failure: the family is simply skipped.
type Resolver interface {
	Resolve(context.Context) (netip.Addr, error)
}

// ResolverFunc adapts an ordinary function to the Resolver interface.
type ResolverFunc func(context.Context) (netip.Addr, error)

func (f ResolverFunc) Resolve(ctx context.Context) (netip.Addr, error) {
	return f(ctx)
}

// Provider reads and replaces single-valued address records hosted by a DNS provider.
type Provider interface {
	// ZoneID returns the provider's identifier for the zone holding domain.
	ZoneID(ctx context.Context, domain string) (string, error)
	// GetRecord returns the record name/rtype in zone, with Data set to its first value.
	GetRecord(ctx context.Context, zone, name, rtype string) (libdns.RR, error)
	// SetRecord replaces the TTL and values of the record described by addr.
	SetRecord(ctx context.Context, zone string, addr libdns.Address) error
}

// Family is an IP address family. Each family drives exactly one record type.
type Family int

const (
	IPv4 Family = iota
	IPv6
)

func (f Family) String() string {
	if f == IPv6 {
		return "IPv6"
	}
	return "IPv4"
}

// RecordType returns the DNS record type managed for the family.
func (f Family) RecordType() string {
	if f == IPv6 {
		return "AAAA"
	}
	return "A"
}

// bounds are the accepted lengths of an address in text form.
func (f Family) bounds() (lo, hi int) {
	if f == IPv6 {
		return 4, 39
	}
	return 7, 15
}

// ParseAddr validates s as an address of family f.
// Strings outside the family's length bounds, unparsable strings and addresses
// of the other family all yield the zero Addr.
func (f Family) ParseAddr(s string) netip.Addr {
	lo, hi := f.bounds()
	if len(s) < lo || len(s) > hi {
		return netip.Addr{}
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}
	}
	switch {
	case f == IPv4 && addr.Is4():
		return addr
	case f == IPv6 && addr.Is6() && !addr.Is4In6():
		return addr
	}
	return netip.Addr{}
}
