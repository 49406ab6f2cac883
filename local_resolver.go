package ddns

import (
	"context"
	"net"
	"net/netip"
	"strings"

	"go.uber.org/zap"
)

// InterfaceResolver constructs a resolver that returns the first usable IPv6 address assigned to the named interface.
//
// Link-local (fe80::/10) and loopback addresses are never selected,
// nor are IPv4 addresses.
// Errors looking up the interface are logged and resolve to no address:
// a host whose interface is down simply leaves its AAAA records alone.
func InterfaceResolver(iface string) Resolver {
	return &interfaceResolver{
		iface:  iface,
		addrs:  interfaceAddrs,
		logger: discard,
	}
}

type interfaceResolver struct {
	iface  string
	addrs  func(name string) ([]net.Addr, error)
	logger *zap.Logger
}

func (r *interfaceResolver) SetLogger(logger *zap.Logger) { r.logger = logger }

func interfaceAddrs(name string) ([]net.Addr, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, err
	}
	return iface.Addrs()
}

// Resolve implements ddns.Resolver. It never returns an error.
func (r *interfaceResolver) Resolve(context.Context) (netip.Addr, error) {
	addrs, err := r.addrs(r.iface)
	if err != nil {
		r.logger.Debug("unable to list interface addresses", zap.String("interface", r.iface), zap.Error(err))
		return netip.Addr{}, nil
	}
	// addr: ip+net:192.168.86.253/24
	// addr: ip+net:fd64:9f44:fc30:0:b951:8b16:2812:a227/64
	// addr: ip+net:fe80::2cc9:801b:3551:9a43/64
	for _, a := range addrs {
		addr, ok := usableIPv6(a)
		if !ok {
			continue
		}
		r.logger.Debug("checking IPv6 for interface", zap.String("interface", r.iface), zap.Stringer("address", addr))
		if IPv6.ParseAddr(addr.String()).IsValid() {
			return addr, nil
		}
		r.logger.Error("ignoring interface address with incorrect length", zap.Stringer("address", addr))
		return netip.Addr{}, nil
	}
	return netip.Addr{}, nil
}

func usableIPv6(a net.Addr) (netip.Addr, bool) {
	s := a.String()
	var addr netip.Addr
	if p, err := netip.ParsePrefix(s); err == nil {
		addr = p.Addr()
	} else if ip, err := netip.ParseAddr(s); err == nil {
		addr = ip
	} else {
		return netip.Addr{}, false
	}
	if !addr.Is6() || addr.Is4In6() {
		return netip.Addr{}, false
	}
	if addr.IsLoopback() || addr.IsLinkLocalUnicast() || strings.HasPrefix(strings.ToLower(s), "fe80") {
		return netip.Addr{}, false
	}
	return addr.WithZone(""), true
}
