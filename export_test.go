package ddns

import "net"

// NewInterfaceResolverWith is InterfaceResolver with the interface address lookup replaced.
func NewInterfaceResolverWith(iface string, addrs func(name string) ([]net.Addr, error)) Resolver {
	r := InterfaceResolver(iface).(*interfaceResolver)
	r.addrs = addrs
	return r
}

type ClientOption = clientOption
