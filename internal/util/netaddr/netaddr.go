package netaddr

import (
	"fmt"
	"net"
	"strconv"

	ma "github.com/multiformats/go-multiaddr"
)

// TCP returns the multiaddr for a TCP endpoint on host. IPv4 and IPv6 literals
// map to /ip4 and /ip6; anything else is treated as a DNS name.
func TCP(host string, port int) (ma.Multiaddr, error) {
	if host == "" {
		return nil, fmt.Errorf("empty host")
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("port %d out of range", port)
	}

	proto := "dns"
	if ip := net.ParseIP(host); ip != nil {
		proto = "ip6"
		if ip.To4() != nil {
			proto = "ip4"
		}
	}

	return Parse(fmt.Sprintf("/%s/%s/tcp/%d", proto, host, port))
}

// Parse parses s and requires it to carry a TCP component.
func Parse(s string) (ma.Multiaddr, error) {
	addr, err := ma.NewMultiaddr(s)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if _, err := addr.ValueForProtocol(ma.P_TCP); err != nil {
		return nil, fmt.Errorf("address %q has no tcp component", s)
	}
	return addr, nil
}

// Port extracts the TCP port from addr.
func Port(addr ma.Multiaddr) (int, error) {
	v, err := addr.ValueForProtocol(ma.P_TCP)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(v)
}
