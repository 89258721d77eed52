// Package session describes the per-flow state the dispatcher threads
// through routing, handshake and relay.
package session

import (
	"fmt"
	"net"
)

// Network identifies the transport kind of an inbound flow.
type Network int

const (
	TCP Network = iota
	UDP
)

func (n Network) String() string {
	switch n {
	case TCP:
		return "tcp"
	case UDP:
		return "udp"
	default:
		return "unknown"
	}
}

// maxDomainLength is the wire limit for a DNS name (255 octets).
const maxDomainLength = 255

// AddrKind distinguishes the two SocksAddr variants.
type AddrKind int

const (
	AddrIP AddrKind = iota
	AddrDomain
)

// SocksAddr is a tagged union of an IP:port or a domain:port destination.
// Exactly one of ip/domain is meaningful, selected by Kind.
type SocksAddr struct {
	Kind   AddrKind
	IP     net.IP
	Domain string
	Port   uint16
}

// NewIPAddr builds an IP-addressed SocksAddr.
func NewIPAddr(ip net.IP, port uint16) SocksAddr {
	return SocksAddr{Kind: AddrIP, IP: ip, Port: port}
}

// NewDomainAddr builds a domain-addressed SocksAddr. Fails when the name
// exceeds the 255-octet DNS limit.
func NewDomainAddr(domain string, port uint16) (SocksAddr, error) {
	if len(domain) > maxDomainLength {
		return SocksAddr{}, fmt.Errorf("domain name %q exceeds %d octets", domain, maxDomainLength)
	}
	return SocksAddr{Kind: AddrDomain, Domain: domain, Port: port}, nil
}

// IsDomain reports whether this address carries a domain name rather than
// a resolved IP. Invariant: IsDomain() == (Kind == AddrDomain).
func (a SocksAddr) IsDomain() bool {
	return a.Kind == AddrDomain
}

func (a SocksAddr) String() string {
	if a.IsDomain() {
		return fmt.Sprintf("%s:%d", a.Domain, a.Port)
	}
	return fmt.Sprintf("%s:%d", a.IP.String(), a.Port)
}

// Host returns the dialable host component: the domain name, or the IP's
// string form when this is an IP address.
func (a SocksAddr) Host() string {
	if a.IsDomain() {
		return a.Domain
	}
	return a.IP.String()
}

// Session is the per-flow descriptor. It is mutated only by the
// dispatcher while sniffing; otherwise it is read-only for the lifetime
// of the flow.
type Session struct {
	InboundTag string
	Network    Network
	Source     net.Addr
	Destination SocksAddr

	// SniffedDomain is set when the dispatcher recovers a TLS SNI
	// hostname for an IP-addressed destination. Empty otherwise.
	SniffedDomain string
}

// New constructs a Session for a freshly accepted or received flow.
func New(inboundTag string, network Network, source net.Addr, destination SocksAddr) *Session {
	return &Session{
		InboundTag:  inboundTag,
		Network:     network,
		Source:      source,
		Destination: destination,
	}
}

// OverrideDestinationDomain replaces the destination with a domain-based
// address at the same port and records the domain in SniffedDomain; the
// original IP is not kept. Used
// exclusively by the dispatcher's SNI-sniffing step.
func (s *Session) OverrideDestinationDomain(domain string) {
	s.SniffedDomain = domain
	s.Destination = SocksAddr{Kind: AddrDomain, Domain: domain, Port: s.Destination.Port}
}
