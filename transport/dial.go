// Package transport implements the framework's pre-dial helpers
// (connect_tcp_outbound / connect_udp_outbound in the spec's
// terminology): given a handler's declared OutboundConnect hint, it
// resolves the address through the dnsclient collaborator, fans out to
// up to OUTBOUND_DIAL_CONCURRENCY candidate IPs concurrently, binds the
// configured interface/address, and returns the first live connection.
package transport

import (
	"context"
	"net"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pkg/errors"
	"github.com/wraithproxy/dispatch/dnsclient"
	"github.com/wraithproxy/dispatch/option"
	"github.com/wraithproxy/dispatch/outbound"
	"github.com/wraithproxy/dispatch/session"
)

// Dialer implements outbound.Dialer against real network sockets.
type Dialer struct {
	DNS  *dnsclient.Resolver
	Opts option.Options
}

// New builds a Dialer.
func New(dns *dnsclient.Resolver, opts option.Options) *Dialer {
	return &Dialer{DNS: dns, Opts: opts}
}

// DialTCP pre-dials h's ConnectAddr, if any, returning the lower stream
// the handler expects. A handler with no ConnectAddr performs its own
// dialing, so DialTCP returns (nil, nil) for it.
func (d *Dialer) DialTCP(ctx context.Context, sess *session.Session, h outbound.Handler) (outbound.ProxyStream, error) {
	hint := h.ConnectAddr()
	if hint == nil {
		return nil, nil
	}
	conn, err := d.dialAddr(ctx, hint.Addr, "tcp")
	if err != nil {
		return nil, errors.Wrapf(err, "dial tcp outbound %s for %s", hint.Addr, h.Tag())
	}
	return &streamAdapter{Conn: conn}, nil
}

// DialUDP mirrors DialTCP for the packet-oriented path.
func (d *Dialer) DialUDP(ctx context.Context, sess *session.Session, h outbound.Handler) (outbound.OutboundDatagram, error) {
	hint := h.ConnectAddr()
	if hint == nil {
		return nil, nil
	}
	conn, err := d.dialAddr(ctx, hint.Addr, "udp")
	if err != nil {
		return nil, errors.Wrapf(err, "dial udp outbound %s for %s", hint.Addr, h.Tag())
	}
	udpConn, ok := conn.(*net.UDPConn)
	if !ok {
		conn.Close()
		return nil, errors.Errorf("dial udp outbound %s: not a udp connection", hint.Addr)
	}
	return &datagramAdapter{UDPConn: udpConn}, nil
}

// candidates resolves addr to a list of dialable IPs, honoring
// ENABLE_IPV6/PREFER_IPV6. An already-resolved IP address is returned
// as-is without touching the DNS collaborator.
func (d *Dialer) candidates(ctx context.Context, addr session.SocksAddr) ([]net.IP, error) {
	if !addr.IsDomain() {
		return []net.IP{addr.IP}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, d.Opts.DNSTimeout)
	defer cancel()
	ips, err := d.DNS.Lookup(ctx, addr.Domain, d.Opts.EnableIPv6)
	if err != nil {
		return nil, err
	}
	if d.Opts.PreferIPv6 {
		ips = preferV6(ips)
	}
	return ips, nil
}

func preferV6(ips []net.IP) []net.IP {
	out := make([]net.IP, 0, len(ips))
	for _, ip := range ips {
		if ip.To4() == nil {
			out = append(out, ip)
		}
	}
	for _, ip := range ips {
		if ip.To4() != nil {
			out = append(out, ip)
		}
	}
	return out
}

// dialAddr fans candidate IPs out across up to
// OUTBOUND_DIAL_CONCURRENCY concurrent dials and returns the first
// success, cancelling the rest.
func (d *Dialer) dialAddr(ctx context.Context, addr session.SocksAddr, network string) (net.Conn, error) {
	ips, err := d.candidates(ctx, addr)
	if err != nil {
		return nil, err
	}
	if len(ips) == 0 {
		return nil, errors.Errorf("no addresses for %s", addr)
	}

	concurrency := d.Opts.OutboundDialConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > len(ips) {
		concurrency = len(ips)
	}

	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		conn net.Conn
		err  error
	}
	results := make(chan result, concurrency)
	g, gctx := errgroup.WithContext(dialCtx)
	for i := 0; i < concurrency; i++ {
		ip := ips[i]
		g.Go(func() error {
			conn, derr := d.dialOne(gctx, network, ip, addr.Port)
			results <- result{conn: conn, err: derr}
			return nil
		})
	}

	go func() { _ = g.Wait(); close(results) }()

	var firstErr error
	for res := range results {
		if res.err == nil {
			cancel()
			return res.conn, nil
		}
		if firstErr == nil {
			firstErr = res.err
		}
	}
	return nil, firstErr
}

func (d *Dialer) dialOne(ctx context.Context, network string, ip net.IP, port uint16) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 8 * time.Second}
	bind := d.Opts.UnspecifiedBindAddr4
	if ip.To4() == nil {
		bind = d.Opts.UnspecifiedBindAddr6
	}
	if laddr, err := net.ResolveTCPAddr("tcp", bind); bind != "" && err == nil {
		dialer.LocalAddr = laddr
		if network == "udp" {
			dialer.LocalAddr = &net.UDPAddr{IP: laddr.IP, Port: laddr.Port, Zone: laddr.Zone}
		}
	}
	if d.Opts.OutboundInterface != "" {
		if iface, err := bindToInterface(dialer, d.Opts.OutboundInterface, ip); err == nil {
			dialer = iface
		}
	}
	return dialer.DialContext(ctx, network, net.JoinHostPort(ip.String(), strconv.Itoa(int(port))))
}
