// Package dispatcher implements the core traffic dispatch flow: sniff,
// route, resolve a handler, pre-dial, handshake, then hand off to the
// bidirectional relay. See spec.md §4.5–4.6.
package dispatcher

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/wraithproxy/dispatch/accesslog"
	"github.com/wraithproxy/dispatch/dispatchmetrics"
	"github.com/wraithproxy/dispatch/option"
	"github.com/wraithproxy/dispatch/outbound"
	"github.com/wraithproxy/dispatch/relay"
	"github.com/wraithproxy/dispatch/router"
	"github.com/wraithproxy/dispatch/session"
	"github.com/wraithproxy/dispatch/sniff"
)

// OutboundManager resolves a tag to its registered handler, and names
// the fallback tag used when routing fails to produce one.
type OutboundManager interface {
	Get(tag string) (outbound.Handler, bool)
	DefaultHandler() (string, bool)
}

// Dispatcher drives a flow from acceptance through to relay completion.
type Dispatcher struct {
	router   router.Router
	outbound OutboundManager
	dialer   outbound.Dialer
	opts     option.Options
	log      zerolog.Logger
	access   *accesslog.Logger
}

// New builds a Dispatcher.
func New(r router.Router, om OutboundManager, dialer outbound.Dialer, opts option.Options, log zerolog.Logger, access *accesslog.Logger) *Dispatcher {
	return &Dispatcher{router: r, outbound: om, dialer: dialer, opts: opts, log: log, access: access}
}

// tcpConn is the minimal net.Conn-shaped capability the dispatcher needs
// from an accepted inbound connection, satisfied directly by net.Conn.
type tcpConn interface {
	net.Conn
}

// DispatchTCP drives a TCP flow to completion. It never returns an error
// to the caller: every failure is logged and manifests as the inbound
// connection being closed, per spec.md §7's TCP propagation policy.
func (d *Dispatcher) DispatchTCP(ctx context.Context, sess *session.Session, inbound tcpConn) {
	dispatchmetrics.ActiveFlows.WithLabelValues("tcp").Inc()
	defer dispatchmetrics.ActiveFlows.WithLabelValues("tcp").Dec()

	lhs, ok := d.sniffGate(sess, inbound)
	if !ok {
		return
	}

	tag, ok := d.pickRouteOrDefault(sess)
	if !ok {
		_ = lhs.Close()
		return
	}

	handler, ok := d.outbound.Get(tag)
	if !ok {
		d.log.Warn().Str("outbound", tag).Msg("handler not found")
		_ = lhs.Close()
		return
	}

	th, ok := handler.(outbound.TCPHandler)
	if !ok {
		d.log.Warn().Str("outbound", tag).Msg("handler does not support tcp")
		_ = lhs.Close()
		return
	}

	handshakeStart := time.Now()
	pre, err := d.dialer.DialTCP(ctx, sess, th)
	if err != nil {
		dispatchmetrics.DialFailures.WithLabelValues(tag).Inc()
		d.log.Debug().Err(err).Str("outbound", tag).Msg("connect_tcp_outbound failed")
		d.access.LogFailure(sess, tag, th.Color())
		_ = lhs.Close()
		return
	}

	rhs, err := th.HandleTCP(ctx, sess, pre)
	if err != nil {
		dispatchmetrics.HandshakeFailures.WithLabelValues(tag).Inc()
		d.log.Debug().Err(err).Str("outbound", tag).Msg("handshake failed")
		d.access.LogFailure(sess, tag, th.Color())
		if shutErr := lhs.Close(); shutErr != nil {
			d.log.Debug().Err(shutErr).Msg("closing inbound after handshake failure")
		}
		return
	}

	elapsed := time.Since(handshakeStart)
	dispatchmetrics.HandshakeDuration.WithLabelValues(tag).Observe(elapsed.Seconds())
	dispatchmetrics.TotalFlows.WithLabelValues("tcp", tag).Inc()
	d.access.LogSuccess(sess, tag, th.Color(), elapsed)

	counters := &relay.AtomicCounters{}
	up, down, err := relay.CopyBidirectional(ctx, lhsPeer{lhs}, rhs, d.opts.LinkBufferSize, d.opts.TCPUplinkTimeout, d.opts.TCPDownlinkTimeout, counters)
	dispatchmetrics.BytesRelayed.WithLabelValues("uplink").Add(float64(up))
	dispatchmetrics.BytesRelayed.WithLabelValues("downlink").Add(float64(down))
	closePeers(lhs, rhs, d.log)
	if err != nil {
		d.log.Debug().Err(err).Str("outbound", tag).Int64("up", up).Int64("down", down).Msg("relay error")
		return
	}
	d.log.Debug().Str("outbound", tag).Int64("up", up).Int64("down", down).Msg("relay done")
}

// closePeers releases both ends of a completed relay. Shutdown (used
// mid-relay for half-close) issues only a CloseWrite when the peer
// supports it, and CopyBidirectional returns on an error without closing
// either peer, so the flow closes both explicitly once the relay phase
// is over, on every outcome (success, error, or forced timeout).
func closePeers(lhs net.Conn, rhs outbound.ProxyStream, log zerolog.Logger) {
	if err := lhs.Close(); err != nil {
		log.Debug().Err(err).Msg("closing inbound after relay")
	}
	if c, ok := rhs.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Debug().Err(err).Msg("closing outbound after relay")
		}
	}
}

// DispatchUDP mirrors the TCP path through route pick and handler
// resolution, but returns the OutboundDatagram to the caller (the NAT
// manager) rather than relaying it directly, since there is no stream
// to shut down and failures must surface as an error per spec.md §4.6.
func (d *Dispatcher) DispatchUDP(ctx context.Context, sess *session.Session) (outbound.OutboundDatagram, error) {
	tag, err := d.pickRouteOrDefaultErr(sess)
	if err != nil {
		return nil, err
	}

	handler, ok := d.outbound.Get(tag)
	if !ok {
		return nil, errors.New("handler not found")
	}

	uh, ok := handler.(outbound.UDPHandler)
	if !ok {
		return nil, errors.Errorf("outbound %q does not support udp", tag)
	}

	pre, err := d.dialer.DialUDP(ctx, sess, uh)
	if err != nil {
		dispatchmetrics.DialFailures.WithLabelValues(tag).Inc()
		return nil, err
	}

	dgram, err := uh.HandleUDP(ctx, sess, pre)
	if err != nil {
		dispatchmetrics.HandshakeFailures.WithLabelValues(tag).Inc()
		return nil, err
	}
	dispatchmetrics.TotalFlows.WithLabelValues("udp", tag).Inc()
	return dgram, nil
}

// sniffGate applies the SNI sniffing step (spec.md §4.5 step 1) when the
// destination is an IP on port 443, overriding sess.Destination on
// success. ok is false when sniffing failed; sniffGate has then already
// closed the inbound and the caller just returns.
func (d *Dispatcher) sniffGate(sess *session.Session, inbound tcpConn) (net.Conn, bool) {
	if sess.Destination.IsDomain() || sess.Destination.Port != 443 {
		return inbound, true
	}

	s := sniff.New(inbound)
	domain, err := s.SniffSNI()
	if err != nil {
		d.log.Debug().Err(err).Msg("sniff tcp uplink failed")
		_ = inbound.Close()
		return nil, false
	}
	if domain != "" {
		d.log.Debug().Str("domain", domain).Msg("sniffed domain")
		sess.OverrideDestinationDomain(domain)
	}
	return s, true
}

// pickRouteOrDefault implements the TCP-side fallback policy: router
// failure falls back to the outbound manager's default handler; if
// neither produces a tag, ok is false and the caller closes silently.
func (d *Dispatcher) pickRouteOrDefault(sess *session.Session) (string, bool) {
	if tag, err := d.router.PickRoute(sess); err == nil {
		return tag, true
	}
	if tag, ok := d.outbound.DefaultHandler(); ok {
		return tag, true
	}
	d.log.Debug().Msg("no route and no default handler")
	return "", false
}

// pickRouteOrDefaultErr is the UDP-side equivalent: the same fallback,
// but failure surfaces as an error instead of a silent close, since UDP
// has no inbound stream to shut down.
func (d *Dispatcher) pickRouteOrDefaultErr(sess *session.Session) (string, error) {
	if tag, err := d.router.PickRoute(sess); err == nil {
		return tag, nil
	}
	if tag, ok := d.outbound.DefaultHandler(); ok {
		return tag, nil
	}
	return "", errors.New("no available handler")
}

// lhsPeer adapts a plain net.Conn (no half-close signal beyond Close) to
// relay.Peer by treating Shutdown as CloseWrite when available, else a
// full Close.
type lhsPeer struct {
	net.Conn
}

func (p lhsPeer) Shutdown() error {
	if cw, ok := p.Conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return p.Conn.Close()
}
