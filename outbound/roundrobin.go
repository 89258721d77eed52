package outbound

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/wraithproxy/dispatch/session"
)

// RoundRobin cycles through its inner handlers with a single atomic
// cursor, incremented modulo len(inner) on each call. The load-compute-
// store sequence is deliberately not a CAS loop: under concurrent
// callers two invocations may observe the same slot. That's acceptable
// because fairness here is a statistical property, not a correctness
// invariant (see spec discussion of this handler).
type RoundRobin struct {
	tag    string
	inner  []Handler
	dialer Dialer
	log    zerolog.Logger
	cursor atomic.Uint32
}

// NewRoundRobin builds a RoundRobin handler over inner.
func NewRoundRobin(tag string, inner []Handler, dialer Dialer, log zerolog.Logger) (*RoundRobin, error) {
	rr := &RoundRobin{tag: tag, inner: inner, dialer: dialer, log: log}
	if err := checkAcyclic(rr, inner); err != nil {
		return nil, err
	}
	return rr, nil
}

func (rr *RoundRobin) Tag() string                  { return rr.tag }
func (rr *RoundRobin) Color() Color                  { return ColorMagenta }
func (rr *RoundRobin) ConnectAddr() *OutboundConnect { return nil }
func (rr *RoundRobin) innerHandlers() []Handler      { return rr.inner }

// next returns the next inner handler and advances the cursor. Invariant:
// the returned index is in [0, len(inner)).
func (rr *RoundRobin) next() Handler {
	n := uint32(len(rr.inner))
	cur := rr.cursor.Load()
	rr.cursor.Store((cur + 1) % n)
	return rr.inner[cur%n]
}

func (rr *RoundRobin) HandleTCP(ctx context.Context, sess *session.Session, pre ProxyStream) (ProxyStream, error) {
	rr.log.Debug().Str("outbound", rr.tag).Msg("rr handles tcp")
	picked := rr.next()
	th, ok := picked.(TCPHandler)
	if !ok {
		return nil, ErrNullHandler
	}
	dialed, err := rr.dialer.DialTCP(ctx, sess, picked)
	if err != nil {
		return nil, err
	}
	return th.HandleTCP(ctx, sess, dialed)
}

func (rr *RoundRobin) HandleUDP(ctx context.Context, sess *session.Session, pre OutboundDatagram) (OutboundDatagram, error) {
	// The source this is ported from logs "rr handles tcp" even in the UDP
	// path, a copy-paste defect. Fixed here: this is the udp handler.
	rr.log.Debug().Str("outbound", rr.tag).Msg("rr handles udp")
	picked := rr.next()
	uh, ok := picked.(UDPHandler)
	if !ok {
		return nil, ErrNullHandler
	}
	dialed, err := rr.dialer.DialUDP(ctx, sess, picked)
	if err != nil {
		return nil, err
	}
	return uh.HandleUDP(ctx, sess, dialed)
}
