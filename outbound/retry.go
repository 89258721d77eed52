package outbound

import (
	"context"

	"github.com/wraithproxy/dispatch/session"
)

// Retry traverses its inner handlers in order, for up to attempts
// passes, returning the first success.
//
// Errors from the dialer's connect_tcp_outbound/connect_udp_outbound
// propagate immediately and are never retried: only errors from an
// inner handler's own Handle call advance the loop. This preserves the
// boundary between "cannot reach remote" (fatal) and "handshake failed"
// (retryable) that the handler this was ported from draws.
type Retry struct {
	tag      string
	inner    []Handler
	attempts int
	dialer   Dialer
}

// NewRetry builds a Retry handler over inner with the given number of
// passes. attempts < 1 is treated as 1.
func NewRetry(tag string, inner []Handler, attempts int, dialer Dialer) (*Retry, error) {
	if attempts < 1 {
		attempts = 1
	}
	r := &Retry{tag: tag, inner: inner, attempts: attempts, dialer: dialer}
	if err := checkAcyclic(r, inner); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Retry) Tag() string                  { return r.tag }
func (r *Retry) Color() Color                  { return ColorYellow }
func (r *Retry) ConnectAddr() *OutboundConnect { return nil }
func (r *Retry) innerHandlers() []Handler      { return r.inner }

func (r *Retry) HandleTCP(ctx context.Context, sess *session.Session, pre ProxyStream) (ProxyStream, error) {
	var lastErr error
	for pass := 0; pass < r.attempts; pass++ {
		for _, h := range r.inner {
			th, ok := h.(TCPHandler)
			if !ok {
				continue
			}
			dialed, err := r.dialer.DialTCP(ctx, sess, h)
			if err != nil {
				// connect_tcp_outbound failures are fatal, not retryable.
				return nil, err
			}
			stream, err := th.HandleTCP(ctx, sess, dialed)
			if err == nil {
				return stream, nil
			}
			lastErr = err
		}
	}
	_ = lastErr
	return nil, ErrAllAttemptsFailed
}

func (r *Retry) HandleUDP(ctx context.Context, sess *session.Session, pre OutboundDatagram) (OutboundDatagram, error) {
	var lastErr error
	for pass := 0; pass < r.attempts; pass++ {
		for _, h := range r.inner {
			uh, ok := h.(UDPHandler)
			if !ok {
				continue
			}
			dialed, err := r.dialer.DialUDP(ctx, sess, h)
			if err != nil {
				return nil, err
			}
			dgram, err := uh.HandleUDP(ctx, sess, dialed)
			if err == nil {
				return dgram, nil
			}
			lastErr = err
		}
	}
	_ = lastErr
	return nil, ErrAllAttemptsFailed
}
