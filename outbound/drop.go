package outbound

import (
	"context"

	"github.com/wraithproxy/dispatch/session"
)

// Drop is a blackhole outbound: every flow fails. Used to model routes
// that should simply discard traffic.
type Drop struct {
	tag string
}

// NewDrop returns a Drop handler tagged tag.
func NewDrop(tag string) *Drop {
	return &Drop{tag: tag}
}

func (d *Drop) Tag() string               { return d.tag }
func (d *Drop) Color() Color              { return ColorRed }
func (d *Drop) ConnectAddr() *OutboundConnect { return nil }

func (d *Drop) HandleTCP(ctx context.Context, sess *session.Session, pre ProxyStream) (ProxyStream, error) {
	return nil, ErrDropped
}

func (d *Drop) HandleUDP(ctx context.Context, sess *session.Session, pre OutboundDatagram) (OutboundDatagram, error) {
	return nil, ErrDropped
}
