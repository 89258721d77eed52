package outbound

import (
	"context"

	"github.com/wraithproxy/dispatch/session"
)

// Direct is the simplest possible leaf handler: it declares a pre-dial
// hint and then hands the pre-dialed stream straight back, unmodified.
// It exists for the same reason Drop and Null do — a minimal, fully
// working handler the framework (and the demo binary) can exercise
// without any real protocol logic layered on top.
type Direct struct {
	tag     string
	connect OutboundConnect
}

// NewDirect returns a Direct handler that pre-dials addr.
func NewDirect(tag string, addr session.SocksAddr, transport DatagramTransportType) *Direct {
	return &Direct{tag: tag, connect: OutboundConnect{Addr: addr, Transport: transport}}
}

func (d *Direct) Tag() string  { return d.tag }
func (d *Direct) Color() Color { return ColorGreen }

func (d *Direct) ConnectAddr() *OutboundConnect {
	c := d.connect
	return &c
}

func (d *Direct) HandleTCP(ctx context.Context, sess *session.Session, pre ProxyStream) (ProxyStream, error) {
	return pre, nil
}

func (d *Direct) HandleUDP(ctx context.Context, sess *session.Session, pre OutboundDatagram) (OutboundDatagram, error) {
	return pre, nil
}
