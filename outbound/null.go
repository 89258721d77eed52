package outbound

import (
	"context"

	"github.com/wraithproxy/dispatch/session"
)

// Null always fails like Drop, but carries a real OutboundConnect hint
// and DatagramTransportType so the framework's pre-dial machinery still
// runs before the rejection. Useful for testing that the pre-dial path
// behaves when the handler itself refuses every flow.
type Null struct {
	tag       string
	connect   OutboundConnect
	hasConnect bool
}

// NewNull returns a Null handler. When addr is non-nil, ConnectAddr
// reports it as the pre-dial hint.
func NewNull(tag string, addr *session.SocksAddr, transport DatagramTransportType) *Null {
	n := &Null{tag: tag}
	if addr != nil {
		n.connect = OutboundConnect{Addr: *addr, Transport: transport}
		n.hasConnect = true
	}
	return n
}

func (n *Null) Tag() string  { return n.tag }
func (n *Null) Color() Color { return ColorRed }

func (n *Null) ConnectAddr() *OutboundConnect {
	if !n.hasConnect {
		return nil
	}
	c := n.connect
	return &c
}

func (n *Null) HandleTCP(ctx context.Context, sess *session.Session, pre ProxyStream) (ProxyStream, error) {
	return nil, ErrNullHandler
}

func (n *Null) HandleUDP(ctx context.Context, sess *session.Session, pre OutboundDatagram) (OutboundDatagram, error) {
	return nil, ErrNullHandler
}
