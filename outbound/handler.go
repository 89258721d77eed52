// Package outbound defines the polymorphic egress abstraction the
// dispatcher drives, and the small set of composed handlers (drop,
// null, random, round-robin, retry) that delegate to inner handlers.
package outbound

import (
	"context"
	"io"

	"github.com/wraithproxy/dispatch/session"
)

// ProxyStream is an abstract full-duplex byte stream. Implementations
// must be safe for concurrent Read/Write from different goroutines.
type ProxyStream interface {
	io.Reader
	io.Writer
	// Shutdown closes the write half, signalling EOF to the peer without
	// releasing read resources.
	Shutdown() error
}

// Packet is one datagram read from or destined to a SocksAddr.
type Packet struct {
	Addr    session.SocksAddr
	Payload []byte
}

// DatagramSendHalf is the write side of an OutboundDatagram.
type DatagramSendHalf interface {
	Send(context.Context, Packet) error
}

// DatagramRecvHalf is the read side of an OutboundDatagram.
type DatagramRecvHalf interface {
	Recv(context.Context) (Packet, error)
}

// OutboundDatagram is a packet-oriented bidirectional channel, split so
// send and receive can be driven from independent goroutines.
type OutboundDatagram interface {
	DatagramSendHalf
	DatagramRecvHalf
	Close() error
}

// DatagramTransportType tells the framework whether a handler expects a
// stream-like or packet-like lower transport when it requests a pre-dial.
type DatagramTransportType int

const (
	TransportUndefined DatagramTransportType = iota
	TransportStream
	TransportPacket
)

// Color is a cosmetic tag used only to colorize access log lines.
type Color int

const (
	ColorNone Color = iota
	ColorBlue
	ColorGreen
	ColorYellow
	ColorRed
	ColorCyan
	ColorMagenta
)

// OutboundConnect is the address the framework should pre-dial before
// handing control to the handler. Nil means the handler dials itself
// (composed handlers always return nil: they delegate dialing to their
// inner handlers through connect_tcp_outbound/connect_udp_outbound).
type OutboundConnect struct {
	Addr      session.SocksAddr
	Transport DatagramTransportType
}

// Handler is the capability set every outbound satisfies. A handler may
// implement HandleTCP, HandleUDP, or both; the dispatcher calls whichever
// the flow's network requires.
type Handler interface {
	Tag() string
	Color() Color
	// ConnectAddr returns the pre-dial hint, or nil if this handler dials
	// itself.
	ConnectAddr() *OutboundConnect
}

// TCPHandler is implemented by handlers that can service TCP flows.
type TCPHandler interface {
	Handler
	HandleTCP(ctx context.Context, sess *session.Session, pre ProxyStream) (ProxyStream, error)
}

// UDPHandler is implemented by handlers that can service UDP flows.
type UDPHandler interface {
	Handler
	HandleUDP(ctx context.Context, sess *session.Session, pre OutboundDatagram) (OutboundDatagram, error)
}

// Dialer is the framework hook a composed handler uses to obtain the
// lower transport an inner handler expects, mirroring
// connect_tcp_outbound/connect_udp_outbound from the dispatcher's point
// of view. A real implementation lives in package transport; composed
// handlers only depend on this narrow interface so they can be tested
// without a live network.
type Dialer interface {
	DialTCP(ctx context.Context, sess *session.Session, h Handler) (ProxyStream, error)
	DialUDP(ctx context.Context, sess *session.Session, h Handler) (OutboundDatagram, error)
}
