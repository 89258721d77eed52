package transport

import (
	"context"
	"net"

	"github.com/wraithproxy/dispatch/outbound"
	"github.com/wraithproxy/dispatch/session"
)

// streamAdapter turns a dialed net.Conn into an outbound.ProxyStream.
type streamAdapter struct {
	net.Conn
}

func (s *streamAdapter) Shutdown() error {
	if cw, ok := s.Conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return s.Conn.Close()
}

// datagramAdapter turns a connected *net.UDPConn into an
// outbound.OutboundDatagram. DialUDP only ever connects to a single
// resolved endpoint, so Send ignores pkt.Addr and writes to that
// endpoint, and every received packet carries the peer address as an IP
// SocksAddr.
type datagramAdapter struct {
	*net.UDPConn
}

func (d *datagramAdapter) Send(ctx context.Context, pkt outbound.Packet) error {
	if dl, ok := ctx.Deadline(); ok {
		_ = d.SetWriteDeadline(dl)
	}
	_, err := d.Write(pkt.Payload)
	return err
}

func (d *datagramAdapter) Recv(ctx context.Context) (outbound.Packet, error) {
	if dl, ok := ctx.Deadline(); ok {
		_ = d.SetReadDeadline(dl)
	}
	buf := make([]byte, 64*1024)
	n, err := d.Read(buf)
	if err != nil {
		return outbound.Packet{}, err
	}
	remote := d.RemoteAddr()
	addr, aerr := addrFromNet(remote)
	if aerr != nil {
		return outbound.Packet{}, aerr
	}
	return outbound.Packet{Addr: addr, Payload: buf[:n]}, nil
}

func (d *datagramAdapter) Close() error {
	return d.UDPConn.Close()
}

func addrFromNet(a net.Addr) (session.SocksAddr, error) {
	udpAddr, ok := a.(*net.UDPAddr)
	if !ok {
		return session.SocksAddr{}, nil
	}
	return session.NewIPAddr(udpAddr.IP, uint16(udpAddr.Port)), nil
}
