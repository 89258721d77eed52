//go:build linux

package transport

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// bindToInterface returns a copy of dialer whose outgoing socket is
// bound to ifaceName via SO_BINDTODEVICE, set through net.Dialer.Control
// before connect(2).
func bindToInterface(dialer *net.Dialer, ifaceName string, _ net.IP) (*net.Dialer, error) {
	d := *dialer
	d.Control = func(_, _ string, c syscall.RawConn) error {
		var sysErr error
		err := c.Control(func(fd uintptr) {
			sysErr = unix.SetsockoptString(int(fd), unix.SOL_SOCKET, unix.SO_BINDTODEVICE, ifaceName)
		})
		if err != nil {
			return err
		}
		return sysErr
	}
	return &d, nil
}
