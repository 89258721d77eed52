//go:build !linux

package transport

import "net"

// bindToInterface is a no-op on platforms without SO_BINDTODEVICE; the
// OUTBOUND_INTERFACE option has no effect there. Platform-specific
// network configuration shims beyond this are explicitly out of scope.
func bindToInterface(dialer *net.Dialer, _ string, _ net.IP) (*net.Dialer, error) {
	return dialer, nil
}
