//go:build darwin

package transport

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// controlSocket sets SO_NOSIGPIPE so a write to a closed peer fails with
// EPIPE instead of signalling the process.
func controlSocket(network, address string, c syscall.RawConn) error {
	var sockErr error
	if err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_NOSIGPIPE, 1)
	}); err != nil {
		return err
	}
	return sockErr
}
