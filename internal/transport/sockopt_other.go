//go:build !darwin

package transport

import "syscall"

func controlSocket(network, address string, c syscall.RawConn) error {
	return nil
}
