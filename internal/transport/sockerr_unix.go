//go:build unix

package transport

import (
	"errors"

	"golang.org/x/sys/unix"
)

// The Go runtime turns SIGPIPE on socket writes into EPIPE, so a dead peer
// surfaces here as an ordinary write error.
func classifyErrno(err error) string {
	switch {
	case errors.Is(err, unix.EPIPE):
		return "broken_pipe"
	case errors.Is(err, unix.ECONNRESET):
		return "reset"
	case errors.Is(err, unix.ETIMEDOUT):
		return "timeout"
	}
	return ""
}
