// Package cliport discovers the driver port from process arguments.
package cliport

import (
	"strconv"
	"strings"

	"github.com/danmuck/testcentre/internal/protocol"
)

// FromArgs looks for --e2e-test-port=<port>.
func FromArgs(args []string) (uint16, bool) {
	return Lookup(args, protocol.PortFlag)
}

// Lookup scans args for flag=<port>. A missing, non-numeric, or out of range
// value reports false; the first well-formed occurrence wins.
func Lookup(args []string, flag string) (uint16, bool) {
	prefix := flag + "="
	for _, arg := range args {
		raw, ok := strings.CutPrefix(strings.TrimSpace(arg), prefix)
		if !ok {
			continue
		}
		port, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 16)
		if err != nil {
			continue
		}
		return uint16(port), true
	}
	return 0, false
}

// Arg renders the flag a driver appends when launching an application.
func Arg(port uint16) string {
	return protocol.PortFlag + "=" + strconv.Itoa(int(port))
}
