//go:build !unix

package transport

func classifyErrno(err error) string {
	return ""
}
