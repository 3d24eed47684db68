package protocol

import "errors"

var (
	ErrInvalidMagic    = errors.New("protocol: invalid magic")
	ErrTruncated       = errors.New("protocol: truncated data")
	ErrPayloadTooLarge = errors.New("protocol: payload too large")
	ErrShortWrite      = errors.New("protocol: short write")
	ErrNotConnected    = errors.New("protocol: not connected")
)
