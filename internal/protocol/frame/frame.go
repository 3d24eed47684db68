package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/testcentre/internal/protocol"
)

var (
	ErrShortHeader     = fmt.Errorf("frame: short header: %w", protocol.ErrTruncated)
	ErrShortPayload    = fmt.Errorf("frame: short payload: %w", protocol.ErrTruncated)
	ErrBadMagic        = fmt.Errorf("frame: %w", protocol.ErrInvalidMagic)
	ErrPayloadTooLarge = fmt.Errorf("frame: %w", protocol.ErrPayloadTooLarge)
	ErrNoProgress      = fmt.Errorf("frame: writer made no progress: %w", protocol.ErrShortWrite)
)

// ByteOrder is fixed for both header fields.
var ByteOrder = binary.LittleEndian

// maxStalledWrites bounds consecutive zero-byte writes without an error.
const maxStalledWrites = 16

// Header is the fixed 8-byte wire header.
type Header struct {
	Magic  uint32
	Length uint32
}

// Frame is one complete wire message.
type Frame struct {
	Header  Header
	Payload []byte
}

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxPayloadBytes uint32
}

func DefaultLimits() Limits {
	return Limits{
		MaxPayloadBytes: 64 * 1024 * 1024,
	}
}

func EncodeHeader(h Header) []byte {
	buf := make([]byte, protocol.HeaderLen)
	ByteOrder.PutUint32(buf[0:4], h.Magic)
	ByteOrder.PutUint32(buf[4:8], h.Length)
	return buf
}

func DecodeHeader(b []byte) (Header, error) {
	if len(b) != protocol.HeaderLen {
		return Header{}, fmt.Errorf("frame: invalid header length: %d", len(b))
	}
	return Header{
		Magic:  ByteOrder.Uint32(b[0:4]),
		Length: ByteOrder.Uint32(b[4:8]),
	}, nil
}

// Encode returns header and payload as one contiguous buffer.
func Encode(payload []byte) []byte {
	buf := make([]byte, protocol.HeaderLen+len(payload))
	ByteOrder.PutUint32(buf[0:4], protocol.Magic)
	ByteOrder.PutUint32(buf[4:8], uint32(len(payload)))
	copy(buf[protocol.HeaderLen:], payload)
	return buf
}

// ReadFrame reads exactly one frame. Any error leaves r at an unknown
// position; callers must not try to resynchronize. A short header also
// matches io.EOF when the stream ended on a frame boundary and
// io.ErrUnexpectedEOF when it ended inside the header.
func ReadFrame(r io.Reader, limits Limits) (Frame, error) {
	var fixed [protocol.HeaderLen]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return Frame{}, fmt.Errorf("%w: %w", ErrShortHeader, err)
		}
		return Frame{}, err
	}

	h, err := DecodeHeader(fixed[:])
	if err != nil {
		return Frame{}, err
	}
	if h.Magic != protocol.Magic {
		return Frame{}, fmt.Errorf("%w: 0x%08x", ErrBadMagic, h.Magic)
	}
	if limits.MaxPayloadBytes > 0 && h.Length > limits.MaxPayloadBytes {
		return Frame{}, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, h.Length, limits.MaxPayloadBytes)
	}

	payload := make([]byte, h.Length)
	if h.Length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return Frame{}, ErrShortPayload
			}
			return Frame{}, err
		}
	}
	return Frame{Header: h, Payload: payload}, nil
}

// WriteFrame writes header and payload, looping until every byte is
// accepted or w fails.
func WriteFrame(w io.Writer, payload []byte, limits Limits) error {
	if limits.MaxPayloadBytes > 0 && uint64(len(payload)) > uint64(limits.MaxPayloadBytes) {
		return ErrPayloadTooLarge
	}
	return WriteFull(w, Encode(payload))
}

// WriteFull keeps writing the remainder of buf until it is exhausted.
// Writers that accept a partial buffer without an error are retried.
func WriteFull(w io.Writer, buf []byte) error {
	stalled := 0
	for offset := 0; offset < len(buf); {
		n, err := w.Write(buf[offset:])
		if n < 0 || n > len(buf)-offset {
			return fmt.Errorf("frame: writer returned invalid count %d", n)
		}
		offset += n
		if err != nil {
			return err
		}
		if n == 0 {
			stalled++
			if stalled >= maxStalledWrites {
				return ErrNoProgress
			}
			continue
		}
		stalled = 0
	}
	return nil
}
