// Package driver is the test-driver side of the protocol. It listens for
// the application, sends commands, correlates responses by uuid and
// collects pushed events.
package driver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/danmuck/testcentre/internal/logging"
	"github.com/danmuck/testcentre/internal/protocol"
	"github.com/danmuck/testcentre/internal/protocol/envelope"
	"github.com/danmuck/testcentre/internal/protocol/frame"
	"github.com/rs/zerolog"
)

// Conn is one accepted application connection. It is safe for concurrent
// use.
type Conn struct {
	conn   net.Conn
	limits frame.Limits
	log    zerolog.Logger

	writeMu sync.Mutex
	pending *pending
	events  *eventLog

	closeOnce sync.Once
	done      chan struct{}

	errMu   sync.Mutex
	readErr error
}

func newConn(nc net.Conn, limits frame.Limits) *Conn {
	c := &Conn{
		conn:    nc,
		limits:  limits,
		log:     logging.Component("driver").With().Str("remote", nc.RemoteAddr().String()).Logger(),
		pending: newPending(),
		events:  newEventLog(),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Send issues one command with a fresh uuid and waits for its response. A
// response with success false is returned together with a *CommandError.
func (c *Conn) Send(ctx context.Context, commandType string, args any) (envelope.Response, error) {
	cmd, err := envelope.NewCommand(commandType, args)
	if err != nil {
		return envelope.Response{}, err
	}
	payload, err := cmd.Encode()
	if err != nil {
		return envelope.Response{}, err
	}

	ch, err := c.pending.register(cmd.UUID)
	if err != nil {
		return envelope.Response{}, err
	}
	if err := c.write(ctx, payload); err != nil {
		c.pending.drop(cmd.UUID)
		return envelope.Response{}, err
	}
	c.log.Debug().Str("type", commandType).Str("uuid", cmd.UUID.String()).Msg("command sent")

	select {
	case resp, ok := <-ch:
		if !ok {
			return envelope.Response{}, ErrConnClosed
		}
		if !resp.Success {
			return resp, &CommandError{Type: commandType, Message: resp.Error}
		}
		return resp, nil
	case <-ctx.Done():
		c.pending.drop(cmd.UUID)
		return envelope.Response{}, ctx.Err()
	}
}

// SendRaw writes payload as one frame without any envelope handling.
func (c *Conn) SendRaw(ctx context.Context, payload []byte) error {
	return c.write(ctx, payload)
}

// WaitForEvent returns the first event named name, received earlier or
// later, for which match returns true. match may be nil.
func (c *Conn) WaitForEvent(ctx context.Context, name string, match func(envelope.Event) bool) (envelope.Event, error) {
	return c.events.wait(ctx, name, match)
}

// Events returns the retained events in arrival order.
func (c *Conn) Events() []envelope.Event {
	return c.events.snapshot()
}

func (c *Conn) ClearEvents() {
	c.events.clear()
}

func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Done is closed once the read loop has exited.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err reports why the read loop stopped. It is nil while the connection is
// open and after a local Close.
func (c *Conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.readErr
}

// Close is idempotent. Sends still waiting fail with ErrConnClosed.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
		<-c.done
	})
	return err
}

func (c *Conn) write(ctx context.Context, payload []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
		defer c.conn.SetWriteDeadline(time.Time{})
	}
	if err := frame.WriteFrame(c.conn, payload, c.limits); err != nil {
		if errors.Is(err, frame.ErrPayloadTooLarge) {
			return fmt.Errorf("driver: %w", err)
		}
		_ = c.conn.Close()
		return fmt.Errorf("%w: %v", ErrConnClosed, err)
	}
	return nil
}

func (c *Conn) readLoop() {
	defer c.shutdown()
	br := bufio.NewReader(c.conn)
	for {
		f, err := frame.ReadFrame(br, c.limits)
		if err != nil {
			c.recordReadError(err)
			return
		}
		c.route(f.Payload)
	}
}

func (c *Conn) route(payload []byte) {
	switch kind := envelope.Peek(payload); kind {
	case protocol.KindResponse:
		resp, err := envelope.DecodeResponse(payload)
		if err != nil {
			c.log.Warn().Err(err).Msg("dropping undecodable response")
			return
		}
		if !c.pending.resolve(resp) {
			c.log.Debug().Str("uuid", resp.UUID.String()).Msg("ignoring response with unknown uuid")
		}
	case protocol.KindEvent:
		ev, err := envelope.DecodeEvent(payload)
		if err != nil || ev.Name == "" {
			c.log.Warn().Err(err).Msg("dropping undecodable event")
			return
		}
		c.events.append(ev)
	default:
		c.log.Warn().Str("kind", kind).Int("bytes", len(payload)).Msg("dropping message of unknown kind")
	}
}

func (c *Conn) recordReadError(err error) {
	// only a stream ending on a frame boundary is a clean close
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		c.log.Debug().Err(err).Msg("application connection closed")
		return
	}
	c.log.Warn().Err(err).Msg("application connection failed")
	c.errMu.Lock()
	c.readErr = err
	c.errMu.Unlock()
}

func (c *Conn) shutdown() {
	_ = c.conn.Close()
	c.pending.close(ErrConnClosed)
	c.events.close()
	close(c.done)
}
