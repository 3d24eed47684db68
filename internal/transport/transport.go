package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/testcentre/internal/logging"
	"github.com/danmuck/testcentre/internal/observability"
	"github.com/danmuck/testcentre/internal/protocol"
	"github.com/danmuck/testcentre/internal/protocol/frame"
	"github.com/rs/zerolog"
)

var (
	ErrAlreadyStarted = errors.New("transport: already started")
	ErrClosed         = errors.New("transport: closed")
	ErrNotConnected   = fmt.Errorf("transport: %w", protocol.ErrNotConnected)
	ErrWriteFailed    = errors.New("transport: write failed")
	ErrJoinTimeout    = errors.New("transport: reader did not exit before join timeout")
)

// Transport is one framed connection to the test driver.
type Transport struct {
	cfg    Config
	onData func([]byte)
	log    zerolog.Logger

	state atomic.Int32

	mu      sync.Mutex
	conn    net.Conn
	cancel  context.CancelFunc
	started bool

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// New builds an idle transport. onData runs on the reader goroutine once
// per received frame, in arrival order; it must not block.
func New(cfg Config, onData func([]byte)) *Transport {
	cfg = cfg.WithDefaults()
	t := &Transport{
		cfg:    cfg,
		onData: onData,
		log:    logging.Component("transport").With().Str("addr", cfg.Address()).Logger(),
		done:   make(chan struct{}),
	}
	observability.RecordState(int(StateDisconnected))
	return t
}

// Start launches the background goroutine that connects and then reads.
func (t *Transport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.State() == StateClosed {
		return ErrClosed
	}
	if t.started {
		return ErrAlreadyStarted
	}
	t.started = true
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	go t.run(runCtx, cancel)
	return nil
}

func (t *Transport) State() State {
	return State(t.state.Load())
}

// IsConnected reflects socket state only; it says nothing about whether
// earlier sends were read by the peer.
func (t *Transport) IsConnected() bool {
	return t.State() == StateConnected
}

func (t *Transport) Address() string {
	return t.cfg.Address()
}

// Done is closed once no background goroutine remains.
func (t *Transport) Done() <-chan struct{} {
	return t.done
}

// Send writes one frame carrying payload. It returns ErrNotConnected without
// writing when the transport is not connected. A failed write closes the
// connection and discards whatever was not yet written.
func (t *Transport) Send(payload []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil || !t.IsConnected() {
		return ErrNotConnected
	}

	if t.cfg.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
	}
	if err := frame.WriteFrame(conn, payload, t.cfg.Limits); err != nil {
		if errors.Is(err, frame.ErrPayloadTooLarge) {
			return fmt.Errorf("transport: %w", err)
		}
		t.fail(conn, classifyWriteError(err), err)
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	observability.RecordFrame("out", protocol.HeaderLen+len(payload))
	return nil
}

// Close tears the transport down. The socket is closed first so a blocked
// read returns, then the reader is joined for at most Config.JoinTimeout.
// Calls after the first return nil.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.mu.Lock()
		conn := t.conn
		t.conn = nil
		cancel := t.cancel
		started := t.started
		t.transition(StateClosed)
		t.mu.Unlock()

		if conn != nil {
			_ = conn.Close()
		}
		if cancel != nil {
			cancel()
		}
		if !started {
			close(t.done)
			return
		}

		timer := time.NewTimer(t.cfg.JoinTimeout)
		defer timer.Stop()
		select {
		case <-t.done:
		case <-timer.C:
			err = ErrJoinTimeout
			t.log.Warn().Dur("timeout", t.cfg.JoinTimeout).Msg("transport reader join timed out")
		}
	})
	return err
}

func (t *Transport) run(ctx context.Context, cancel context.CancelFunc) {
	defer close(t.done)
	defer cancel()

	conn, err := t.connect(ctx)
	if err != nil {
		if t.transition(StateClosed) {
			observability.RecordClosure("connect_failed")
			t.log.Warn().Err(err).Msg("transport giving up on connect")
		}
		return
	}
	t.log.Info().Msg("transport connected")
	t.readLoop(conn)
}

func (t *Transport) connect(ctx context.Context) (net.Conn, error) {
	attempt := 0
	for {
		attempt++
		if !t.transition(StateConnecting) {
			return nil, ErrClosed
		}
		conn, err := t.dial(ctx)
		observability.RecordConnectAttempt(err == nil)
		if err == nil {
			t.mu.Lock()
			if t.State() == StateClosed {
				t.mu.Unlock()
				_ = conn.Close()
				return nil, ErrClosed
			}
			t.conn = conn
			t.transition(StateConnected)
			t.mu.Unlock()
			return conn, nil
		}

		t.log.Debug().Int("attempt", attempt).Err(err).Msg("transport connect failed")
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !t.shouldRetry(attempt) {
			return nil, err
		}
		if err := t.waitRetry(ctx, attempt); err != nil {
			return nil, err
		}
	}
}

func (t *Transport) dial(ctx context.Context) (net.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, t.cfg.ConnectTimeout)
	defer cancel()
	if t.cfg.Dial != nil {
		return t.cfg.Dial(dialCtx, "tcp", t.cfg.Address())
	}
	dialer := net.Dialer{Control: controlSocket}
	return dialer.DialContext(dialCtx, "tcp", t.cfg.Address())
}

func (t *Transport) shouldRetry(attempt int) bool {
	if t.cfg.MaxConnectAttempts <= 0 {
		return true
	}
	return attempt < t.cfg.MaxConnectAttempts
}

func (t *Transport) waitRetry(ctx context.Context, attempt int) error {
	timer := time.NewTimer(t.cfg.retryDelay(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// readLoop never resynchronizes: the first bad or short frame ends it.
func (t *Transport) readLoop(conn net.Conn) {
	r := bufio.NewReader(conn)
	for {
		fr, err := frame.ReadFrame(r, t.cfg.Limits)
		if err != nil {
			t.fail(conn, classifyReadError(err), err)
			return
		}
		observability.RecordFrame("in", protocol.HeaderLen+len(fr.Payload))
		if t.onData != nil {
			t.onData(fr.Payload)
		}
	}
}

// fail closes conn and moves to Closed. Only the first failure is recorded.
func (t *Transport) fail(conn net.Conn, reason string, err error) {
	t.mu.Lock()
	if t.conn == conn {
		t.conn = nil
	}
	won := t.transition(StateClosed)
	t.mu.Unlock()
	_ = conn.Close()
	if won {
		observability.RecordClosure(reason)
		t.log.Warn().Str("reason", reason).Err(err).Msg("transport connection closed")
	}
}

// transition moves to the given state unless already Closed. Closed is
// terminal, so transition(StateClosed) reports true exactly once.
func (t *Transport) transition(to State) bool {
	for {
		cur := t.state.Load()
		if State(cur) == StateClosed {
			return false
		}
		if t.state.CompareAndSwap(cur, int32(to)) {
			observability.RecordState(int(to))
			return true
		}
	}
}

func classifyReadError(err error) string {
	switch {
	case errors.Is(err, frame.ErrBadMagic):
		return "bad_magic"
	case errors.Is(err, frame.ErrShortHeader):
		return "short_header"
	case errors.Is(err, frame.ErrShortPayload):
		return "short_payload"
	case errors.Is(err, frame.ErrPayloadTooLarge):
		return "payload_too_large"
	case errors.Is(err, net.ErrClosed):
		return "local_close"
	}
	if reason := classifyErrno(err); reason != "" {
		return reason
	}
	return "read_error"
}

func classifyWriteError(err error) string {
	if reason := classifyErrno(err); reason != "" {
		return reason
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "write_timeout"
	}
	if errors.Is(err, frame.ErrNoProgress) {
		return "write_stalled"
	}
	return "write_error"
}
