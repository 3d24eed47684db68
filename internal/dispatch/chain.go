package dispatch

import (
	"fmt"
	"sync"

	"github.com/danmuck/testcentre/internal/logging"
	"github.com/danmuck/testcentre/internal/observability"
	"github.com/danmuck/testcentre/internal/protocol"
	"github.com/danmuck/testcentre/internal/protocol/envelope"
	"github.com/rs/zerolog"
)

// Chain is the ordered handler list. It is not safe for concurrent use; all
// calls belong on the application's run loop.
type Chain struct {
	handlers []Handler
	onQuit   func()
	quitOnce sync.Once
	log      zerolog.Logger
}

// NewChain builds an empty chain. onQuit may be nil.
func NewChain(onQuit func()) *Chain {
	return &Chain{
		onQuit: onQuit,
		log:    logging.Component("dispatch"),
	}
}

func (c *Chain) AddHandler(h Handler) {
	if h == nil {
		return
	}
	c.handlers = append(c.handlers, h)
}

// RemoveHandler drops every registration of h and reports whether any was
// found. Matching is by identity, never by value equality.
func (c *Chain) RemoveHandler(h Handler) bool {
	kept := c.handlers[:0]
	removed := false
	for _, existing := range c.handlers {
		if sameHandler(existing, h) {
			removed = true
			continue
		}
		kept = append(kept, existing)
	}
	for i := len(kept); i < len(c.handlers); i++ {
		c.handlers[i] = nil
	}
	c.handlers = kept
	return removed
}

func (c *Chain) Len() int {
	return len(c.handlers)
}

// Dispatch returns the single response for cmd, stamped with cmd.UUID.
// It reports false only for invalid commands, which get no response.
func (c *Chain) Dispatch(cmd envelope.Command) (envelope.Response, bool) {
	resp, _, ok := c.dispatch(cmd)
	return resp, ok
}

// Deliver dispatches cmd, hands the response to send, and then, for a
// claimed quit command, runs the termination hook. The hook runs at most
// once per Chain.
func (c *Chain) Deliver(cmd envelope.Command, send func(envelope.Response)) bool {
	resp, handled, ok := c.dispatch(cmd)
	if !ok {
		return false
	}
	if send != nil {
		send(resp)
	}
	if handled && cmd.Type == protocol.QuitCommand && c.onQuit != nil {
		c.quitOnce.Do(c.onQuit)
	}
	return true
}

func (c *Chain) dispatch(cmd envelope.Command) (resp envelope.Response, handled, ok bool) {
	if !cmd.IsValid() {
		observability.RecordDispatch("-", "dropped")
		return envelope.Response{}, false, false
	}

	// Handlers may add or remove handlers while processing.
	snapshot := make([]Handler, len(c.handlers))
	copy(snapshot, c.handlers)

	for _, h := range snapshot {
		r, claimed := c.process(h, cmd)
		if !claimed {
			continue
		}
		observability.RecordDispatch(cmd.Type, "handled")
		return r.WithUUID(cmd.UUID), true, true
	}

	observability.RecordDispatch("-", "unhandled")
	c.log.Debug().Str("type", cmd.Type).Str("uuid", cmd.UUID.String()).Msg("no handler claimed command")
	return envelope.Fail(protocol.UnhandledMessage).WithUUID(cmd.UUID), false, true
}

// process converts a handler panic into a failure response so the host
// keeps running.
func (c *Chain) process(h Handler, cmd envelope.Command) (resp envelope.Response, claimed bool) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Str("type", cmd.Type).Interface("panic", r).Msg("command handler panicked")
			resp = envelope.Fail(fmt.Sprintf("handler panic: %v", r))
			claimed = true
		}
	}()
	return h.Process(cmd)
}
