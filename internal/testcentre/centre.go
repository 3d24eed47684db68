// Package testcentre embeds the remote-control endpoint in a host
// application. A Centre connects out to the test driver, decodes each
// received command on the host's run loop, dispatches it through the handler
// chain and sends the response back. Without a port the Centre is inert.
package testcentre

import (
	"context"
	"os"
	"sync/atomic"

	"github.com/danmuck/testcentre/internal/cliport"
	"github.com/danmuck/testcentre/internal/dispatch"
	"github.com/danmuck/testcentre/internal/handlers"
	"github.com/danmuck/testcentre/internal/logging"
	"github.com/danmuck/testcentre/internal/observability"
	"github.com/danmuck/testcentre/internal/protocol/envelope"
	"github.com/danmuck/testcentre/internal/transport"
	"github.com/rs/zerolog"
)

// Poster is the host's run loop. Post must not wait for task to run.
type Poster interface {
	Post(task func()) bool
}

type LogLevel int32

const (
	Silent LogLevel = iota
	// Verbose logs a description of every command and response.
	Verbose
)

type Options struct {
	// Port overrides discovery from Args when non-zero.
	Port uint16
	// Args defaults to os.Args.
	Args []string
	// Transport supplies host, retry and limit settings; its Port is
	// replaced by the resolved port.
	Transport transport.Config
	LogLevel  LogLevel
	// Tree backs the default handler.
	Tree handlers.WidgetTree
	// OnQuit runs once after the quit response is sent. When nil and the
	// loop has a Quit method, that is used.
	OnQuit func()
}

type Centre struct {
	loop      Poster
	chain     *dispatch.Chain
	def       *handlers.Default
	transport *transport.Transport
	port      uint16

	level      atomic.Int32
	generation atomic.Uint64
	log        zerolog.Logger
}

// New resolves the port and, when one is found, starts connecting. The
// default handler is registered before any handler the host adds. A nil
// loop leaves the centre inert.
func New(loop Poster, opts Options) *Centre {
	c := &Centre{
		loop: loop,
		log:  logging.Component("testcentre"),
	}
	c.level.Store(int32(opts.LogLevel))

	port, ok := opts.Port, opts.Port != 0
	if !ok {
		args := opts.Args
		if args == nil {
			args = os.Args
		}
		port, ok = cliport.FromArgs(args)
	}
	if !ok {
		c.log.Debug().Msg("no driver port; test centre disabled")
		return c
	}
	c.port = port
	if loop == nil {
		c.log.Error().Uint16("port", port).Msg("no run loop to post commands to; test centre disabled")
		return c
	}

	onQuit := opts.OnQuit
	if onQuit == nil {
		if q, ok := loop.(interface{ Quit() }); ok {
			onQuit = q.Quit
		}
	}
	c.chain = dispatch.NewChain(onQuit)
	c.def = handlers.NewDefault(opts.Tree)
	c.chain.AddHandler(c.def)

	cfg := opts.Transport
	cfg.Port = port
	c.transport = transport.New(cfg, c.receive)
	if err := c.transport.Start(context.Background()); err != nil {
		c.log.Error().Err(err).Msg("transport start failed")
	}
	c.log.Info().Str("addr", c.transport.Address()).Msg("test centre enabled")
	return c
}

// Enabled is true when a port was found.
func (c *Centre) Enabled() bool {
	return c.transport != nil
}

func (c *Centre) Port() uint16 {
	return c.port
}

func (c *Centre) Connected() bool {
	return c.transport != nil && c.transport.IsConnected()
}

func (c *Centre) State() string {
	if c.transport == nil {
		return "inert"
	}
	return c.transport.State().String()
}

func (c *Centre) SetLogLevel(level LogLevel) {
	c.level.Store(int32(level))
}

// AddCommandHandler appends h after the default handler. Call it from the
// run loop.
func (c *Centre) AddCommandHandler(h dispatch.Handler) {
	if c.chain == nil {
		return
	}
	c.chain.AddHandler(h)
}

func (c *Centre) RemoveCommandHandler(h dispatch.Handler) bool {
	if c.chain == nil {
		return false
	}
	return c.chain.RemoveHandler(h)
}

// SendEvent pushes ev to the driver. Events are dropped while disconnected.
func (c *Centre) SendEvent(ev envelope.Event) {
	if c.transport == nil {
		return
	}
	if !c.transport.IsConnected() {
		observability.RecordEvent(false)
		c.log.Debug().Str("event", ev.Name).Msg("dropping event while disconnected")
		return
	}
	payload, err := ev.Encode()
	if err != nil {
		observability.RecordEvent(false)
		c.log.Error().Err(err).Str("event", ev.Name).Msg("event encode failed")
		return
	}
	if err := c.transport.Send(payload); err != nil {
		observability.RecordEvent(false)
		c.log.Warn().Err(err).Str("event", ev.Name).Msg("event send failed")
		return
	}
	observability.RecordEvent(true)
}

// Close stops processing of tasks already posted and tears the transport
// down. It is safe to call more than once.
func (c *Centre) Close() error {
	c.generation.Add(1)
	if c.transport == nil {
		return nil
	}
	return c.transport.Close()
}

// receive runs on the transport reader goroutine.
func (c *Centre) receive(payload []byte) {
	gen := c.generation.Load()
	if !c.loop.Post(func() {
		if c.generation.Load() != gen {
			return
		}
		c.handle(payload)
	}) {
		c.log.Debug().Int("bytes", len(payload)).Msg("run loop closed; dropping message")
	}
}

func (c *Centre) handle(payload []byte) {
	cmd := envelope.DecodeCommand(payload)
	if !cmd.IsValid() {
		c.log.Warn().Int("bytes", len(payload)).Str("type", cmd.Type).Msg("dropping invalid command")
		return
	}
	if c.verbose() {
		c.log.Info().Str("uuid", cmd.UUID.String()).Msg("Received command\n" + cmd.Describe())
	}
	c.chain.Deliver(cmd, c.respond)
}

func (c *Centre) respond(resp envelope.Response) {
	payload, err := resp.Encode()
	if err != nil {
		c.log.Error().Err(err).Str("uuid", resp.UUID.String()).Msg("response encode failed")
		payload, err = envelope.Fail("Failed to encode response: " + err.Error()).WithUUID(resp.UUID).Encode()
		if err != nil {
			return
		}
	}
	if c.verbose() {
		c.log.Info().Msg("Sending response\n" + resp.Describe())
	}
	if err := c.transport.Send(payload); err != nil {
		c.log.Warn().Err(err).Str("uuid", resp.UUID.String()).Msg("response send failed")
	}
}

func (c *Centre) verbose() bool {
	return LogLevel(c.level.Load()) == Verbose
}

var _ observability.StatusSource = (*Centre)(nil)
