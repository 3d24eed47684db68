package driver

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/danmuck/testcentre/internal/logging"
	"github.com/danmuck/testcentre/internal/protocol/frame"
	"github.com/rs/zerolog"
)

// Server waits for applications to connect back to the driver.
type Server struct {
	ln     net.Listener
	limits frame.Limits
	log    zerolog.Logger
}

// Listen binds addr; use "127.0.0.1:0" for an ephemeral port.
func Listen(ctx context.Context, addr string) (*Server, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &Server{
		ln:     ln,
		limits: frame.DefaultLimits(),
		log:    logging.Component("driver").With().Str("listen", ln.Addr().String()).Logger(),
	}
	s.log.Info().Msg("driver listening")
	return s, nil
}

func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Port is the bound TCP port, the value handed to the application.
func (s *Server) Port() uint16 {
	if tcp, ok := s.ln.Addr().(*net.TCPAddr); ok {
		return uint16(tcp.Port)
	}
	return 0
}

// Accept blocks until an application connects or ctx ends.
func (s *Server) Accept(ctx context.Context) (*Conn, error) {
	stop := context.AfterFunc(ctx, func() {
		if dl, ok := s.ln.(interface{ SetDeadline(time.Time) error }); ok {
			_ = dl.SetDeadline(time.Now())
		}
	})
	defer stop()

	nc, err := s.ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			s.resetDeadline()
			return nil, ctx.Err()
		}
		if errors.Is(err, net.ErrClosed) {
			return nil, ErrServerClosed
		}
		return nil, err
	}
	s.log.Info().Str("remote", nc.RemoteAddr().String()).Msg("application connected")
	return newConn(nc, s.limits), nil
}

func (s *Server) resetDeadline() {
	if dl, ok := s.ln.(interface{ SetDeadline(time.Time) error }); ok {
		_ = dl.SetDeadline(time.Time{})
	}
}

func (s *Server) Close() error {
	err := s.ln.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
