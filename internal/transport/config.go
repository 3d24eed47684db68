package transport

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/danmuck/testcentre/internal/protocol/frame"
)

// DialFunc matches net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Config defines one driver connection.
type Config struct {
	Host string
	Port uint16

	// MaxConnectAttempts <= 0 retries until Close or context cancellation.
	MaxConnectAttempts int
	ConnectTimeout     time.Duration
	// WriteTimeout bounds one Send; zero means no deadline.
	WriteTimeout time.Duration
	// JoinTimeout bounds how long Close waits for the reader goroutine.
	JoinTimeout time.Duration
	// RetryDelay is the wait between connect attempts.
	RetryDelay time.Duration
	// MaxRetryDelay, when above RetryDelay, doubles the wait after each
	// failure up to this cap.
	MaxRetryDelay time.Duration
	Limits        frame.Limits

	// Dial overrides the TCP dialer.
	Dial DialFunc
}

// DefaultConfig retries forever on a fixed one second delay.
func DefaultConfig() Config {
	return Config{
		Host:           "localhost",
		ConnectTimeout: 5 * time.Second,
		JoinTimeout:    time.Second,
		RetryDelay:     time.Second,
		Limits:         frame.DefaultLimits(),
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.Host == "" {
		c.Host = def.Host
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = def.JoinTimeout
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = def.RetryDelay
	}
	if c.Limits.MaxPayloadBytes == 0 {
		c.Limits = def.Limits
	}
	return c
}

func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(int(c.Port)))
}
