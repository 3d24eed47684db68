package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/testcentre/internal/logging"
	"github.com/danmuck/testcentre/internal/protocol/frame"
	"github.com/danmuck/testcentre/internal/transport"
	"github.com/rs/zerolog"
)

// App configures a host application embedding the test centre.
type App struct {
	Transport transport.Config
	// HasPort is false when the port must come from the command line.
	HasPort         bool
	LogLevel        zerolog.Level
	Verbose         bool
	DiagnosticsAddr string
}

// Driver configures the test-driver side.
type Driver struct {
	ListenAddr     string
	AppPath        string
	AppArgs        []string
	ConnectTimeout time.Duration
	CommandTimeout time.Duration
	LogLevel       zerolog.Level
}

type appFile struct {
	Host               string `toml:"host"`
	Port               int    `toml:"port"`
	LogLevel           string `toml:"log_level"`
	Verbose            bool   `toml:"verbose"`
	ConnectTimeout     string `toml:"connect_timeout"`
	RetryDelay         string `toml:"retry_delay"`
	MaxRetryDelay      string `toml:"max_retry_delay"`
	MaxConnectAttempts int    `toml:"max_connect_attempts"`
	WriteTimeout       string `toml:"write_timeout"`
	JoinTimeout        string `toml:"join_timeout"`
	MaxPayloadBytes    int64  `toml:"max_payload_bytes"`
	DiagnosticsAddr    string `toml:"diagnostics_addr"`
}

type driverFile struct {
	ListenAddr     string   `toml:"listen_addr"`
	AppPath        string   `toml:"app_path"`
	AppArgs        []string `toml:"app_args"`
	ConnectTimeout string   `toml:"connect_timeout"`
	CommandTimeout string   `toml:"command_timeout"`
	LogLevel       string   `toml:"log_level"`
}

func DefaultApp() App {
	return App{
		Transport: transport.DefaultConfig(),
		LogLevel:  zerolog.InfoLevel,
	}
}

func DefaultDriver() Driver {
	return Driver{
		ListenAddr:     "127.0.0.1:0",
		ConnectTimeout: 30 * time.Second,
		CommandTimeout: 5 * time.Second,
		LogLevel:       zerolog.InfoLevel,
	}
}

// LoadApp overlays keys present in the file onto DefaultApp.
func LoadApp(path string) (App, error) {
	cfg := DefaultApp()

	var raw appFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return App{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}

	if meta.IsDefined("host") {
		cfg.Transport.Host = strings.TrimSpace(raw.Host)
	}
	if meta.IsDefined("port") {
		if raw.Port < 0 || raw.Port > 65535 {
			return App{}, fmt.Errorf("config port out of range: %d", raw.Port)
		}
		cfg.Transport.Port = uint16(raw.Port)
		cfg.HasPort = true
	}
	if meta.IsDefined("log_level") {
		lvl, ok := logging.ParseLevel(raw.LogLevel)
		if !ok {
			return App{}, fmt.Errorf("config unknown log_level: %q", raw.LogLevel)
		}
		cfg.LogLevel = lvl
	}
	if meta.IsDefined("verbose") {
		cfg.Verbose = raw.Verbose
	}
	if meta.IsDefined("connect_timeout") {
		if cfg.Transport.ConnectTimeout, err = parseDuration("connect_timeout", raw.ConnectTimeout); err != nil {
			return App{}, err
		}
	}
	if meta.IsDefined("retry_delay") {
		if cfg.Transport.RetryDelay, err = parseDuration("retry_delay", raw.RetryDelay); err != nil {
			return App{}, err
		}
	}
	if meta.IsDefined("max_retry_delay") {
		if cfg.Transport.MaxRetryDelay, err = parseDuration("max_retry_delay", raw.MaxRetryDelay); err != nil {
			return App{}, err
		}
	}
	if meta.IsDefined("max_connect_attempts") {
		cfg.Transport.MaxConnectAttempts = raw.MaxConnectAttempts
	}
	if meta.IsDefined("write_timeout") {
		if cfg.Transport.WriteTimeout, err = parseDuration("write_timeout", raw.WriteTimeout); err != nil {
			return App{}, err
		}
	}
	if meta.IsDefined("join_timeout") {
		if cfg.Transport.JoinTimeout, err = parseDuration("join_timeout", raw.JoinTimeout); err != nil {
			return App{}, err
		}
	}
	if meta.IsDefined("max_payload_bytes") {
		if raw.MaxPayloadBytes <= 0 || raw.MaxPayloadBytes > int64(^uint32(0)) {
			return App{}, fmt.Errorf("config max_payload_bytes out of range: %d", raw.MaxPayloadBytes)
		}
		cfg.Transport.Limits = frame.Limits{MaxPayloadBytes: uint32(raw.MaxPayloadBytes)}
	}
	if meta.IsDefined("diagnostics_addr") {
		cfg.DiagnosticsAddr = strings.TrimSpace(raw.DiagnosticsAddr)
	}

	if err := ValidateApp(cfg); err != nil {
		return App{}, err
	}
	return cfg, nil
}

// LoadDriver overlays keys present in the file onto DefaultDriver.
func LoadDriver(path string) (Driver, error) {
	cfg := DefaultDriver()

	var raw driverFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Driver{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}

	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("app_path") {
		cfg.AppPath = strings.TrimSpace(raw.AppPath)
	}
	if meta.IsDefined("app_args") {
		cfg.AppArgs = append([]string(nil), raw.AppArgs...)
	}
	if meta.IsDefined("connect_timeout") {
		if cfg.ConnectTimeout, err = parseDuration("connect_timeout", raw.ConnectTimeout); err != nil {
			return Driver{}, err
		}
	}
	if meta.IsDefined("command_timeout") {
		if cfg.CommandTimeout, err = parseDuration("command_timeout", raw.CommandTimeout); err != nil {
			return Driver{}, err
		}
	}
	if meta.IsDefined("log_level") {
		lvl, ok := logging.ParseLevel(raw.LogLevel)
		if !ok {
			return Driver{}, fmt.Errorf("config unknown log_level: %q", raw.LogLevel)
		}
		cfg.LogLevel = lvl
	}

	if err := ValidateDriver(cfg); err != nil {
		return Driver{}, err
	}
	return cfg, nil
}

func ValidateApp(cfg App) error {
	if strings.TrimSpace(cfg.Transport.Host) == "" {
		return fmt.Errorf("app config missing host")
	}
	if cfg.Transport.ConnectTimeout <= 0 {
		return fmt.Errorf("app config connect_timeout must be positive")
	}
	if cfg.Transport.JoinTimeout <= 0 {
		return fmt.Errorf("app config join_timeout must be positive")
	}
	if cfg.Transport.MaxConnectAttempts < 0 {
		return fmt.Errorf("app config max_connect_attempts must not be negative")
	}
	if cfg.Transport.RetryDelay <= 0 {
		return fmt.Errorf("app config retry_delay must be positive")
	}
	if cfg.Transport.MaxRetryDelay < 0 {
		return fmt.Errorf("app config max_retry_delay must not be negative")
	}
	return nil
}

func ValidateDriver(cfg Driver) error {
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return fmt.Errorf("driver config missing listen_addr")
	}
	if cfg.ConnectTimeout <= 0 {
		return fmt.Errorf("driver config connect_timeout must be positive")
	}
	if cfg.CommandTimeout <= 0 {
		return fmt.Errorf("driver config command_timeout must be positive")
	}
	return nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
