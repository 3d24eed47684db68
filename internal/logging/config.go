package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	EnvLogLevel     = "TESTCENTRE_LOG_LEVEL"
	EnvLogTimestamp = "TESTCENTRE_LOG_TIMESTAMP"
	EnvLogNoColor   = "TESTCENTRE_LOG_NOCOLOR"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Config selects the process-wide logger shape.
type Config struct {
	Level     zerolog.Level
	Timestamp bool
	NoColor   bool
	Out       io.Writer
}

var (
	configureOnce sync.Once
	mu            sync.RWMutex
	root          = zerolog.Nop()
)

func ConfigureRuntime() {
	Configure(ProfileRuntime)
}

func ConfigureTests() {
	Configure(ProfileTest)
}

// Configure installs the root logger once per process.
func Configure(profile Profile) {
	configureOnce.Do(func() {
		cfg := defaultConfig(profile)
		applyEnvOverrides(&cfg)
		Install(cfg)
	})
}

// ConfigureRuntimeLevel installs the runtime logger with level as the base.
// The TESTCENTRE_LOG_* variables still override it.
func ConfigureRuntimeLevel(level zerolog.Level) {
	cfg := defaultConfig(ProfileRuntime)
	cfg.Level = level
	applyEnvOverrides(&cfg)
	Install(cfg)
}

// Install replaces the root logger unconditionally.
func Install(cfg Config) {
	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}
	writer := zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    cfg.NoColor,
		TimeFormat: time.RFC3339,
	}
	ctx := zerolog.New(writer).Level(cfg.Level).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	mu.Lock()
	root = ctx.Logger()
	mu.Unlock()
}

// L returns the root logger. Before any Configure call it discards output.
func L() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// Component returns a sub-logger tagged with the owning component.
func Component(name string) zerolog.Logger {
	return L().With().Str("component", name).Logger()
}

func defaultConfig(profile Profile) Config {
	switch profile {
	case ProfileTest:
		return Config{Level: zerolog.DebugLevel, Timestamp: false}
	default:
		return Config{Level: zerolog.InfoLevel, Timestamp: true}
	}
}

func applyEnvOverrides(cfg *Config) {
	if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		cfg.Timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
}

// ParseLevel accepts the level names used in config files and env vars.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace", "diagnostics":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none", "silent":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
