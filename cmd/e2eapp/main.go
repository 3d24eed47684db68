package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/danmuck/testcentre/internal/config"
	"github.com/danmuck/testcentre/internal/logging"
	"github.com/danmuck/testcentre/internal/observability"
	"github.com/danmuck/testcentre/internal/protocol"
	"github.com/danmuck/testcentre/internal/protocol/envelope"
	"github.com/danmuck/testcentre/internal/runloop"
	"github.com/danmuck/testcentre/internal/testcentre"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "e2eapp: %v\n", err)
		os.Exit(1)
	}
}

type flags struct {
	configPath string
}

// parseFlags reads the host's own flags. The port flag is declared as plain
// text so a malformed value leaves the centre inert instead of exiting.
func parseFlags(args []string) (flags, error) {
	var f flags
	fs := flag.NewFlagSet("e2eapp", flag.ContinueOnError)
	fs.StringVar(&f.configPath, "config", "", "path to app config (TOML)")
	fs.String(strings.TrimLeft(protocol.PortFlag, "-"), "", "driver port")
	if err := fs.Parse(args); err != nil {
		return flags{}, err
	}
	return f, nil
}

func newCentre(loop *runloop.Loop, cfg config.App, app *counterApp, args []string) *testcentre.Centre {
	opts := testcentre.Options{
		Args:      args,
		Transport: cfg.Transport,
		Tree:      app.tree,
	}
	if cfg.HasPort {
		opts.Port = cfg.Transport.Port
	}
	if cfg.Verbose {
		opts.LogLevel = testcentre.Verbose
	}
	centre := testcentre.New(loop, opts)
	centre.AddCommandHandler(app)
	app.notify = func(count int) {
		centre.SendEvent(envelope.NewEvent(eventCounterChanged).WithParameter("value", count))
	}
	return centre
}

func run() error {
	f, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	cfg := config.DefaultApp()
	if f.configPath != "" {
		loaded, err := config.LoadApp(f.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	logging.ConfigureRuntimeLevel(cfg.LogLevel)
	log := logging.Component("e2eapp")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loop := runloop.New()
	app := newCounterApp()
	centre := newCentre(loop, cfg, app, os.Args)
	defer centre.Close()

	if cfg.DiagnosticsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.DiagnosticsAddr,
			Handler:           observability.NewRouter(logging.Component("diagnostics"), centre),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Str("addr", srv.Addr).Msg("diagnostics server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		log.Info().Str("addr", srv.Addr).Msg("diagnostics listening")
	}

	log.Info().Bool("test_centre", centre.Enabled()).Msg("application running")
	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Int("count", app.count).Msg("application stopped")
	return nil
}
