package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/testcentre/internal/config"
	"github.com/danmuck/testcentre/internal/driver"
	"github.com/danmuck/testcentre/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "e2edriver: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to driver config (TOML)")
	appPath := flag.String("app", "", "application binary (overrides app_path)")
	shots := flag.String("screenshots", "", "directory for screenshots; empty disables them")
	flag.Parse()

	cfg := config.DefaultDriver()
	if *configPath != "" {
		loaded, err := config.LoadDriver(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *appPath != "" {
		cfg.AppPath = *appPath
	}
	if cfg.AppPath == "" {
		return errors.New("no application path; set app_path or pass --app")
	}
	logging.ConfigureRuntimeLevel(cfg.LogLevel)
	log := logging.Component("e2edriver")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := driver.Listen(ctx, cfg.ListenAddr)
	if err != nil {
		return err
	}
	defer srv.Close()

	app, err := srv.Launch(ctx, cfg.AppPath, cfg.AppArgs, nil)
	if err != nil {
		return fmt.Errorf("launch %s: %w", cfg.AppPath, err)
	}
	defer app.Kill()

	acceptCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	conn, err := srv.Accept(acceptCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("application never connected: %w", err)
	}
	defer conn.Close()
	log.Info().Str("remote", conn.RemoteAddr()).Msg("application connected")

	failed := 0
	for _, s := range counterScenario(*shots) {
		stepCtx, cancel := context.WithTimeout(ctx, cfg.CommandTimeout)
		start := time.Now()
		err := s.run(stepCtx, conn)
		cancel()
		if err != nil {
			failed++
			log.Error().Err(err).Str("step", s.name).Msg("step failed")
			continue
		}
		log.Info().Str("step", s.name).Dur("elapsed", time.Since(start)).Msg("step passed")
	}

	quitCtx, cancel := context.WithTimeout(ctx, cfg.CommandTimeout)
	defer cancel()
	if err := conn.Quit(quitCtx); err != nil {
		log.Warn().Err(err).Msg("quit failed")
	}
	select {
	case <-app.Exited():
	case <-quitCtx.Done():
		log.Warn().Msg("application did not exit after quit")
	}

	if failed > 0 {
		return fmt.Errorf("%d step(s) failed", failed)
	}
	log.Info().Msg("all steps passed")
	return nil
}
