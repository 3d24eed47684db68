package main

import (
	"testing"

	"github.com/danmuck/testcentre/internal/config"
	"github.com/danmuck/testcentre/internal/runloop"
	"github.com/danmuck/testcentre/internal/testutil/testlog"
)

func TestMalformedPortLeavesAppInert(t *testing.T) {
	testlog.Start(t)
	for _, raw := range []string{"-1", "abc", "70000", ""} {
		args := []string{"e2eapp", "--config=", "--e2e-test-port=" + raw}
		f, err := parseFlags(args[1:])
		if err != nil {
			t.Fatalf("port %q should not fail flag parsing: %v", raw, err)
		}
		if f.configPath != "" {
			t.Fatalf("unexpected config path %q", f.configPath)
		}
		centre := newCentre(runloop.New(), config.DefaultApp(), newCounterApp(), args)
		if centre.Enabled() {
			t.Fatalf("port %q should leave the centre inert", raw)
		}
		_ = centre.Close()
	}
}

func TestParseFlagsReadsConfigPath(t *testing.T) {
	testlog.Start(t)
	f, err := parseFlags([]string{"--config", "app.toml", "--e2e-test-port=4000"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.configPath != "app.toml" {
		t.Fatalf("config path = %q", f.configPath)
	}
	if _, err := parseFlags([]string{"--unknown"}); err == nil {
		t.Fatalf("unknown flags should still be rejected")
	}
}
