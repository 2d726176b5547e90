package main

import (
	"testing"

	"github.com/jensen-user/rew-bridge/internal/config"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		val, ok := env[key]
		return val, ok
	}
}

func TestParseFlagsLayering(t *testing.T) {
	persisted := config.Default()
	persisted.BridgePort = 9100
	persisted.LogLevel = "info"

	env := map[string]string{
		"REWBRIDGE_LOG_LEVEL": "warn",
		"REWBRIDGE_PORT":      "9200",
	}

	// Flags beat env, env beats the persisted file.
	cfg, err := parseFlags([]string{"-log-level", "debug"}, lookupFrom(env), persisted)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("flag override lost: %q", cfg.LogLevel)
	}
	if cfg.BridgePort != 9200 {
		t.Fatalf("env override lost: %d", cfg.BridgePort)
	}
	if cfg.REWAPIPort != persisted.REWAPIPort {
		t.Fatalf("persisted value lost: %d", cfg.REWAPIPort)
	}

	// Overrides are for this run only; the persisted values stay intact
	// for the next boot.
	if persisted.LogLevel != "info" || persisted.BridgePort != 9100 {
		t.Fatalf("persisted config mutated: %+v", persisted)
	}
}

func TestParseFlagsDefaultsPassThrough(t *testing.T) {
	persisted := config.Default()
	cfg, err := parseFlags(nil, lookupFrom(nil), persisted)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg != persisted {
		t.Fatalf("no overrides given, got %+v want %+v", cfg, persisted)
	}
}
