package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crownd.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigFile_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
device:
  path: /dev/hidraw3
  reconnect_attempts: 2
crown:
  long_press_ms: 250
  ratchet: free
eventws:
  port: 3002
bindings:
  - on: rotate_cw
    command: pactl
    args: ["set-sink-volume", "@DEFAULT_SINK@", "+2%"]
  - on: press
    modifier: ctrl
    command: playerctl
    args: ["play-pause"]
    policy: tracked
`)

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Device.Path != "/dev/hidraw3" {
		t.Errorf("expected device path /dev/hidraw3, got %q", cfg.Device.Path)
	}
	if cfg.Device.ReconnectAttempts != 2 {
		t.Errorf("expected reconnect_attempts=2, got %d", cfg.Device.ReconnectAttempts)
	}
	if cfg.Crown.LongPressMS != 250 {
		t.Errorf("expected long_press_ms=250, got %d", cfg.Crown.LongPressMS)
	}
	if cfg.Crown.Ratchet != RatchetModeFree {
		t.Errorf("expected ratchet=free, got %q", cfg.Crown.Ratchet)
	}
	if cfg.EventWS.Port != 3002 {
		t.Errorf("expected eventws port 3002, got %d", cfg.EventWS.Port)
	}
	if len(cfg.Bindings) != 2 {
		t.Fatalf("expected 2 bindings, got %d", len(cfg.Bindings))
	}
	if cfg.Bindings[1].Modifier != "ctrl" || cfg.Bindings[1].Policy != "tracked" {
		t.Errorf("unexpected second binding: %#v", cfg.Bindings[1])
	}

	// Untouched sections keep their defaults.
	if cfg.Device.VendorID != defaultVendorID {
		t.Errorf("expected default vendor id, got %04x", cfg.Device.VendorID)
	}
	if cfg.Executor.ShutdownGraceMS != defaultShutdownGraceMS {
		t.Errorf("expected default shutdown grace, got %d", cfg.Executor.ShutdownGraceMS)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level info, got %q", cfg.Logging.Level)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestLoadConfigFile_UnknownFieldRejected(t *testing.T) {
	path := writeConfig(t, `
crown:
  long_pres_ms: 250
`)

	if _, err := LoadConfigFile(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadConfigFile_TrailingDocumentRejected(t *testing.T) {
	path := writeConfig(t, `
crown:
  long_press_ms: 250
---
crown:
  long_press_ms: 300
`)

	_, err := LoadConfigFile(path)
	if err == nil {
		t.Fatal("expected error for trailing document")
	}
	if !strings.Contains(err.Error(), "trailing document") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadConfigFile_Missing(t *testing.T) {
	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"no device identity", func(c *Config) { c.Device.VendorID = 0 }, "vendor_id"},
		{"negative reconnect attempts", func(c *Config) { c.Device.ReconnectAttempts = -1 }, "reconnect_attempts"},
		{"zero reconnect wait", func(c *Config) { c.Device.ReconnectWaitMS = 0 }, "reconnect_wait_ms"},
		{"zero long press", func(c *Config) { c.Crown.LongPressMS = 0 }, "long_press_ms"},
		{"bad ratchet mode", func(c *Config) { c.Crown.Ratchet = "detent" }, "ratchet"},
		{"negative grace", func(c *Config) { c.Executor.ShutdownGraceMS = -1 }, "shutdown_grace_ms"},
		{"bad port", func(c *Config) { c.EventWS.Port = 70000 }, "port"},
		{"empty log level", func(c *Config) { c.Logging.Level = "" }, "level"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Errorf("expected error containing %q, got: %v", tc.wantSub, err)
			}
		})
	}

	// Explicit device path makes vendor/product ids optional.
	cfg := DefaultConfig()
	cfg.Device.Path = "/dev/hidraw3"
	cfg.Device.VendorID = 0
	cfg.Device.ProductID = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config with explicit path, got %v", err)
	}
}

func TestConfig_DuplicateBindingsFailStartup(t *testing.T) {
	path := writeConfig(t, `
bindings:
  - on: rotate_cw
    command: pactl
    args: ["set-sink-volume", "@DEFAULT_SINK@", "+2%"]
  - on: rotate_cw
    command: pactl
    args: ["set-sink-volume", "@DEFAULT_SINK@", "-2%"]
`)

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if _, err := newResolver(cfg.Bindings); err == nil {
		t.Fatal("expected duplicate binding error at startup")
	}
}

func TestFlagOverrides_Apply(t *testing.T) {
	cfg := DefaultConfig()

	devicePath := "/dev/hidraw7"
	port := 4000
	level := "debug"

	o := FlagOverrides{
		DevicePath:  &devicePath,
		EventWSPort: &port,
		LogLevel:    &level,
	}
	o.Apply(&cfg)

	if cfg.Device.Path != devicePath {
		t.Errorf("expected device path override, got %q", cfg.Device.Path)
	}
	if cfg.EventWS.Port != port {
		t.Errorf("expected port override, got %d", cfg.EventWS.Port)
	}
	if cfg.Logging.Level != level {
		t.Errorf("expected log level override, got %q", cfg.Logging.Level)
	}

	// Unset overrides leave the config alone.
	before := cfg
	FlagOverrides{}.Apply(&cfg)
	if cfg.Device.Path != before.Device.Path || cfg.EventWS.Port != before.EventWS.Port {
		t.Error("empty overrides must not change the config")
	}
}
