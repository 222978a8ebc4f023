package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for the crownd daemon.
//
// The config file is the primary configuration surface; flags exist for
// small overrides and environments where a file is awkward. Defaults and
// validation are centralized here so the rest of the code can assume a
// well-formed config.
type Config struct {
	// Device selection and reconnect policy
	Device DeviceConfig `yaml:"device"`

	// Crown behavior (classification thresholds, rotation mode)
	Crown CrownConfig `yaml:"crown"`

	// Action execution
	Executor ExecutorConfig `yaml:"executor"`

	// Optional websocket feed of classified events
	EventWS EventWSConfig `yaml:"eventws"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Event -> action bindings
	Bindings []BindingConfig `yaml:"bindings"`
}

type DeviceConfig struct {
	// Path overrides enumeration with an explicit hidraw node.
	Path string `yaml:"path,omitempty"`

	VendorID  uint16 `yaml:"vendor_id"`
	ProductID uint16 `yaml:"product_id"`

	// ReconnectAttempts bounds retries after the device drops; 0 means a
	// lost device is immediately fatal.
	ReconnectAttempts int `yaml:"reconnect_attempts"`
	ReconnectWaitMS   int `yaml:"reconnect_wait_ms"`
}

type CrownConfig struct {
	// LongPressMS is the hold-duration threshold splitting press from
	// long-press. A hold of exactly this duration is a long press.
	LongPressMS int `yaml:"long_press_ms"`

	// Ratchet selects the rotation mode: "ratcheted" (detented; only notch
	// crossings count) or "free" (every movement counts).
	Ratchet string `yaml:"ratchet"`
}

type ExecutorConfig struct {
	// ShutdownGraceMS bounds the wait for tracked actions at shutdown.
	ShutdownGraceMS int `yaml:"shutdown_grace_ms"`
}

type EventWSConfig struct {
	// Port of the event feed HTTP listener; 0 disables the feed.
	Port int `yaml:"port"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// BindingConfig is one user-facing binding entry. The (on, modifier) pair is
// the binding key and must be unique across the list.
type BindingConfig struct {
	On       string            `yaml:"on"`
	Modifier string            `yaml:"modifier,omitempty"`
	Name     string            `yaml:"name,omitempty"`
	Command  string            `yaml:"command"`
	Args     []string          `yaml:"args,omitempty"`
	Env      map[string]string `yaml:"env,omitempty"`
	Policy   string            `yaml:"policy,omitempty"` // fire_and_forget (default) or tracked
}

// DefaultConfig returns a fully-populated Config with defaults.
// Keep this aligned with constants.go.
func DefaultConfig() Config {
	return Config{
		Device: DeviceConfig{
			VendorID:          defaultVendorID,
			ProductID:         defaultProductID,
			ReconnectAttempts: defaultReconnectAttempts,
			ReconnectWaitMS:   defaultReconnectWaitMS,
		},
		Crown: CrownConfig{
			LongPressMS: defaultLongPressMS,
			Ratchet:     RatchetModeRatcheted,
		},
		Executor: ExecutorConfig{
			ShutdownGraceMS: defaultShutdownGraceMS,
		},
		EventWS: EventWSConfig{
			Port: 0,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Ratchet mode names.
const (
	RatchetModeRatcheted = "ratcheted"
	RatchetModeFree      = "free"
)

// LoadConfigFile reads and parses a YAML config file.
//
// Unknown fields are rejected (helps catch typos) via KnownFields(true), and
// trailing documents are an error.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err == nil {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides applies flag values on top of a loaded config. Each override
// is applied only if its pointer is non-nil, so flags that were not set are
// ignored.
type FlagOverrides struct {
	DevicePath  *string
	EventWSPort *int
	LogLevel    *string
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.DevicePath != nil {
		cfg.Device.Path = *o.DevicePath
	}
	if o.EventWSPort != nil {
		cfg.EventWS.Port = *o.EventWSPort
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// Called after defaults + file + overrides are applied, before the dispatch
// loop starts. Binding entries are validated by newResolver, which owns the
// binding table.
func (c *Config) Validate() error {
	if c.Device.Path == "" {
		if c.Device.VendorID == 0 || c.Device.ProductID == 0 {
			return errors.New("device.vendor_id and device.product_id must be set when device.path is empty")
		}
	}
	if c.Device.ReconnectAttempts < 0 {
		return errors.New("device.reconnect_attempts must be >= 0")
	}
	if c.Device.ReconnectWaitMS <= 0 {
		return errors.New("device.reconnect_wait_ms must be > 0")
	}

	if c.Crown.LongPressMS <= 0 {
		return errors.New("crown.long_press_ms must be > 0")
	}
	if c.Crown.Ratchet != RatchetModeRatcheted && c.Crown.Ratchet != RatchetModeFree {
		return fmt.Errorf("crown.ratchet must be %q or %q", RatchetModeRatcheted, RatchetModeFree)
	}

	if c.Executor.ShutdownGraceMS < 0 {
		return errors.New("executor.shutdown_grace_ms must be >= 0")
	}

	if c.EventWS.Port < 0 || c.EventWS.Port > 65535 {
		return errors.New("eventws.port must be between 0 and 65535")
	}

	if c.Logging.Level == "" {
		return errors.New("logging.level must not be empty")
	}

	return nil
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
