// Package config loads daemon configuration from an optional YAML file.
// Values not present in the file keep their defaults; command-line flags
// override both.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/boiler-relay/internal/control"
	"github.com/sweeney/boiler-relay/internal/relay"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "90s" or "3m" (yaml.v3 has no native duration decoding).
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Config holds the daemon configuration.
type Config struct {
	Broker       string   `yaml:"broker"`
	Pin          int      `yaml:"pin"`
	InitialState string   `yaml:"initial_state"`
	MinimumOn    Duration `yaml:"minimum_on"`
	MinimumOff   Duration `yaml:"minimum_off"`
	Heartbeat    Duration `yaml:"heartbeat"`
	HTTPAddr     string   `yaml:"http_addr"`
}

// Default returns the built-in configuration. The minimum OFF time is the
// anti-short-cycle guard for the burner; the minimum ON time stops a
// half-started heat cycle from being cancelled immediately.
func Default() Config {
	return Config{
		Broker:       "tcp://192.168.1.200:1883",
		Pin:          relay.DefaultPin,
		InitialState: string(control.StateOff),
		MinimumOn:    Duration(1 * time.Minute),
		MinimumOff:   Duration(3 * time.Minute),
		Heartbeat:    Duration(15 * time.Minute),
		HTTPAddr:     ":80",
	}
}

// Load reads the YAML file at path over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("broker must not be empty")
	}
	if c.Pin < 0 {
		return fmt.Errorf("pin must not be negative, got %d", c.Pin)
	}
	switch strings.ToUpper(c.InitialState) {
	case string(control.StateOn), string(control.StateOff):
		c.InitialState = strings.ToUpper(c.InitialState)
	default:
		return fmt.Errorf("initial_state must be ON or OFF, got %q", c.InitialState)
	}
	if c.MinimumOn < 0 || c.MinimumOff < 0 || c.Heartbeat < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}

// Initial returns the configured initial state as a control.State.
// Validate must have been called first.
func (c *Config) Initial() control.State {
	if c.InitialState == string(control.StateOn) {
		return control.StateOn
	}
	return control.StateOff
}
