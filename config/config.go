// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the Galactica
// display server.
//
// Configuration is loaded from a single YAML file specified by the
// GALLIUM_CONFIG environment variable or the --config flag. There are
// no fallbacks or automatic discovery; a missing file means the
// built-in defaults, which describe one 800x600 output and no frame
// capture.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for the display server.
type Config struct {
	// Display configures the protocol and control sockets.
	Display DisplayConfig `yaml:"display"`

	// Outputs lists the display heads. At least one is required.
	Outputs []OutputConfig `yaml:"outputs"`

	// Capture configures frame capture.
	Capture CaptureConfig `yaml:"capture"`

	// Log configures logging.
	Log LogConfig `yaml:"log"`
}

// DisplayConfig configures the server sockets. Socket names are
// relative to XDG_RUNTIME_DIR.
type DisplayConfig struct {
	// Socket is the display socket name clients connect to.
	// Default: gallium-0 (also the GALLIUM_DISPLAY default).
	Socket string `yaml:"socket"`

	// ControlSocket is the management socket name used by galliumctl.
	// Default: gallium-control
	ControlSocket string `yaml:"control_socket"`
}

// OutputConfig describes one display head.
type OutputConfig struct {
	// Name identifies the output in logs and control queries.
	Name string `yaml:"name"`

	// Width and Height are the framebuffer dimensions in pixels.
	Width  int32 `yaml:"width"`
	Height int32 `yaml:"height"`
}

// CaptureConfig configures framebuffer snapshots.
type CaptureConfig struct {
	// Enabled turns frame capture on.
	Enabled bool `yaml:"enabled"`

	// Dir is the directory snapshots are written to.
	Dir string `yaml:"dir"`

	// Every captures each Nth repaint; 0 captures only on explicit
	// control-socket requests.
	Every uint64 `yaml:"every"`

	// Compress writes zstd-compressed snapshots.
	Compress bool `yaml:"compress"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is the minimum level: debug, info, warn, error.
	// Default: info
	Level string `yaml:"level"`
}

// Default returns the default configuration: one 800x600 output named
// "main", no capture.
func Default() *Config {
	return &Config{
		Display: DisplayConfig{
			Socket:        "gallium-0",
			ControlSocket: "gallium-control",
		},
		Outputs: []OutputConfig{
			{Name: "main", Width: 800, Height: 600},
		},
		Capture: CaptureConfig{
			Dir:   "frames",
			Every: 1,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the GALLIUM_CONFIG environment
// variable, falling back to defaults when it is unset.
func Load() (*Config, error) {
	path := os.Getenv("GALLIUM_CONFIG")
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file, merged over the
// defaults. Environment variables do not override config values.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Display.Socket == "" {
		errs = append(errs, fmt.Errorf("display.socket is required"))
	}
	if c.Display.ControlSocket == "" {
		errs = append(errs, fmt.Errorf("display.control_socket is required"))
	}
	if len(c.Outputs) == 0 {
		errs = append(errs, fmt.Errorf("at least one output is required"))
	}
	names := make(map[string]bool)
	for i, out := range c.Outputs {
		if out.Name == "" {
			errs = append(errs, fmt.Errorf("outputs[%d].name is required", i))
		} else if names[out.Name] {
			errs = append(errs, fmt.Errorf("duplicate output name %q", out.Name))
		}
		names[out.Name] = true
		if out.Width <= 0 || out.Height <= 0 {
			errs = append(errs, fmt.Errorf("output %q has invalid size %dx%d", out.Name, out.Width, out.Height))
		}
	}
	if c.Capture.Enabled && c.Capture.Dir == "" {
		errs = append(errs, fmt.Errorf("capture.dir is required when capture is enabled"))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be one of: debug, info, warn, error"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// RuntimeDir returns the directory sockets live in: XDG_RUNTIME_DIR,
// falling back to /tmp when unset.
func RuntimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir
	}
	return "/tmp"
}
