package cliconfig

import (
	"fmt"
	"strconv"
	"time"
)

// DefaultListenAddr is the default address of the partsd HTTP endpoint.
const DefaultListenAddr = "127.0.0.1:9464"

// Config holds CLI configuration for partsd.
type Config struct {
	ListenAddr string

	LogLevel  string
	LogFormat string

	Zlib          bool
	Brotli        bool
	DeflateLevel  int
	BrotliQuality int
	SelfTest      bool

	// WatchConfig reports edits of the loaded config file; a restart applies them.
	WatchConfig bool

	ShutdownTimeout time.Duration
	RunFor          time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		ListenAddr:      DefaultListenAddr,
		LogLevel:        "info",
		LogFormat:       "console",
		Zlib:            true,
		Brotli:          true,
		DeflateLevel:    6,
		BrotliQuality:   6,
		SelfTest:        true,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("log-format must be console or json, got %q", c.LogFormat)
	}
	if c.DeflateLevel < -2 || c.DeflateLevel > 9 {
		return fmt.Errorf("deflate-level must be between -2 and 9, got %d", c.DeflateLevel)
	}
	if c.BrotliQuality < 0 || c.BrotliQuality > 11 {
		return fmt.Errorf("brotli-quality must be between 0 and 11, got %d", c.BrotliQuality)
	}
	if c.SelfTest && !c.Zlib && !c.Brotli {
		return fmt.Errorf("self-test requires at least one codec")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	if c.RunFor < 0 {
		return fmt.Errorf("run-for must not be negative")
	}
	return nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value from a pointer if not nil and flag not changed.
func (s *configSetter) setInt(flag string, value *int, dst *int) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
