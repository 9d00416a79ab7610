package cliconfig

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/holoship/internal/domain"
)

// Config holds CLI configuration for the holoship host.
type Config struct {
	Host          string
	Port          int
	TransportPort int
	Listen        bool
	Standalone    bool
	Ephemeral     bool

	AutoReconnect bool
	MaxRetries    int
	RetryInitial  time.Duration
	RetryMax      time.Duration

	Compression string
	KeepAlive   time.Duration

	Width           int
	Height          int
	ShowPreview     bool
	AnchorDir       string
	LogLevel        string
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Host:            "",
		Port:            int(domain.DefaultPort),
		AutoReconnect:   true,
		RetryMax:        10 * time.Second,
		Compression:     "lz4",
		KeepAlive:       5 * time.Second,
		Width:           1280,
		Height:          720,
		ShowPreview:     true,
		LogLevel:        "info",
		ShutdownTimeout: 30 * time.Second,
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.Listen && c.Standalone {
		return fmt.Errorf("listen and standalone are mutually exclusive")
	}
	if c.Listen && c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.TransportPort < 0 || c.TransportPort > 65535 {
		return fmt.Errorf("transport port %d out of range", c.TransportPort)
	}
	if c.Port == 0 && !c.Ephemeral {
		c.Port = int(domain.DefaultPort)
	}
	if c.TransportPort == 0 && c.Port != 0 && c.Port < 65535 && !c.Ephemeral {
		c.TransportPort = c.Port + 1
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative")
	}
	if c.RetryInitial < 0 || c.RetryMax < 0 {
		return fmt.Errorf("retry delays must not be negative")
	}
	if c.KeepAlive <= 0 {
		return fmt.Errorf("keepalive must be positive")
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("window size must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	return nil
}

// Mode returns the session mode selected by the flags. A host without a
// target and without listen runs standalone.
func (c Config) Mode() domain.Mode {
	switch {
	case c.Standalone:
		return domain.ModeDisabled
	case c.Listen:
		return domain.ModeListen
	case c.Host != "":
		return domain.ModeConnect
	default:
		return domain.ModeDisabled
	}
}

// SessionConfig converts the flags into session parameters.
func (c Config) SessionConfig() domain.SessionConfig {
	return domain.SessionConfig{
		Mode:          c.Mode(),
		Address:       c.Host,
		Port:          uint16(c.Port),
		TransportPort: uint16(c.TransportPort),
		Ephemeral:     c.Ephemeral,
	}
}

// ParseTarget splits a host[:port] argument. A missing port keeps
// defaultPort.
func ParseTarget(arg string, defaultPort int) (string, int, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", 0, fmt.Errorf("empty target")
	}
	host, portStr, err := net.SplitHostPort(arg)
	if err != nil {
		// No port, or a bare IPv6 address.
		return strings.Trim(arg, "[]"), defaultPort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port %q", portStr)
	}
	return host, port, nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
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

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
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

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
