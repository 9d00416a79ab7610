package cliconfig

import (
	"testing"
	"time"

	"github.com/bft-labs/holoship/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Port != int(domain.DefaultPort) {
		t.Errorf("Port = %v, want %v", cfg.Port, domain.DefaultPort)
	}
	if !cfg.AutoReconnect {
		t.Error("AutoReconnect = false, want true")
	}
	if cfg.KeepAlive != 5*time.Second {
		t.Errorf("KeepAlive = %v, want 5s", cfg.KeepAlive)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 30s", cfg.ShutdownTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func(mut func(*Config)) Config {
		c := DefaultConfig()
		mut(&c)
		return c
	}

	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "connect target",
			config:  valid(func(c *Config) { c.Host = "10.0.0.5" }),
			wantErr: false,
		},
		{
			name:    "listen and standalone",
			config:  valid(func(c *Config) { c.Listen, c.Standalone = true, true }),
			wantErr: true,
		},
		{
			name:    "port out of range",
			config:  valid(func(c *Config) { c.Port = 70000 }),
			wantErr: true,
		},
		{
			name:    "negative transport port",
			config:  valid(func(c *Config) { c.TransportPort = -1 }),
			wantErr: true,
		},
		{
			name:    "negative retries",
			config:  valid(func(c *Config) { c.MaxRetries = -1 }),
			wantErr: true,
		},
		{
			name:    "zero keepalive",
			config:  valid(func(c *Config) { c.KeepAlive = 0 }),
			wantErr: true,
		},
		{
			name:    "empty window",
			config:  valid(func(c *Config) { c.Width = 0 }),
			wantErr: true,
		},
		{
			name:    "zero shutdown timeout",
			config:  valid(func(c *Config) { c.ShutdownTimeout = 0 }),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_Derivations(t *testing.T) {
	// Listen binds every interface by default.
	c1 := DefaultConfig()
	c1.Listen = true
	if err := c1.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if c1.Host != "0.0.0.0" {
		t.Errorf("Host = %v, want 0.0.0.0", c1.Host)
	}
	if c1.TransportPort != c1.Port+1 {
		t.Errorf("TransportPort = %v, want %v", c1.TransportPort, c1.Port+1)
	}

	// Ephemeral ports keep zero.
	c2 := DefaultConfig()
	c2.Listen = true
	c2.Ephemeral = true
	c2.Port = 0
	if err := c2.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if c2.Port != 0 || c2.TransportPort != 0 {
		t.Errorf("ports = %v/%v, want 0/0", c2.Port, c2.TransportPort)
	}

	// Explicit transport port is kept.
	c3 := DefaultConfig()
	c3.Host = "h"
	c3.TransportPort = 9000
	if err := c3.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if c3.TransportPort != 9000 {
		t.Errorf("TransportPort = %v, want 9000", c3.TransportPort)
	}
}

func TestConfig_Mode(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want domain.Mode
	}{
		{"standalone flag", Config{Standalone: true, Host: "h"}, domain.ModeDisabled},
		{"listen", Config{Listen: true}, domain.ModeListen},
		{"connect", Config{Host: "h"}, domain.ModeConnect},
		{"nothing", Config{}, domain.ModeDisabled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Mode(); got != tt.want {
				t.Errorf("Mode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfig_SessionConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "10.0.0.5"
	cfg.Port = 9000
	cfg.TransportPort = 9001
	sc := cfg.SessionConfig()

	if sc.Mode != domain.ModeConnect || sc.Address != "10.0.0.5" || sc.Port != 9000 || sc.TransportPort != 9001 {
		t.Errorf("SessionConfig() = %+v", sc)
	}
	if err := sc.Validate(); err != nil {
		t.Errorf("SessionConfig().Validate() = %v", err)
	}
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		arg      string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{"10.0.0.5", "10.0.0.5", 8265, false},
		{"10.0.0.5:9000", "10.0.0.5", 9000, false},
		{"headset.local:1", "headset.local", 1, false},
		{"[::1]:9000", "::1", 9000, false},
		{"::1", "::1", 8265, false},
		{"host:0", "", 0, true},
		{"host:abc", "", 0, true},
		{"  ", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			host, port, err := ParseTarget(tt.arg, 8265)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTarget() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if host != tt.wantHost || port != tt.wantPort {
				t.Errorf("ParseTarget() = %v:%v, want %v:%v", host, port, tt.wantHost, tt.wantPort)
			}
		})
	}
}
