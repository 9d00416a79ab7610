package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	TransportPort   int    `toml:"transport_port"`
	Listen          *bool  `toml:"listen"`
	Standalone      *bool  `toml:"standalone"`
	Ephemeral       *bool  `toml:"ephemeral_port"`
	AutoReconnect   *bool  `toml:"auto_reconnect"`
	MaxRetries      int    `toml:"max_retries"`
	RetryInitial    string `toml:"retry_initial"`
	RetryMax        string `toml:"retry_max"`
	Compression     string `toml:"compression"`
	KeepAlive       string `toml:"keepalive"`
	Width           int    `toml:"width"`
	Height          int    `toml:"height"`
	ShowPreview     *bool  `toml:"show_preview"`
	AnchorDir       string `toml:"anchor_dir"`
	LogLevel        string `toml:"log_level"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.holoship/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".holoship", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("host", fc.Host, &cfg.Host)
	s.setString("compression", fc.Compression, &cfg.Compression)
	s.setString("anchor-dir", fc.AnchorDir, &cfg.AnchorDir)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	s.setInt("port", fc.Port, &cfg.Port)
	s.setInt("transport-port", fc.TransportPort, &cfg.TransportPort)
	s.setInt("max-retries", fc.MaxRetries, &cfg.MaxRetries)
	s.setInt("width", fc.Width, &cfg.Width)
	s.setInt("height", fc.Height, &cfg.Height)

	if err := s.setDuration("retry-initial", fc.RetryInitial, &cfg.RetryInitial); err != nil {
		return err
	}
	if err := s.setDuration("retry-max", fc.RetryMax, &cfg.RetryMax); err != nil {
		return err
	}
	if err := s.setDuration("keepalive", fc.KeepAlive, &cfg.KeepAlive); err != nil {
		return err
	}
	if err := s.setDuration("shutdown-timeout", fc.ShutdownTimeout, &cfg.ShutdownTimeout); err != nil {
		return err
	}

	s.setBool("listen", fc.Listen, &cfg.Listen)
	s.setBool("standalone", fc.Standalone, &cfg.Standalone)
	s.setBool("ephemeral-port", fc.Ephemeral, &cfg.Ephemeral)
	s.setBool("show-preview", fc.ShowPreview, &cfg.ShowPreview)
	if fc.AutoReconnect != nil && !changed["no-auto-reconnect"] {
		cfg.AutoReconnect = *fc.AutoReconnect
	}

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
