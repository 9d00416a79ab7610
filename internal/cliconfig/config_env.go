package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (HOLOSHIP_*).
// It respects flags that have been explicitly set (changed map).
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("host", os.Getenv("HOLOSHIP_HOST"), &cfg.Host)
	s.setString("compression", os.Getenv("HOLOSHIP_COMPRESSION"), &cfg.Compression)
	s.setString("anchor-dir", os.Getenv("HOLOSHIP_ANCHOR_DIR"), &cfg.AnchorDir)
	s.setString("log-level", os.Getenv("HOLOSHIP_LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setIntFromString("port", os.Getenv("HOLOSHIP_PORT"), &cfg.Port); err != nil {
		return err
	}
	if err := s.setIntFromString("transport-port", os.Getenv("HOLOSHIP_TRANSPORT_PORT"), &cfg.TransportPort); err != nil {
		return err
	}
	if err := s.setIntFromString("max-retries", os.Getenv("HOLOSHIP_MAX_RETRIES"), &cfg.MaxRetries); err != nil {
		return err
	}

	if err := s.setDuration("retry-initial", os.Getenv("HOLOSHIP_RETRY_INITIAL"), &cfg.RetryInitial); err != nil {
		return err
	}
	if err := s.setDuration("retry-max", os.Getenv("HOLOSHIP_RETRY_MAX"), &cfg.RetryMax); err != nil {
		return err
	}
	if err := s.setDuration("keepalive", os.Getenv("HOLOSHIP_KEEPALIVE"), &cfg.KeepAlive); err != nil {
		return err
	}

	s.setBoolFromString("listen", os.Getenv("HOLOSHIP_LISTEN"), &cfg.Listen)
	s.setBoolFromString("standalone", os.Getenv("HOLOSHIP_STANDALONE"), &cfg.Standalone)
	s.setBoolFromString("ephemeral-port", os.Getenv("HOLOSHIP_EPHEMERAL_PORT"), &cfg.Ephemeral)
	s.setBoolFromString("show-preview", os.Getenv("HOLOSHIP_SHOW_PREVIEW"), &cfg.ShowPreview)
	if v := os.Getenv("HOLOSHIP_NO_AUTO_RECONNECT"); v != "" && !changed["no-auto-reconnect"] {
		cfg.AutoReconnect = !(v == "true" || v == "1")
	}

	return nil
}
