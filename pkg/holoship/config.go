package holoship

import (
	"fmt"
	"time"

	"github.com/bft-labs/holoship/internal/adapters/remoting"
	"github.com/bft-labs/holoship/internal/domain"
)

// Default configuration values.
const (
	DefaultPort            = domain.DefaultPort
	DefaultCompression     = "lz4"
	DefaultKeepAlive       = 5 * time.Second
	DefaultWidth           = 1280
	DefaultHeight          = 720
	DefaultShutdownTimeout = 30 * time.Second
	DefaultName            = "holoship"
)

// Config holds the settings of a Host.
type Config struct {
	// Mode selects listen, connect or no remoting.
	Mode Mode

	// Address is the bind address in listen mode and the player address
	// in connect mode.
	Address string

	// Port is the handshake port. TransportPort is recorded and reported
	// but the reference transport multiplexes on Port.
	Port          uint16
	TransportPort uint16

	// Ephemeral binds a system-chosen port in listen mode.
	Ephemeral bool

	// Compression names the frame codec: "none", "lz4" or "zstd".
	Compression string

	// KeepAlive is the ping interval. A player silent for three
	// intervals is disconnected with NetworkTimeout.
	KeepAlive time.Duration

	// Name is announced to the player during the handshake.
	Name string

	// Width and Height size the local preview.
	Width  int
	Height int

	ShowPreview bool

	// AnchorDir enables position save/load. Empty disables it unless
	// WithAnchorStore is given.
	AnchorDir string

	ShutdownTimeout time.Duration
}

// SetDefaults fills zero fields with default values.
func (c *Config) SetDefaults() {
	if c.Port == 0 && !c.Ephemeral {
		c.Port = DefaultPort
	}
	if c.Compression == "" {
		c.Compression = DefaultCompression
	}
	if c.KeepAlive == 0 {
		c.KeepAlive = DefaultKeepAlive
	}
	if c.Width == 0 {
		c.Width = DefaultWidth
	}
	if c.Height == 0 {
		c.Height = DefaultHeight
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Name == "" {
		c.Name = DefaultName
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := c.session().Validate(); err != nil {
		return err
	}
	if _, err := remoting.ParseCompression(c.Compression); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	if c.KeepAlive < 0 {
		return fmt.Errorf("%w: keepalive must not be negative", ErrInvalidConfiguration)
	}
	if c.Width < 0 || c.Height < 0 {
		return fmt.Errorf("%w: window size must not be negative", ErrInvalidConfiguration)
	}
	return nil
}

func (c Config) session() domain.SessionConfig {
	return domain.SessionConfig{
		Mode:          c.Mode,
		Address:       c.Address,
		Port:          c.Port,
		TransportPort: c.TransportPort,
		Ephemeral:     c.Ephemeral,
	}
}
