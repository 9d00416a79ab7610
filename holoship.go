// Package holoship runs a remote holographic session host.
//
// Example usage:
//
//	cfg := holoship.DefaultConfig()
//	cfg.Mode = holoship.ModeListen
//	cfg.Address = "0.0.0.0"
//	if err := holoship.Run(context.Background(), cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// Embedders that need more control use github.com/bft-labs/holoship/pkg/holoship.
package holoship

import (
	"context"

	"github.com/bft-labs/holoship/pkg/holoship"
)

// Config holds the configuration of the host.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = holoship.Config

// Option configures optional behavior of the host.
type Option = holoship.Option

// Session modes.
const (
	ModeDisabled = holoship.ModeDisabled
	ModeListen   = holoship.ModeListen
	ModeConnect  = holoship.ModeConnect
)

// Run starts the host with the given configuration and ticks its frame
// loop. A disabled mode runs standalone. It blocks until the context is
// cancelled or an exit command is received.
func Run(ctx context.Context, cfg Config, opts ...Option) error {
	h, err := holoship.New(cfg, opts...)
	if err != nil {
		return err
	}
	if cfg.Mode == ModeDisabled {
		err = h.InitializeStandalone()
	} else {
		err = h.Start()
	}
	if err != nil {
		_ = h.Close()
		return err
	}
	return h.Run(ctx)
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	var cfg Config
	cfg.SetDefaults()
	cfg.ShowPreview = true
	return cfg
}
