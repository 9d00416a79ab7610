package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bft-labs/holoship/internal/cliconfig"
	"github.com/bft-labs/holoship/pkg/holoship"
	"github.com/bft-labs/holoship/pkg/log"
)

// pendingCheckInterval is how often a deferred target is retried.
const pendingCheckInterval = time.Second

// reloader applies session targets from a changed config file. A target
// that arrives during a session waits until the session is Idle.
type reloader struct {
	host    *holoship.Host
	base    cliconfig.Config
	changed map[string]bool
	logger  log.Logger

	mu      sync.Mutex
	pending *holoship.Config
}

func newReloader(h *holoship.Host, base cliconfig.Config, changed map[string]bool, logger log.Logger) *reloader {
	return &reloader{
		host:    h,
		base:    base,
		changed: changed,
		logger:  logger.With(log.String("component", "reload")),
	}
}

func (r *reloader) run(ctx context.Context, path string) {
	w := cliconfig.NewWatcher(path, r.onChange, r.logger)
	go func() {
		if err := w.Run(ctx); err != nil {
			r.logger.Warn("config watcher stopped", log.Err(err))
		}
	}()

	ticker := time.NewTicker(pendingCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.apply()
		}
	}
}

func (r *reloader) onChange(fc cliconfig.FileConfig) {
	cfg := r.base
	if err := cliconfig.ApplyFileConfig(&cfg, fc, r.changed); err != nil {
		r.logger.Warn("invalid config file", log.Err(err))
		return
	}
	if err := cliconfig.ApplyEnvConfig(&cfg, r.changed); err != nil {
		r.logger.Warn("invalid environment", log.Err(err))
		return
	}
	if err := cfg.Validate(); err != nil {
		r.logger.Warn("invalid config", log.Err(err))
		return
	}
	lib := libConfig(cfg)
	r.mu.Lock()
	r.pending = &lib
	r.mu.Unlock()
	r.apply()
}

func (r *reloader) apply() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == nil || r.host.Phase() != holoship.PhaseIdle {
		return
	}
	err := r.host.Configure(*r.pending)
	switch {
	case err == nil:
		r.logger.Info("session target reloaded",
			log.String("address", r.pending.Address),
			log.Int("port", int(r.pending.Port)),
		)
	case errors.Is(err, holoship.ErrSessionActive):
		return
	default:
		r.logger.Warn("reloaded config rejected", log.Err(err))
	}
	r.pending = nil
}
