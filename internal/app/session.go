package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/bft-labs/holoship/internal/domain"
	"github.com/bft-labs/holoship/internal/ports"
	"github.com/bft-labs/holoship/pkg/log"
)

var errInvalidTransition = errors.New("invalid session transition")

// sessionHooks connects the session machine to the rest of the host.
// All calls happen on the session processor goroutine.
type sessionHooks interface {
	// prepareStart makes sure the device and holographic space exist.
	prepareStart() error
	phaseChanged(previous, current domain.Phase, reason string)
	connectionFailed(reason domain.DisconnectReason, retrying bool)
	scheduleRetry(delay time.Duration, token uint64)
	handlerFor(attempt uint64) ports.RemotingHandler
}

// Session is the remoting session state machine. It is owned by the
// session processor and is not safe for concurrent use.
type Session struct {
	cfg        domain.SessionConfig
	configured bool
	phase      domain.Phase

	// attempt identifies the current transport attempt. Callbacks tagged
	// with an older attempt are stale.
	attempt           uint64
	disconnectPending bool
	retryToken        uint64
	lastReason        domain.DisconnectReason

	remoting ports.Remoting
	retry    *backoff
	hooks    sessionHooks
	logger   log.Logger
}

func newSession(remoting ports.Remoting, policy RetryPolicy, hooks sessionHooks, logger log.Logger) *Session {
	return &Session{
		phase:    domain.PhaseIdle,
		remoting: remoting,
		retry:    newBackoff(policy),
		hooks:    hooks,
		logger:   logger,
	}
}

// Phase returns the current phase.
func (s *Session) Phase() domain.Phase {
	return s.phase
}

// Config returns the last accepted configuration.
func (s *Session) Config() domain.SessionConfig {
	return s.cfg
}

// LastReason returns the reason of the last disconnect.
func (s *Session) LastReason() domain.DisconnectReason {
	return s.lastReason
}

// connectedTo reports whether attempt is the current, connected one.
func (s *Session) connectedTo(attempt uint64) bool {
	return attempt == s.attempt && s.phase == domain.PhaseConnected
}

// transitionTo moves to next if the edge is allowed.
func (s *Session) transitionTo(next domain.Phase, reason string) error {
	prev := s.phase

	ok := false
	switch prev {
	case domain.PhaseIdle:
		ok = next == domain.PhaseListening || next == domain.PhaseConnecting
	case domain.PhaseListening, domain.PhaseConnecting:
		ok = next == domain.PhaseConnected || next == domain.PhaseIdle || next == domain.PhaseDisconnecting
	case domain.PhaseConnected:
		ok = next == domain.PhaseIdle || next == domain.PhaseDisconnecting
	case domain.PhaseDisconnecting:
		ok = next == domain.PhaseIdle
	}
	if !ok {
		s.logger.Error("rejected session transition",
			log.Stringer("from", prev),
			log.Stringer("to", next),
			log.String("reason", reason),
		)
		return fmt.Errorf("%w: %s -> %s", errInvalidTransition, prev, next)
	}

	s.phase = next
	s.logger.Info("state transition",
		log.Stringer("from", prev),
		log.Stringer("to", next),
		log.String("reason", reason),
	)
	s.hooks.phaseChanged(prev, next, reason)
	return nil
}

func (s *Session) configure(cfg domain.SessionConfig) error {
	if s.phase != domain.PhaseIdle {
		return domain.ErrSessionActive
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Mode != domain.ModeDisabled {
		if s.remoting == nil {
			return fmt.Errorf("%w: no remoting transport", domain.ErrInvalidConfiguration)
		}
		if err := s.remoting.Configure(cfg); err != nil {
			if errors.Is(err, domain.ErrInvalidConfiguration) {
				return err
			}
			return fmt.Errorf("%w: %v", domain.ErrInvalidConfiguration, err)
		}
	}

	s.cancelRetry()
	s.retry.Reset()
	s.cfg = cfg
	s.configured = true
	s.logger.Info("session configured",
		log.Stringer("mode", cfg.Mode),
		log.String("address", cfg.Address),
		log.Int("port", int(cfg.Port)),
		log.Bool("ephemeral", cfg.Ephemeral),
	)
	return nil
}

func (s *Session) start() error {
	if s.phase != domain.PhaseIdle {
		s.logger.Debug("start ignored, session active", log.Stringer("phase", s.phase))
		return nil
	}
	if !s.configured {
		return domain.ErrNotConfigured
	}
	if s.cfg.Mode == domain.ModeDisabled {
		return fmt.Errorf("%w: remoting disabled", domain.ErrInvalidConfiguration)
	}
	s.cancelRetry()
	s.retry.Reset()
	return s.begin("start")
}

// begin opens a new transport attempt. A synchronous transport failure
// is handled like an asynchronous disconnect.
func (s *Session) begin(reason string) error {
	if err := s.hooks.prepareStart(); err != nil {
		return err
	}

	s.attempt++
	s.disconnectPending = false
	next := domain.PhaseConnecting
	if s.cfg.Mode == domain.ModeListen {
		next = domain.PhaseListening
	}
	if err := s.transitionTo(next, reason); err != nil {
		return err
	}

	if err := s.remoting.Start(s.hooks.handlerFor(s.attempt)); err != nil {
		failure := domain.ReasonUnknown
		var cf *domain.ConnectionFailure
		if errors.As(err, &cf) {
			failure = cf.Reason
		}
		s.logger.Warn("transport start failed",
			log.Err(err),
			log.Stringer("reason", failure),
		)
		s.disconnected(s.attempt, failure)
	}
	return nil
}

func (s *Session) connected(attempt uint64) {
	switch {
	case attempt != s.attempt:
		s.logger.Debug("discarding stale connected",
			log.Uint64("attempt", attempt),
			log.Uint64("current", s.attempt),
		)
		return
	case s.disconnectPending || s.phase == domain.PhaseDisconnecting:
		s.logger.Info("discarding connected after disconnect request")
		return
	case s.phase != domain.PhaseListening && s.phase != domain.PhaseConnecting:
		s.logger.Debug("discarding connected", log.Stringer("phase", s.phase))
		return
	}

	if err := s.transitionTo(domain.PhaseConnected, "connected"); err != nil {
		return
	}
	s.retry.Reset()
	s.lastReason = domain.ReasonNone
}

func (s *Session) disconnected(attempt uint64, reason domain.DisconnectReason) {
	if attempt != s.attempt {
		s.logger.Debug("discarding stale disconnected",
			log.Uint64("attempt", attempt),
			log.Stringer("reason", reason),
		)
		return
	}
	if s.phase == domain.PhaseIdle {
		return
	}

	requested := s.disconnectPending || s.phase == domain.PhaseDisconnecting
	s.disconnectPending = false
	s.lastReason = reason
	if err := s.transitionTo(domain.PhaseIdle, reason.String()); err != nil {
		return
	}

	if requested || reason.Normal() {
		return
	}
	if reason.Recoverable() {
		if delay, ok := s.retry.Next(); ok {
			s.retryToken++
			s.logger.Info("scheduling reconnect",
				log.Stringer("reason", reason),
				log.Duration("delay", delay),
				log.Int("attempt", s.retry.Attempts()),
			)
			s.hooks.connectionFailed(reason, true)
			s.hooks.scheduleRetry(delay, s.retryToken)
			return
		}
		s.logger.Warn("reconnect limit reached", log.Int("attempts", s.retry.Attempts()))
	}
	s.hooks.connectionFailed(reason, false)
}

func (s *Session) retryFired(token uint64) {
	if token != s.retryToken || s.phase != domain.PhaseIdle || !s.configured {
		return
	}
	if err := s.begin("reconnect"); err != nil {
		s.logger.Error("reconnect failed", log.Err(err))
		s.hooks.connectionFailed(s.lastReason, false)
	}
}

func (s *Session) cancelRetry() {
	s.retryToken++
}

func (s *Session) requestDisconnect() {
	s.cancelRetry()
	if s.disconnectPending || s.phase == domain.PhaseDisconnecting || !s.phase.Active() {
		s.logger.Debug("disconnect ignored", log.Stringer("phase", s.phase))
		return
	}
	s.disconnectPending = true
	if err := s.transitionTo(domain.PhaseDisconnecting, "disconnect requested"); err != nil {
		return
	}
	s.remoting.Stop()
}

// shutdown forces the session to Idle and releases every transport
// resource. release runs before the transport is closed. Callbacks from
// the closed attempt become stale.
func (s *Session) shutdown(release func()) error {
	s.cancelRetry()
	if s.phase.Active() && s.phase != domain.PhaseDisconnecting {
		_ = s.transitionTo(domain.PhaseDisconnecting, "shutdown")
	}
	s.attempt++
	if release != nil {
		release()
	}

	var err error
	if s.remoting != nil {
		err = s.remoting.Close()
	}
	s.disconnectPending = false
	if s.phase != domain.PhaseIdle {
		_ = s.transitionTo(domain.PhaseIdle, "shutdown")
	}
	return err
}
