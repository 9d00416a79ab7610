package holoship

import (
	"github.com/bft-labs/holoship/internal/app"
	"github.com/bft-labs/holoship/internal/domain"
	"github.com/bft-labs/holoship/internal/ports"
	"github.com/bft-labs/holoship/pkg/log"
)

// Re-exported types so embedders need not import internal packages.
type (
	// Logger is the logging interface from pkg/log.
	Logger = log.Logger

	// RetryPolicy controls automatic reconnection.
	RetryPolicy = app.RetryPolicy

	// Observer receives session events on the session goroutine.
	Observer = app.Observer

	// DataObserver is an Observer that also receives custom data channel
	// messages from the player.
	DataObserver = app.DataObserver

	// ContentRenderer draws holographic content into camera targets.
	ContentRenderer = ports.ContentRenderer

	// AnchorStore persists content positions.
	AnchorStore = ports.AnchorStore

	// DeviceFactory creates graphics devices.
	DeviceFactory = ports.DeviceFactory

	Mode             = domain.Mode
	Phase            = domain.Phase
	DisconnectReason = domain.DisconnectReason
	CameraID         = domain.CameraID
)

// Session modes.
const (
	ModeDisabled = domain.ModeDisabled
	ModeListen   = domain.ModeListen
	ModeConnect  = domain.ModeConnect
)

// Session phases.
const (
	PhaseIdle          = domain.PhaseIdle
	PhaseListening     = domain.PhaseListening
	PhaseConnecting    = domain.PhaseConnecting
	PhaseConnected     = domain.PhaseConnected
	PhaseDisconnecting = domain.PhaseDisconnecting
)

// Errors returned by Host methods.
var (
	ErrInvalidConfiguration = domain.ErrInvalidConfiguration
	ErrSessionActive        = domain.ErrSessionActive
	ErrClosed               = domain.ErrClosed
	ErrShutdownTimeout      = domain.ErrShutdownTimeout
	ErrNoAnchorStore        = domain.ErrNoAnchorStore
	ErrNoSavedPosition      = domain.ErrNoSavedPosition
)

// DefaultRetryPolicy retries immediately and without limit.
func DefaultRetryPolicy() RetryPolicy {
	return app.DefaultRetryPolicy()
}

// Option configures optional behavior of a Host.
type Option func(*options)

// options holds the optional configuration for a Host.
type options struct {
	logger   log.Logger
	retry    RetryPolicy
	observer Observer
	content  []ContentRenderer
	anchors  AnchorStore
	devices  DeviceFactory
}

// defaultOptions returns options with sensible defaults.
func defaultOptions() options {
	return options{
		logger: log.NewNoopLogger(),
		retry:  app.DefaultRetryPolicy(),
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRetryPolicy sets the reconnection policy. The default retries
// immediately and without limit.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *options) {
		o.retry = p
	}
}

// WithObserver sets a handler for session events. It must not call back
// into the Host.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithContent replaces the default cube with the given renderers.
// Renderers are drawn in order.
func WithContent(content ...ContentRenderer) Option {
	return func(o *options) {
		o.content = append(o.content, content...)
	}
}

// WithAnchorStore sets the store used to save and load positions. It
// takes precedence over Config.AnchorDir.
func WithAnchorStore(s AnchorStore) Option {
	return func(o *options) {
		o.anchors = s
	}
}

// WithDeviceFactory replaces the software graphics device.
func WithDeviceFactory(f DeviceFactory) Option {
	return func(o *options) {
		o.devices = f
	}
}
