package holoship

import (
	"context"
	"fmt"
	"image"
	"net"
	"sync/atomic"
	"time"

	"github.com/bft-labs/holoship/internal/adapters/fs"
	"github.com/bft-labs/holoship/internal/adapters/graphics"
	"github.com/bft-labs/holoship/internal/adapters/remoting"
	"github.com/bft-labs/holoship/internal/app"
	"github.com/bft-labs/holoship/internal/content"
	"github.com/bft-labs/holoship/internal/domain"
	"github.com/bft-labs/holoship/internal/ports"
	"github.com/bft-labs/holoship/pkg/log"
)

// FrameInterval is the tick period used by Run.
const FrameInterval = time.Second / 60

// Host is a remote holographic session host that can be embedded in other
// applications. Use New to create one.
type Host struct {
	config   Config
	logger   log.Logger
	core     *app.Host
	remoting *remoting.Host
	window   *graphics.HeadlessWindow

	// standalone routes the next space request to a local space.
	standalone atomic.Bool
}

// New creates a Host with the given configuration. The session is
// configured but not started; call Start or InitializeStandalone.
func New(cfg Config, opts ...Option) (*Host, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	compression, err := remoting.ParseCompression(cfg.Compression)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	logger := log.OrNoop(o.logger)

	h := &Host{
		config: cfg,
		logger: logger,
	}
	h.remoting = remoting.NewHost(remoting.Options{
		Compression: compression,
		KeepAlive:   cfg.KeepAlive,
		Name:        cfg.Name,
		Logger:      logger,
	})
	h.window = graphics.NewHeadlessWindow(h.newSpace, logger)

	devices := o.devices
	if devices == nil {
		devices = graphics.NewSoftwareFactory("software", true)
	}
	renderers := o.content
	if len(renderers) == 0 {
		renderers = []ports.ContentRenderer{content.NewCube()}
	}
	anchors := o.anchors
	if anchors == nil && cfg.AnchorDir != "" {
		anchors = fs.NewAnchorFileStore(cfg.AnchorDir)
	}

	core, err := app.NewHost(app.Config{
		Window:          h.window,
		Remoting:        h.remoting,
		Devices:         devices,
		Content:         renderers,
		Anchors:         anchors,
		Logger:          logger,
		Observer:        o.observer,
		Retry:           o.retry,
		ShowPreview:     cfg.ShowPreview,
		Width:           cfg.Width,
		Height:          cfg.Height,
		ShutdownTimeout: cfg.ShutdownTimeout,
	})
	if err != nil {
		return nil, err
	}
	h.core = core

	if cfg.Mode != ModeDisabled {
		if err := core.Configure(cfg.session()); err != nil {
			_ = core.Close()
			return nil, err
		}
	}
	return h, nil
}

func (h *Host) newSpace() (ports.HolographicSpace, error) {
	if h.standalone.Swap(false) {
		return graphics.NewLocalSpace(domain.Viewport{Width: h.config.Width, Height: h.config.Height}), nil
	}
	return h.remoting.NewSpace(), nil
}

// Configure replaces the session target. It returns ErrSessionActive
// unless the session is Idle.
func (h *Host) Configure(cfg Config) error {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := h.core.Configure(cfg.session()); err != nil {
		return err
	}
	h.config.Mode = cfg.Mode
	h.config.Address = cfg.Address
	h.config.Port = cfg.Port
	h.config.TransportPort = cfg.TransportPort
	h.config.Ephemeral = cfg.Ephemeral
	return nil
}

// Start begins listening or connecting. Results arrive asynchronously
// through the Observer and Phase.
func (h *Host) Start() error {
	return h.core.Start()
}

// InitializeStandalone renders into a local space without remoting.
func (h *Host) InitializeStandalone() error {
	h.standalone.Store(true)
	defer h.standalone.Store(false)
	return h.core.InitializeStandalone()
}

// RequestDisconnect begins an orderly disconnect and cancels any pending
// reconnect.
func (h *Host) RequestDisconnect() {
	h.core.RequestDisconnect()
}

// Shutdown returns the session to Idle. The Host can be started again.
func (h *Host) Shutdown() error {
	return h.core.Shutdown()
}

// Close shuts down for good. Tick must no longer be called.
func (h *Host) Close() error {
	err := h.core.Close()
	if cerr := h.remoting.Close(); err == nil {
		err = cerr
	}
	return err
}

// Tick runs one frame: predict, update content, render and present.
func (h *Host) Tick() error {
	return h.core.Tick()
}

// Run ticks the frame loop until ctx ends or an exit command arrives,
// then closes the Host.
func (h *Host) Run(ctx context.Context) error {
	ticker := time.NewTicker(FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("context done, closing host")
			return h.Close()
		case <-h.core.ExitRequested():
			h.logger.Info("exit requested, closing host")
			return h.Close()
		case <-ticker.C:
			if err := h.core.Tick(); err != nil {
				h.logger.Warn("frame failed", log.Err(err))
			}
		}
	}
}

// OnKeyPress runs the command bound to key.
func (h *Host) OnKeyPress(key rune) error {
	return h.core.OnKeyPress(key)
}

// OnSpeech runs the command recognised in text.
func (h *Host) OnSpeech(text string) error {
	return h.core.OnSpeech(text)
}

// OnResize updates the preview size.
func (h *Host) OnResize(width, height int) {
	h.core.OnResize(width, height)
}

// OnDeviceLost reports a lost graphics device.
func (h *Host) OnDeviceLost() {
	h.core.OnDeviceLost()
}

// OnDeviceRestored reports that the graphics device may be recreated.
func (h *Host) OnDeviceRestored() {
	h.core.OnDeviceRestored()
}

// Status returns the status line, identical to the window title.
func (h *Host) Status() string {
	return h.core.Status()
}

// Phase returns the session phase.
func (h *Host) Phase() Phase {
	return h.core.Phase()
}

// ReadyCameras returns the cameras that can be rendered into.
func (h *Host) ReadyCameras() []CameraID {
	return h.core.ReadyCameras()
}

// Addr returns the bound listen address, or nil when not listening.
func (h *Host) Addr() net.Addr {
	return h.remoting.Addr()
}

// TransportPort returns the transport port of the current session.
func (h *Host) TransportPort() uint16 {
	return h.remoting.TransportPort()
}

// ExitRequested is closed once an exit command was received or the Host
// was closed.
func (h *Host) ExitRequested() <-chan struct{} {
	return h.core.ExitRequested()
}

// Snapshot returns a copy of the last image presented to the local
// preview, or nil before the first present.
func (h *Host) Snapshot() *image.RGBA {
	sc := h.window.SwapChain()
	if sc == nil || sc.Presents() == 0 {
		return nil
	}
	return sc.Snapshot()
}
