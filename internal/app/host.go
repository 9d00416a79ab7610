package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/holoship/internal/domain"
	"github.com/bft-labs/holoship/internal/ports"
	"github.com/bft-labs/holoship/pkg/log"
)

// ShutdownTimeout is the maximum time Shutdown waits for teardown.
const ShutdownTimeout = 30 * time.Second

// DefaultDataInterval is the custom data channel heartbeat period.
const DefaultDataInterval = 5 * time.Second

// Observer is notified of host events. Calls are made on the session
// processor goroutine and must not call back into the Host.
type Observer interface {
	OnPhaseChange(previous, current domain.Phase, reason string)
	OnCameraReady(id domain.CameraID)
	OnConnectionFailure(reason domain.DisconnectReason, retrying bool)
}

// DataObserver is an Observer that also receives custom data channel
// messages from the connected player.
type DataObserver interface {
	Observer
	OnData(payload []byte)
}

// Config contains the collaborators and settings of a Host.
type Config struct {
	Window   ports.HostWindow
	Remoting ports.Remoting
	Devices  ports.DeviceFactory
	Content  []ports.ContentRenderer
	Anchors  ports.AnchorStore
	Logger   log.Logger
	Observer Observer

	Retry       RetryPolicy
	ShowPreview bool

	// DataInterval is the period of the custom data channel heartbeat
	// while connected. Zero means DefaultDataInterval.
	DataInterval time.Duration

	// Width and Height size the preview swap chain until OnResize.
	Width  int
	Height int

	ShutdownTimeout time.Duration
}

// hostState is the copy-on-write view the frame loop reads each tick.
type hostState struct {
	phase        domain.Phase
	space        ports.HolographicSpace
	locatability domain.Locatability
	cameras      []*cameraEntry
	standalone   bool
	failure      string
	retrying     bool
}

// Host coordinates the remoting session, the holographic space, the
// graphics device and the frame loop.
type Host struct {
	cfg     Config
	logger  log.Logger
	disp    *dispatcher
	devices *DeviceResources
	frames  *frameLoop

	// Owned by the session processor.
	session      *Session
	cameras      *cameraSet
	space        ports.HolographicSpace
	spaceGen     uint64
	spaceCancel  context.CancelFunc
	unsubscribe  func()
	inputCancel  func()
	locatability domain.Locatability
	standalone   bool
	failure      string
	retrying     bool
	retryTimer   *time.Timer

	state    atomic.Pointer[hostState]
	preview  atomic.Bool
	noDevice atomic.Bool
	closed   atomic.Bool

	titleMu   sync.Mutex
	lastTitle string

	exitOnce sync.Once
	exit     chan struct{}
}

// NewHost creates a Host and starts its session processor.
func NewHost(cfg Config) (*Host, error) {
	if cfg.Window == nil {
		return nil, fmt.Errorf("%w: host window is required", domain.ErrInvalidConfiguration)
	}
	if cfg.Devices == nil {
		return nil, fmt.Errorf("%w: device factory is required", domain.ErrInvalidConfiguration)
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = ShutdownTimeout
	}
	if cfg.DataInterval <= 0 {
		cfg.DataInterval = DefaultDataInterval
	}

	logger := log.OrNoop(cfg.Logger)
	h := &Host{
		cfg:    cfg,
		logger: logger,
		exit:   make(chan struct{}),
	}
	h.preview.Store(cfg.ShowPreview)
	h.devices = NewDeviceResources(cfg.Devices, logger.With(log.String("component", "device")))
	h.devices.setNotify(h)
	h.disp = newDispatcher(h.handle, logger)
	h.session = newSession(cfg.Remoting, cfg.Retry, h, logger.With(log.String("component", "session")))
	h.cameras = newCameraSet(h.devices, h.disp.post, logger.With(log.String("component", "cameras")))
	h.frames = newFrameLoop(h, cfg.Width, cfg.Height)
	h.publish()
	return h, nil
}

// Configure sets the session parameters. It returns ErrSessionActive
// unless the session is Idle.
func (h *Host) Configure(cfg domain.SessionConfig) error {
	return h.disp.call(evConfigure{cfg: cfg})
}

// Start begins listening or connecting. It is a no-op while a session is
// active. Connection results arrive asynchronously.
func (h *Host) Start() error {
	return h.disp.call(evStart{})
}

// InitializeStandalone prepares the device and a local holographic space
// without remoting.
func (h *Host) InitializeStandalone() error {
	return h.disp.call(evStandalone{})
}

// RequestDisconnect begins an orderly disconnect. Repeated calls are
// no-ops, and a pending automatic reconnect is cancelled.
func (h *Host) RequestDisconnect() {
	_ = h.disp.call(evRequestDisconnect{})
}

// Shutdown forces the session to Idle and releases the holographic
// space and every connection-owned resource. The Host can be started
// again afterwards.
func (h *Host) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.ShutdownTimeout)
	defer cancel()
	err := h.disp.callContext(ctx, evShutdown{})
	if errors.Is(err, context.DeadlineExceeded) {
		h.logger.Warn("shutdown timeout, forcing exit",
			log.Duration("timeout", h.cfg.ShutdownTimeout),
		)
		return domain.ErrShutdownTimeout
	}
	return err
}

// Close shuts down and stops the session processor for good. The frame
// loop must no longer be ticking.
func (h *Host) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := h.Shutdown()
	h.disp.close()
	h.devices.withLock(h.frames.release)
	h.devices.Close()
	h.requestExit()
	return err
}

// Flush waits until every event queued so far has been handled.
func (h *Host) Flush() {
	h.disp.flush()
}

// Phase returns the published session phase.
func (h *Host) Phase() domain.Phase {
	return h.state.Load().phase
}

// Status returns the current status text, identical to the window title.
func (h *Host) Status() string {
	return composeTitle(h.titleView())
}

// Devices returns the device resource holder.
func (h *Host) Devices() *DeviceResources {
	return h.devices
}

// ReadyCameras returns the IDs of cameras that can be rendered into.
func (h *Host) ReadyCameras() []domain.CameraID {
	var ids []domain.CameraID
	for _, e := range h.state.Load().cameras {
		if e.ready() {
			ids = append(ids, e.id)
		}
	}
	return ids
}

// OnDeviceLost is the platform entry point for a lost device.
func (h *Host) OnDeviceLost() {
	h.devices.OnDeviceLost()
}

// OnDeviceRestored is the platform entry point for a restored device.
func (h *Host) OnDeviceRestored() {
	h.devices.OnDeviceRestored()
}

// OnResize updates the preview swap chain size.
func (h *Host) OnResize(width, height int) {
	h.frames.resize(width, height)
}

// Preview reports whether local preview is shown while connected.
func (h *Host) Preview() bool {
	return h.preview.Load()
}

// TogglePreview flips local preview and returns the new setting.
func (h *Host) TogglePreview() bool {
	for {
		old := h.preview.Load()
		if h.preview.CompareAndSwap(old, !old) {
			h.logger.Info("preview toggled", log.Bool("enabled", !old))
			h.refreshTitle()
			return !old
		}
	}
}

// ExitRequested is closed once an exit command was received or the
// Host was closed.
func (h *Host) ExitRequested() <-chan struct{} {
	return h.exit
}

func (h *Host) requestExit() {
	h.exitOnce.Do(func() { close(h.exit) })
}

// handle runs on the session processor.
func (h *Host) handle(ev event) error {
	var err error
	switch ev := ev.(type) {
	case evConfigure:
		err = h.session.configure(ev.cfg)
		if errors.Is(err, domain.ErrSessionActive) {
			h.logger.Warn("configure rejected while session active",
				log.Stringer("phase", h.session.Phase()),
				log.Stringer("mode", ev.cfg.Mode),
			)
		}
	case evStart:
		if h.standalone && h.session.Phase() == domain.PhaseIdle {
			// The standalone space only renders locally.
			h.teardownSpace()
		}
		h.standalone = false
		err = h.session.start()
	case evStandalone:
		err = h.initStandalone()
	case evRequestDisconnect:
		h.session.requestDisconnect()
		h.retrying = false
	case evShutdown:
		err = h.shutdown()
	case evConnected:
		h.session.connected(ev.attempt)
	case evDisconnected:
		h.session.disconnected(ev.attempt, ev.reason)
	case evData:
		h.dataReceived(ev)
	case evRetry:
		h.session.retryFired(ev.token)
	case evCameraAdded:
		if ev.space == h.spaceGen && h.space != nil {
			h.cameras.added(ev.camera)
		}
	case evCameraReady:
		if h.cameras.ready(ev) && h.cfg.Observer != nil {
			h.cfg.Observer.OnCameraReady(ev.id)
		}
	case evCameraRemoved:
		if ev.space == h.spaceGen {
			h.cameras.removed(ev.camera)
		}
	case evLocatability:
		if ev.space == h.spaceGen && ev.value != h.locatability {
			h.logger.Info("locatability changed",
				log.Stringer("from", h.locatability),
				log.Stringer("to", ev.value),
			)
			h.locatability = ev.value
		}
	case evDeviceLost:
		h.cameras.invalidateAll()
	case evDeviceRestored:
		h.noDevice.Store(false)
		h.cameras.rebuildAll()
	case evDeviceUnavailable:
		h.noDevice.Store(true)
	case evBarrier:
	}
	h.publish()
	return err
}

func (h *Host) publish() {
	h.state.Store(&hostState{
		phase:        h.session.Phase(),
		space:        h.space,
		locatability: h.locatability,
		cameras:      h.cameras.snapshot(),
		standalone:   h.standalone,
		failure:      h.failure,
		retrying:     h.retrying,
	})
	h.refreshTitle()
}

func (h *Host) titleView() titleView {
	st := h.state.Load()
	return titleView{
		phase:      st.phase,
		standalone: st.standalone,
		preview:    h.preview.Load(),
		noDevice:   h.noDevice.Load(),
		failure:    st.failure,
		retrying:   st.retrying,
		fps:        h.frames.fps(),
	}
}

// refreshTitle pushes the status text to the window when it changed.
func (h *Host) refreshTitle() {
	title := composeTitle(h.titleView())
	h.titleMu.Lock()
	defer h.titleMu.Unlock()
	if title == h.lastTitle {
		return
	}
	h.lastTitle = title
	h.cfg.Window.SetTitle(title)
}

func (h *Host) initStandalone() error {
	if h.session.Phase() != domain.PhaseIdle {
		return domain.ErrSessionActive
	}
	if err := h.prepareStart(); err != nil {
		return err
	}
	h.standalone = true
	h.logger.Info("standalone mode initialized")
	return nil
}

func (h *Host) shutdown() error {
	if h.retryTimer != nil {
		h.retryTimer.Stop()
		h.retryTimer = nil
	}
	err := h.session.shutdown(h.teardownSpace)
	h.standalone = false
	h.retrying = false
	h.failure = ""
	if err != nil {
		h.logger.Error("closing transport", log.Err(err))
	}
	return err
}

// prepareStart implements sessionHooks.
func (h *Host) prepareStart() error {
	if err := h.devices.Ensure(); err != nil {
		h.logger.Warn("starting without graphics device", log.Err(err))
	}
	if h.space != nil {
		return nil
	}
	space, err := h.cfg.Window.CreateHolographicSpace()
	if err != nil {
		return fmt.Errorf("creating holographic space: %w", err)
	}
	h.attachSpace(space)
	return nil
}

func (h *Host) attachSpace(space ports.HolographicSpace) {
	h.spaceGen++
	ctx, cancel := context.WithCancel(context.Background())
	h.space = space
	h.spaceCancel = cancel
	h.locatability = space.Locatability()
	h.unsubscribe = space.Subscribe(&spaceObserver{h: h, gen: h.spaceGen, ctx: ctx})

	im, err := h.cfg.Window.CreateInteractionManager()
	switch {
	case err != nil:
		h.logger.Warn("interaction manager unavailable", log.Err(err))
	case im != nil:
		h.inputCancel = im.OnPressed(h.onPressed)
	}
	h.logger.Debug("holographic space attached", log.Uint64("generation", h.spaceGen))
}

// teardownSpace releases every camera entry before the space goes away.
func (h *Host) teardownSpace() {
	if h.space == nil {
		return
	}
	h.spaceGen++
	if h.unsubscribe != nil {
		h.unsubscribe()
		h.unsubscribe = nil
	}
	if h.inputCancel != nil {
		h.inputCancel()
		h.inputCancel = nil
	}
	h.cameras.clear()
	h.spaceCancel()
	if err := h.space.Close(); err != nil {
		h.logger.Warn("closing holographic space", log.Err(err))
	}
	h.space = nil
	h.locatability = domain.LocatabilityUnavailable
}

// dataReceived handles custom data from the current connection. Data
// from an earlier attempt is dropped.
func (h *Host) dataReceived(ev evData) {
	if !h.session.connectedTo(ev.attempt) {
		h.logger.Debug("discarding custom data",
			log.Uint64("attempt", ev.attempt),
			log.Int("bytes", len(ev.payload)),
		)
		return
	}
	h.logger.Info("custom data received", log.Int("bytes", len(ev.payload)))
	if do, ok := h.cfg.Observer.(DataObserver); ok {
		do.OnData(ev.payload)
	}
}

// phaseChanged implements sessionHooks.
func (h *Host) phaseChanged(previous, current domain.Phase, reason string) {
	switch current {
	case domain.PhaseConnected:
		h.failure = ""
		h.retrying = false
	case domain.PhaseDisconnecting:
		h.retrying = false
	}
	if h.cfg.Observer != nil {
		h.cfg.Observer.OnPhaseChange(previous, current, reason)
	}
	h.publish()
}

// connectionFailed implements sessionHooks.
func (h *Host) connectionFailed(reason domain.DisconnectReason, retrying bool) {
	h.failure = reason.String()
	h.retrying = retrying
	if !retrying {
		h.logger.Warn("connection failed", log.Stringer("reason", reason))
	}
	if h.cfg.Observer != nil {
		h.cfg.Observer.OnConnectionFailure(reason, retrying)
	}
}

// scheduleRetry implements sessionHooks.
func (h *Host) scheduleRetry(delay time.Duration, token uint64) {
	if h.retryTimer != nil {
		h.retryTimer.Stop()
		h.retryTimer = nil
	}
	if delay <= 0 {
		h.disp.post(evRetry{token: token})
		return
	}
	h.retryTimer = time.AfterFunc(delay, func() {
		h.disp.post(evRetry{token: token})
	})
}

// handlerFor implements sessionHooks.
func (h *Host) handlerFor(attempt uint64) ports.RemotingHandler {
	return attemptHandler{disp: h.disp, attempt: attempt}
}

// deviceLost implements deviceNotify.
func (h *Host) deviceLost() {
	_ = h.disp.call(evDeviceLost{})
}

// deviceRestored implements deviceNotify.
func (h *Host) deviceRestored() {
	_ = h.disp.call(evDeviceRestored{})
}

// deviceUnavailable implements deviceNotify. It may run on the session
// processor, so it only posts.
func (h *Host) deviceUnavailable(err error) {
	h.noDevice.Store(true)
	h.disp.post(evDeviceUnavailable{err: err})
}

func (h *Host) onPressed(p domain.Pose) {
	for _, c := range h.cfg.Content {
		if pl, ok := c.(ports.Placeable); ok {
			pl.PlaceAt(p)
		}
	}
}

// attemptHandler tags transport callbacks with their attempt.
type attemptHandler struct {
	disp    *dispatcher
	attempt uint64
}

func (a attemptHandler) OnConnected() {
	a.disp.post(evConnected{attempt: a.attempt})
}

func (a attemptHandler) OnDisconnected(reason domain.DisconnectReason) {
	a.disp.post(evDisconnected{attempt: a.attempt, reason: reason})
}

func (a attemptHandler) OnData(payload []byte) {
	a.disp.post(evData{attempt: a.attempt, payload: payload})
}

// spaceObserver tags space callbacks with the space generation. Camera
// removal waits for the processor unless the space is being torn down.
type spaceObserver struct {
	h   *Host
	gen uint64
	ctx context.Context
}

func (o *spaceObserver) CameraAdded(c ports.Camera) {
	o.h.disp.post(evCameraAdded{space: o.gen, camera: c})
}

func (o *spaceObserver) CameraRemoved(c ports.Camera) {
	if err := o.h.disp.callContext(o.ctx, evCameraRemoved{space: o.gen, camera: c}); err != nil {
		o.h.logger.Debug("camera removal after teardown",
			log.Int("camera", int(c.ID())),
			log.Err(err),
		)
	}
}

func (o *spaceObserver) LocatabilityChanged(l domain.Locatability) {
	o.h.disp.post(evLocatability{space: o.gen, value: l})
}
