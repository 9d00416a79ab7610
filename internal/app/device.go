package app

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bft-labs/holoship/internal/domain"
	"github.com/bft-labs/holoship/internal/ports"
	"github.com/bft-labs/holoship/pkg/log"
)

// Generation is the token for one live graphics device. Every resource
// built from a device records its generation; all of them become invalid
// together when the device is lost.
type Generation struct {
	id     uint64
	device ports.GraphicsDevice
	lost   atomic.Bool
}

// ID returns the generation number. It increases with every device.
func (g *Generation) ID() uint64 {
	return g.id
}

// Valid reports whether the device behind g is still usable.
func (g *Generation) Valid() bool {
	return g != nil && !g.lost.Load()
}

// Device returns the device or ErrDeviceLost after invalidation.
func (g *Generation) Device() (ports.GraphicsDevice, error) {
	if !g.Valid() {
		return nil, domain.ErrDeviceLost
	}
	return g.device, nil
}

// CreateRenderTarget builds a target on the generation's device.
func (g *Generation) CreateRenderTarget(desc ports.TargetDesc) (ports.RenderTarget, error) {
	dev, err := g.Device()
	if err != nil {
		return nil, err
	}
	return dev.CreateRenderTarget(desc)
}

func (g *Generation) invalidate() {
	g.lost.Store(true)
}

// deviceNotify receives device lifecycle notifications. Calls are made
// with the device lock released.
type deviceNotify interface {
	deviceLost()
	deviceRestored()
	deviceUnavailable(err error)
}

// DeviceResources owns the graphics device, its presentation state and
// the depth-commit setting. Its lock is independent from the session
// processor; Present holds it for the whole present so a concurrent loss
// waits until the present has finished.
type DeviceResources struct {
	mu        sync.Mutex
	factory   ports.DeviceFactory
	gen       *Generation
	nextGen   uint64
	lastErr   error
	wantDepth bool

	notify deviceNotify
	logger log.Logger
}

// NewDeviceResources creates an empty holder. No device exists until
// CreateOrRecreate succeeds.
func NewDeviceResources(factory ports.DeviceFactory, logger log.Logger) *DeviceResources {
	return &DeviceResources{
		factory:   factory,
		wantDepth: true,
		logger:    log.OrNoop(logger),
	}
}

func (d *DeviceResources) setNotify(n deviceNotify) {
	d.mu.Lock()
	d.notify = n
	d.mu.Unlock()
}

// CreateOrRecreate replaces the current device with a fresh one. On
// failure the holder stays empty, Err reports ErrDeviceUnavailable and
// dependents are notified.
func (d *DeviceResources) CreateOrRecreate() {
	d.mu.Lock()
	d.dropLocked()
	err := d.createLocked()
	notify := d.notify
	d.mu.Unlock()

	if err != nil && notify != nil {
		notify.deviceUnavailable(err)
	}
}

// Ensure creates a device if none exists.
func (d *DeviceResources) Ensure() error {
	d.mu.Lock()
	if d.gen != nil {
		d.mu.Unlock()
		return nil
	}
	err := d.createLocked()
	notify := d.notify
	d.mu.Unlock()

	if err != nil && notify != nil {
		notify.deviceUnavailable(err)
	}
	return err
}

func (d *DeviceResources) createLocked() error {
	dev, err := d.factory.CreateDevice()
	if err != nil {
		d.lastErr = fmt.Errorf("%w: %v", domain.ErrDeviceUnavailable, err)
		d.logger.Error("graphics device unavailable", log.Err(err))
		return d.lastErr
	}
	d.nextGen++
	d.gen = &Generation{id: d.nextGen, device: dev}
	d.lastErr = nil
	d.logger.Info("graphics device created",
		log.String("device", dev.Name()),
		log.Uint64("generation", d.gen.id),
		log.Bool("depth_commit", dev.SupportsDepthCommit()),
	)
	return nil
}

func (d *DeviceResources) dropLocked() {
	if d.gen == nil {
		return
	}
	d.gen.invalidate()
	if err := d.gen.device.Close(); err != nil {
		d.logger.Warn("closing graphics device", log.Err(err))
	}
	d.gen = nil
}

// OnDeviceLost invalidates the current generation and notifies
// dependents. Safe to call more than once.
func (d *DeviceResources) OnDeviceLost() {
	d.mu.Lock()
	had := d.gen != nil
	if had {
		d.logger.Warn("graphics device lost", log.Uint64("generation", d.gen.id))
	}
	d.dropLocked()
	notify := d.notify
	d.mu.Unlock()

	if had && notify != nil {
		notify.deviceLost()
	}
}

// OnDeviceRestored builds a new device and lets dependents rebuild.
func (d *DeviceResources) OnDeviceRestored() {
	d.mu.Lock()
	d.dropLocked()
	err := d.createLocked()
	notify := d.notify
	d.mu.Unlock()

	if notify == nil {
		return
	}
	if err != nil {
		notify.deviceUnavailable(err)
		return
	}
	notify.deviceRestored()
}

// HandleDeviceLost runs the full loss and restore sequence.
func (d *DeviceResources) HandleDeviceLost() {
	d.OnDeviceLost()
	d.OnDeviceRestored()
}

// Current returns the live generation.
func (d *DeviceResources) Current() (*Generation, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gen, d.gen != nil
}

// Err returns the last creation failure, if any.
func (d *DeviceResources) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

// Present runs fn with the device lock held. It returns
// ErrDeviceUnavailable when there is no device.
func (d *DeviceResources) Present(fn func(gen *Generation) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gen == nil {
		if d.lastErr != nil {
			return d.lastErr
		}
		return domain.ErrDeviceUnavailable
	}
	if d.gen.device.Lost() {
		return domain.ErrDeviceLost
	}
	return fn(d.gen)
}

// DepthCommit reports whether depth buffers are committed with color.
func (d *DeviceResources) DepthCommit() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.depthCommitFor(d.gen)
}

// depthCommitFor reports the effective setting for gen. Called with the
// device lock held, as inside Present.
func (d *DeviceResources) depthCommitFor(gen *Generation) bool {
	return d.wantDepth && gen != nil && gen.device.SupportsDepthCommit()
}

// ToggleDepthCommit flips the user setting and returns the effective value.
func (d *DeviceResources) ToggleDepthCommit() bool {
	d.mu.Lock()
	d.wantDepth = !d.wantDepth
	d.mu.Unlock()
	return d.DepthCommit()
}

// Close releases the device without notifying dependents.
func (d *DeviceResources) Close() {
	d.mu.Lock()
	d.dropLocked()
	d.mu.Unlock()
}

// withLock runs fn with the device lock held.
func (d *DeviceResources) withLock(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn()
}
