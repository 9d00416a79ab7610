package graphics

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gg/render"
	"github.com/gogpu/gputypes"

	"github.com/bft-labs/holoship/internal/domain"
	"github.com/bft-labs/holoship/internal/ports"
)

// SoftwareFactory creates SoftwareDevices. It can be marked unavailable to
// model a host without compatible hardware.
type SoftwareFactory struct {
	name  string
	depth bool

	mu          sync.Mutex
	unavailable error
	created     int
	current     *SoftwareDevice
}

var _ ports.DeviceFactory = (*SoftwareFactory)(nil)

// NewSoftwareFactory returns a factory whose devices report name and
// depth commit support.
func NewSoftwareFactory(name string, depth bool) *SoftwareFactory {
	return &SoftwareFactory{name: name, depth: depth}
}

// SetUnavailable makes subsequent CreateDevice calls fail with err. A nil
// err makes devices available again.
func (f *SoftwareFactory) SetUnavailable(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unavailable = err
}

// CreateDevice returns a new device.
func (f *SoftwareFactory) CreateDevice() (ports.GraphicsDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable != nil {
		return nil, f.unavailable
	}
	f.created++
	d := &SoftwareDevice{
		name:  fmt.Sprintf("%s #%d", f.name, f.created),
		depth: f.depth,
	}
	f.current = d
	return d, nil
}

// Current returns the most recently created device.
func (f *SoftwareFactory) Current() *SoftwareDevice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// Created returns the number of devices created so far.
func (f *SoftwareFactory) Created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

// SoftwareDevice owns CPU render targets.
type SoftwareDevice struct {
	name  string
	depth bool

	lost    atomic.Bool
	closed  atomic.Bool
	targets atomic.Int64
}

var _ ports.GraphicsDevice = (*SoftwareDevice)(nil)

func (d *SoftwareDevice) Name() string              { return d.name }
func (d *SoftwareDevice) SupportsDepthCommit() bool { return d.depth }
func (d *SoftwareDevice) Lost() bool                { return d.lost.Load() || d.closed.Load() }

// Lose marks the device as lost. Every later use fails with
// domain.ErrDeviceLost.
func (d *SoftwareDevice) Lose() {
	d.lost.Store(true)
}

// LiveTargets returns the number of targets not yet destroyed.
func (d *SoftwareDevice) LiveTargets() int {
	return int(d.targets.Load())
}

// CreateRenderTarget allocates a pixmap of the requested size.
func (d *SoftwareDevice) CreateRenderTarget(desc ports.TargetDesc) (ports.RenderTarget, error) {
	if d.Lost() {
		return nil, domain.ErrDeviceLost
	}
	if desc.Viewport.Empty() {
		return nil, fmt.Errorf("render target %q: empty viewport %dx%d",
			desc.Label, desc.Viewport.Width, desc.Viewport.Height)
	}
	if desc.Viewport.Oversized() {
		return nil, fmt.Errorf("render target %q: viewport %dx%d exceeds %d",
			desc.Label, desc.Viewport.Width, desc.Viewport.Height, domain.MaxViewportDim)
	}
	var unset gputypes.TextureFormat
	if desc.Format != unset && desc.Format != gputypes.TextureFormatRGBA8Unorm {
		return nil, fmt.Errorf("render target %q: unsupported format %v", desc.Label, desc.Format)
	}
	d.targets.Add(1)
	return &Target{
		PixmapTarget: render.NewPixmapTarget(desc.Viewport.Width, desc.Viewport.Height),
		label:        desc.Label,
		device:       d,
	}, nil
}

// Close releases the device.
func (d *SoftwareDevice) Close() error {
	d.closed.Store(true)
	return nil
}

// Target is a pixmap render target owned by a SoftwareDevice.
type Target struct {
	*render.PixmapTarget
	label     string
	device    *SoftwareDevice
	destroyed atomic.Bool
}

var _ ports.RenderTarget = (*Target)(nil)

// Label returns the label the target was created with.
func (t *Target) Label() string { return t.label }

// Destroy releases the target. Repeated calls are no-ops.
func (t *Target) Destroy() {
	if t.destroyed.CompareAndSwap(false, true) {
		t.device.targets.Add(-1)
	}
}

// Destroyed reports whether Destroy has been called.
func (t *Target) Destroyed() bool {
	return t.destroyed.Load()
}
