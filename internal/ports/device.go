package ports

import (
	"github.com/gogpu/gg/render"
	"github.com/gogpu/gputypes"

	"github.com/bft-labs/holoship/internal/domain"
)

// TargetDesc describes a per-camera render target.
type TargetDesc struct {
	Label    string
	Viewport domain.Viewport
	Format   gputypes.TextureFormat
}

// RenderTarget is a render.RenderTarget owned by a graphics device.
type RenderTarget interface {
	render.RenderTarget
	Destroy()
}

// GraphicsDevice is a graphics device together with its logical context.
type GraphicsDevice interface {
	Name() string

	// SupportsDepthCommit reports whether depth buffers can be handed to
	// the compositor alongside color.
	SupportsDepthCommit() bool

	CreateRenderTarget(desc TargetDesc) (RenderTarget, error)

	// Lost reports whether the device stopped being usable.
	Lost() bool

	Close() error
}

// DeviceFactory creates graphics devices. An error means no compatible
// hardware is available.
type DeviceFactory interface {
	CreateDevice() (GraphicsDevice, error)
}
