package ports

import (
	"github.com/gogpu/gg/render"
	"github.com/gogpu/gputypes"

	"github.com/bft-labs/holoship/internal/domain"
)

// SwapChainDesc describes the local preview swap chain.
type SwapChainDesc struct {
	Width       int
	Height      int
	Format      gputypes.TextureFormat
	BufferCount int
}

// SwapChain presents rendered images to the host window.
type SwapChain interface {
	// Present copies src to the window. It returns domain.ErrDeviceLost
	// when the owning device is no longer usable.
	Present(src render.RenderTarget) error
	Resize(width, height int) error
	Close() error
}

// HostWindow is the capability the host environment provides. The core
// calls these but does not own window creation.
type HostWindow interface {
	CreateSwapChain(dev GraphicsDevice, desc SwapChainDesc) (SwapChain, error)
	CreateHolographicSpace() (HolographicSpace, error)
	CreateInteractionManager() (InteractionManager, error)
	SetTitle(title string)
}

// Camera is a display surface attached to a holographic space.
type Camera interface {
	ID() domain.CameraID
	Viewport() domain.Viewport
}

// SpaceObserver receives platform notifications for a holographic space.
//
// CameraRemoved is synchronous: the observer frees the camera's
// resources before returning, and the space must not invalidate the
// camera until it has returned.
type SpaceObserver interface {
	CameraAdded(c Camera)
	CameraRemoved(c Camera)
	LocatabilityChanged(l domain.Locatability)
}

// HolographicSpace binds the local environment to a set of cameras.
type HolographicSpace interface {
	// Subscribe registers o and replays CameraAdded for every camera
	// already attached. The returned func unregisters o.
	Subscribe(o SpaceObserver) (unsubscribe func())

	// NextFrame predicts the next frame. ok is false when no frame is
	// available yet.
	NextFrame() (timing domain.FrameTiming, ok bool)

	Locatability() domain.Locatability

	// Close releases the space. It must not wait for observer callbacks
	// that are in progress.
	Close() error
}

// InteractionManager reports spatial input presses.
type InteractionManager interface {
	// OnPressed registers fn for press events. The returned func
	// unregisters it.
	OnPressed(fn func(domain.Pose)) (cancel func())
}
