package ports

import "github.com/bft-labs/holoship/internal/domain"

// Binding is the target a content renderer draws into for one camera.
type Binding struct {
	Camera   domain.CameraID
	Target   RenderTarget
	Viewport domain.Viewport
	Timing   domain.FrameTiming
	// CommitDepth is set when the depth buffer is committed with the
	// color image for this frame.
	CommitDepth bool
}

// ContentRenderer is rendered content. The core never inspects it.
// Update runs on the session goroutine and Render on the render
// goroutine.
type ContentRenderer interface {
	Update(timing domain.FrameTiming)
	Render(b Binding) error
}

// Positionable content can save and restore its anchored position as an
// opaque blob.
type Positionable interface {
	MarshalPosition() ([]byte, error)
	UnmarshalPosition(blob []byte) error
}

// Placeable content can be moved in front of an input pose. PlaceAt is
// called from input goroutines concurrently with Render.
type Placeable interface {
	PlaceAt(p domain.Pose)
}

// Colorable content accepts colour names from speech commands.
type Colorable interface {
	SetColor(name string) bool
}
