package domain

import "time"

// CameraID identifies a display surface attached to the holographic space.
// The platform may reuse an ID after removal.
type CameraID uint32

// MaxViewportDim bounds each side of a camera viewport.
const MaxViewportDim = 8192

// Viewport is a render target size in pixels.
type Viewport struct {
	Width  int
	Height int
}

// Empty reports whether the viewport has no area.
func (v Viewport) Empty() bool {
	return v.Width <= 0 || v.Height <= 0
}

// Oversized reports whether either side exceeds MaxViewportDim.
func (v Viewport) Oversized() bool {
	return v.Width > MaxViewportDim || v.Height > MaxViewportDim
}

// Locatability is the tracking status of the spatial locator.
type Locatability int

const (
	LocatabilityUnavailable Locatability = iota
	LocatabilityPositionalTrackingActivating
	LocatabilityOrientationOnly
	LocatabilityPositionalTrackingInhibited
	LocatabilityPositionalTrackingActive
)

func (l Locatability) String() string {
	switch l {
	case LocatabilityUnavailable:
		return "Unavailable"
	case LocatabilityPositionalTrackingActivating:
		return "PositionalTrackingActivating"
	case LocatabilityOrientationOnly:
		return "OrientationOnly"
	case LocatabilityPositionalTrackingInhibited:
		return "PositionalTrackingInhibited"
	case LocatabilityPositionalTrackingActive:
		return "PositionalTrackingActive"
	default:
		return "Unknown"
	}
}

// Renderable reports whether content can be positioned at all.
func (l Locatability) Renderable() bool {
	return l != LocatabilityUnavailable
}

// Pose is a head or controller pose in the reference frame.
type Pose struct {
	Position    [3]float32
	Orientation [4]float32
}

// FrameTiming describes one predicted holographic frame.
type FrameTiming struct {
	Number          uint64
	TargetTime      time.Time
	PredictedPeriod time.Duration
	Pose            Pose
}
