package app

import (
	"github.com/bft-labs/holoship/internal/domain"
	"github.com/bft-labs/holoship/internal/ports"
)

// event is the closed set of inputs handled by the session processor.
type event interface {
	kind() string
}

type evConfigure struct{ cfg domain.SessionConfig }

type evStart struct{}

type evStandalone struct{}

type evRequestDisconnect struct{}

type evShutdown struct{}

// evConnected and evDisconnected carry the attempt that produced them.
type evConnected struct{ attempt uint64 }

type evDisconnected struct {
	attempt uint64
	reason  domain.DisconnectReason
}

// evData is one custom data channel message.
type evData struct {
	attempt uint64
	payload []byte
}

type evRetry struct{ token uint64 }

// Space callbacks carry the space generation they were observed on.
type evCameraAdded struct {
	space  uint64
	camera ports.Camera
}

type evCameraReady struct {
	id     domain.CameraID
	seq    uint64
	gen    *Generation
	target ports.RenderTarget
	err    error
}

type evCameraRemoved struct {
	space  uint64
	camera ports.Camera
}

type evLocatability struct {
	space uint64
	value domain.Locatability
}

type evDeviceLost struct{}

type evDeviceRestored struct{}

type evDeviceUnavailable struct{ err error }

type evBarrier struct{}

func (evConfigure) kind() string         { return "configure" }
func (evStart) kind() string             { return "start" }
func (evStandalone) kind() string        { return "standalone" }
func (evRequestDisconnect) kind() string { return "request_disconnect" }
func (evShutdown) kind() string          { return "shutdown" }
func (evConnected) kind() string         { return "connected" }
func (evDisconnected) kind() string      { return "disconnected" }
func (evData) kind() string              { return "data" }
func (evRetry) kind() string             { return "retry" }
func (evCameraAdded) kind() string       { return "camera_added" }
func (evCameraReady) kind() string       { return "camera_ready" }
func (evCameraRemoved) kind() string     { return "camera_removed" }
func (evLocatability) kind() string      { return "locatability" }
func (evDeviceLost) kind() string        { return "device_lost" }
func (evDeviceRestored) kind() string    { return "device_restored" }
func (evDeviceUnavailable) kind() string { return "device_unavailable" }
func (evBarrier) kind() string           { return "barrier" }
