package domain

import (
	"errors"
	"fmt"
)

// Domain errors returned by the public API. Check with errors.Is.
var (
	// ErrInvalidConfiguration is returned by Configure when the session
	// parameters cannot be used. The session stays Idle.
	ErrInvalidConfiguration = errors.New("holoship: invalid configuration")

	// ErrDeviceUnavailable is reported when no usable graphics device could
	// be created. Rendering stays disabled until a device is restored.
	ErrDeviceUnavailable = errors.New("holoship: graphics device unavailable")

	// ErrDeviceLost is returned by a device generation that has been
	// invalidated by a device loss.
	ErrDeviceLost = errors.New("holoship: graphics device lost")

	// ErrSessionActive is returned when an operation requires an Idle session.
	ErrSessionActive = errors.New("holoship: session active")

	// ErrNotConfigured is returned by Start before a successful Configure.
	ErrNotConfigured = errors.New("holoship: session not configured")

	// ErrClosed is returned after the host has been shut down for good.
	ErrClosed = errors.New("holoship: closed")

	// ErrShutdownTimeout is returned when in-flight teardown does not finish.
	ErrShutdownTimeout = errors.New("holoship: shutdown timeout")

	// ErrNoAnchorStore is returned by save and load without an anchor store.
	ErrNoAnchorStore = errors.New("holoship: no anchor store")

	// ErrNoSavedPosition is returned by load when nothing was saved.
	ErrNoSavedPosition = errors.New("holoship: no saved position")
)

// ConnectionFailure describes a session failure. Asynchronous failures are
// surfaced through status text and events. A transport returns one from
// Start when the attempt fails before any callback could be delivered.
type ConnectionFailure struct {
	Reason DisconnectReason
}

func (e *ConnectionFailure) Error() string {
	return fmt.Sprintf("holoship: connection failure: %s", e.Reason)
}

// Recoverable reports whether the failure triggers an automatic retry.
func (e *ConnectionFailure) Recoverable() bool {
	return e.Reason.Recoverable()
}
