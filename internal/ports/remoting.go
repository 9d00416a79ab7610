package ports

import "github.com/bft-labs/holoship/internal/domain"

// RemotingHandler receives asynchronous session results. Implementations
// must not block: callbacks may arrive on any goroutine, including from
// inside Remoting.Start.
type RemotingHandler interface {
	OnConnected()
	OnDisconnected(reason domain.DisconnectReason)
	// OnData delivers one message from the custom data channel. The
	// handler owns payload.
	OnData(payload []byte)
}

// Remoting is the network layer linking the host to a remote player.
type Remoting interface {
	// Configure records the target parameters. It performs no I/O.
	Configure(cfg domain.SessionConfig) error

	// Start begins listening or connecting according to the configured
	// mode. Exactly one OnDisconnected follows every successful Start.
	// A synchronous failure is returned as *domain.ConnectionFailure and
	// produces no callback.
	Start(h RemotingHandler) error

	// Stop requests an orderly disconnect of the current attempt. The
	// handler later receives OnDisconnected(ReasonDisconnectRequest).
	Stop()

	// Close releases every connection-owned resource and waits for
	// in-flight teardown. No callbacks are delivered after it returns.
	Close() error

	// SendFrame hands one rendered camera image to the remote sink.
	SendFrame(f domain.FrameImage) error

	// SendData sends one message on the custom data channel.
	SendData(payload []byte) error
}
