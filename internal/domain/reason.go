package domain

// DisconnectReason classifies why a session ended or failed to start.
type DisconnectReason int

const (
	ReasonNone DisconnectReason = iota
	ReasonUnknown
	ReasonNoServerCertificate
	ReasonHandshakePortBusy
	ReasonHandshakeUnreachable
	ReasonHandshakeConnectionFailed
	ReasonAuthenticationFailed
	ReasonRemotingVersionMismatch
	ReasonIncompatibleTransportProtocols
	ReasonHandshakeFailed
	ReasonTransportPortBusy
	ReasonTransportUnreachable
	ReasonTransportConnectionFailed
	ReasonProtocolVersionMismatch
	ReasonProtocolError
	ReasonVideoCodecNotAvailable
	ReasonCanceled
	ReasonConnectionLost
	ReasonDeviceLost
	ReasonDisconnectRequest
	ReasonNetworkTimeout
	ReasonPeerDisconnectRequest
)

var reasonNames = map[DisconnectReason]string{
	ReasonNone:                           "None",
	ReasonUnknown:                        "Unknown",
	ReasonNoServerCertificate:            "NoServerCertificate",
	ReasonHandshakePortBusy:              "HandshakePortBusy",
	ReasonHandshakeUnreachable:           "HandshakeUnreachable",
	ReasonHandshakeConnectionFailed:      "HandshakeConnectionFailed",
	ReasonAuthenticationFailed:           "AuthenticationFailed",
	ReasonRemotingVersionMismatch:        "RemotingVersionMismatch",
	ReasonIncompatibleTransportProtocols: "IncompatibleTransportProtocols",
	ReasonHandshakeFailed:                "HandshakeFailed",
	ReasonTransportPortBusy:              "TransportPortBusy",
	ReasonTransportUnreachable:           "TransportUnreachable",
	ReasonTransportConnectionFailed:      "TransportConnectionFailed",
	ReasonProtocolVersionMismatch:        "ProtocolVersionMismatch",
	ReasonProtocolError:                  "ProtocolError",
	ReasonVideoCodecNotAvailable:         "VideoCodecNotAvailable",
	ReasonCanceled:                       "Canceled",
	ReasonConnectionLost:                 "ConnectionLost",
	ReasonDeviceLost:                     "DeviceLost",
	ReasonDisconnectRequest:              "DisconnectRequest",
	ReasonNetworkTimeout:                 "NetworkTimeout",
	ReasonPeerDisconnectRequest:          "PeerDisconnectRequest",
}

func (r DisconnectReason) String() string {
	if s, ok := reasonNames[r]; ok {
		return s
	}
	return "Unknown"
}

// Recoverable reports whether the failure is transient and warrants an
// automatic retry. Version mismatches and protocol errors are not.
func (r DisconnectReason) Recoverable() bool {
	switch r {
	case ReasonHandshakeUnreachable,
		ReasonTransportUnreachable,
		ReasonConnectionLost,
		ReasonNetworkTimeout:
		return true
	default:
		return false
	}
}

// Normal reports whether the reason is an orderly close that should not be
// surfaced to the user as a failure.
func (r DisconnectReason) Normal() bool {
	return r == ReasonNone || r == ReasonDisconnectRequest || r == ReasonPeerDisconnectRequest
}
