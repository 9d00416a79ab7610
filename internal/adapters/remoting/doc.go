// Package remoting implements ports.Remoting over TCP.
//
// A session is a single TCP connection carrying a stream of CBOR
// envelopes. The dialing side sends hello and the accepting side answers
// welcome; a protocol version mismatch ends the attempt with
// RemotingVersionMismatch on both ends. After the handshake the player
// announces its cameras, poses and input, and the host streams rendered
// frames compressed with lz4 or zstd and tagged with a blake3 digest of
// the raw pixels. Either end may send opaque messages on the custom data
// channel.
//
// Camera viewports and frame headers from the peer are bounds-checked
// before anything is allocated for them; an out-of-range value ends the
// session with ProtocolError on the host and drops the frame on the
// player.
//
// Both ends arm a read deadline; a peer that stays silent for longer than
// the keepalive window ends the session with NetworkTimeout.
package remoting
