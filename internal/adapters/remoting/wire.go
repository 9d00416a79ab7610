package remoting

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/bft-labs/holoship/internal/domain"
)

// ProtocolVersion is the wire protocol spoken by this package.
const ProtocolVersion uint32 = 1

type msgType uint8

const (
	msgHello msgType = iota + 1
	msgWelcome
	msgCameraAdded
	msgCameraRemoved
	msgPose
	msgLocatability
	msgInput
	msgFrame
	msgPing
	msgBye
	msgData
)

func (t msgType) String() string {
	switch t {
	case msgHello:
		return "hello"
	case msgWelcome:
		return "welcome"
	case msgCameraAdded:
		return "camera_added"
	case msgCameraRemoved:
		return "camera_removed"
	case msgPose:
		return "pose"
	case msgLocatability:
		return "locatability"
	case msgInput:
		return "input"
	case msgFrame:
		return "frame"
	case msgPing:
		return "ping"
	case msgBye:
		return "bye"
	case msgData:
		return "data"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Peer roles exchanged in the handshake.
const (
	roleHost   = "host"
	rolePlayer = "player"
)

// Welcome rejection reasons.
const (
	rejectVersion = "version"
	rejectRole    = "role"
)

type envelope struct {
	Type msgType         `cbor:"1,keyasint"`
	Body cbor.RawMessage `cbor:"2,keyasint,omitempty"`
}

type helloMsg struct {
	Version uint32 `cbor:"1,keyasint"`
	Role    string `cbor:"2,keyasint"`
	Name    string `cbor:"3,keyasint,omitempty"`
}

type welcomeMsg struct {
	Version  uint32 `cbor:"1,keyasint"`
	Accepted bool   `cbor:"2,keyasint"`
	Reason   string `cbor:"3,keyasint,omitempty"`
}

type cameraMsg struct {
	ID     uint32 `cbor:"1,keyasint"`
	Width  int    `cbor:"2,keyasint,omitempty"`
	Height int    `cbor:"3,keyasint,omitempty"`
}

type poseMsg struct {
	Position    [3]float32 `cbor:"1,keyasint"`
	Orientation [4]float32 `cbor:"2,keyasint"`
}

type locatabilityMsg struct {
	Value int `cbor:"1,keyasint"`
}

type frameMsg struct {
	Number      uint64      `cbor:"1,keyasint"`
	Camera      uint32      `cbor:"2,keyasint"`
	Width       int         `cbor:"3,keyasint"`
	Height      int         `cbor:"4,keyasint"`
	Stride      int         `cbor:"5,keyasint"`
	Compression Compression `cbor:"6,keyasint"`
	Size        int         `cbor:"7,keyasint"`
	Digest      [32]byte    `cbor:"8,keyasint"`
	Data        []byte      `cbor:"9,keyasint"`
	Depth       bool        `cbor:"10,keyasint,omitempty"`
}

// maxDataSize bounds one custom data channel message.
const maxDataSize = 64 << 10

type dataMsg struct {
	Payload []byte `cbor:"1,keyasint"`
}

// errDataTooLarge is returned for custom data above maxDataSize.
var errDataTooLarge = errors.New("custom data too large")

func decodeData(env envelope) ([]byte, error) {
	var m dataMsg
	if err := decodeBody(env, &m); err != nil {
		return nil, err
	}
	if len(m.Payload) > maxDataSize {
		return nil, fmt.Errorf("%w: %d bytes", errDataTooLarge, len(m.Payload))
	}
	return m.Payload, nil
}

type byeMsg struct {
	Reason string `cbor:"1,keyasint,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("remoting: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("remoting: CBOR decoder initialization failed: " + err.Error())
	}
}

func toPoseMsg(p domain.Pose) poseMsg {
	return poseMsg{Position: p.Position, Orientation: p.Orientation}
}

func (m poseMsg) pose() domain.Pose {
	return domain.Pose{Position: m.Position, Orientation: m.Orientation}
}

// encodeFrame compresses img and attaches the digest of its raw pixels.
func encodeFrame(img domain.FrameImage, c Compression) (frameMsg, error) {
	payload, used, err := compress(img.Pixels, c)
	if err != nil {
		return frameMsg{}, err
	}
	return frameMsg{
		Number:      img.Number,
		Camera:      uint32(img.Camera),
		Width:       img.Width,
		Height:      img.Height,
		Stride:      img.Stride,
		Compression: used,
		Size:        len(img.Pixels),
		Digest:      digest(img.Pixels),
		Data:        payload,
		Depth:       img.CommitDepth,
	}, nil
}

// maxFrameSize is the raw size of the largest RGBA8 camera image.
const maxFrameSize = domain.MaxViewportDim * domain.MaxViewportDim * 4

var (
	// errDigestMismatch is returned when a frame fails verification.
	errDigestMismatch = errors.New("frame digest mismatch")
	errFrameGeometry  = errors.New("frame geometry out of range")
)

// checkGeometry validates the peer's frame header before anything is
// allocated for it.
func (m frameMsg) checkGeometry() error {
	vp := domain.Viewport{Width: m.Width, Height: m.Height}
	switch {
	case vp.Empty() || vp.Oversized():
		return fmt.Errorf("%w: %dx%d", errFrameGeometry, m.Width, m.Height)
	case m.Stride < m.Width*4 || m.Stride > maxFrameSize:
		return fmt.Errorf("%w: stride %d for width %d", errFrameGeometry, m.Stride, m.Width)
	case m.Size < 0 || m.Size > maxFrameSize:
		return fmt.Errorf("%w: size %d", errFrameGeometry, m.Size)
	case int64(m.Size) != int64(m.Stride)*int64(m.Height):
		return fmt.Errorf("%w: size %d is not %d rows of %d bytes", errFrameGeometry, m.Size, m.Height, m.Stride)
	}
	return nil
}

func decodeFrame(m frameMsg) (domain.FrameImage, error) {
	if err := m.checkGeometry(); err != nil {
		return domain.FrameImage{}, err
	}
	pixels, err := decompress(m.Data, m.Compression, m.Size)
	if err != nil {
		return domain.FrameImage{}, err
	}
	if digest(pixels) != m.Digest {
		return domain.FrameImage{}, errDigestMismatch
	}
	return domain.FrameImage{
		Number: m.Number,
		Camera: domain.CameraID(m.Camera),
		Width:  m.Width,
		Height: m.Height,
		Stride: m.Stride,
		Pixels: pixels,

		CommitDepth: m.Depth,
	}, nil
}

// wireConn frames envelopes on a TCP connection. Writes are serialized;
// reads happen on a single goroutine.
type wireConn struct {
	conn net.Conn
	dec  *cbor.Decoder

	wmu          sync.Mutex
	enc          *cbor.Encoder
	writeTimeout time.Duration
}

func newWireConn(conn net.Conn, writeTimeout time.Duration) *wireConn {
	return &wireConn{
		conn:         conn,
		dec:          decMode.NewDecoder(conn),
		enc:          encMode.NewEncoder(conn),
		writeTimeout: writeTimeout,
	}
}

func (c *wireConn) send(t msgType, body any) error {
	env := envelope{Type: t}
	if body != nil {
		raw, err := encMode.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s: %w", t, err)
		}
		env.Body = raw
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if err := c.enc.Encode(env); err != nil {
		return fmt.Errorf("send %s: %w", t, err)
	}
	return nil
}

// goodbye sends bye within timeout. A pending write is cut short by the
// deadline.
func (c *wireConn) goodbye(reason string, timeout time.Duration) {
	_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
	_ = c.enc.Encode(envelope{Type: msgBye, Body: marshalBody(byeMsg{Reason: reason})})
}

func marshalBody(v any) cbor.RawMessage {
	raw, err := encMode.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}

// recv reads the next envelope. A zero timeout waits forever.
func (c *wireConn) recv(timeout time.Duration) (envelope, error) {
	if timeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	} else {
		_ = c.conn.SetReadDeadline(time.Time{})
	}
	var env envelope
	err := c.dec.Decode(&env)
	return env, err
}

func (c *wireConn) close() error {
	return c.conn.Close()
}

func decodeBody(env envelope, v any) error {
	if err := decMode.Unmarshal(env.Body, v); err != nil {
		return fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return nil
}

// classify maps a read error to a disconnect reason.
func classify(err error) domain.DisconnectReason {
	var ne net.Error
	switch {
	case errors.As(err, &ne) && ne.Timeout():
		return domain.ReasonNetworkTimeout
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, net.ErrClosed):
		return domain.ReasonConnectionLost
	case isSyntaxError(err):
		return domain.ReasonProtocolError
	default:
		var op *net.OpError
		if errors.As(err, &op) {
			return domain.ReasonConnectionLost
		}
		return domain.ReasonProtocolError
	}
}

func isSyntaxError(err error) bool {
	var syn *cbor.SyntaxError
	var sem *cbor.SemanticError
	var typ *cbor.UnmarshalTypeError
	return errors.As(err, &syn) || errors.As(err, &sem) || errors.As(err, &typ)
}

// handshake errors carry the disconnect reason for both ends.
type handshakeError struct {
	reason domain.DisconnectReason
	err    error
}

func (e *handshakeError) Error() string {
	if e.err == nil {
		return "handshake: " + e.reason.String()
	}
	return fmt.Sprintf("handshake: %s: %v", e.reason, e.err)
}

func (e *handshakeError) Unwrap() error {
	return e.err
}

func reasonOf(err error, fallback domain.DisconnectReason) domain.DisconnectReason {
	var he *handshakeError
	if errors.As(err, &he) {
		return he.reason
	}
	return fallback
}

// initiate runs the dialing side of the handshake.
func initiate(c *wireConn, role, name string, version uint32, timeout time.Duration) error {
	if err := c.send(msgHello, helloMsg{Version: version, Role: role, Name: name}); err != nil {
		return &handshakeError{reason: domain.ReasonHandshakeConnectionFailed, err: err}
	}
	env, err := c.recv(timeout)
	if err != nil {
		return &handshakeError{reason: domain.ReasonHandshakeFailed, err: err}
	}
	if env.Type != msgWelcome {
		return &handshakeError{reason: domain.ReasonProtocolError, err: fmt.Errorf("unexpected %s", env.Type)}
	}
	var w welcomeMsg
	if err := decodeBody(env, &w); err != nil {
		return &handshakeError{reason: domain.ReasonProtocolError, err: err}
	}
	if !w.Accepted {
		if w.Reason == rejectVersion {
			return &handshakeError{
				reason: domain.ReasonRemotingVersionMismatch,
				err:    fmt.Errorf("peer speaks version %d, local %d", w.Version, version),
			}
		}
		return &handshakeError{reason: domain.ReasonHandshakeFailed, err: fmt.Errorf("rejected: %s", w.Reason)}
	}
	return nil
}

// accept runs the listening side of the handshake and returns the peer
// name.
func accept(c *wireConn, role string, version uint32, timeout time.Duration) (string, error) {
	env, err := c.recv(timeout)
	if err != nil {
		return "", &handshakeError{reason: domain.ReasonHandshakeFailed, err: err}
	}
	if env.Type != msgHello {
		return "", &handshakeError{reason: domain.ReasonProtocolError, err: fmt.Errorf("unexpected %s", env.Type)}
	}
	var h helloMsg
	if err := decodeBody(env, &h); err != nil {
		return "", &handshakeError{reason: domain.ReasonProtocolError, err: err}
	}

	switch {
	case h.Version != version:
		_ = c.send(msgWelcome, welcomeMsg{Version: version, Reason: rejectVersion})
		return "", &handshakeError{
			reason: domain.ReasonRemotingVersionMismatch,
			err:    fmt.Errorf("peer speaks version %d, local %d", h.Version, version),
		}
	case h.Role == role:
		_ = c.send(msgWelcome, welcomeMsg{Version: version, Reason: rejectRole})
		return "", &handshakeError{reason: domain.ReasonHandshakeFailed, err: fmt.Errorf("peer has same role %q", role)}
	}

	if err := c.send(msgWelcome, welcomeMsg{Version: version, Accepted: true}); err != nil {
		return "", &handshakeError{reason: domain.ReasonHandshakeConnectionFailed, err: err}
	}
	return h.Name, nil
}
