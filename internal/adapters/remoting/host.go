package remoting

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/holoship/internal/domain"
	"github.com/bft-labs/holoship/internal/ports"
	"github.com/bft-labs/holoship/pkg/log"
)

// byeTimeout bounds the goodbye sent on Stop.
const byeTimeout = 250 * time.Millisecond

// ErrNotConnected is returned by SendFrame and SendData when no player is
// attached.
var ErrNotConnected = errors.New("remoting: not connected")

// Options tunes the transport.
type Options struct {
	// Compression is the frame payload codec.
	Compression Compression
	// KeepAlive is the ping interval. A peer silent for three intervals
	// is considered gone.
	KeepAlive        time.Duration
	HandshakeTimeout time.Duration
	DialTimeout      time.Duration
	// Version overrides ProtocolVersion. Zero means ProtocolVersion.
	Version uint32
	// Name is announced to the peer during the handshake.
	Name   string
	Logger log.Logger
}

// DefaultOptions returns the transport defaults.
func DefaultOptions() Options {
	return Options{
		Compression:      CompressionLZ4,
		KeepAlive:        5 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		DialTimeout:      5 * time.Second,
		Version:          ProtocolVersion,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.KeepAlive <= 0 {
		o.KeepAlive = d.KeepAlive
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = d.HandshakeTimeout
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = d.DialTimeout
	}
	if o.Version == 0 {
		o.Version = d.Version
	}
	o.Logger = log.OrNoop(o.Logger)
	return o
}

func (o Options) readTimeout() time.Duration {
	return 3 * o.KeepAlive
}

// Host is the host side of the transport. It implements ports.Remoting
// and hands out Spaces bound to the connected player.
type Host struct {
	opts   Options
	logger log.Logger

	mu      sync.Mutex
	cfg     domain.SessionConfig
	cur     *attempt
	addr    net.Addr
	peer    peerState
	spaces  map[*Space]struct{}
	started atomic.Uint64

	wg sync.WaitGroup
}

var _ ports.Remoting = (*Host)(nil)

// NewHost creates a transport host.
func NewHost(opts Options) *Host {
	opts = opts.withDefaults()
	return &Host{
		opts:   opts,
		logger: opts.Logger.With(log.String("component", "remoting")),
		peer:   newPeerState(),
		spaces: make(map[*Space]struct{}),
	}
}

// attempt is one Start: a listener or dialer plus the connection it
// produces.
type attempt struct {
	id      uint64
	handler ports.RemotingHandler
	mode    domain.Mode
	target  string
	ctx     context.Context
	cancel  context.CancelFunc

	stopping atomic.Bool
	silenced atomic.Bool

	mu sync.Mutex
	ln net.Listener
	wc *wireConn
}

// Configure records the target parameters.
func (h *Host) Configure(cfg domain.SessionConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	h.mu.Lock()
	h.cfg = cfg
	h.mu.Unlock()
	return nil
}

// Start begins one listen or connect attempt.
func (h *Host) Start(handler ports.RemotingHandler) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	cfg := h.cfg
	a := &attempt{
		id:      h.started.Add(1),
		handler: handler,
		mode:    cfg.Mode,
	}
	a.ctx, a.cancel = context.WithCancel(context.Background())

	switch cfg.Mode {
	case domain.ModeListen:
		a.target = cfg.ListenAddress()
		ln, err := net.Listen("tcp", a.target)
		if err != nil {
			a.cancel()
			h.logger.Warn("listen failed", log.String("address", a.target), log.Err(err))
			return &domain.ConnectionFailure{Reason: domain.ReasonHandshakePortBusy}
		}
		a.ln = ln
		h.addr = ln.Addr()
		h.logger.Info("listening",
			log.String("address", ln.Addr().String()),
			log.Int("transport_port", int(h.transportPortLocked())),
		)
	case domain.ModeConnect:
		a.target = cfg.DialAddress()
		h.logger.Info("connecting",
			log.String("address", a.target),
			log.Int("transport_port", int(h.transportPortLocked())),
		)
	default:
		a.cancel()
		return &domain.ConnectionFailure{Reason: domain.ReasonUnknown}
	}

	h.cur = a
	h.wg.Add(1)
	go h.run(a)
	return nil
}

// Stop ends the current attempt. The handler receives
// OnDisconnected(ReasonDisconnectRequest).
func (h *Host) Stop() {
	h.mu.Lock()
	a := h.cur
	h.mu.Unlock()
	if a != nil {
		a.stop()
	}
}

// Close stops the current attempt and waits for its goroutines. The
// handler receives no further callbacks. The Host may be started again.
func (h *Host) Close() error {
	h.mu.Lock()
	a := h.cur
	h.mu.Unlock()
	if a != nil {
		a.silenced.Store(true)
		a.stop()
	}
	h.wg.Wait()
	return nil
}

// SendFrame compresses and sends one image to the player.
func (h *Host) SendFrame(img domain.FrameImage) error {
	wc := h.connectedConn()
	if wc == nil {
		return ErrNotConnected
	}
	m, err := encodeFrame(img, h.opts.Compression)
	if err != nil {
		return err
	}
	return wc.send(msgFrame, m)
}

// SendData sends payload on the custom data channel.
func (h *Host) SendData(payload []byte) error {
	if len(payload) > maxDataSize {
		return fmt.Errorf("%w: %d bytes", errDataTooLarge, len(payload))
	}
	wc := h.connectedConn()
	if wc == nil {
		return ErrNotConnected
	}
	return wc.send(msgData, dataMsg{Payload: payload})
}

func (h *Host) connectedConn() *wireConn {
	h.mu.Lock()
	a := h.cur
	connected := h.peer.connected
	h.mu.Unlock()
	if a == nil || !connected {
		return nil
	}
	return a.conn()
}

// Addr returns the address of the most recent listener, or nil.
func (h *Host) Addr() net.Addr {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.addr
}

// TransportPort reports the transport port. Frames share the handshake
// connection, so an unset transport port reports the handshake port.
func (h *Host) TransportPort() uint16 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.transportPortLocked()
}

func (h *Host) transportPortLocked() uint16 {
	if h.cfg.TransportPort != 0 {
		return h.cfg.TransportPort
	}
	if h.addr != nil && h.cfg.Mode == domain.ModeListen {
		if _, p, err := net.SplitHostPort(h.addr.String()); err == nil {
			if n, err := strconv.ParseUint(p, 10, 16); err == nil {
				return uint16(n)
			}
		}
	}
	return h.cfg.Port
}

// NewSpace returns a holographic space fed by the connected player.
func (h *Host) NewSpace() *Space {
	s := &Space{
		host:      h,
		observers: make(map[int]ports.SpaceObserver),
		presses:   make(map[int]func(domain.Pose)),
	}
	h.mu.Lock()
	h.spaces[s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *Host) removeSpace(s *Space) {
	h.mu.Lock()
	delete(h.spaces, s)
	h.mu.Unlock()
}

func (h *Host) spaceList() []*Space {
	out := make([]*Space, 0, len(h.spaces))
	for s := range h.spaces {
		out = append(out, s)
	}
	return out
}

func (h *Host) peerCameras() []camera {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.peer.sortedCameras()
}

func (h *Host) peerPose() (bool, domain.Pose) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.peer.connected, h.peer.pose
}

func (h *Host) peerLocatability() domain.Locatability {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.peer.locatability
}

func (a *attempt) conn() *wireConn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.wc
}

func (a *attempt) setConn(wc *wireConn) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopping.Load() {
		return false
	}
	a.wc = wc
	return true
}

// stop tells the peer goodbye when possible and unblocks every pending
// accept, dial and read.
func (a *attempt) stop() {
	if a.stopping.Swap(true) {
		return
	}
	a.cancel()
	a.mu.Lock()
	ln, wc := a.ln, a.wc
	a.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}
	if wc != nil {
		wc.goodbye(domain.ReasonDisconnectRequest.String(), byeTimeout)
		_ = wc.close()
	}
}

func (h *Host) run(a *attempt) {
	defer h.wg.Done()
	logger := h.logger.With(log.Uint64("attempt", a.id))

	reason := h.session(a, logger)
	if a.stopping.Load() && reason != domain.ReasonPeerDisconnectRequest {
		reason = domain.ReasonDisconnectRequest
	}

	if wc := a.conn(); wc != nil {
		_ = wc.close()
	}
	if a.ln != nil {
		_ = a.ln.Close()
	}
	a.cancel()
	h.disconnectPeer()

	h.mu.Lock()
	if h.cur == a {
		h.cur = nil
	}
	h.mu.Unlock()

	logger.Info("session ended", log.Stringer("reason", reason))
	if !a.silenced.Load() {
		a.handler.OnDisconnected(reason)
	}
}

// session runs one attempt to completion and returns why it ended.
func (h *Host) session(a *attempt, logger log.Logger) domain.DisconnectReason {
	conn, reason := h.establish(a)
	if conn == nil {
		return reason
	}

	wc := newWireConn(conn, h.opts.HandshakeTimeout)
	if !a.setConn(wc) {
		_ = conn.Close()
		return domain.ReasonDisconnectRequest
	}

	var err error
	switch a.mode {
	case domain.ModeListen:
		var name string
		name, err = accept(wc, roleHost, h.opts.Version, h.opts.HandshakeTimeout)
		if err == nil {
			logger.Info("player connected", log.String("peer", conn.RemoteAddr().String()), log.String("name", name))
		}
	default:
		err = initiate(wc, roleHost, h.opts.Name, h.opts.Version, h.opts.HandshakeTimeout)
		if err == nil {
			logger.Info("connected to player", log.String("peer", conn.RemoteAddr().String()))
		}
	}
	if err != nil {
		logger.Warn("handshake failed", log.Err(err))
		return reasonOf(err, domain.ReasonHandshakeFailed)
	}

	h.mu.Lock()
	h.peer = newPeerState()
	h.peer.connected = true
	h.mu.Unlock()

	if a.silenced.Load() {
		return domain.ReasonDisconnectRequest
	}
	a.handler.OnConnected()

	done := make(chan struct{})
	defer close(done)
	go h.keepAlive(wc, done)

	return h.readLoop(a, wc, logger)
}

func (h *Host) establish(a *attempt) (net.Conn, domain.DisconnectReason) {
	if a.mode == domain.ModeListen {
		conn, err := a.ln.Accept()
		if err != nil {
			return nil, domain.ReasonDisconnectRequest
		}
		// One player per attempt.
		_ = a.ln.Close()
		return conn, domain.ReasonNone
	}

	d := net.Dialer{Timeout: h.opts.DialTimeout}
	conn, err := d.DialContext(a.ctx, "tcp", a.target)
	if err != nil {
		if a.stopping.Load() {
			return nil, domain.ReasonDisconnectRequest
		}
		h.logger.Warn("dial failed", log.String("address", a.target), log.Err(err))
		return nil, domain.ReasonHandshakeUnreachable
	}
	return conn, domain.ReasonNone
}

func (h *Host) keepAlive(wc *wireConn, done <-chan struct{}) {
	t := time.NewTicker(h.opts.KeepAlive)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			if err := wc.send(msgPing, nil); err != nil {
				return
			}
		}
	}
}

func (h *Host) readLoop(a *attempt, wc *wireConn, logger log.Logger) domain.DisconnectReason {
	for {
		env, err := wc.recv(h.opts.readTimeout())
		if err != nil {
			if a.stopping.Load() {
				return domain.ReasonDisconnectRequest
			}
			reason := classify(err)
			logger.Warn("connection read failed", log.Stringer("reason", reason), log.Err(err))
			return reason
		}
		if reason, done := h.dispatch(env, a.deliverData, logger); done {
			return reason
		}
	}
}

// deliverData hands custom data to the handler unless the attempt was
// silenced.
func (a *attempt) deliverData(payload []byte) {
	if !a.silenced.Load() {
		a.handler.OnData(payload)
	}
}

// dispatch applies one player message. done is true when the message
// ends the session.
func (h *Host) dispatch(env envelope, onData func([]byte), logger log.Logger) (domain.DisconnectReason, bool) {
	switch env.Type {
	case msgPing:
	case msgData:
		payload, err := decodeData(env)
		if err != nil {
			logger.Warn("bad custom data", log.Err(err))
			return domain.ReasonProtocolError, true
		}
		if onData != nil {
			onData(payload)
		}
	case msgBye:
		var m byeMsg
		_ = decodeBody(env, &m)
		logger.Info("player said goodbye", log.String("reason", m.Reason))
		return domain.ReasonPeerDisconnectRequest, true
	case msgCameraAdded:
		var m cameraMsg
		if err := decodeBody(env, &m); err != nil {
			logger.Warn("bad camera message", log.Err(err))
			return domain.ReasonProtocolError, true
		}
		vp := domain.Viewport{Width: m.Width, Height: m.Height}
		if vp.Empty() || vp.Oversized() {
			logger.Warn("camera viewport out of range",
				log.Uint64("camera", uint64(m.ID)),
				log.Int("width", m.Width),
				log.Int("height", m.Height),
			)
			return domain.ReasonProtocolError, true
		}
		h.addCamera(camera{id: domain.CameraID(m.ID), viewport: vp})
	case msgCameraRemoved:
		var m cameraMsg
		if err := decodeBody(env, &m); err != nil {
			logger.Warn("bad camera message", log.Err(err))
			return domain.ReasonProtocolError, true
		}
		h.removeCamera(domain.CameraID(m.ID))
	case msgPose:
		var m poseMsg
		if err := decodeBody(env, &m); err != nil {
			return domain.ReasonProtocolError, true
		}
		h.mu.Lock()
		h.peer.pose = m.pose()
		h.mu.Unlock()
	case msgLocatability:
		var m locatabilityMsg
		if err := decodeBody(env, &m); err != nil {
			return domain.ReasonProtocolError, true
		}
		h.setLocatability(domain.Locatability(m.Value))
	case msgInput:
		var m poseMsg
		if err := decodeBody(env, &m); err != nil {
			return domain.ReasonProtocolError, true
		}
		h.mu.Lock()
		spaces := h.spaceList()
		h.mu.Unlock()
		for _, s := range spaces {
			s.pressed(m.pose())
		}
	default:
		logger.Warn("unexpected message", log.Stringer("type", env.Type))
		return domain.ReasonProtocolError, true
	}
	return domain.ReasonNone, false
}

func (h *Host) addCamera(c camera) {
	h.mu.Lock()
	old, replaced := h.peer.cameras[c.id]
	h.peer.cameras[c.id] = c
	spaces := h.spaceList()
	h.mu.Unlock()

	for _, s := range spaces {
		if replaced {
			s.cameraRemoved(old)
		}
		s.cameraAdded(c)
	}
}

func (h *Host) removeCamera(id domain.CameraID) {
	h.mu.Lock()
	c, ok := h.peer.cameras[id]
	delete(h.peer.cameras, id)
	spaces := h.spaceList()
	h.mu.Unlock()
	if !ok {
		return
	}
	for _, s := range spaces {
		s.cameraRemoved(c)
	}
}

func (h *Host) setLocatability(l domain.Locatability) {
	h.mu.Lock()
	changed := h.peer.locatability != l
	h.peer.locatability = l
	spaces := h.spaceList()
	h.mu.Unlock()
	if !changed {
		return
	}
	for _, s := range spaces {
		s.locatabilityChanged(l)
	}
}

// disconnectPeer removes every player camera before the session is
// reported as ended.
func (h *Host) disconnectPeer() {
	h.mu.Lock()
	cams := h.peer.sortedCameras()
	wasLocatable := h.peer.locatability != domain.LocatabilityUnavailable
	h.peer = newPeerState()
	spaces := h.spaceList()
	h.mu.Unlock()

	for _, s := range spaces {
		for _, c := range cams {
			s.cameraRemoved(c)
		}
		if wasLocatable {
			s.locatabilityChanged(domain.LocatabilityUnavailable)
		}
	}
}
