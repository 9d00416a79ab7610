package remoting

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/bft-labs/holoship/internal/domain"
	"github.com/bft-labs/holoship/pkg/log"
)

// Player is the headset side of a session. It announces cameras, poses
// and input, and receives rendered frames.
type Player struct {
	wc     *wireConn
	opts   Options
	logger log.Logger
	onData func([]byte)

	closed  atomic.Bool
	frames  atomic.Uint64
	corrupt atomic.Uint64
}

// Dial connects to a host that is listening.
func Dial(ctx context.Context, addr string, opts Options) (*Player, error) {
	opts = opts.withDefaults()
	d := net.Dialer{Timeout: opts.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", &domain.ConnectionFailure{Reason: domain.ReasonHandshakeUnreachable}, err)
	}
	p := newPlayer(conn, opts)
	if err := initiate(p.wc, rolePlayer, opts.Name, opts.Version, opts.HandshakeTimeout); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %v", &domain.ConnectionFailure{Reason: reasonOf(err, domain.ReasonHandshakeFailed)}, err)
	}
	p.logger.Info("connected to host", log.String("address", addr))
	return p, nil
}

// Accept waits on ln for a host in connect mode.
func Accept(ctx context.Context, ln net.Listener, opts Options) (*Player, error) {
	opts = opts.withDefaults()
	if tl, ok := ln.(*net.TCPListener); ok {
		stop := context.AfterFunc(ctx, func() { _ = tl.SetDeadline(time.Now()) })
		defer func() {
			stop()
			_ = tl.SetDeadline(time.Time{})
		}()
	}
	conn, err := ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("accept: %w", err)
	}
	p := newPlayer(conn, opts)
	name, err := accept(p.wc, rolePlayer, opts.Version, opts.HandshakeTimeout)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %v", &domain.ConnectionFailure{Reason: reasonOf(err, domain.ReasonHandshakeFailed)}, err)
	}
	p.logger.Info("host connected", log.String("peer", conn.RemoteAddr().String()), log.String("name", name))
	return p, nil
}

func newPlayer(conn net.Conn, opts Options) *Player {
	return &Player{
		wc:     newWireConn(conn, opts.HandshakeTimeout),
		opts:   opts,
		logger: opts.Logger.With(log.String("component", "player")),
	}
}

// AddCamera announces a camera to the host.
func (p *Player) AddCamera(id domain.CameraID, vp domain.Viewport) error {
	return p.wc.send(msgCameraAdded, cameraMsg{ID: uint32(id), Width: vp.Width, Height: vp.Height})
}

// RemoveCamera withdraws a camera.
func (p *Player) RemoveCamera(id domain.CameraID) error {
	return p.wc.send(msgCameraRemoved, cameraMsg{ID: uint32(id)})
}

// SendPose reports the current head pose.
func (p *Player) SendPose(pose domain.Pose) error {
	return p.wc.send(msgPose, toPoseMsg(pose))
}

// SendLocatability reports the tracking status.
func (p *Player) SendLocatability(l domain.Locatability) error {
	return p.wc.send(msgLocatability, locatabilityMsg{Value: int(l)})
}

// Press reports a spatial input press at pose.
func (p *Player) Press(pose domain.Pose) error {
	return p.wc.send(msgInput, toPoseMsg(pose))
}

// SendData sends payload on the custom data channel.
func (p *Player) SendData(payload []byte) error {
	if len(payload) > maxDataSize {
		return fmt.Errorf("%w: %d bytes", errDataTooLarge, len(payload))
	}
	return p.wc.send(msgData, dataMsg{Payload: payload})
}

// OnData sets the custom data handler. It must be set before Run and runs
// on the Run goroutine.
func (p *Player) OnData(fn func(payload []byte)) {
	p.onData = fn
}

// Frames returns the number of verified frames received.
func (p *Player) Frames() uint64 { return p.frames.Load() }

// Corrupt returns the number of frames dropped by verification.
func (p *Player) Corrupt() uint64 { return p.corrupt.Load() }

// Run receives frames until the host says goodbye, ctx is done or the
// connection fails. fn runs on the calling goroutine. Run returns nil
// for an orderly end; failures wrap *domain.ConnectionFailure.
func (p *Player) Run(ctx context.Context, fn func(domain.FrameImage)) error {
	stop := context.AfterFunc(ctx, func() { _ = p.Close() })
	defer stop()

	done := make(chan struct{})
	defer close(done)
	go p.keepAlive(done)

	for {
		env, err := p.wc.recv(p.opts.readTimeout())
		if err != nil {
			if ctx.Err() != nil || p.closed.Load() {
				return nil
			}
			return fmt.Errorf("%w: %v", &domain.ConnectionFailure{Reason: classify(err)}, err)
		}
		switch env.Type {
		case msgPing:
		case msgBye:
			var m byeMsg
			_ = decodeBody(env, &m)
			p.logger.Info("host said goodbye", log.String("reason", m.Reason))
			_ = p.wc.close()
			return nil
		case msgFrame:
			var m frameMsg
			if err := decodeBody(env, &m); err != nil {
				return fmt.Errorf("%w: %v", &domain.ConnectionFailure{Reason: domain.ReasonProtocolError}, err)
			}
			img, err := decodeFrame(m)
			if err != nil {
				p.corrupt.Add(1)
				p.logger.Warn("dropping frame",
					log.Uint64("frame", m.Number),
					log.Int("camera", int(m.Camera)),
					log.Err(err),
				)
				continue
			}
			p.frames.Add(1)
			if fn != nil {
				fn(img)
			}
		case msgData:
			payload, err := decodeData(env)
			if err != nil {
				return fmt.Errorf("%w: %v", &domain.ConnectionFailure{Reason: domain.ReasonProtocolError}, err)
			}
			if p.onData != nil {
				p.onData(payload)
			}
		default:
			return fmt.Errorf("%w: unexpected %s", &domain.ConnectionFailure{Reason: domain.ReasonProtocolError}, env.Type)
		}
	}
}

func (p *Player) keepAlive(done <-chan struct{}) {
	t := time.NewTicker(p.opts.KeepAlive)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			if err := p.wc.send(msgPing, nil); err != nil {
				return
			}
		}
	}
}

// Close says goodbye and closes the connection.
func (p *Player) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	p.wc.goodbye(domain.ReasonPeerDisconnectRequest.String(), byeTimeout)
	err := p.wc.close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
