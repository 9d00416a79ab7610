package app

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/bft-labs/holoship/internal/domain"
	"github.com/bft-labs/holoship/internal/ports"
	"github.com/bft-labs/holoship/pkg/log"
)

const (
	defaultPreviewWidth  = 1280
	defaultPreviewHeight = 720
	swapChainBuffers     = 2
	fpsWindow            = time.Second
)

// Frame is one predicted frame together with the state it was predicted
// against. The same Frame feeds both the network sink and the preview.
type Frame struct {
	Timing domain.FrameTiming
	state  *hostState
}

// frameLoop drives update and render on the render goroutine. The swap
// chain is only touched with the device lock held.
type frameLoop struct {
	h *Host

	swap    ports.SwapChain
	swapGen uint64
	swapW   int
	swapH   int

	sizeMu sync.Mutex
	width  int
	height int

	count       int
	windowStart time.Time
	lastFPS     atomic.Uint32
	now         func() time.Time

	// Custom data heartbeat, owned by the render goroutine.
	dataSent time.Time
}

func newFrameLoop(h *Host, width, height int) *frameLoop {
	if width <= 0 || height <= 0 {
		width, height = defaultPreviewWidth, defaultPreviewHeight
	}
	return &frameLoop{
		h:      h,
		width:  width,
		height: height,
		now:    time.Now,
	}
}

func (l *frameLoop) resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	l.sizeMu.Lock()
	l.width, l.height = width, height
	l.sizeMu.Unlock()
	l.h.logger.Debug("window resized", log.Int("width", width), log.Int("height", height))
}

func (l *frameLoop) size() (int, int) {
	l.sizeMu.Lock()
	defer l.sizeMu.Unlock()
	return l.width, l.height
}

func (l *frameLoop) fps() uint32 {
	if l == nil {
		return 0
	}
	return l.lastFPS.Load()
}

// Update predicts the next frame and advances content. ok is false when
// there is nothing to render this tick.
func (h *Host) Update() (*Frame, bool) {
	st := h.state.Load()
	h.frames.heartbeat(st)
	if st.space == nil || !st.locatability.Renderable() {
		return nil, false
	}
	timing, ok := st.space.NextFrame()
	if !ok {
		return nil, false
	}
	for _, c := range h.cfg.Content {
		c.Update(timing)
	}
	return &Frame{Timing: timing, state: st}, true
}

// Render draws f into every ready camera and presents it. A lost device
// is handled in place and rendering resumes after it is restored.
func (h *Host) Render(f *Frame) error {
	if f == nil {
		return nil
	}
	err := h.devices.Present(func(gen *Generation) error {
		return h.frames.render(gen, f)
	})
	switch {
	case err == nil:
		h.frames.tick()
		return nil
	case errors.Is(err, domain.ErrDeviceLost):
		h.devices.HandleDeviceLost()
		return nil
	case errors.Is(err, domain.ErrDeviceUnavailable):
		return nil
	default:
		return err
	}
}

// Tick runs one Update and Render.
func (h *Host) Tick() error {
	f, ok := h.Update()
	if !ok {
		h.frames.tickIdle()
		return nil
	}
	return h.Render(f)
}

func (l *frameLoop) render(gen *Generation, f *Frame) error {
	st := f.state
	connected := st.phase == domain.PhaseConnected
	local := !connected || l.h.preview.Load()
	depth := l.h.devices.depthCommitFor(gen)
	presented := false

	for _, e := range st.cameras {
		id, vp := e.id, e.viewport
		_, err := e.render(gen, func(t ports.RenderTarget) error {
			b := ports.Binding{Camera: id, Target: t, Viewport: vp, Timing: f.Timing, CommitDepth: depth}
			for _, c := range l.h.cfg.Content {
				if err := c.Render(b); err != nil {
					return err
				}
			}
			if connected {
				l.send(f, b)
			}
			if local && !presented {
				if err := l.present(gen, t); err != nil {
					return err
				}
				presented = true
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (l *frameLoop) send(f *Frame, b ports.Binding) {
	remoting := l.h.cfg.Remoting
	if remoting == nil {
		return
	}
	t := b.Target
	pixels := t.Pixels()
	if pixels == nil {
		return
	}
	img := domain.FrameImage{
		Number:      f.Timing.Number,
		Camera:      b.Camera,
		Width:       t.Width(),
		Height:      t.Height(),
		Stride:      t.Stride(),
		Pixels:      append([]byte(nil), pixels...),
		CommitDepth: b.CommitDepth,
	}
	if err := remoting.SendFrame(img); err != nil {
		l.h.logger.Debug("frame not sent",
			log.Uint64("frame", f.Timing.Number),
			log.Int("camera", int(b.Camera)),
			log.Err(err),
		)
	}
}

// customDataPayload is the heartbeat sent on the custom data channel.
var customDataPayload = []byte{1}

// heartbeat sends customDataPayload once per DataInterval while connected.
// The interval restarts whenever a tick sees the session not connected.
func (l *frameLoop) heartbeat(st *hostState) {
	remoting := l.h.cfg.Remoting
	if st.phase != domain.PhaseConnected || remoting == nil {
		l.dataSent = time.Time{}
		return
	}
	now := l.now()
	if l.dataSent.IsZero() {
		l.dataSent = now
		return
	}
	if now.Sub(l.dataSent) < l.h.cfg.DataInterval {
		return
	}
	l.dataSent = now
	if err := remoting.SendData(customDataPayload); err != nil {
		l.h.logger.Debug("custom data not sent", log.Err(err))
	}
}

func (l *frameLoop) present(gen *Generation, t ports.RenderTarget) error {
	width, height := l.size()
	if l.swap == nil || l.swapGen != gen.ID() {
		l.release()
		dev, err := gen.Device()
		if err != nil {
			return err
		}
		swap, err := l.h.cfg.Window.CreateSwapChain(dev, ports.SwapChainDesc{
			Width:       width,
			Height:      height,
			Format:      gputypes.TextureFormatRGBA8Unorm,
			BufferCount: swapChainBuffers,
		})
		if err != nil {
			return err
		}
		l.swap, l.swapGen, l.swapW, l.swapH = swap, gen.ID(), width, height
	} else if width != l.swapW || height != l.swapH {
		if err := l.swap.Resize(width, height); err != nil {
			return err
		}
		l.swapW, l.swapH = width, height
	}
	return l.swap.Present(t)
}

// release drops the swap chain. Called with the device lock held.
func (l *frameLoop) release() {
	if l.swap == nil {
		return
	}
	if err := l.swap.Close(); err != nil {
		l.h.logger.Debug("closing swap chain", log.Err(err))
	}
	l.swap = nil
}

func (l *frameLoop) tick() {
	l.count++
	l.tickIdle()
}

// tickIdle closes the FPS window once a second has passed.
func (l *frameLoop) tickIdle() {
	now := l.now()
	if l.windowStart.IsZero() {
		l.windowStart = now
		l.count = 0
		return
	}
	elapsed := now.Sub(l.windowStart)
	if elapsed < fpsWindow {
		return
	}
	fps := float64(l.count) / elapsed.Seconds()
	l.lastFPS.Store(uint32(fps + 0.5))
	l.count = 0
	l.windowStart = now
	l.h.refreshTitle()
}
