package graphics

import (
	"errors"
	"image"
	"sync"

	"github.com/gogpu/gg/render"

	"github.com/bft-labs/holoship/internal/domain"
	"github.com/bft-labs/holoship/internal/ports"
	"github.com/bft-labs/holoship/pkg/log"
)

// SpaceFunc creates the holographic space for a session.
type SpaceFunc func() (ports.HolographicSpace, error)

// HeadlessWindow is a ports.HostWindow without a screen. The swap chain
// keeps the last presented image and the title is forwarded to the logger.
type HeadlessWindow struct {
	spaces SpaceFunc
	logger log.Logger

	mu    sync.Mutex
	title string
	space ports.HolographicSpace
	swap  *SwapChain
}

var _ ports.HostWindow = (*HeadlessWindow)(nil)

// NewHeadlessWindow returns a window whose spaces come from spaces.
func NewHeadlessWindow(spaces SpaceFunc, logger log.Logger) *HeadlessWindow {
	return &HeadlessWindow{
		spaces: spaces,
		logger: log.OrNoop(logger).With(log.String("component", "window")),
	}
}

// CreateSwapChain creates the preview swap chain for dev.
func (w *HeadlessWindow) CreateSwapChain(dev ports.GraphicsDevice, desc ports.SwapChainDesc) (ports.SwapChain, error) {
	if dev == nil || dev.Lost() {
		return nil, domain.ErrDeviceLost
	}
	sc := &SwapChain{
		device: dev,
		desc:   desc,
		back:   render.NewPixmapTarget(desc.Width, desc.Height),
	}
	w.mu.Lock()
	w.swap = sc
	w.mu.Unlock()
	return sc, nil
}

// CreateHolographicSpace asks the space source for a new space.
func (w *HeadlessWindow) CreateHolographicSpace() (ports.HolographicSpace, error) {
	w.mu.Lock()
	spaces := w.spaces
	w.mu.Unlock()
	if spaces == nil {
		return nil, errors.New("no holographic space source")
	}
	s, err := spaces()
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	w.space = s
	w.mu.Unlock()
	return s, nil
}

// CreateInteractionManager returns the most recent space when it also
// reports input, and nil otherwise.
func (w *HeadlessWindow) CreateInteractionManager() (ports.InteractionManager, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if im, ok := w.space.(ports.InteractionManager); ok {
		return im, nil
	}
	return nil, nil
}

// SetTitle records the window title.
func (w *HeadlessWindow) SetTitle(title string) {
	w.mu.Lock()
	changed := w.title != title
	w.title = title
	w.mu.Unlock()
	if changed {
		w.logger.Info("window title", log.String("title", title))
	}
}

// Title returns the current window title.
func (w *HeadlessWindow) Title() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.title
}

// SwapChain returns the most recently created swap chain, or nil.
func (w *HeadlessWindow) SwapChain() *SwapChain {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.swap
}

// SwapChain is an in-memory back buffer. Present scales the source to the
// back buffer size.
type SwapChain struct {
	device ports.GraphicsDevice

	mu       sync.Mutex
	desc     ports.SwapChainDesc
	back     *render.PixmapTarget
	presents int
	closed   bool
}

var _ ports.SwapChain = (*SwapChain)(nil)

var errSwapChainClosed = errors.New("swap chain closed")

// Present copies src into the back buffer.
func (s *SwapChain) Present(src render.RenderTarget) error {
	if s.device.Lost() {
		return domain.ErrDeviceLost
	}
	pixels := src.Pixels()
	if pixels == nil {
		return errors.New("present: source has no CPU pixels")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSwapChainClosed
	}
	blit(s.back, pixels, src.Width(), src.Height(), src.Stride())
	s.presents++
	return nil
}

// Resize changes the back buffer size.
func (s *SwapChain) Resize(width, height int) error {
	if s.device.Lost() {
		return domain.ErrDeviceLost
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSwapChainClosed
	}
	s.desc.Width, s.desc.Height = width, height
	s.back.Resize(width, height)
	return nil
}

// Close releases the back buffer.
func (s *SwapChain) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Presents returns how many images have been presented.
func (s *SwapChain) Presents() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presents
}

// Size returns the back buffer size.
func (s *SwapChain) Size() (width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.desc.Width, s.desc.Height
}

// Snapshot returns a copy of the last presented image.
func (s *SwapChain) Snapshot() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.back.Image()
	out := image.NewRGBA(src.Rect)
	copy(out.Pix, src.Pix)
	return out
}

// blit scales src into dst with nearest-neighbour sampling.
func blit(dst *render.PixmapTarget, src []byte, sw, sh, sstride int) {
	dw, dh := dst.Width(), dst.Height()
	if dw == 0 || dh == 0 || sw == 0 || sh == 0 {
		return
	}
	out, dstride := dst.Pixels(), dst.Stride()
	for y := 0; y < dh; y++ {
		sy := y * sh / dh
		srow := src[sy*sstride:]
		drow := out[y*dstride:]
		for x := 0; x < dw; x++ {
			sx := x * sw / dw
			copy(drow[x*4:x*4+4], srow[sx*4:sx*4+4])
		}
	}
}
