package graphics

import (
	"math"
	"sync"
	"time"

	"github.com/bft-labs/holoship/internal/domain"
	"github.com/bft-labs/holoship/internal/ports"
)

// LocalCameraID is the camera a LocalSpace attaches.
const LocalCameraID domain.CameraID = 1

const localFramePeriod = time.Second / 60

type localCamera struct {
	viewport domain.Viewport
}

func (c localCamera) ID() domain.CameraID       { return LocalCameraID }
func (c localCamera) Viewport() domain.Viewport { return c.viewport }

// LocalSpace is a holographic space with a single camera that renders
// into the local window. It backs standalone mode.
type LocalSpace struct {
	camera localCamera
	now    func() time.Time

	mu        sync.Mutex
	observers map[int]ports.SpaceObserver
	presses   map[int]func(domain.Pose)
	nextID    int
	frame     uint64
	closed    bool
}

var (
	_ ports.HolographicSpace   = (*LocalSpace)(nil)
	_ ports.InteractionManager = (*LocalSpace)(nil)
)

// NewLocalSpace returns a space whose camera has the given viewport.
func NewLocalSpace(vp domain.Viewport) *LocalSpace {
	return &LocalSpace{
		camera:    localCamera{viewport: vp},
		now:       time.Now,
		observers: make(map[int]ports.SpaceObserver),
		presses:   make(map[int]func(domain.Pose)),
	}
}

// Subscribe registers o and reports the local camera.
func (s *LocalSpace) Subscribe(o ports.SpaceObserver) func() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return func() {}
	}
	id := s.nextID
	s.nextID++
	s.observers[id] = o
	s.mu.Unlock()

	o.CameraAdded(s.camera)
	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// NextFrame returns a frame with a slowly orbiting head pose.
func (s *LocalSpace) NextFrame() (domain.FrameTiming, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.FrameTiming{}, false
	}
	s.frame++
	angle := float64(s.frame) * 0.01
	half := angle / 2
	return domain.FrameTiming{
		Number:          s.frame,
		TargetTime:      s.now().Add(localFramePeriod),
		PredictedPeriod: localFramePeriod,
		Pose: domain.Pose{
			Position:    [3]float32{float32(math.Sin(angle)) * 0.1, 0, 0},
			Orientation: [4]float32{0, float32(math.Sin(half)) * 0.05, 0, 1},
		},
	}, true
}

// Locatability is always active for a local space.
func (s *LocalSpace) Locatability() domain.Locatability {
	return domain.LocatabilityPositionalTrackingActive
}

// OnPressed registers fn for Press calls.
func (s *LocalSpace) OnPressed(fn func(domain.Pose)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.presses[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.presses, id)
		s.mu.Unlock()
	}
}

// Press reports a local input press at pose.
func (s *LocalSpace) Press(pose domain.Pose) {
	s.mu.Lock()
	fns := make([]func(domain.Pose), 0, len(s.presses))
	for _, fn := range s.presses {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(pose)
	}
}

// Close detaches every observer and input callback.
func (s *LocalSpace) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.observers = make(map[int]ports.SpaceObserver)
	s.presses = make(map[int]func(domain.Pose))
	return nil
}
