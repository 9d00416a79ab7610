package remoting

import (
	"sort"
	"sync"
	"time"

	"github.com/bft-labs/holoship/internal/domain"
	"github.com/bft-labs/holoship/internal/ports"
)

// framePeriod is the frame interval predicted for remote players.
const framePeriod = time.Second / 60

type camera struct {
	id       domain.CameraID
	viewport domain.Viewport
}

func (c camera) ID() domain.CameraID       { return c.id }
func (c camera) Viewport() domain.Viewport { return c.viewport }

// peerState is what the connected player has announced so far.
type peerState struct {
	connected    bool
	cameras      map[domain.CameraID]camera
	locatability domain.Locatability
	pose         domain.Pose
}

func newPeerState() peerState {
	return peerState{cameras: make(map[domain.CameraID]camera)}
}

func (p *peerState) sortedCameras() []camera {
	out := make([]camera, 0, len(p.cameras))
	for _, c := range p.cameras {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Space exposes the cameras of the connected player as a holographic
// space. It also serves as the interaction manager for player input.
type Space struct {
	host *Host

	mu        sync.Mutex
	observers map[int]ports.SpaceObserver
	presses   map[int]func(domain.Pose)
	nextID    int
	frame     uint64
	closed    bool
}

var (
	_ ports.HolographicSpace   = (*Space)(nil)
	_ ports.InteractionManager = (*Space)(nil)
)

// Subscribe registers o and replays the cameras the player has already
// announced.
func (s *Space) Subscribe(o ports.SpaceObserver) func() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return func() {}
	}
	id := s.nextID
	s.nextID++
	s.observers[id] = o
	s.mu.Unlock()

	for _, c := range s.host.peerCameras() {
		if !s.subscribed(id) {
			break
		}
		o.CameraAdded(c)
	}

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *Space) subscribed(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.observers[id]
	return ok
}

// NextFrame predicts a frame while a player is connected.
func (s *Space) NextFrame() (domain.FrameTiming, bool) {
	connected, pose := s.host.peerPose()
	if !connected {
		return domain.FrameTiming{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.FrameTiming{}, false
	}
	s.frame++
	return domain.FrameTiming{
		Number:          s.frame,
		TargetTime:      time.Now().Add(framePeriod),
		PredictedPeriod: framePeriod,
		Pose:            pose,
	}, true
}

// Locatability returns the tracking status last reported by the player.
func (s *Space) Locatability() domain.Locatability {
	return s.host.peerLocatability()
}

// OnPressed registers fn for player press input.
func (s *Space) OnPressed(fn func(domain.Pose)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return func() {}
	}
	id := s.nextID
	s.nextID++
	s.presses[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.presses, id)
		s.mu.Unlock()
	}
}

// Close detaches the space from the transport. Callbacks already in
// progress are not waited for.
func (s *Space) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.observers = make(map[int]ports.SpaceObserver)
	s.presses = make(map[int]func(domain.Pose))
	s.mu.Unlock()

	s.host.removeSpace(s)
	return nil
}

func (s *Space) snapshotObservers() []ports.SpaceObserver {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]ports.SpaceObserver, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.observers[id])
	}
	return out
}

func (s *Space) cameraAdded(c camera) {
	for _, o := range s.snapshotObservers() {
		o.CameraAdded(c)
	}
}

func (s *Space) cameraRemoved(c camera) {
	for _, o := range s.snapshotObservers() {
		o.CameraRemoved(c)
	}
}

func (s *Space) locatabilityChanged(l domain.Locatability) {
	for _, o := range s.snapshotObservers() {
		o.LocatabilityChanged(l)
	}
}

func (s *Space) pressed(p domain.Pose) {
	s.mu.Lock()
	fns := make([]func(domain.Pose), 0, len(s.presses))
	for _, fn := range s.presses {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(p)
	}
}
