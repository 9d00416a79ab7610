package app

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/bft-labs/holoship/internal/domain"
	"github.com/bft-labs/holoship/internal/ports"
	"github.com/bft-labs/holoship/pkg/log"
)

// cameraEntry holds the per-camera render target. Rendering and release
// both take the entry lock, so once release returns no render into the
// entry can start or still be running.
type cameraEntry struct {
	id       domain.CameraID
	seq      uint64
	viewport domain.Viewport

	mu       sync.Mutex
	target   ports.RenderTarget
	gen      *Generation
	released bool
}

// attach installs a finished target. It reports false when the entry was
// released in the meantime; the caller then owns the target.
func (e *cameraEntry) attach(t ports.RenderTarget, gen *Generation) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released {
		return false
	}
	e.target = t
	e.gen = gen
	return true
}

// render calls fn with the entry's target if it is ready and belongs to
// gen. It reports whether fn ran.
func (e *cameraEntry) render(gen *Generation, fn func(ports.RenderTarget) error) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released || e.target == nil || e.gen != gen {
		return false, nil
	}
	return true, fn(e.target)
}

func (e *cameraEntry) ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.released && e.target != nil
}

func (e *cameraEntry) release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released {
		return
	}
	e.released = true
	if e.target != nil {
		e.target.Destroy()
		e.target = nil
	}
	e.gen = nil
}

// cameraSet tracks the cameras attached to the holographic space and
// their render targets. It is owned by the session processor.
type cameraSet struct {
	entries  map[domain.CameraID]*cameraEntry
	attached map[domain.CameraID]ports.Camera
	seq      uint64

	devices *DeviceResources
	post    func(event) bool
	logger  log.Logger
}

func newCameraSet(devices *DeviceResources, post func(event) bool, logger log.Logger) *cameraSet {
	return &cameraSet{
		entries:  make(map[domain.CameraID]*cameraEntry),
		attached: make(map[domain.CameraID]ports.Camera),
		devices:  devices,
		post:     post,
		logger:   logger,
	}
}

// added records c and starts building its target in the background. A
// reused ID replaces the previous entry.
func (s *cameraSet) added(c ports.Camera) {
	id := c.ID()
	if old, ok := s.entries[id]; ok {
		old.release()
		delete(s.entries, id)
	}
	s.attached[id] = c

	s.seq++
	entry := &cameraEntry{id: id, seq: s.seq, viewport: c.Viewport()}
	s.entries[id] = entry
	s.logger.Debug("camera added",
		log.Int("camera", int(id)),
		log.Int("width", entry.viewport.Width),
		log.Int("height", entry.viewport.Height),
	)

	gen, ok := s.devices.Current()
	if !ok {
		s.logger.Debug("no device, camera target deferred", log.Int("camera", int(id)))
		return
	}
	s.build(entry, gen)
}

func (s *cameraSet) build(entry *cameraEntry, gen *Generation) {
	desc := ports.TargetDesc{
		Label:    fmt.Sprintf("camera-%d", entry.id),
		Viewport: entry.viewport,
		Format:   gputypes.TextureFormatRGBA8Unorm,
	}
	id, seq := entry.id, entry.seq
	go func() {
		target, err := gen.CreateRenderTarget(desc)
		ev := evCameraReady{id: id, seq: seq, gen: gen, target: target, err: err}
		if !s.post(ev) && target != nil {
			target.Destroy()
		}
	}()
}

// ready installs a finished target. It reports whether the camera became
// render-eligible.
func (s *cameraSet) ready(ev evCameraReady) bool {
	entry, ok := s.entries[ev.id]
	if !ok || entry.seq != ev.seq || !ev.gen.Valid() {
		if ev.target != nil {
			ev.target.Destroy()
		}
		return false
	}
	if ev.err != nil {
		s.logger.Error("camera target build failed",
			log.Int("camera", int(ev.id)),
			log.Err(ev.err),
		)
		return false
	}
	if !entry.attach(ev.target, ev.gen) {
		ev.target.Destroy()
		return false
	}
	s.logger.Debug("camera ready", log.Int("camera", int(ev.id)))
	return true
}

// removed releases the camera's resources before returning.
func (s *cameraSet) removed(c ports.Camera) {
	id := c.ID()
	delete(s.attached, id)
	entry, ok := s.entries[id]
	if !ok {
		return
	}
	entry.release()
	delete(s.entries, id)
	s.logger.Debug("camera removed", log.Int("camera", int(id)))
}

// invalidateAll releases every entry after a device loss. The attached
// set survives so rebuildAll can recreate it.
func (s *cameraSet) invalidateAll() {
	for id, entry := range s.entries {
		entry.release()
		delete(s.entries, id)
	}
}

// rebuildAll discards every entry and treats each attached camera as
// freshly added.
func (s *cameraSet) rebuildAll() {
	s.invalidateAll()
	for _, id := range s.attachedIDs() {
		s.added(s.attached[id])
	}
}

// clear drops everything, including the attached set.
func (s *cameraSet) clear() {
	s.invalidateAll()
	for id := range s.attached {
		delete(s.attached, id)
	}
}

// snapshot returns the entries ordered by camera ID.
func (s *cameraSet) snapshot() []*cameraEntry {
	out := make([]*cameraEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// attachedIDs returns the attached camera IDs in ascending order.
func (s *cameraSet) attachedIDs() []domain.CameraID {
	ids := make([]domain.CameraID, 0, len(s.attached))
	for id := range s.attached {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
