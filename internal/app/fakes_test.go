package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gogpu/gg/render"

	"github.com/bft-labs/holoship/internal/domain"
	"github.com/bft-labs/holoship/internal/ports"
	"github.com/bft-labs/holoship/pkg/log"
)

// mockObserver records host events for testing.
type mockObserver struct {
	mu       sync.Mutex
	phases   []phaseChange
	ready    []domain.CameraID
	failures []domain.DisconnectReason
	retrying []bool
	data     [][]byte
}

type phaseChange struct {
	previous domain.Phase
	current  domain.Phase
	reason   string
}

func (m *mockObserver) OnPhaseChange(previous, current domain.Phase, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phases = append(m.phases, phaseChange{previous, current, reason})
}

func (m *mockObserver) OnCameraReady(id domain.CameraID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = append(m.ready, id)
}

func (m *mockObserver) OnConnectionFailure(reason domain.DisconnectReason, retrying bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, reason)
	m.retrying = append(m.retrying, retrying)
}

func (m *mockObserver) OnData(payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append(m.data, payload)
}

func (m *mockObserver) Data() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte{}, m.data...)
}

// Failures returns the reported failures and their retrying flags.
func (m *mockObserver) Failures() ([]domain.DisconnectReason, []bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.DisconnectReason{}, m.failures...), append([]bool{}, m.retrying...)
}

func (m *mockObserver) Phases() []phaseChange {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]phaseChange{}, m.phases...)
}

func (m *mockObserver) Ready() []domain.CameraID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.CameraID{}, m.ready...)
}

// mockRemoting records transport calls and lets tests drive callbacks.
type mockRemoting struct {
	mu           sync.Mutex
	cfg          domain.SessionConfig
	handlers     []ports.RemotingHandler
	starts       int
	stops        int
	closes       int
	startErr     error
	frames       []domain.FrameImage
	data         [][]byte
	reportOnStop bool
}

func (m *mockRemoting) Configure(cfg domain.SessionConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
	return nil
}

func (m *mockRemoting) Start(h ports.RemotingHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
	if m.startErr != nil {
		return m.startErr
	}
	m.handlers = append(m.handlers, h)
	return nil
}

func (m *mockRemoting) Stop() {
	m.mu.Lock()
	m.stops++
	h := m.lastLocked()
	report := m.reportOnStop
	m.mu.Unlock()
	if report && h != nil {
		h.OnDisconnected(domain.ReasonDisconnectRequest)
	}
}

func (m *mockRemoting) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	return nil
}

func (m *mockRemoting) SendFrame(f domain.FrameImage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = append(m.frames, f)
	return nil
}

func (m *mockRemoting) SendData(payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append(m.data, append([]byte(nil), payload...))
	return nil
}

func (m *mockRemoting) Data() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte{}, m.data...)
}

func (m *mockRemoting) lastLocked() ports.RemotingHandler {
	if len(m.handlers) == 0 {
		return nil
	}
	return m.handlers[len(m.handlers)-1]
}

// Handler returns the handler passed to the n-th successful Start.
func (m *mockRemoting) Handler(n int) ports.RemotingHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handlers[n]
}

func (m *mockRemoting) Last() ports.RemotingHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastLocked()
}

func (m *mockRemoting) Counts() (starts, stops, closes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts, m.stops, m.closes
}

func (m *mockRemoting) Frames() []domain.FrameImage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.FrameImage{}, m.frames...)
}

type mockCamera struct {
	id domain.CameraID
	vp domain.Viewport
}

func (c mockCamera) ID() domain.CameraID       { return c.id }
func (c mockCamera) Viewport() domain.Viewport { return c.vp }

func newCamera(id domain.CameraID) mockCamera {
	return mockCamera{id: id, vp: domain.Viewport{Width: 8, Height: 8}}
}

// mockSpace is a holographic space driven by the test.
type mockSpace struct {
	mu       sync.Mutex
	observer ports.SpaceObserver
	cameras  map[domain.CameraID]ports.Camera
	loc      domain.Locatability
	frame    uint64
	closed   bool
}

func newMockSpace() *mockSpace {
	return &mockSpace{
		cameras: make(map[domain.CameraID]ports.Camera),
		loc:     domain.LocatabilityPositionalTrackingActive,
	}
}

func (s *mockSpace) Subscribe(o ports.SpaceObserver) func() {
	s.mu.Lock()
	s.observer = o
	cams := make([]ports.Camera, 0, len(s.cameras))
	for _, c := range s.cameras {
		cams = append(cams, c)
	}
	s.mu.Unlock()
	for _, c := range cams {
		o.CameraAdded(c)
	}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.observer == o {
			s.observer = nil
		}
	}
}

func (s *mockSpace) NextFrame() (domain.FrameTiming, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame++
	return domain.FrameTiming{Number: s.frame, TargetTime: time.Now(), PredictedPeriod: 16 * time.Millisecond}, true
}

func (s *mockSpace) Locatability() domain.Locatability {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loc
}

func (s *mockSpace) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *mockSpace) Attach(c ports.Camera) {
	s.mu.Lock()
	s.cameras[c.ID()] = c
	o := s.observer
	s.mu.Unlock()
	if o != nil {
		o.CameraAdded(c)
	}
}

// Detach returns after the observer has released the camera.
func (s *mockSpace) Detach(id domain.CameraID) {
	s.mu.Lock()
	c, ok := s.cameras[id]
	delete(s.cameras, id)
	o := s.observer
	s.mu.Unlock()
	if ok && o != nil {
		o.CameraRemoved(c)
	}
}

func (s *mockSpace) SetLocatability(l domain.Locatability) {
	s.mu.Lock()
	s.loc = l
	o := s.observer
	s.mu.Unlock()
	if o != nil {
		o.LocatabilityChanged(l)
	}
}

func (s *mockSpace) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type mockSwapChain struct {
	presents atomic.Int32
	resizes  atomic.Int32
	closed   atomic.Bool
	failLost atomic.Bool
}

func (s *mockSwapChain) Present(src render.RenderTarget) error {
	if s.failLost.Load() {
		return domain.ErrDeviceLost
	}
	s.presents.Add(1)
	return nil
}

func (s *mockSwapChain) Resize(width, height int) error {
	s.resizes.Add(1)
	return nil
}

func (s *mockSwapChain) Close() error {
	s.closed.Store(true)
	return nil
}

// mockWindow hands out a single mock space per CreateHolographicSpace.
type mockWindow struct {
	mu     sync.Mutex
	spaces []*mockSpace
	swaps  []*mockSwapChain
	titles []string
	next   *mockSpace
}

func (w *mockWindow) CreateSwapChain(dev ports.GraphicsDevice, desc ports.SwapChainDesc) (ports.SwapChain, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := &mockSwapChain{}
	w.swaps = append(w.swaps, s)
	return s, nil
}

func (w *mockWindow) CreateHolographicSpace() (ports.HolographicSpace, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.next
	if s == nil {
		s = newMockSpace()
	}
	w.next = nil
	w.spaces = append(w.spaces, s)
	return s, nil
}

func (w *mockWindow) CreateInteractionManager() (ports.InteractionManager, error) {
	return nil, nil
}

func (w *mockWindow) SetTitle(title string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.titles = append(w.titles, title)
}

func (w *mockWindow) Space() *mockSpace {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.spaces) == 0 {
		return nil
	}
	return w.spaces[len(w.spaces)-1]
}

func (w *mockWindow) SpaceCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.spaces)
}

func (w *mockWindow) SwapChains() []*mockSwapChain {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*mockSwapChain{}, w.swaps...)
}

func (w *mockWindow) Title() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.titles) == 0 {
		return ""
	}
	return w.titles[len(w.titles)-1]
}

// mockDeviceFactory creates mock devices. Targets whose label has a gate
// block until the gate is closed.
type mockDeviceFactory struct {
	mu      sync.Mutex
	fail    bool
	depth   bool
	devices []*mockDevice
	gates   map[string]chan struct{}
}

func (f *mockDeviceFactory) CreateDevice() (ports.GraphicsDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("no compatible adapter")
	}
	d := &mockDevice{factory: f, name: fmt.Sprintf("mock-%d", len(f.devices)+1), depth: f.depth}
	f.devices = append(f.devices, d)
	return d, nil
}

func (f *mockDeviceFactory) Gate(label string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gates == nil {
		f.gates = make(map[string]chan struct{})
	}
	ch := make(chan struct{})
	f.gates[label] = ch
	return ch
}

func (f *mockDeviceFactory) gate(label string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gates[label]
}

func (f *mockDeviceFactory) SetFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func (f *mockDeviceFactory) Devices() []*mockDevice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*mockDevice{}, f.devices...)
}

type mockDevice struct {
	factory *mockDeviceFactory
	name    string
	depth   bool
	lost    atomic.Bool
	closed  atomic.Bool
	targets atomic.Int32
}

func (d *mockDevice) Name() string              { return d.name }
func (d *mockDevice) SupportsDepthCommit() bool { return d.depth }
func (d *mockDevice) Lost() bool                { return d.lost.Load() }

func (d *mockDevice) CreateRenderTarget(desc ports.TargetDesc) (ports.RenderTarget, error) {
	if g := d.factory.gate(desc.Label); g != nil {
		<-g
	}
	if d.lost.Load() || d.closed.Load() {
		return nil, domain.ErrDeviceLost
	}
	d.targets.Add(1)
	return &mockTarget{PixmapTarget: render.NewPixmapTarget(desc.Viewport.Width, desc.Viewport.Height), device: d}, nil
}

func (d *mockDevice) Close() error {
	d.closed.Store(true)
	return nil
}

type mockTarget struct {
	*render.PixmapTarget
	device    *mockDevice
	destroyed atomic.Bool
}

func (t *mockTarget) Destroy() {
	if t.destroyed.CompareAndSwap(false, true) {
		t.device.targets.Add(-1)
	}
}

// mockContent counts updates and renders per camera.
type mockContent struct {
	mu      sync.Mutex
	updates int
	renders map[domain.CameraID]int
	depth   []bool
	pos     [3]float32
	color   string
}

func newMockContent() *mockContent {
	return &mockContent{renders: make(map[domain.CameraID]int)}
}

func (c *mockContent) Update(timing domain.FrameTiming) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates++
}

func (c *mockContent) Render(b ports.Binding) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renders[b.Camera]++
	c.depth = append(c.depth, b.CommitDepth)
	return nil
}

// Depth returns the CommitDepth flag of every render so far.
func (c *mockContent) Depth() []bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]bool{}, c.depth...)
}

func (c *mockContent) Renders(id domain.CameraID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renders[id]
}

func (c *mockContent) MarshalPosition() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return []byte(fmt.Sprintf("%g,%g,%g", c.pos[0], c.pos[1], c.pos[2])), nil
}

func (c *mockContent) UnmarshalPosition(blob []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Sscanf(string(blob), "%g,%g,%g", &c.pos[0], &c.pos[1], &c.pos[2])
	return err
}

func (c *mockContent) SetColor(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.color = name
	return true
}

// memAnchorStore keeps anchors in memory.
type memAnchorStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func (s *memAnchorStore) Save(ctx context.Context, anchorID string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blobs == nil {
		s.blobs = make(map[string][]byte)
	}
	s.blobs[anchorID] = append([]byte(nil), blob...)
	return nil
}

func (s *memAnchorStore) Load(ctx context.Context, anchorID string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[anchorID]
	return b, ok, nil
}

// testHost bundles a Host with its mocks.
type testHost struct {
	*Host
	remoting *mockRemoting
	window   *mockWindow
	devices  *mockDeviceFactory
	content  *mockContent
	anchors  *memAnchorStore
	observer *mockObserver
}

func newTestHost(t *testing.T, retry RetryPolicy) *testHost {
	t.Helper()
	th := &testHost{
		remoting: &mockRemoting{},
		window:   &mockWindow{},
		devices:  &mockDeviceFactory{depth: true},
		content:  newMockContent(),
		anchors:  &memAnchorStore{},
		observer: &mockObserver{},
	}
	h, err := NewHost(Config{
		Window:          th.window,
		Remoting:        th.remoting,
		Devices:         th.devices,
		Content:         []ports.ContentRenderer{th.content},
		Anchors:         th.anchors,
		Logger:          log.NewNoopLogger(),
		Observer:        th.observer,
		Retry:           retry,
		ShutdownTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewHost() error = %v", err)
	}
	th.Host = h
	t.Cleanup(func() { _ = h.Close() })
	return th
}

func listenConfig() domain.SessionConfig {
	return domain.SessionConfig{Mode: domain.ModeListen, Address: "0.0.0.0", Port: 8001}
}

func connectConfig() domain.SessionConfig {
	return domain.SessionConfig{Mode: domain.ModeConnect, Address: "10.0.0.5", Port: 8001}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
