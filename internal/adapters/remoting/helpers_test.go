package remoting

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bft-labs/holoship/internal/domain"
	"github.com/bft-labs/holoship/internal/ports"
)

const waitTimeout = 5 * time.Second

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

// recorder is a ports.RemotingHandler that records callbacks.
type recorder struct {
	connected    chan struct{}
	disconnected chan domain.DisconnectReason
	data         chan []byte
}

func newRecorder() *recorder {
	return &recorder{
		connected:    make(chan struct{}, 8),
		disconnected: make(chan domain.DisconnectReason, 8),
		data:         make(chan []byte, 8),
	}
}

func (r *recorder) OnConnected() { r.connected <- struct{}{} }

func (r *recorder) OnDisconnected(reason domain.DisconnectReason) { r.disconnected <- reason }

func (r *recorder) OnData(payload []byte) { r.data <- payload }

func (r *recorder) waitConnected(t *testing.T) {
	t.Helper()
	select {
	case <-r.connected:
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for OnConnected")
	}
}

func (r *recorder) waitDisconnected(t *testing.T) domain.DisconnectReason {
	t.Helper()
	select {
	case reason := <-r.disconnected:
		return reason
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for OnDisconnected")
		return domain.ReasonNone
	}
}

// spaceEvents is a ports.SpaceObserver that records callbacks.
type spaceEvents struct {
	mu      sync.Mutex
	added   []domain.CameraID
	removed []domain.CameraID
	locs    []domain.Locatability
}

func (s *spaceEvents) CameraAdded(c ports.Camera) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.added = append(s.added, c.ID())
}

func (s *spaceEvents) CameraRemoved(c ports.Camera) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, c.ID())
}

func (s *spaceEvents) LocatabilityChanged(l domain.Locatability) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locs = append(s.locs, l)
}

func (s *spaceEvents) counts() (added, removed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.added), len(s.removed)
}

func testOptions() Options {
	return Options{
		KeepAlive:        50 * time.Millisecond,
		HandshakeTimeout: time.Second,
		DialTimeout:      time.Second,
	}
}

func listenConfig() domain.SessionConfig {
	return domain.SessionConfig{
		Mode:      domain.ModeListen,
		Address:   "127.0.0.1",
		Ephemeral: true,
	}
}

// freePort returns a loopback port nobody listens on.
func freePort(t *testing.T) uint16 {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return uint16(port)
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, waitTimeout, 5*time.Millisecond, msg)
}
