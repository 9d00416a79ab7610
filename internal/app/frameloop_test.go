package app

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/bft-labs/holoship/internal/domain"
)

func TestFrameLoop_NothingToRenderWithoutSpace(t *testing.T) {
	th := newTestHost(t, DefaultRetryPolicy())

	if _, ok := th.Update(); ok {
		t.Error("Update() ok = true without a space")
	}
	if err := th.Tick(); err != nil {
		t.Errorf("Tick() error = %v", err)
	}
	if th.content.updates != 0 {
		t.Errorf("content updates = %d, want 0", th.content.updates)
	}
}

func TestFrameLoop_SkipsWhenLocatabilityUnavailable(t *testing.T) {
	th := newTestHost(t, DefaultRetryPolicy())
	space := startWithSpace(t, th)
	space.SetLocatability(domain.LocatabilityUnavailable)
	th.Flush()

	if _, ok := th.Update(); ok {
		t.Error("Update() ok = true with unavailable locatability")
	}

	space.SetLocatability(domain.LocatabilityOrientationOnly)
	th.Flush()
	if _, ok := th.Update(); !ok {
		t.Error("Update() ok = false with orientation-only locatability")
	}
}

func TestFrameLoop_LocalPresentWhenNotConnected(t *testing.T) {
	th := newTestHost(t, DefaultRetryPolicy())
	space := startWithSpace(t, th)
	space.Attach(newCamera(1))
	waitReady(t, th, 1)

	for i := 0; i < 3; i++ {
		if err := th.Tick(); err != nil {
			t.Fatalf("Tick() error = %v", err)
		}
	}

	swaps := th.window.SwapChains()
	if len(swaps) != 1 {
		t.Fatalf("swap chains = %d, want 1", len(swaps))
	}
	if n := swaps[0].presents.Load(); n != 3 {
		t.Errorf("presents = %d, want 3", n)
	}
	if n := len(th.remoting.Frames()); n != 0 {
		t.Errorf("frames sent = %d, want 0", n)
	}
}

func TestFrameLoop_ConnectedSendsSameFrameToBothSinks(t *testing.T) {
	tests := []struct {
		name         string
		preview      bool
		wantPresents int32
	}{
		{"preview off", false, 0},
		{"preview on", true, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := newTestHost(t, DefaultRetryPolicy())
			th.preview.Store(tt.preview)
			space := startWithSpace(t, th)
			space.Attach(newCamera(1))
			space.Attach(newCamera(2))
			waitReady(t, th, 1, 2)
			th.remoting.Handler(0).OnConnected()
			th.Flush()

			if err := th.Tick(); err != nil {
				t.Fatalf("Tick() error = %v", err)
			}
			if err := th.Tick(); err != nil {
				t.Fatalf("Tick() error = %v", err)
			}

			frames := th.remoting.Frames()
			if len(frames) != 4 {
				t.Fatalf("frames sent = %d, want 4", len(frames))
			}
			if frames[0].Number != frames[1].Number || frames[0].Camera != 1 || frames[1].Camera != 2 {
				t.Errorf("first tick frames = %+v, %+v", frames[0].Camera, frames[1].Camera)
			}
			if frames[0].Width != 8 || frames[0].Stride != 32 || len(frames[0].Pixels) != 8*32 {
				t.Errorf("frame geometry = %dx%d stride %d len %d", frames[0].Width, frames[0].Height, frames[0].Stride, len(frames[0].Pixels))
			}

			var presents int32
			for _, s := range th.window.SwapChains() {
				presents += s.presents.Load()
			}
			if presents != tt.wantPresents {
				t.Errorf("presents = %d, want %d", presents, tt.wantPresents)
			}
		})
	}
}

func TestFrameLoop_DeviceLostDuringPresent(t *testing.T) {
	th := newTestHost(t, DefaultRetryPolicy())
	space := startWithSpace(t, th)
	space.Attach(newCamera(1))
	waitReady(t, th, 1)

	if err := th.Tick(); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	th.window.SwapChains()[0].failLost.Store(true)

	if err := th.Tick(); err != nil {
		t.Fatalf("Tick() with lost device error = %v", err)
	}
	if n := len(th.devices.Devices()); n != 2 {
		t.Fatalf("devices = %d, want 2 after loss", n)
	}
	waitReady(t, th, 1)

	if err := th.Tick(); err != nil {
		t.Fatalf("Tick() after restore error = %v", err)
	}
	swaps := th.window.SwapChains()
	if len(swaps) != 2 {
		t.Fatalf("swap chains = %d, want 2", len(swaps))
	}
	if !swaps[0].closed.Load() {
		t.Error("old swap chain not closed")
	}
	if swaps[1].presents.Load() != 1 {
		t.Errorf("presents on new swap chain = %d, want 1", swaps[1].presents.Load())
	}
}

func TestFrameLoop_Resize(t *testing.T) {
	th := newTestHost(t, DefaultRetryPolicy())
	space := startWithSpace(t, th)
	space.Attach(newCamera(1))
	waitReady(t, th, 1)

	_ = th.Tick()
	th.OnResize(640, 480)
	_ = th.Tick()
	th.OnResize(0, 480)
	_ = th.Tick()

	if n := th.window.SwapChains()[0].resizes.Load(); n != 1 {
		t.Errorf("resizes = %d, want 1", n)
	}
}

func TestFrameLoop_FPSInTitle(t *testing.T) {
	th := newTestHost(t, DefaultRetryPolicy())
	space := startWithSpace(t, th)
	space.Attach(newCamera(1))
	waitReady(t, th, 1)

	now := time.Unix(0, 0)
	th.frames.now = func() time.Time { return now }
	for i := 0; i < 31; i++ {
		if err := th.Tick(); err != nil {
			t.Fatalf("Tick() error = %v", err)
		}
		now = now.Add(time.Second / 30)
	}
	_ = th.Tick()

	if !strings.Contains(th.window.Title(), "30 fps") {
		t.Errorf("title = %q, want 30 fps", th.window.Title())
	}
}

func TestFrameLoop_DepthCommitToggleReachesSinks(t *testing.T) {
	th := newTestHost(t, DefaultRetryPolicy())
	space := startWithSpace(t, th)
	space.Attach(newCamera(1))
	waitReady(t, th, 1)
	th.remoting.Handler(0).OnConnected()
	th.Flush()

	if err := th.Tick(); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if err := th.OnKeyPress('c'); err != nil {
		t.Fatalf("OnKeyPress(c) error = %v", err)
	}
	if err := th.Tick(); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	_ = th.OnKeyPress('c')
	if err := th.Tick(); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	want := []bool{true, false, true}
	frames := th.remoting.Frames()
	if len(frames) != len(want) {
		t.Fatalf("frames sent = %d, want %d", len(frames), len(want))
	}
	for i, f := range frames {
		if f.CommitDepth != want[i] {
			t.Errorf("frame %d CommitDepth = %v, want %v", i, f.CommitDepth, want[i])
		}
	}
	if got := th.content.Depth(); !reflect.DeepEqual(got, want) {
		t.Errorf("content bindings CommitDepth = %v, want %v", got, want)
	}
}

func TestFrameLoop_DepthCommitUnsupportedDevice(t *testing.T) {
	th := newTestHost(t, DefaultRetryPolicy())
	th.devices.depth = false
	space := startWithSpace(t, th)
	space.Attach(newCamera(1))
	waitReady(t, th, 1)
	th.remoting.Handler(0).OnConnected()
	th.Flush()

	_ = th.Tick()
	frames := th.remoting.Frames()
	if len(frames) != 1 || frames[0].CommitDepth {
		t.Errorf("frames = %d, CommitDepth on a device without support", len(frames))
	}
}

func TestFrameLoop_CustomDataHeartbeat(t *testing.T) {
	th := newTestHost(t, DefaultRetryPolicy())
	space := startWithSpace(t, th)
	space.Attach(newCamera(1))
	waitReady(t, th, 1)

	now := time.Unix(0, 0)
	th.frames.now = func() time.Time { return now }
	tick := func(d time.Duration) {
		t.Helper()
		now = now.Add(d)
		if err := th.Tick(); err != nil {
			t.Fatalf("Tick() error = %v", err)
		}
	}

	tick(10 * time.Second)
	if n := len(th.remoting.Data()); n != 0 {
		t.Fatalf("custom data sent while listening = %d, want 0", n)
	}

	th.remoting.Handler(0).OnConnected()
	th.Flush()
	tick(0)
	tick(DefaultDataInterval - time.Millisecond)
	if n := len(th.remoting.Data()); n != 0 {
		t.Fatalf("custom data sent before interval = %d, want 0", n)
	}
	tick(time.Millisecond)
	tick(time.Second)
	tick(DefaultDataInterval)

	data := th.remoting.Data()
	if len(data) != 2 {
		t.Fatalf("custom data sent = %d, want 2", len(data))
	}
	if !bytes.Equal(data[0], []byte{1}) {
		t.Errorf("payload = %v, want [1]", data[0])
	}
}
