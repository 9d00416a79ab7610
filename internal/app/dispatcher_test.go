package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/holoship/internal/domain"
	"github.com/bft-labs/holoship/pkg/log"
)

// evTest is a numbered event used by dispatcher tests.
type evTest struct{ n int }

func (evTest) kind() string { return "test" }

type recordingHandler struct {
	mu    sync.Mutex
	seen  []int
	block chan struct{}
	err   error
}

func (r *recordingHandler) handle(ev event) error {
	if e, ok := ev.(evTest); ok {
		if r.block != nil && e.n == 0 {
			<-r.block
		}
		r.mu.Lock()
		r.seen = append(r.seen, e.n)
		r.mu.Unlock()
	}
	return r.err
}

func (r *recordingHandler) Seen() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int{}, r.seen...)
}

func TestDispatcher_FIFO(t *testing.T) {
	r := &recordingHandler{}
	d := newDispatcher(r.handle, log.NewNoopLogger())
	defer d.close()

	for i := 0; i < 100; i++ {
		d.post(evTest{n: i})
	}
	d.flush()

	seen := r.Seen()
	if len(seen) != 100 {
		t.Fatalf("handled %d events, want 100", len(seen))
	}
	for i, n := range seen {
		if n != i {
			t.Fatalf("event %d handled at position %d", n, i)
		}
	}
}

func TestDispatcher_CallReturnsHandlerError(t *testing.T) {
	wantErr := errors.New("boom")
	r := &recordingHandler{err: wantErr}
	d := newDispatcher(r.handle, log.NewNoopLogger())
	defer d.close()

	if err := d.call(evTest{n: 1}); !errors.Is(err, wantErr) {
		t.Errorf("call() error = %v, want %v", err, wantErr)
	}
}

func TestDispatcher_CloseDrainsAndRejects(t *testing.T) {
	r := &recordingHandler{}
	d := newDispatcher(r.handle, log.NewNoopLogger())

	for i := 0; i < 10; i++ {
		d.post(evTest{n: i})
	}
	d.close()

	if got := len(r.Seen()); got != 10 {
		t.Errorf("handled %d events before close, want 10", got)
	}
	if d.post(evTest{n: 99}) {
		t.Error("post() after close = true")
	}
	if err := d.call(evTest{n: 99}); !errors.Is(err, domain.ErrClosed) {
		t.Errorf("call() after close error = %v, want ErrClosed", err)
	}
}

func TestDispatcher_CallContextAbort(t *testing.T) {
	r := &recordingHandler{block: make(chan struct{})}
	d := newDispatcher(r.handle, log.NewNoopLogger())
	defer d.close()

	d.post(evTest{n: 0})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := d.callContext(ctx, evTest{n: 1}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("callContext() error = %v, want DeadlineExceeded", err)
	}

	close(r.block)
	d.flush()
	if got := r.Seen(); len(got) != 2 || got[1] != 1 {
		t.Errorf("seen = %v, want aborted event still handled", got)
	}
}
