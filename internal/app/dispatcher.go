package app

import (
	"context"
	"sync"

	"github.com/bft-labs/holoship/internal/domain"
	"github.com/bft-labs/holoship/pkg/log"
)

// dispatcher serializes every session event onto one goroutine. Handlers
// run one at a time in FIFO order and may post further events, which are
// processed after the current one returns.
//
// call must never be used from inside a handler.
type dispatcher struct {
	mu     sync.Mutex
	queue  []queued
	closed bool

	wake   chan struct{}
	done   chan struct{}
	handle func(event) error
	logger log.Logger
}

type queued struct {
	ev    event
	reply chan error
}

func newDispatcher(handle func(event) error, logger log.Logger) *dispatcher {
	d := &dispatcher{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		handle: handle,
		logger: logger,
	}
	go d.run()
	return d
}

func (d *dispatcher) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.mu.Unlock()
			<-d.wake
			d.mu.Lock()
		}
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		item := d.queue[0]
		d.queue[0] = queued{}
		d.queue = d.queue[1:]
		d.mu.Unlock()

		err := d.handle(item.ev)
		if item.reply != nil {
			item.reply <- err
		}
	}
}

func (d *dispatcher) enqueue(item queued) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	d.queue = append(d.queue, item)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	return true
}

// post queues ev without waiting. It reports false once closed.
func (d *dispatcher) post(ev event) bool {
	if !d.enqueue(queued{ev: ev}) {
		d.logger.Debug("event dropped after close", log.String("event", ev.kind()))
		return false
	}
	return true
}

// call queues ev and waits for its handler to return.
func (d *dispatcher) call(ev event) error {
	return d.callContext(context.Background(), ev)
}

// callContext is call with an abort path. When ctx ends first the event
// stays queued and is still processed later.
func (d *dispatcher) callContext(ctx context.Context, ev event) error {
	reply := make(chan error, 1)
	if !d.enqueue(queued{ev: ev, reply: reply}) {
		return domain.ErrClosed
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// flush waits until everything queued before it has been handled.
func (d *dispatcher) flush() {
	_ = d.call(evBarrier{})
}

// close drains the queue and stops the goroutine.
func (d *dispatcher) close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	select {
	case d.wake <- struct{}{}:
	default:
	}
	<-d.done
}
