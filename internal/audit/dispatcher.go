package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull discards events when the queue is full. When false Emit
	// waits for room until its context ends.
	DropIfFull bool
}

// Dispatcher relays audit events to a sink on one background goroutine so
// recovery operations never wait on audit I/O. A nil *Dispatcher is valid
// and discards everything.
type Dispatcher struct {
	sink  Sink
	block bool
	queue chan Event

	// mu guards closed and every send on queue.
	mu      sync.RWMutex
	closed  bool
	stopped chan struct{}

	dropped atomic.Uint64
}

func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		sink:    sink,
		block:   !cfg.DropIfFull,
		queue:   make(chan Event, size),
		stopped: make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer close(d.stopped)
	for event := range d.queue {
		d.deliver(event)
	}
}

// deliver hands one event to the sink. A panicking sink costs that event
// only.
func (d *Dispatcher) deliver(event Event) {
	defer func() {
		if r := recover(); r != nil {
			d.dropped.Add(1)
		}
	}()
	d.sink.Emit(context.Background(), event)
}

// Emit queues event. Events emitted after Close are ignored.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if !d.block {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	}
}

// Close stops accepting events and blocks until the queued ones reach the
// sink. It is safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.stopped
}

// Dropped counts events lost to a full queue, an expired context or a
// panicking sink.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
