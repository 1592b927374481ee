package goRecovery

import (
	"sync"
	"sync/atomic"
	"time"
)

// EventKind classifies controller events.
type EventKind uint8

const (
	// EventStageChanged is published after every committed transition.
	EventStageChanged EventKind = iota
	// EventBusyChanged is published when a provider request starts or finishes.
	EventBusyChanged
	// EventError is published for validation and provider failures. State
	// errors are caller bugs and are not published.
	EventError
	// EventExited is published once per session when it reaches StageExited.
	EventExited
)

func (k EventKind) String() string {
	switch k {
	case EventStageChanged:
		return "stage_changed"
	case EventBusyChanged:
		return "busy_changed"
	case EventError:
		return "error"
	case EventExited:
		return "exited"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers so a presentation layer can redraw
// without polling.
type Event struct {
	Kind       EventKind
	SessionID  string
	Generation uint64
	From       Stage
	To         Stage
	Busy       bool
	Outcome    Outcome
	Err        error
	At         time.Time
}

// eventHub fans events out to subscribers without blocking the publisher.
// A subscriber that does not keep up loses events; the count is kept.
type eventHub struct {
	mu      sync.Mutex
	nextID  uint64
	subs    map[uint64]chan Event
	dropped atomic.Uint64
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[uint64]chan Event)}
}

func (h *eventHub) subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if sub, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub)
			}
			h.mu.Unlock()
		})
	}
}

func (h *eventHub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.dropped.Add(1)
		}
	}
}

func (h *eventHub) Dropped() uint64 {
	return h.dropped.Load()
}
