// Package progress delivers advisory, per-scan status events to listeners.
//
// Delivery is fire-and-forget and at-most-once: an event for a listener whose
// buffer is full is dropped, and an event for a scan nobody listens to is a
// no-op. The persisted ScanRun is the authoritative record; these events only
// drive live UIs.
package progress

import (
	"sync"

	"github.com/raysh454/sift/internal/model"
)

// Broadcaster publishes progress events for a scan.
type Broadcaster interface {
	Emit(scanID string, ev model.ProgressEvent) error
}

// Nop is a Broadcaster that discards everything.
type Nop struct{}

func (Nop) Emit(string, model.ProgressEvent) error { return nil }

// DefaultBuffer is the per-subscriber channel size.
const DefaultBuffer = 32

type subscriber struct {
	ch chan model.ProgressEvent
}

// Hub is an in-process pub/sub keyed by scan id.
type Hub struct {
	mu     sync.Mutex
	buffer int
	topics map[string]map[*subscriber]struct{}
	closed bool

	dropped uint64
}

// NewHub creates a Hub. buffer <= 0 means DefaultBuffer.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		buffer: buffer,
		topics: make(map[string]map[*subscriber]struct{}),
	}
}

// Subscribe returns a channel receiving events for scanID and a cancel func
// that unsubscribes and closes the channel. Calling cancel more than once is safe.
func (h *Hub) Subscribe(scanID string) (<-chan model.ProgressEvent, func()) {
	sub := &subscriber{ch: make(chan model.ProgressEvent, h.buffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	subs, ok := h.topics[scanID]
	if !ok {
		subs = make(map[*subscriber]struct{})
		h.topics[scanID] = subs
	}
	subs[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if subs, ok := h.topics[scanID]; ok {
				if _, present := subs[sub]; present {
					delete(subs, sub)
					close(sub.ch)
				}
				if len(subs) == 0 {
					delete(h.topics, scanID)
				}
			}
		})
	}
	return sub.ch, cancel
}

// Emit delivers ev to every current subscriber of scanID without blocking.
// The event is copied by value into each channel, so listeners never share
// mutable state with the emitter or with each other.
func (h *Hub) Emit(scanID string, ev model.ProgressEvent) error {
	if ev.ScanID == "" {
		ev.ScanID = scanID
	}
	if len(ev.Results) > 0 {
		ev.Results = append([]model.ToolResult(nil), ev.Results...)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	for sub := range h.topics[scanID] {
		select {
		case sub.ch <- ev:
		default:
			h.dropped++
		}
	}
	return nil
}

// Subscribers returns the current number of listeners for scanID.
func (h *Hub) Subscribers(scanID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics[scanID])
}

// Dropped returns how many deliveries were dropped because a buffer was full.
func (h *Hub) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Close closes every subscriber channel. Emit after Close returns ErrClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, subs := range h.topics {
		for sub := range subs {
			close(sub.ch)
		}
		delete(h.topics, id)
	}
}
