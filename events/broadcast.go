package events

import (
	"context"
	"sync"
	"time"
)

// Event types streamed to the page.
const (
	TypeConnected    = "connected"
	TypeHeartbeat    = "heartbeat"
	TypeState        = "state"
	TypeSpinStarted  = "spin.started"
	TypeSpinEnded    = "spin.ended"
	TypeQueueUpdated = "queue.updated"
	TypeAlert        = "alert"
	TypeSettlement   = "settlement"
)

// Event is one message on the stream.
type Event struct {
	Type      string      `json:"type"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// New stamps an event with the current time.
func New(eventType string, data interface{}) Event {
	return Event{Type: eventType, Timestamp: time.Now().UnixMilli(), Data: data}
}

// Broadcaster fans events out to every listener. Slow listeners drop
// events instead of stalling the sender.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[chan Event]struct{}
	buffer    int
}

// NewBroadcaster creates a broadcaster whose listeners buffer up to buffer events.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = 1
	}
	return &Broadcaster{
		listeners: make(map[chan Event]struct{}),
		buffer:    buffer,
	}
}

// Send publishes an event (non-blocking, drops per listener on full buffer).
func (b *Broadcaster) Send(event Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.listeners {
		select {
		case ch <- event:
		default:
		}
	}
}

// Listen returns a channel of events plus a cancel function to stop listening.
// The channel is closed when ctx ends or cancel is called.
func (b *Broadcaster) Listen(ctx context.Context) (<-chan Event, context.CancelFunc) {
	listenerCtx, cancel := context.WithCancel(ctx)
	ch := make(chan Event, b.buffer)

	b.mu.Lock()
	b.listeners[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-listenerCtx.Done()
		b.mu.Lock()
		delete(b.listeners, ch)
		close(ch)
		b.mu.Unlock()
	}()

	return ch, cancel
}

// Listeners returns the number of active listeners.
func (b *Broadcaster) Listeners() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}
