// Package events implements the in-process typed event bus (DESIGN NOTES
// §9's redesign of the source's in-process callback scripts) and the
// out-of-process webhook dispatcher that subscribes to it. Grounded on the
// teacher's own publish/subscribe shape for its WebSocket hub
// (internal/api/http/ws_hub.go): a buffered fan-out channel per
// subscriber guarded by a mutex, never a blocking send to a slow reader.
package events

import (
	"sync"

	"github.com/philiporange/torrent-manager/internal/domain/ports"
	"github.com/philiporange/torrent-manager/internal/metrics"
)

// subscriberBuffer bounds how many events a slow subscriber can lag
// behind before new events are dropped for it rather than blocking the
// publisher (matches the teacher's bounded ws_hub client buffer).
const subscriberBuffer = 64

// Bus is the process-lifetime ports.EventBus implementation. The zero
// value is ready to use.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan ports.Event
	next int
}

// Publish fans an event out to every live subscriber. A subscriber whose
// buffer is full drops the event rather than stalling the publisher —
// the bus is best-effort, matching spec.md's "best-effort side effect"
// framing for event-driven writes.
func (b *Bus) Publish(event ports.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			metrics.EventBusDroppedTotal.Inc()
		}
	}
}

// Subscribe registers a new listener and returns its channel plus a
// cancel func that unregisters and closes it. Callers MUST call cancel
// when done to avoid leaking the channel.
func (b *Bus) Subscribe() (<-chan ports.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs == nil {
		b.subs = make(map[int]chan ports.Event)
	}
	id := b.next
	b.next++
	ch := make(chan ports.Event, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

var _ ports.EventBus = (*Bus)(nil)
