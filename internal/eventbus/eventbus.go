// Package eventbus implements the typed publish/subscribe bus that couples
// the certificate orchestrator, the host router, and the (external) admin
// collaborator, replacing the event-emitter pattern with an explicit
// interface per the "Event-based coupling" design note.
package eventbus

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/bnema/gatewayd/internal/domain"
	"github.com/bnema/gatewayd/internal/logging"
)

// Handler receives published events. It must not block for long: the bus
// invokes handlers synchronously on Publish's goroutine, one subscriber
// after another.
type Handler func(domain.Event)

// CancelFunc unsubscribes a previously registered handler.
type CancelFunc func()

// Bus is an in-memory, process-local event bus. The zero value is not
// usable; construct with New.
type Bus struct {
	mu       sync.RWMutex
	handlers map[domain.EventKind][]subscriber
	seq      uint64
	log      *log.Logger
}

type subscriber struct {
	id uint64
	fn Handler
}

// New constructs an empty Bus.
func New() *Bus {
	return &Bus{
		handlers: make(map[domain.EventKind][]subscriber),
		log:      logging.For("eventbus"),
	}
}

// Subscribe registers fn for events of the given kind. The returned
// CancelFunc removes the subscription; it is safe to call more than once.
func (b *Bus) Subscribe(kind domain.EventKind, fn Handler) CancelFunc {
	b.mu.Lock()
	b.seq++
	id := b.seq
	b.handlers[kind] = append(b.handlers[kind], subscriber{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			subs := b.handlers[kind]
			for i, s := range subs {
				if s.id == id {
					b.handlers[kind] = append(subs[:i], subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish delivers an event to every current subscriber of its kind. The
// event's ID and Timestamp are stamped here if unset. Handlers run
// synchronously on the caller's goroutine, one after another; callers on a
// request or supervision hot path should keep handlers cheap (the router's
// handlers just update an in-memory map; the orchestrator's hands its work
// off to a goroutine).
func (b *Bus) Publish(evt domain.Event) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	b.mu.RLock()
	subs := append([]subscriber(nil), b.handlers[evt.Kind]...)
	b.mu.RUnlock()

	b.log.Debug("publish", "kind", evt.Kind, "host", evt.Host, "subscribers", len(subs))
	for _, s := range subs {
		s.fn(evt)
	}
}
