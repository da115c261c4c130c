// Package bus is the in-process publish/subscribe broker every component is
// wired through. Delivery is synchronous on the publisher's goroutine.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

type Handler func(ctx context.Context, e Event) error

type subscriber struct {
	id uint64
	fn Handler
}

type Bus struct {
	mu     sync.Mutex
	subs   map[Kind][]subscriber
	nextID uint64

	log *slog.Logger
}

func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}

	return &Bus{
		subs: make(map[Kind][]subscriber),
		log:  logger,
	}
}

type Subscription struct {
	bus  *Bus
	kind Kind
	id   uint64
}

// Unsubscribe removes the handler. Safe to call more than once.
func (s Subscription) Unsubscribe() {
	if s.bus == nil {
		return
	}
	s.bus.remove(s.kind, s.id)
}

func (b *Bus) Subscribe(kind Kind, fn Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.subs[kind] = append(b.subs[kind], subscriber{id: b.nextID, fn: fn})

	return Subscription{bus: b, kind: kind, id: b.nextID}
}

func (b *Bus) remove(kind Kind, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[kind]
	for i, s := range list {
		if s.id != id {
			continue
		}
		// copy so snapshots taken by in-flight publishes stay intact
		next := make([]subscriber, 0, len(list)-1)
		next = append(next, list[:i]...)
		next = append(next, list[i+1:]...)
		b.subs[kind] = next
		return
	}
}

// Publish delivers e to every handler registered for e.Kind at the moment of
// the call, in registration order. The lock is only held for the snapshot.
func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.Lock()
	snapshot := append([]subscriber(nil), b.subs[e.Kind]...)
	b.mu.Unlock()

	if len(snapshot) == 0 {
		b.log.Debug("No subscribers", "kind", e.Kind, "event", e.ID)
		return
	}

	for _, s := range snapshot {
		if err := b.deliver(ctx, s, e); err != nil {
			b.log.Error("Event handler failed", "kind", e.Kind, "event", e.ID, "sub", s.id, "err", err)
		}
	}
}

func (b *Bus) deliver(ctx context.Context, s subscriber, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	return s.fn(ctx, e)
}

// Subscribers returns the number of handlers registered for kind.
func (b *Bus) Subscribers(kind Kind) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[kind])
}
