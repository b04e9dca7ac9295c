// Package bus dispatches decoded inbound messages to subscribers keyed by
// message type.
package bus

import (
	"sync"

	"github.com/DoyleJ11/whiteboard-sync/internal/protocol"
)

type Handler func(in protocol.Inbound)

type subscription struct {
	id int
	fn Handler
}

// Bus keeps one subscription list per message type. Dispatch is
// synchronous: handlers run on the caller's goroutine in the order they
// subscribed, and Dispatch returns once the last one has.
type Bus struct {
	mu     sync.Mutex
	subs   map[protocol.MessageType][]subscription
	nextID int
}

func New() *Bus {
	return &Bus{subs: make(map[protocol.MessageType][]subscription)}
}

// On registers fn for messages of type t and returns a function that
// removes it again.
func (b *Bus) On(t protocol.MessageType, fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[t] = append(b.subs[t], subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(t, id) })
	}
}

func (b *Bus) remove(t protocol.MessageType, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[t]
	for i, s := range list {
		if s.id == id {
			// copy so an in-flight Dispatch keeps its own view
			next := make([]subscription, 0, len(list)-1)
			next = append(next, list[:i]...)
			next = append(next, list[i+1:]...)
			b.subs[t] = next
			return
		}
	}
}

// Dispatch delivers in to every handler of its type and reports how many
// ran.
func (b *Bus) Dispatch(in protocol.Inbound) int {
	if in.Msg == nil {
		return 0
	}
	b.mu.Lock()
	list := b.subs[in.Msg.Type()]
	b.mu.Unlock()

	for _, s := range list {
		s.fn(in)
	}
	return len(list)
}

// Count returns the number of handlers registered for t.
func (b *Bus) Count(t protocol.MessageType) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[t])
}

// Subscribe registers a handler for the variant M. The message type comes
// from M itself, so handlers never see a payload of the wrong shape.
func Subscribe[M protocol.Message](b *Bus, fn func(in protocol.Inbound, m M)) (unsubscribe func()) {
	var zero M
	return b.On(zero.Type(), func(in protocol.Inbound) {
		if m, ok := in.Msg.(M); ok {
			fn(in, m)
		}
	})
}
