package syncproto

import (
	"github.com/DoyleJ11/whiteboard-sync/internal/protocol"
)

type lastPoint struct{ x, y float64 }

// Batcher accumulates outbound ops between flushes. An append that repeats
// the previous point of the same stroke is dropped.
type Batcher struct {
	ops  []protocol.Op
	last map[string]lastPoint
}

func NewBatcher() *Batcher {
	return &Batcher{last: make(map[string]lastPoint)}
}

// Add queues op and reports whether it was kept.
func (b *Batcher) Add(op protocol.Op) bool {
	switch op.Kind {
	case protocol.OpStart:
		b.last[op.ID] = lastPoint{op.X, op.Y}
	case protocol.OpAppend:
		p := lastPoint{op.X, op.Y}
		if prev, ok := b.last[op.ID]; ok && prev == p {
			return false
		}
		b.last[op.ID] = p
	case protocol.OpEnd, protocol.OpRemove:
		delete(b.last, op.ID)
	}
	b.ops = append(b.ops, op)
	return true
}

func (b *Batcher) Len() int { return len(b.ops) }

// Flush hands over the pending ops and starts a new batch. It returns nil
// when nothing is pending.
func (b *Batcher) Flush() []protocol.Op {
	if len(b.ops) == 0 {
		return nil
	}
	out := b.ops
	b.ops = nil
	return out
}
