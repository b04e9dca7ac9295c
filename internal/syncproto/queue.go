package syncproto

import (
	"github.com/DoyleJ11/whiteboard-sync/internal/protocol"
)

// Outgoing is a message waiting for the transport, stamped with the time it
// was produced.
type Outgoing struct {
	Msg protocol.Message
	TS  int64
}

// Queue holds messages produced while offline, in FIFO order. Presence
// messages are refused: a stale cursor is worth nothing.
type Queue struct {
	items []Outgoing
}

// Push appends o and reports whether it was accepted.
func (q *Queue) Push(o Outgoing) bool {
	if protocol.IsPresence(o.Msg.Type()) {
		return false
	}
	q.items = append(q.items, o)
	return true
}

func (q *Queue) Len() int { return len(q.items) }

// Drain empties the queue. Runs of consecutive sync batches are merged into
// one batch stamped with the last batch's time, and complete strokes inside
// it are compacted into full ops. Order is otherwise preserved.
func (q *Queue) Drain() []Outgoing {
	items := q.items
	q.items = nil

	out := make([]Outgoing, 0, len(items))
	var run []protocol.Op
	var runTS int64
	inRun := false

	flush := func() {
		if !inRun {
			return
		}
		out = append(out, Outgoing{Msg: protocol.Sync{Events: Compact(run), TS: runTS}, TS: runTS})
		run, inRun = nil, false
	}

	for _, it := range items {
		if s, ok := it.Msg.(protocol.Sync); ok {
			run = append(run, s.Events...)
			runTS = it.TS
			inRun = true
			continue
		}
		flush()
		out = append(out, it)
	}
	flush()
	return out
}
