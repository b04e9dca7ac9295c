package syncproto

import (
	"github.com/DoyleJ11/whiteboard-sync/internal/protocol"
)

// Compact collapses every stroke whose ops in the batch are exactly one
// start, any number of appends and one end into a single full op placed
// where the start was. Ops of other strokes keep their relative order.
func Compact(ops []protocol.Op) []protocol.Op {
	type seq struct {
		start    int
		complete bool
		broken   bool
		points   []float64
	}
	seqs := make(map[string]*seq)

	for i, op := range ops {
		s := seqs[op.ID]
		if s == nil {
			s = &seq{start: i}
			seqs[op.ID] = s
			if op.Kind != protocol.OpStart {
				s.broken = true
			} else {
				s.points = append(s.points, op.X, op.Y)
			}
			continue
		}
		if s.broken {
			continue
		}
		switch {
		case s.complete:
			s.broken = true
		case op.Kind == protocol.OpAppend:
			s.points = append(s.points, op.X, op.Y)
		case op.Kind == protocol.OpEnd:
			s.complete = true
		default:
			s.broken = true
		}
	}

	out := make([]protocol.Op, 0, len(ops))
	for i, op := range ops {
		s := seqs[op.ID]
		if s.broken || !s.complete {
			out = append(out, op)
			continue
		}
		if i == s.start {
			out = append(out, protocol.FullOp(op.ID, op.Color, op.Opacity, op.Width, s.points))
		}
	}
	return out
}
