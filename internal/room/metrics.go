package room

import (
	"sync/atomic"
)

// Metrics counts what a room did with the frames it received.
type Metrics struct {
	Joins             int64
	FramesRelayed     int64
	Malformed         int64 // frames that failed to decode
	Spoofed           int64 // frames claiming another user or room
	SlowDropped       int64 // clients dropped for a full outbox
	LeavesSynthesized int64
}

func (m *Metrics) IncJoins()             { atomic.AddInt64(&m.Joins, 1) }
func (m *Metrics) IncRelayed()           { atomic.AddInt64(&m.FramesRelayed, 1) }
func (m *Metrics) IncMalformed()         { atomic.AddInt64(&m.Malformed, 1) }
func (m *Metrics) IncSpoofed()           { atomic.AddInt64(&m.Spoofed, 1) }
func (m *Metrics) IncSlowDropped()       { atomic.AddInt64(&m.SlowDropped, 1) }
func (m *Metrics) IncLeavesSynthesized() { atomic.AddInt64(&m.LeavesSynthesized, 1) }

// Snapshot returns a copy for HTTP output.
func (m *Metrics) Snapshot() map[string]any {
	return map[string]any{
		"joins":              atomic.LoadInt64(&m.Joins),
		"frames_relayed":     atomic.LoadInt64(&m.FramesRelayed),
		"malformed":          atomic.LoadInt64(&m.Malformed),
		"spoofed":            atomic.LoadInt64(&m.Spoofed),
		"slow_dropped":       atomic.LoadInt64(&m.SlowDropped),
		"leaves_synthesized": atomic.LoadInt64(&m.LeavesSynthesized),
	}
}
