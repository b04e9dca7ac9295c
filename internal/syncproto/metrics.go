package syncproto

import "sync/atomic"

// Stats counts what the sync engine did. Counters are atomic so a snapshot
// can be read from outside the session loop.
type Stats struct {
	OpsQueued         int64 // ops accepted by the batcher
	OpsCoalesced      int64 // duplicate appends dropped by the batcher
	BatchesSent       int64
	MessagesQueued    int64 // messages held while offline
	PresenceDropped   int64 // presence updates dropped while offline
	OpsApplied        int64
	DuplicatesIgnored int64
	OrphanOps         int64
	LoopbackDropped   int64
	Malformed         int64
	DialFailures      int64
	FullStatesServed  int64
	FullStatesApplied int64
}

func (s *Stats) IncOpsQueued()         { atomic.AddInt64(&s.OpsQueued, 1) }
func (s *Stats) IncOpsCoalesced()      { atomic.AddInt64(&s.OpsCoalesced, 1) }
func (s *Stats) IncBatchesSent()       { atomic.AddInt64(&s.BatchesSent, 1) }
func (s *Stats) IncMessagesQueued()    { atomic.AddInt64(&s.MessagesQueued, 1) }
func (s *Stats) IncPresenceDropped()   { atomic.AddInt64(&s.PresenceDropped, 1) }
func (s *Stats) IncOpsApplied()        { atomic.AddInt64(&s.OpsApplied, 1) }
func (s *Stats) IncDuplicatesIgnored() { atomic.AddInt64(&s.DuplicatesIgnored, 1) }
func (s *Stats) IncOrphanOps()         { atomic.AddInt64(&s.OrphanOps, 1) }
func (s *Stats) IncLoopbackDropped()   { atomic.AddInt64(&s.LoopbackDropped, 1) }
func (s *Stats) IncMalformed()         { atomic.AddInt64(&s.Malformed, 1) }
func (s *Stats) IncDialFailures()      { atomic.AddInt64(&s.DialFailures, 1) }
func (s *Stats) IncFullStatesServed()  { atomic.AddInt64(&s.FullStatesServed, 1) }
func (s *Stats) IncFullStatesApplied() { atomic.AddInt64(&s.FullStatesApplied, 1) }

// Snapshot returns a copy suitable for JSON output.
func (s *Stats) Snapshot() map[string]any {
	return map[string]any{
		"ops_queued":          atomic.LoadInt64(&s.OpsQueued),
		"ops_coalesced":       atomic.LoadInt64(&s.OpsCoalesced),
		"batches_sent":        atomic.LoadInt64(&s.BatchesSent),
		"messages_queued":     atomic.LoadInt64(&s.MessagesQueued),
		"presence_dropped":    atomic.LoadInt64(&s.PresenceDropped),
		"ops_applied":         atomic.LoadInt64(&s.OpsApplied),
		"duplicates_ignored":  atomic.LoadInt64(&s.DuplicatesIgnored),
		"orphan_ops":          atomic.LoadInt64(&s.OrphanOps),
		"loopback_dropped":    atomic.LoadInt64(&s.LoopbackDropped),
		"malformed":           atomic.LoadInt64(&s.Malformed),
		"dial_failures":       atomic.LoadInt64(&s.DialFailures),
		"full_states_served":  atomic.LoadInt64(&s.FullStatesServed),
		"full_states_applied": atomic.LoadInt64(&s.FullStatesApplied),
	}
}
