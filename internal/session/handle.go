package session

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/whiteboard-sync/internal/geom"
	"github.com/DoyleJ11/whiteboard-sync/internal/protocol"
	"github.com/DoyleJ11/whiteboard-sync/internal/scene"
	"github.com/DoyleJ11/whiteboard-sync/internal/syncproto"
)

func (s *Session) handle(m msg) {
	switch msg := m.(type) {
	case beginStroke:
		id, err := s.beginStroke(msg.props, msg.at)
		msg.reply <- result[string]{val: id, err: err}

	case addPoint:
		msg.reply <- s.addPoint(msg.id, msg.at)

	case endStroke:
		msg.reply <- s.endStroke(msg.id)

	case removeStroke:
		msg.reply <- s.removeStroke(msg.id)

	case clearOwn:
		msg.reply <- s.clearOwn()

	case moveCursor:
		at := msg.at
		s.cursor = &at
		s.roster.SetCursor(s.opts.UserID, at)

	case setViewport:
		r := msg.rect
		s.viewport = &r

	case requestState:
		s.emit(protocol.RequestState{})

	case tick:
		s.flush()
		close(msg.done)

	case connect:
		msg.reply <- s.connect()

	case disconnect:
		s.disconnect()
		close(msg.done)

	case getSnapshot:
		msg.reply <- s.snapshot()

	case getStrokes:
		strokes := s.scene.Strokes()
		out := make([]protocol.StrokeData, 0, len(strokes))
		for _, st := range strokes {
			out = append(out, syncproto.DataFromStroke(st))
		}
		msg.reply <- out

	case importStrokes:
		msg.reply <- s.importStrokes(msg.strokes)

	case render:
		msg.reply <- s.render(msg.viewport, msg.viewer)

	case dialResult:
		s.onDial(msg)

	case frameIn:
		s.onFrame(msg)

	case connLost:
		s.onLost(msg)

	case retryFire:
		s.onRetry(msg)
	}
}

func (s *Session) beginStroke(props scene.Properties, at geom.Point) (string, error) {
	if props.Opacity == 0 {
		props.Opacity = 1
	}
	id := uuid.NewString()
	st := scene.NewStroke(id, s.opts.UserID, props)
	if err := st.Append(at); err != nil {
		return "", err
	}
	s.local[id] = st
	s.queueOp(protocol.StartOp(id, protocol.Color(props.Color), props.Opacity, props.Width, at.X, at.Y))
	return id, nil
}

func (s *Session) addPoint(id string, at geom.Point) error {
	st, ok := s.local[id]
	if !ok {
		return ErrUnknownStroke
	}
	// a repeated point is never sent, so the local copy skips it too
	if pts := st.Points(); len(pts) > 0 && pts[len(pts)-1] == at {
		s.stats.IncOpsCoalesced()
		return nil
	}
	if err := st.Append(at); err != nil {
		return err
	}
	s.queueOp(protocol.AppendOp(id, at.X, at.Y))
	return nil
}

func (s *Session) endStroke(id string) error {
	st, ok := s.local[id]
	if !ok {
		return ErrUnknownStroke
	}
	if err := st.Close(s.opts.Scene.SimplifyTolerance); err != nil {
		return err
	}
	delete(s.local, id)
	if err := s.scene.Add(st); err != nil {
		return err
	}
	s.queueOp(protocol.EndOp(id))
	if s.resend[id] {
		// someone joined mid-stroke and never saw its start
		delete(s.resend, id)
		s.queueOp(fullOpOf(st))
	}
	s.notify(Notification{Kind: NoteStrokes, UserID: s.opts.UserID, Added: []string{id}})
	return nil
}

func (s *Session) removeStroke(id string) error {
	if _, ok := s.local[id]; ok {
		delete(s.local, id)
		delete(s.resend, id)
		s.scene.Tombstone(id)
	} else {
		st, ok := s.scene.Get(id)
		if !ok {
			return ErrUnknownStroke
		}
		if st.OwnerID != s.opts.UserID {
			return ErrNotOwner
		}
		s.scene.Remove(id)
	}
	s.queueOp(protocol.RemoveOp(id))
	s.notify(Notification{Kind: NoteStrokes, UserID: s.opts.UserID, Removed: []string{id}})
	return nil
}

func (s *Session) clearOwn() int {
	var ids []string
	for id := range s.local {
		ids = append(ids, id)
		s.scene.Tombstone(id)
	}
	clear(s.local)
	clear(s.resend)
	ids = append(ids, s.scene.RemoveOwnedBy(s.opts.UserID)...)
	for _, id := range ids {
		s.queueOp(protocol.RemoveOp(id))
	}
	if len(ids) > 0 {
		s.notify(Notification{Kind: NoteStrokes, UserID: s.opts.UserID, Removed: ids})
	}
	return len(ids)
}

func (s *Session) importStrokes(strokes []protocol.StrokeData) int {
	var added []string
	for _, d := range strokes {
		if d.ID == "" {
			d.ID = uuid.NewString()
		}
		if s.scene.Known(d.ID) || s.local[d.ID] != nil {
			continue
		}
		d.OwnerID = s.opts.UserID
		st := syncproto.StrokeFromData(d)
		if err := st.Close(s.opts.Scene.SimplifyTolerance); err != nil {
			continue
		}
		if err := s.scene.Add(st); err != nil {
			s.log.Warn("import stroke", zap.String("stroke", d.ID), zap.Error(err))
			continue
		}
		s.queueOp(fullOpOf(st))
		added = append(added, d.ID)
	}
	if len(added) > 0 {
		s.notify(Notification{Kind: NoteStrokes, UserID: s.opts.UserID, Added: added})
	}
	return len(added)
}

func (s *Session) queueOp(op protocol.Op) {
	if s.batch.Add(op) {
		s.stats.IncOpsQueued()
	} else {
		s.stats.IncOpsCoalesced()
	}
}

// flush sends the pending batch and the latest presence values.
func (s *Session) flush() {
	now := s.now()
	if ops := s.batch.Flush(); ops != nil {
		s.emitAt(protocol.Sync{Events: ops, TS: now}, now)
	}
	if s.viewport != nil {
		r := *s.viewport
		s.viewport = nil
		s.emitAt(protocol.Viewport{Rect: protocol.ViewRect{X: r.X, Y: r.Y, W: r.W, H: r.H}, TS: now}, now)
	}
	if s.cursor != nil {
		c := *s.cursor
		s.cursor = nil
		s.emitAt(protocol.Cursor{X: c.X, Y: c.Y}, now)
	}
}

func (s *Session) emit(m protocol.Message) { s.emitAt(m, s.now()) }

// emitAt sends m when connected. Otherwise non-presence messages wait in
// the offline queue and presence updates are dropped.
func (s *Session) emitAt(m protocol.Message, ts int64) {
	if s.life.State() == syncproto.StateConnected && s.out != nil {
		s.send(m, ts)
		return
	}
	if s.queue.Push(syncproto.Outgoing{Msg: m, TS: ts}) {
		s.stats.IncMessagesQueued()
	} else {
		s.stats.IncPresenceDropped()
	}
}

func (s *Session) snapshot() Snapshot {
	return Snapshot{
		RoomID:       s.opts.RoomID,
		UserID:       s.opts.UserID,
		State:        s.life.State(),
		Offline:      s.life.Exhausted(),
		Failures:     s.life.Failures(),
		Master:       s.roster.Master(),
		Participants: s.roster.List(),
		Strokes:      s.scene.Len(),
		OpenLocal:    len(s.local),
		OpenRemote:   s.rec.OpenCount(),
		Queued:       s.queue.Len(),
		Pending:      s.batch.Len(),
	}
}

func fullOpOf(st *scene.Stroke) protocol.Op {
	pts := st.Points()
	flat := make([]float64, 0, 2*len(pts))
	for _, p := range pts {
		flat = append(flat, p.X, p.Y)
	}
	p := st.Properties
	return protocol.FullOp(st.ID, protocol.Color(p.Color), p.Opacity, p.Width, flat)
}
