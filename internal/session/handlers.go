package session

import (
	"go.uber.org/zap"

	"github.com/DoyleJ11/whiteboard-sync/internal/bus"
	"github.com/DoyleJ11/whiteboard-sync/internal/geom"
	"github.com/DoyleJ11/whiteboard-sync/internal/protocol"
	"github.com/DoyleJ11/whiteboard-sync/internal/roster"
	"github.com/DoyleJ11/whiteboard-sync/internal/syncproto"
)

// subscribe wires the session's own reactions to inbound messages. They run
// before any handler the application adds later.
func (s *Session) subscribe() {
	s.unsubs = append(s.unsubs,
		bus.Subscribe(s.bus, s.onJoin),
		bus.Subscribe(s.bus, s.onLeave),
		bus.Subscribe(s.bus, s.onRequestState),
		bus.Subscribe(s.bus, s.onFullState),
		bus.Subscribe(s.bus, s.onSync),
		bus.Subscribe(s.bus, s.onCursor),
		bus.Subscribe(s.bus, s.onViewport),
	)
}

func (s *Session) onJoin(in protocol.Inbound, m protocol.Join) {
	joinTime := m.JoinTime
	if joinTime == 0 {
		joinTime = in.Timestamp
	}
	added, masterChanged := s.roster.Upsert(roster.Participant{
		UserID:   in.UserID,
		Username: m.Username,
		JoinTime: joinTime,
	})
	if added {
		s.log.Info("participant joined", zap.String("peer", in.UserID), zap.String("username", m.Username))
		s.notify(Notification{Kind: NoteJoined, UserID: in.UserID})
	}
	if masterChanged {
		s.notify(Notification{Kind: NoteMaster, UserID: s.roster.Master()})
	}
	if m.Reply {
		return
	}
	// a newcomer: tell it we are here and make sure it gets strokes that are
	// being drawn right now once they end
	s.emit(protocol.Join{Username: s.opts.Username, JoinTime: s.joinTime, Reply: true})
	for id := range s.local {
		s.resend[id] = true
	}
}

func (s *Session) onLeave(in protocol.Inbound, _ protocol.Leave) {
	_, ok, masterChanged := s.roster.Remove(in.UserID)
	dropped := s.rec.DropOpen(in.UserID)
	if !ok && len(dropped) == 0 {
		return
	}
	s.log.Info("participant left", zap.String("peer", in.UserID), zap.Int("open_strokes_dropped", len(dropped)))
	s.notify(Notification{Kind: NoteLeft, UserID: in.UserID, Removed: dropped})
	if masterChanged {
		s.notify(Notification{Kind: NoteMaster, UserID: s.roster.Master()})
	}
}

func (s *Session) onRequestState(in protocol.Inbound, _ protocol.RequestState) {
	if !s.roster.IsMaster(s.opts.UserID) {
		return
	}
	strokes := s.scene.Strokes()
	state := make([]protocol.StrokeData, 0, len(strokes))
	for _, st := range strokes {
		state = append(state, syncproto.DataFromStroke(st))
	}
	s.stats.IncFullStatesServed()
	s.log.Debug("serving full state", zap.String("to", in.UserID), zap.Int("strokes", len(state)))
	s.emit(protocol.FullState{State: state})
}

func (s *Session) onFullState(in protocol.Inbound, m protocol.FullState) {
	s.applied(in.UserID, s.rec.ApplyFullState(in.UserID, m.State))
}

func (s *Session) onSync(in protocol.Inbound, m protocol.Sync) {
	s.applied(in.UserID, s.rec.Apply(in.UserID, m.Events))
}

func (s *Session) applied(from string, res syncproto.Applied) {
	if len(res.Finished)+len(res.Removed) == 0 {
		return
	}
	s.notify(Notification{Kind: NoteStrokes, UserID: from, Added: res.Finished, Removed: res.Removed})
}

func (s *Session) onCursor(in protocol.Inbound, m protocol.Cursor) {
	at := geom.Pt(m.X, m.Y)
	if s.roster.SetCursor(in.UserID, at) {
		s.notify(Notification{Kind: NoteCursor, UserID: in.UserID, Cursor: at})
	}
}

func (s *Session) onViewport(in protocol.Inbound, m protocol.Viewport) {
	r := m.Rect
	s.notify(Notification{Kind: NoteViewport, UserID: in.UserID, Viewport: geom.Rect{X: r.X, Y: r.Y, W: r.W, H: r.H}})
}
