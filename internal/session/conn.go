package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/whiteboard-sync/internal/protocol"
	"github.com/DoyleJ11/whiteboard-sync/internal/syncproto"
	"github.com/DoyleJ11/whiteboard-sync/internal/transport"
)

// Results of network goroutines. gen ties each one to the connection (or
// retry timer) that produced it so late arrivals are ignored.
type dialResult struct {
	gen  int
	conn transport.Conn
	err  error
}

type frameIn struct {
	gen  int
	data []byte
}

type connLost struct {
	gen int
	err error
}

type retryFire struct{ gen int }

func (dialResult) isSessionMsg() {}
func (frameIn) isSessionMsg()    {}
func (connLost) isSessionMsg()   {}
func (retryFire) isSessionMsg()  {}

func (s *Session) connect() error {
	if s.opts.Dialer == nil {
		return ErrNoDialer
	}
	if err := s.life.Connect(); err != nil {
		return err
	}
	s.retryGen++
	s.setState()
	s.dial()
	return nil
}

func (s *Session) disconnect() {
	if s.conn != nil && s.life.State() == syncproto.StateConnected {
		s.flush()
		s.send(protocol.Leave{}, s.now())
	}
	s.dropConn()
	s.retryGen++
	s.life.Disconnect()
	s.forgetPeers()
	s.setState()
}

func (s *Session) dial() {
	s.connGen++
	gen := s.connGen
	d := s.opts.Dialer
	go func() {
		conn, err := d.Dial(s.ctx, s.opts.RoomID, s.opts.UserID)
		if !s.post(dialResult{gen: gen, conn: conn, err: err}) && conn != nil {
			_ = conn.Close()
		}
	}()
}

func (s *Session) onDial(r dialResult) {
	if r.gen != s.connGen || s.life.State() != syncproto.StateConnecting {
		if r.conn != nil {
			_ = r.conn.Close()
		}
		return
	}
	if r.err != nil {
		s.stats.IncDialFailures()
		s.log.Warn("dial failed", zap.Int("attempt", s.life.Failures()+1), zap.Error(r.err))
		retry, delay, err := s.life.DialFailed()
		if err != nil {
			s.log.Error("lifecycle", zap.Error(err))
			return
		}
		s.afterFailure(retry, delay)
		return
	}
	if err := s.life.Opened(); err != nil {
		s.log.Error("lifecycle", zap.Error(err))
		_ = r.conn.Close()
		return
	}

	s.conn = r.conn
	s.out = make(chan []byte, 256)
	s.writerDone = make(chan struct{})
	go s.writer(r.gen, r.conn, s.out, s.writerDone)
	go s.readPump(r.gen, r.conn)

	s.log.Info("connected")
	s.setState()

	now := s.now()
	s.send(protocol.Join{Username: s.opts.Username, JoinTime: s.joinTime}, now)
	for _, o := range s.queue.Drain() {
		s.send(o.Msg, o.TS)
	}
	if s.opts.RequestStateOnJoin {
		s.send(protocol.RequestState{}, now)
	}
}

func (s *Session) onFrame(f frameIn) {
	if f.gen != s.connGen {
		return
	}
	in, err := protocol.Decode(f.data)
	if err != nil {
		s.stats.IncMalformed()
		s.log.Debug("dropped malformed frame", zap.Error(err))
		return
	}
	if in.UserID == s.opts.UserID {
		s.stats.IncLoopbackDropped()
		return
	}
	if in.RoomID != "" && in.RoomID != s.opts.RoomID {
		s.stats.IncMalformed()
		s.log.Debug("dropped frame for another room", zap.String("frame_room", in.RoomID))
		return
	}
	s.bus.Dispatch(in)
}

func (s *Session) onLost(l connLost) {
	if l.gen != s.connGen || s.life.State() != syncproto.StateConnected {
		return
	}
	s.log.Warn("connection lost", zap.Error(l.err))
	s.dropConn()
	s.forgetPeers()
	retry, delay, err := s.life.Lost()
	if err != nil {
		s.log.Error("lifecycle", zap.Error(err))
		return
	}
	s.afterFailure(retry, delay)
}

func (s *Session) afterFailure(retry bool, delay time.Duration) {
	s.setState()
	if !retry {
		s.log.Warn("offline: reconnect attempts exhausted", zap.Int("attempts", s.life.Failures()))
		s.notify(Notification{Kind: NoteOffline, State: s.life.State()})
		return
	}
	s.retryGen++
	gen := s.retryGen
	time.AfterFunc(delay, func() { s.post(retryFire{gen: gen}) })
}

func (s *Session) onRetry(r retryFire) {
	if r.gen != s.retryGen || s.life.State() != syncproto.StateReconnecting {
		return
	}
	if err := s.life.Retry(); err != nil {
		s.log.Error("lifecycle", zap.Error(err))
		return
	}
	s.setState()
	s.dial()
}

// forgetPeers drops everyone but the local participant together with the
// strokes they left unfinished. Joins rebuild the roster on reconnect.
func (s *Session) forgetPeers() {
	for _, p := range s.roster.List() {
		if p.UserID != s.opts.UserID {
			s.rec.DropOpen(p.UserID)
		}
	}
	s.roster.Reset(s.opts.UserID)
}

func (s *Session) setState() {
	s.notify(Notification{Kind: NoteConnection, State: s.life.State()})
}

func (s *Session) encode(m protocol.Message, ts int64) []byte {
	frame, err := protocol.Encode(s.opts.UserID, s.opts.RoomID, ts, m)
	if err != nil {
		s.log.Error("encode", zap.String("type", string(m.Type())), zap.Error(err))
		return nil
	}
	return frame
}

// send hands a frame to the writer goroutine. A writer that cannot keep up
// is treated as a lost connection and the message goes back to the queue.
func (s *Session) send(m protocol.Message, ts int64) {
	if s.out == nil {
		if s.queue.Push(syncproto.Outgoing{Msg: m, TS: ts}) {
			s.stats.IncMessagesQueued()
		}
		return
	}
	frame := s.encode(m, ts)
	if frame == nil {
		return
	}
	select {
	case s.out <- frame:
		if _, ok := m.(protocol.Sync); ok {
			s.stats.IncBatchesSent()
		}
	default:
		s.log.Warn("writer stalled, dropping connection")
		gen := s.connGen
		if s.queue.Push(syncproto.Outgoing{Msg: m, TS: ts}) {
			s.stats.IncMessagesQueued()
		}
		s.onLost(connLost{gen: gen, err: transport.ErrClosed})
	}
}

// writeNow flushes the writer and then writes m directly. It is used on
// shutdown when the loop is about to stop.
func (s *Session) writeNow(m protocol.Message) {
	conn := s.conn
	s.stopWriter()
	frame := s.encode(m, s.now())
	if conn == nil || frame == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.WriteTimeout)
	defer cancel()
	if err := conn.Write(ctx, frame); err != nil {
		s.log.Debug("final write", zap.Error(err))
	}
}

func (s *Session) stopWriter() {
	if s.out == nil {
		return
	}
	close(s.out)
	s.out = nil
	select {
	case <-s.writerDone:
	case <-time.After(s.opts.WriteTimeout):
	}
}

func (s *Session) dropConn() {
	s.stopWriter()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.connGen++
}

func (s *Session) writer(gen int, conn transport.Conn, out <-chan []byte, done chan<- struct{}) {
	defer close(done)
	for frame := range out {
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.WriteTimeout)
		err := conn.Write(ctx, frame)
		cancel()
		if err != nil {
			s.post(connLost{gen: gen, err: err})
			for range out {
			}
			return
		}
	}
}

// readPump runs until the connection is closed by dropConn or the peer.
func (s *Session) readPump(gen int, conn transport.Conn) {
	for {
		data, err := conn.Read(context.Background())
		if err != nil {
			s.post(connLost{gen: gen, err: err})
			return
		}
		if !s.post(frameIn{gen: gen, data: data}) {
			return
		}
	}
}
