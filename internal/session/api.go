package session

import (
	"github.com/DoyleJ11/whiteboard-sync/internal/geom"
	"github.com/DoyleJ11/whiteboard-sync/internal/protocol"
	"github.com/DoyleJ11/whiteboard-sync/internal/roster"
	"github.com/DoyleJ11/whiteboard-sync/internal/scene"
	"github.com/DoyleJ11/whiteboard-sync/internal/syncproto"
)

type msg interface{ isSessionMsg() }

type beginStroke struct {
	props scene.Properties
	at    geom.Point
	reply chan result[string]
}

type addPoint struct {
	id    string
	at    geom.Point
	reply chan error
}

type endStroke struct {
	id    string
	reply chan error
}

type removeStroke struct {
	id    string
	reply chan error
}

type clearOwn struct{ reply chan int }

type moveCursor struct{ at geom.Point }

type setViewport struct{ rect geom.Rect }

type requestState struct{}

type tick struct{ done chan struct{} }

type connect struct{ reply chan error }

type disconnect struct{ done chan struct{} }

type getSnapshot struct{ reply chan Snapshot }

type getStrokes struct{ reply chan []protocol.StrokeData }

type importStrokes struct {
	strokes []protocol.StrokeData
	reply   chan int
}

type render struct {
	viewport geom.Rect
	viewer   geom.Point
	reply    chan []Rendered
}

func (beginStroke) isSessionMsg()   {}
func (addPoint) isSessionMsg()      {}
func (endStroke) isSessionMsg()     {}
func (removeStroke) isSessionMsg()  {}
func (clearOwn) isSessionMsg()      {}
func (moveCursor) isSessionMsg()    {}
func (setViewport) isSessionMsg()   {}
func (requestState) isSessionMsg()  {}
func (tick) isSessionMsg()          {}
func (connect) isSessionMsg()       {}
func (disconnect) isSessionMsg()    {}
func (getSnapshot) isSessionMsg()   {}
func (getStrokes) isSessionMsg()    {}
func (importStrokes) isSessionMsg() {}
func (render) isSessionMsg()        {}

type result[T any] struct {
	val T
	err error
}

// Snapshot is a read-only view of the session taken on its loop.
type Snapshot struct {
	RoomID       string
	UserID       string
	State        syncproto.ConnState
	Offline      bool // reconnect attempts exhausted
	Failures     int
	Master       string
	Participants []roster.Participant
	Strokes      int
	OpenLocal    int
	OpenRemote   int
	Queued       int // messages held for the next connection
	Pending      int // ops waiting for the next flush
}

// call posts a request built around a fresh reply channel and waits for the
// answer.
func call[T any](s *Session, build func(reply chan T) msg) (T, error) {
	var zero T
	if !s.started.Load() {
		return zero, ErrNotStarted
	}
	reply := make(chan T, 1)
	if !s.post(build(reply)) {
		return zero, ErrClosed
	}
	select {
	case v := <-reply:
		return v, nil
	case <-s.done:
		return zero, ErrClosed
	}
}

func (s *Session) cast(m msg) error {
	if !s.started.Load() {
		return ErrNotStarted
	}
	if !s.post(m) {
		return ErrClosed
	}
	return nil
}

// BeginStroke opens a local stroke at the first point and returns its id.
func (s *Session) BeginStroke(props scene.Properties, at geom.Point) (string, error) {
	r, err := call(s, func(reply chan result[string]) msg { return beginStroke{props: props, at: at, reply: reply} })
	if err != nil {
		return "", err
	}
	return r.val, r.err
}

func (s *Session) AddPoint(id string, at geom.Point) error {
	return s.errCall(func(reply chan error) msg { return addPoint{id: id, at: at, reply: reply} })
}

// EndStroke closes a local stroke and moves it into the scene.
func (s *Session) EndStroke(id string) error {
	return s.errCall(func(reply chan error) msg { return endStroke{id: id, reply: reply} })
}

// RemoveStroke removes one of the local participant's strokes.
func (s *Session) RemoveStroke(id string) error {
	return s.errCall(func(reply chan error) msg { return removeStroke{id: id, reply: reply} })
}

// ClearOwn removes every stroke the local participant drew and returns how
// many there were.
func (s *Session) ClearOwn() (int, error) {
	return call(s, func(reply chan int) msg { return clearOwn{reply: reply} })
}

func (s *Session) errCall(build func(reply chan error) msg) error {
	err, cerr := call(s, build)
	if cerr != nil {
		return cerr
	}
	return err
}

// MoveCursor records the pointer position. Only the latest position is
// sent, at the next flush.
func (s *Session) MoveCursor(at geom.Point) error { return s.cast(moveCursor{at: at}) }

// SetViewport records the visible area. Like the cursor, only the latest
// value is sent at the next flush.
func (s *Session) SetViewport(r geom.Rect) error { return s.cast(setViewport{rect: r}) }

// RequestState asks the master for a full snapshot.
func (s *Session) RequestState() error { return s.cast(requestState{}) }

// Tick flushes pending ops and presence updates and returns once done.
func (s *Session) Tick() error {
	_, err := call(s, func(reply chan struct{}) msg { return tick{done: reply} })
	return err
}

// Connect starts connecting from the disconnected state and resets the
// reconnect budget. It returns before the dial completes.
func (s *Session) Connect() error {
	return s.errCall(func(reply chan error) msg { return connect{reply: reply} })
}

// Disconnect leaves the room and stays offline until the next Connect.
func (s *Session) Disconnect() error {
	_, err := call(s, func(reply chan struct{}) msg { return disconnect{done: reply} })
	return err
}

func (s *Session) Snapshot() (Snapshot, error) {
	return call(s, func(reply chan Snapshot) msg { return getSnapshot{reply: reply} })
}

func (s *Session) State() syncproto.ConnState {
	snap, err := s.Snapshot()
	if err != nil {
		return syncproto.StateDisconnected
	}
	return snap.State
}

// Strokes returns the closed strokes of the scene in drawing order.
func (s *Session) Strokes() ([]protocol.StrokeData, error) {
	return call(s, func(reply chan []protocol.StrokeData) msg { return getStrokes{reply: reply} })
}

// Import adds strokes as the local participant's own and publishes them.
// Ids the scene already knows are skipped. It returns how many were added.
func (s *Session) Import(strokes []protocol.StrokeData) (int, error) {
	return call(s, func(reply chan int) msg { return importStrokes{strokes: strokes, reply: reply} })
}

// Render returns the strokes overlapping viewport, smoothed and ready to
// draw. Distant closed strokes come from their simplified variant.
func (s *Session) Render(viewport geom.Rect, viewer geom.Point) ([]Rendered, error) {
	return call(s, func(reply chan []Rendered) msg { return render{viewport: viewport, viewer: viewer, reply: reply} })
}
