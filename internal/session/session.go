// Package session runs one participant's view of a shared whiteboard room.
//
// A Session is an actor: a single goroutine owns the scene, the roster and
// the sync engine, and every public method talks to it through its inbox.
// Network I/O runs in helper goroutines that only post results back.
package session

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/whiteboard-sync/internal/bus"
	"github.com/DoyleJ11/whiteboard-sync/internal/config"
	"github.com/DoyleJ11/whiteboard-sync/internal/geom"
	"github.com/DoyleJ11/whiteboard-sync/internal/protocol"
	"github.com/DoyleJ11/whiteboard-sync/internal/roster"
	"github.com/DoyleJ11/whiteboard-sync/internal/scene"
	"github.com/DoyleJ11/whiteboard-sync/internal/smooth"
	"github.com/DoyleJ11/whiteboard-sync/internal/syncproto"
	"github.com/DoyleJ11/whiteboard-sync/internal/transport"
)

var (
	ErrNotStarted     = errors.New("session not started")
	ErrClosed         = errors.New("session closed")
	ErrAlreadyStarted = errors.New("session already started")
	ErrUnknownStroke  = errors.New("unknown stroke")
	ErrNotOwner       = errors.New("stroke belongs to another participant")
	ErrNoDialer       = errors.New("session has no dialer")
)

type Options struct {
	RoomID   string
	UserID   string
	Username string
	Dialer   transport.Dialer

	// FlushInterval paces outbound batches. Zero means batches leave only
	// on explicit Tick calls.
	FlushInterval        time.Duration
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
	WriteTimeout         time.Duration
	RequestStateOnJoin   bool

	Brush    smooth.Brush
	Scene    scene.Config
	Election roster.ElectionPolicy

	Clock  func() time.Time
	Logger *zap.Logger
}

// OptionsFromConfig copies the peer settings of cfg. Identity and dialer
// are left to the caller.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		RoomID:               cfg.Room,
		Username:             cfg.Username,
		FlushInterval:        cfg.FlushInterval,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		ReconnectDelay:       cfg.ReconnectDelay,
		WriteTimeout:         cfg.WriteTimeout,
		RequestStateOnJoin:   cfg.RequestStateOnJoin,
	}
}

func (o *Options) fill() {
	if o.MaxReconnectAttempts <= 0 {
		o.MaxReconnectAttempts = 5
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 3 * time.Second
	}
	if o.Brush == (smooth.Brush{}) {
		o.Brush = smooth.DefaultBrush()
	}
	if o.Scene == (scene.Config{}) {
		o.Scene = scene.DefaultConfig()
	}
	if o.Election == nil {
		o.Election = roster.EarliestJoin{}
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

type Session struct {
	opts  Options
	log   *zap.Logger
	inbox chan msg
	bus   *bus.Bus
	stats *syncproto.Stats
	notes chan Notification

	started atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	// owned by the loop
	scene      *scene.Scene
	roster     *roster.Roster
	life       *syncproto.Lifecycle
	batch      *syncproto.Batcher
	queue      syncproto.Queue
	rec        *syncproto.Reconciler
	local      map[string]*scene.Stroke
	resend     map[string]bool
	joinTime   int64
	conn       transport.Conn
	out        chan []byte
	writerDone chan struct{}
	connGen    int
	retryGen   int
	cursor     *geom.Point
	viewport   *geom.Rect
	unsubs     []func()
}

// New builds a session. Nothing runs until Init.
func New(opts Options) *Session {
	opts.fill()
	log := opts.Logger.Named("session").With(zap.String("room", opts.RoomID), zap.String("user", opts.UserID))
	stats := &syncproto.Stats{}
	sc := scene.New(opts.Scene)
	return &Session{
		opts:   opts,
		log:    log,
		inbox:  make(chan msg, 256),
		bus:    bus.New(),
		stats:  stats,
		notes:  make(chan Notification, 256),
		done:   make(chan struct{}),
		scene:  sc,
		roster: roster.New(opts.Election),
		life:   syncproto.NewLifecycle(opts.MaxReconnectAttempts, opts.ReconnectDelay),
		batch:  syncproto.NewBatcher(),
		rec:    syncproto.NewReconciler(opts.UserID, sc, stats, log),
		local:  make(map[string]*scene.Stroke),
		resend: make(map[string]bool),
	}
}

// Init registers the local participant and starts the session loop. It
// does not connect; call Connect for that.
func (s *Session) Init(parent context.Context) error {
	if s.started.Load() {
		return ErrAlreadyStarted
	}
	s.ctx, s.cancel = context.WithCancel(parent)
	s.joinTime = s.now()
	s.roster.Upsert(roster.Participant{UserID: s.opts.UserID, Username: s.opts.Username, JoinTime: s.joinTime})
	s.subscribe()
	s.started.Store(true)
	go s.loop()
	return nil
}

// Teardown announces the departure when connected, closes the transport and
// stops the loop. It is safe to call more than once.
func (s *Session) Teardown() {
	if !s.started.Load() {
		return
	}
	s.cancel()
	<-s.done
}

// Bus exposes inbound message dispatch. Handlers run on the session loop
// and must not call back into blocking Session methods.
func (s *Session) Bus() *bus.Bus { return s.bus }

// Notifications delivers state changes for the embedding application.
// Notifications are dropped when the channel is full.
func (s *Session) Notifications() <-chan Notification { return s.notes }

func (s *Session) Stats() map[string]any { return s.stats.Snapshot() }

func (s *Session) UserID() string { return s.opts.UserID }

func (s *Session) loop() {
	defer close(s.done)

	var tick <-chan time.Time
	if s.opts.FlushInterval > 0 {
		t := time.NewTicker(s.opts.FlushInterval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return
		case <-tick:
			s.flush()
		case m := <-s.inbox:
			s.handle(m)
		}
	}
}

func (s *Session) shutdown() {
	if s.conn != nil && s.life.State() == syncproto.StateConnected {
		s.flush()
		s.writeNow(protocol.Leave{})
	}
	s.dropConn()
	s.life.Disconnect()
	for _, off := range s.unsubs {
		off()
	}
	s.log.Info("session stopped")
}

func (s *Session) now() int64 { return s.opts.Clock().UnixMilli() }

// post hands m to the loop. It fails once the session is stopping.
func (s *Session) post(m msg) bool {
	select {
	case s.inbox <- m:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *Session) notify(n Notification) {
	select {
	case s.notes <- n:
	default:
		s.log.Debug("notification dropped", zap.String("kind", string(n.Kind)))
	}
}
