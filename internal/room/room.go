package room

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/whiteboard-sync/internal/protocol"
)

type Msg interface{ isRoomMsg() }

// FromClient is one frame read from a client connection.
type FromClient struct {
	ClientID string
	Frame    []byte
}

func (FromClient) isRoomMsg() {}

type Join struct {
	ClientID string
	UserID   string
	Outbox   chan []byte // frames relayed to this client
}

func (Join) isRoomMsg() {}

// Leave reports that a client connection is gone.
type Leave struct{ ClientID string }

func (Leave) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isRoomMsg() {}

type View struct {
	Code       string         `json:"code"`
	NumClients int            `json:"numClients"`
	Users      []string       `json:"users"`
	Metrics    map[string]any `json:"metrics"`
}

type client struct {
	userID string
	out    chan []byte
	left   bool // sent its own leave
}

// Room relays frames between the clients of one whiteboard. It never
// interprets drawing state: it checks that a frame is well formed and
// carries the sender's own user id, then fans it out to everyone else.
type Room struct {
	code    string
	inbox   chan Msg
	clients map[string]*client
	order   []string
	metrics *Metrics
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	now     func() time.Time
}

func NewRoom(parent context.Context, code string, log *zap.Logger) *Room {
	ctx, cancel := context.WithCancel(parent)
	if log == nil {
		log = zap.NewNop()
	}

	r := &Room{
		code:    code,
		inbox:   make(chan Msg, 256),
		clients: make(map[string]*client),
		metrics: &Metrics{},
		log:     log.Named("room").With(zap.String("room", code)),
		ctx:     ctx,
		cancel:  cancel,
		now:     time.Now,
	}

	go r.loop()
	return r
}

func (r *Room) Code() string { return r.code }

func (r *Room) Metrics() *Metrics { return r.metrics }

// Inbox accepts messages for the room loop.
func (r *Room) Inbox() chan<- Msg { return r.inbox }

// Done is closed once the room has shut down.
func (r *Room) Done() <-chan struct{} { return r.ctx.Done() }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				r.clients[msg.ClientID] = &client{userID: msg.UserID, out: msg.Outbox}
				r.order = append(r.order, msg.ClientID)
				r.metrics.IncJoins()
				r.log.Info("client joined", zap.String("client", msg.ClientID), zap.String("user", msg.UserID))

			case Leave:
				c, ok := r.clients[msg.ClientID]
				if !ok {
					break
				}
				r.remove(msg.ClientID)
				close(c.out)
				r.log.Info("client left", zap.String("client", msg.ClientID), zap.String("user", c.userID))
				r.farewell(c)

			case FromClient:
				r.relay(msg)

			case GetState:
				msg.Reply <- r.view()

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) relay(msg FromClient) {
	c, ok := r.clients[msg.ClientID]
	if !ok {
		return
	}
	in, err := protocol.Decode(msg.Frame)
	if err != nil {
		r.metrics.IncMalformed()
		r.log.Debug("dropped malformed frame", zap.String("client", msg.ClientID), zap.Error(err))
		return
	}
	if in.UserID != c.userID || (in.RoomID != "" && in.RoomID != r.code) {
		r.metrics.IncSpoofed()
		r.log.Warn("dropped frame with foreign identity",
			zap.String("client", msg.ClientID),
			zap.String("claimed_user", in.UserID),
			zap.String("claimed_room", in.RoomID),
		)
		return
	}
	if in.Msg.Type() == protocol.TypeLeave {
		c.left = true
	}
	r.metrics.IncRelayed()
	r.broadcast(msg.ClientID, msg.Frame)
}

// broadcast sends frame to every client except the sender. Clients whose
// outbox is full are dropped.
func (r *Room) broadcast(from string, frame []byte) {
	var slow []*client
	for _, id := range r.order {
		if id == from {
			continue
		}
		c := r.clients[id]
		select {
		case c.out <- frame:
			// ok
		default:
			r.remove(id)
			close(c.out)
			r.metrics.IncSlowDropped()
			r.log.Warn("dropped slow client", zap.String("client", id), zap.String("user", c.userID))
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		r.farewell(c)
	}
}

// farewell tells the others that c's user is gone when it vanished without
// saying so and has no other connection in the room.
func (r *Room) farewell(c *client) {
	if c.left {
		return
	}
	for _, other := range r.clients {
		if other.userID == c.userID {
			return
		}
	}
	frame, err := protocol.Encode(c.userID, r.code, r.now().UnixMilli(), protocol.Leave{})
	if err != nil {
		r.log.Error("encode leave", zap.Error(err))
		return
	}
	r.metrics.IncLeavesSynthesized()
	r.broadcast("", frame)
}

func (r *Room) remove(id string) {
	delete(r.clients, id)
	for i, o := range r.order {
		if o == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *Room) view() View {
	users := make([]string, 0, len(r.order))
	for _, id := range r.order {
		users = append(users, r.clients[id].userID)
	}
	return View{Code: r.code, NumClients: len(r.clients), Users: users, Metrics: r.metrics.Snapshot()}
}

func (r *Room) shutdown() {
	for id, c := range r.clients {
		close(c.out) // no more frames for this client
		delete(r.clients, id)
	}
	r.order = nil
	r.cancel()
}
