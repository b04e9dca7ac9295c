package hub

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/DoyleJ11/whiteboard-sync/internal/room"
)

type HubMsg interface{ isHubMsg() }

type CreateRoom struct {
	Code  string
	Reply chan *room.Room
}

type GetRoom struct {
	Code  string
	Reply chan *room.Room
}

type EnsureRoom struct {
	Code  string
	Reply chan *room.Room
}

type RemoveRoom struct {
	Code  string
	Reply chan bool
}

type ListRooms struct {
	Reply chan []*room.Room
}

type ShutdownHub struct{}

func (CreateRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (EnsureRoom) isHubMsg()  {}
func (RemoveRoom) isHubMsg()  {}
func (ListRooms) isHubMsg()   {}
func (ShutdownHub) isHubMsg() {}

// Hub owns the set of live rooms, keyed by room code.
type Hub struct {
	inbox  chan HubMsg
	rooms  map[string]*room.Room
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[string]*room.Room),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Done is closed once the hub has stopped.
func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom, EnsureRoom:
				code, reply := roomRequest(msg)
				if r := h.rooms[code]; r != nil {
					reply <- r
					break
				}
				r := room.NewRoom(h.ctx, code, h.log)
				h.rooms[code] = r
				h.log.Info("room created", zap.String("room", code))
				reply <- r

			case GetRoom:
				msg.Reply <- h.rooms[msg.Code] // may be nil

			case RemoveRoom:
				r, ok := h.rooms[msg.Code]
				if ok {
					stopRoom(r)
					delete(h.rooms, msg.Code)
					h.log.Info("room removed", zap.String("room", msg.Code))
				}
				if msg.Reply != nil {
					msg.Reply <- ok
				}

			case ListRooms:
				codes := make([]string, 0, len(h.rooms))
				for c := range h.rooms {
					codes = append(codes, c)
				}
				sort.Strings(codes)
				out := make([]*room.Room, 0, len(codes))
				for _, c := range codes {
					out = append(out, h.rooms[c])
				}
				msg.Reply <- out

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func roomRequest(m HubMsg) (string, chan *room.Room) {
	switch msg := m.(type) {
	case CreateRoom:
		return msg.Code, msg.Reply
	case EnsureRoom:
		return msg.Code, msg.Reply
	}
	return "", nil
}

func (h *Hub) shutdown() {
	for _, r := range h.rooms {
		stopRoom(r)
	}
	clear(h.rooms)
	h.cancel()
}

func stopRoom(r *room.Room) {
	select {
	case r.Inbox() <- room.Shutdown{}:
	case <-r.Done():
	}
}
