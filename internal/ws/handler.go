package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/whiteboard-sync/internal/hub"
	"github.com/DoyleJ11/whiteboard-sync/internal/room"
)

type Options struct {
	ClientBuffer int           // frames queued per client before it counts as slow
	ReadTimeout  time.Duration // idle limit between client frames
	WriteTimeout time.Duration
	ReadLimit    int64 // max frame size
}

func (o *Options) fill() {
	if o.ClientBuffer <= 0 {
		o.ClientBuffer = 64
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 60 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 3 * time.Second
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 4 << 20
	}
}

// Handler upgrades GET /ws?room=CODE&user=ID and attaches the connection to
// the room.
func Handler(h *hub.Hub, opts Options, log *zap.Logger) http.HandlerFunc {
	opts.fill()
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("ws")

	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("room")
		user := r.URL.Query().Get("user")
		if code == "" || user == "" {
			http.Error(w, "missing room or user", http.StatusBadRequest)
			return
		}

		reply := make(chan *room.Room, 1)
		h.Inbox() <- hub.GetRoom{Code: code, Reply: reply}
		rm := <-reply
		if rm == nil {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			log.Debug("accept", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")
		conn.SetReadLimit(opts.ReadLimit)

		out := make(chan []byte, opts.ClientBuffer)
		clientID := uuid.NewString()
		clog := log.With(zap.String("room", code), zap.String("user", user), zap.String("client", clientID))

		select {
		case rm.Inbox() <- room.Join{ClientID: clientID, UserID: user, Outbox: out}:
		case <-rm.Done():
			return
		}
		defer func() {
			select {
			case rm.Inbox() <- room.Leave{ClientID: clientID}:
			case <-rm.Done():
			}
		}()

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for frame := range out {
				ctx, cancel := context.WithTimeout(writeCtx, opts.WriteTimeout)
				err := conn.Write(ctx, websocket.MessageText, frame)
				cancel()
				if err != nil {
					clog.Debug("write", zap.Error(err))
				}
			}
			// the room closed our outbox: it dropped us or shut down
			conn.Close(websocket.StatusGoingAway, "dropped")
		}()

		// Reader loop
		for {
			ctx, cancel := context.WithTimeout(r.Context(), opts.ReadTimeout)
			_, data, err := conn.Read(ctx)
			cancel()
			if err != nil {
				// Treat clean close/going-away as normal:
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				clog.Debug("read", zap.Error(err))
				return
			}

			select {
			case rm.Inbox() <- room.FromClient{ClientID: clientID, Frame: data}:
			case <-rm.Done():
				return
			}
		}
	}
}
