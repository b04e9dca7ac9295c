package httpapi

import (
	"crypto/rand"
	"encoding/json"
	"math/big"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/whiteboard-sync/internal/hub"
	"github.com/DoyleJ11/whiteboard-sync/internal/room"
)

func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

func CreateRoom(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var code string
		for {
			c, err := GenerateCode()
			if err != nil {
				http.Error(w, "failed to generate code", http.StatusInternalServerError)
				return
			}
			reply := make(chan *room.Room, 1)
			h.Inbox() <- hub.GetRoom{Code: c, Reply: reply}
			if <-reply == nil {
				code = c
				break
			}
			log.Debug("collision on code, regenerating", zap.String("code", c))
		}

		reply := make(chan *room.Room, 1)
		h.Inbox() <- hub.EnsureRoom{Code: code, Reply: reply}
		if <-reply == nil {
			http.Error(w, "failed to create room", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusCreated, struct {
			Code string `json:"code"`
		}{Code: code})
	}
}

func GetRoom(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rm := lookup(h, chi.URLParam(r, "code"))
		if rm == nil {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		v, ok := roomView(rm)
		if !ok {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func DeleteRoom(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := make(chan bool, 1)
		h.Inbox() <- hub.RemoveRoom{Code: chi.URLParam(r, "code"), Reply: reply}
		if !<-reply {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// Metrics reports per-room counters.
func Metrics(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list := make(chan []*room.Room, 1)
		h.Inbox() <- hub.ListRooms{Reply: list}
		rooms := map[string]any{}
		for _, rm := range <-list {
			if v, ok := roomView(rm); ok {
				rooms[rm.Code()] = map[string]any{"clients": v.NumClients, "metrics": v.Metrics}
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms, "room_count": len(rooms)})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func lookup(h *hub.Hub, code string) *room.Room {
	reply := make(chan *room.Room, 1)
	h.Inbox() <- hub.GetRoom{Code: code, Reply: reply}
	return <-reply
}

func roomView(rm *room.Room) (room.View, bool) {
	reply := make(chan room.View, 1)
	select {
	case rm.Inbox() <- room.GetState{Reply: reply}:
	case <-rm.Done():
		return room.View{}, false
	}
	select {
	case v := <-reply:
		return v, true
	case <-rm.Done():
		return room.View{}, false
	case <-time.After(time.Second):
		return room.View{}, false
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
