package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/whiteboard-sync/internal/hub"
	"github.com/DoyleJ11/whiteboard-sync/internal/ws"
)

func SetupRoutes(h *hub.Hub, wsOpts ws.Options, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()

	// Public routes
	r.Post("/rooms", CreateRoom(h, log))
	r.Get("/rooms/{code}", GetRoom(h))
	r.Delete("/rooms/{code}", DeleteRoom(h))
	r.Get("/metrics", Metrics(h))
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(h, wsOpts, log))
	return r
}
