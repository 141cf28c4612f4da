package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lol-trivia-service/internal/app"
)

// NewRouter mounts the health, metrics, websocket and lobby routes.
func NewRouter(service *app.TriviaService, ws *WSHandler, logger *slog.Logger) http.Handler {
	lobbies := NewLobbyHandler(service, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.AllowAll().Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", ws.ServeWS)

	r.Route("/lobbies", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Post("/", lobbies.Create)
		r.Route("/{lobbyID}", func(r chi.Router) {
			r.Get("/", lobbies.Get)
			r.Post("/players", lobbies.AddPlayer)
			r.Delete("/players/{playerID}", lobbies.RemovePlayer)
			r.Post("/start", lobbies.Start)
			r.Delete("/game", lobbies.EndGame)
		})
	})
	return r
}
