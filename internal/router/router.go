package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appMiddleware "github.com/iamnithishraja/cavens-assistant/app/middleware"
	"github.com/iamnithishraja/cavens-assistant/internal/api/assistant"
)

// NewRouter assembles the API routes. The assistant endpoints sit behind the
// bearer-token middleware; ping and metrics stay open.
func NewRouter(assistantHandler *assistant.Handler, jwtSecret string, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(appMiddleware.Authenticate(logger, jwtSecret))

		r.Route("/assistant", func(r chi.Router) {
			r.Post("/chat", assistantHandler.Chat)
			r.Get("/suggestions", assistantHandler.Suggestions)
		})
	})

	return r
}
