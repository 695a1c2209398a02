package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/agent-configurator/internal/middleware"
	"github.com/capitalize-ai/agent-configurator/pkg/logger"
)

// RouterConfig carries the handlers and HTTP policy for NewRouter.
type RouterConfig struct {
	Health        *HealthHandler
	Configuration *ConfigurationHandler
	Chat          *ChatHandler
	Stream        *StreamHandler
	WebSocket     *WebSocketHandler
	Media         *MediaHandler
	Playback      *PlaybackHandler

	AllowedOrigins []string
	// Limiter throttles submissions per client IP; nil disables it.
	Limiter      *middleware.Limiter
	MaxBodyBytes int64
	Logger       *logger.Logger
}

// NewRouter wires every endpoint.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.Get("/health", cfg.Health.Health)
	r.Get("/ready", cfg.Health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/objectives", cfg.Configuration.Objectives)

		r.Route("/configuration", func(r chi.Router) {
			r.Use(middleware.MaxBodySize(1 << 20))

			r.Get("/", cfg.Configuration.Get)
			r.Put("/", cfg.Configuration.Replace)
			r.Post("/save", cfg.Configuration.Save)
			r.Post("/revert", cfg.Configuration.Revert)
			r.Post("/reload", cfg.Configuration.Reload)

			r.Put("/objective", cfg.Configuration.SetObjective)
			r.Put("/conversation-type", cfg.Configuration.SetConversationType)
			r.Patch("/flags", cfg.Configuration.SetFlags)

			r.Post("/fields", cfg.Configuration.AddField)
			r.Put("/fields/{id}", cfg.Configuration.UpdateField)
			r.Delete("/fields/{id}", cfg.Configuration.RemoveField)

			r.Post("/guidelines", cfg.Configuration.AddGuideline)
			r.Put("/guidelines/{id}", cfg.Configuration.UpdateGuideline)
			r.Delete("/guidelines/{id}", cfg.Configuration.RemoveGuideline)

			r.Post("/messages", cfg.Configuration.AddMessage)
			r.Put("/messages", cfg.Configuration.ReplaceMessages)
			r.Post("/messages/move", cfg.Configuration.MoveMessage)
			r.Put("/messages/{id}", cfg.Configuration.UpdateMessage)
			r.Delete("/messages/{id}", cfg.Configuration.RemoveMessage)
		})

		r.Route("/chat", func(r chi.Router) {
			r.Get("/messages", cfg.Chat.Messages)
			r.Get("/stream", cfg.Stream.Stream)
			r.Handle("/ws", cfg.WebSocket)
			r.Post("/start", cfg.Chat.Start)
			r.Post("/reset", cfg.Chat.Reset)

			// submissions reach the LLM provider
			r.Group(func(r chi.Router) {
				if cfg.Limiter != nil {
					r.Use(cfg.Limiter.Handler)
				}
				if cfg.MaxBodyBytes > 0 {
					r.Use(middleware.MaxBodySize(cfg.MaxBodyBytes))
				}
				r.Post("/text", cfg.Chat.SendText)
				r.Post("/audio", cfg.Chat.SendAudio)
				r.Post("/file", cfg.Chat.SendFile)
			})
		})

		r.Get("/media/{id}", cfg.Media.Get)

		r.Route("/playback", func(r chi.Router) {
			r.Get("/", cfg.Playback.State)
			r.Post("/stop", cfg.Playback.Stop)
			r.Post("/{id}/play", cfg.Playback.Play)
			r.Post("/{id}/ended", cfg.Playback.Ended)
			r.Post("/{id}/error", cfg.Playback.Failed)
		})
	})

	return r
}
