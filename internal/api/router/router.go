package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/citasalud/citasalud-platform/internal/http/handlers"
	httpmiddleware "github.com/citasalud/citasalud-platform/internal/http/middleware"
	"github.com/citasalud/citasalud-platform/internal/webhooks"
	"github.com/citasalud/citasalud-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	VoiceWebhooks  *webhooks.Handler
	AdminReminders *handlers.AdminRemindersHandler
	AdminToken     string
	MetricsHandler http.Handler

	// Per-IP limit applied to webhook endpoints; zero disables limiting.
	WebhookRate  float64
	WebhookBurst int
}

// New creates a Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (webhooks, health checks)
	r.Group(func(public chi.Router) {
		public.Get("/health", handlers.HealthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.VoiceWebhooks != nil {
			public.Route("/webhooks/voice", func(r chi.Router) {
				if cfg.WebhookRate > 0 {
					r.Use(httpmiddleware.RateLimit(cfg.WebhookRate, cfg.WebhookBurst))
				}
				r.Post("/events", cfg.VoiceWebhooks.HandleVoiceEvents)
			})
		}
	})

	// Privileged operations, token-gated
	if cfg.AdminReminders != nil {
		r.Route("/admin/reminders", func(admin chi.Router) {
			admin.Use(requireAdminToken(cfg.AdminToken))
			admin.Post("/scan", cfg.AdminReminders.TriggerScan)
			admin.Post("/enqueue", cfg.AdminReminders.EnqueueReminder)
		})
	}

	return r
}
