package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/brightdent/appointment-actions/internal/action"
	"github.com/brightdent/appointment-actions/internal/auth"
)

type RouterConfig struct {
	Service    *action.Service
	Verifier   *auth.Verifier
	PgPool     *pgxpool.Pool
	Redis      *redis.Client
	BookingURL string
	Env        string
	Version    string
	Logger     zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints, unauthenticated
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Appointment action endpoints, bearer credential required
	r.Route("/appointment-actions", func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Verifier))

		r.Post("/", createActionHandler(cfg.Service))
		r.Get("/by-date", byDateHandler(cfg.Service))
		r.Get("/{id}/status", statusHandler(cfg.Service))
		r.Post("/{id}/cancel", cancelHandler(cfg.Service))
		r.Post("/{id}/reschedule", rescheduleHandler(cfg.Service, cfg.BookingURL))
		r.Post("/{id}/confirm-attendance", confirmAttendanceHandler(cfg.Service))
		r.Post("/{id}/confirm-deposit", confirmDepositHandler(cfg.Service))
		r.Post("/{id}/reset-status", resetStatusHandler(cfg.Service))
	})

	return r
}
