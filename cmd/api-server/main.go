package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/brightdent/appointment-actions/internal/action"
	"github.com/brightdent/appointment-actions/internal/api"
	"github.com/brightdent/appointment-actions/internal/auth"
	"github.com/brightdent/appointment-actions/internal/config"
	"github.com/brightdent/appointment-actions/internal/db"
	"github.com/brightdent/appointment-actions/internal/notify"
	"github.com/brightdent/appointment-actions/internal/payment"
	redisclient "github.com/brightdent/appointment-actions/internal/redis"
)

const version = "1.2.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("config load error")
	}

	log := newLogger(cfg.Env)
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	sessions := redisclient.NewSessionStore(rdb, cfg.SessionTTL)
	verifier := auth.NewVerifier([]byte(cfg.JWTSecret), cfg.JWTIssuer, sessions)

	email := notify.NewEmailAPIClient(cfg.EmailAPIBase, cfg.EmailAPIKey, "portal@brightdent.example")
	chat := notify.NewChatWebhookClient(cfg.ChatWebhookURL)
	sms := notify.NewSMSAPIClient(cfg.SMSAPIBase, cfg.SMSAPIKey, cfg.SMSSender)
	notifier := notify.NewNotifier(email, chat, cfg.StaffEmail, cfg.NotifyTimeout, log)

	payments := payment.NewHTTPVerifier(cfg.PaymentAPIBase, cfg.PaymentAPIKey)

	repo := action.NewPgRepository(pgPool)
	svc := action.NewService(repo, notifier, payments, sms, log)

	router := api.NewRouter(api.RouterConfig{
		Service:    svc,
		Verifier:   verifier,
		PgPool:     pgPool,
		Redis:      rdb,
		BookingURL: cfg.BookingURL,
		Env:        cfg.Env,
		Version:    version,
		Logger:     log,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "dev" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
