package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/brightdent/appointment-actions/internal/action"
	"github.com/brightdent/appointment-actions/internal/config"
	"github.com/brightdent/appointment-actions/internal/db"
	"github.com/brightdent/appointment-actions/internal/notify"
	"github.com/brightdent/appointment-actions/internal/payment"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("config load error")
	}

	log := zerolog.New(os.Stdout).With().Timestamp().Str("component", "reminder-worker").Logger()
	log.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("reminder-worker starting up")

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

	sms := notify.NewSMSAPIClient(cfg.SMSAPIBase, cfg.SMSAPIKey, cfg.SMSSender)

	// The worker only sends reminder SMS; staff fan-out and payment
	// verification stay with the API process.
	email := notify.NewEmailAPIClient(cfg.EmailAPIBase, cfg.EmailAPIKey, "portal@brightdent.example")
	chat := notify.NewChatWebhookClient(cfg.ChatWebhookURL)
	notifier := notify.NewNotifier(email, chat, cfg.StaffEmail, cfg.NotifyTimeout, log)
	payments := payment.NewHTTPVerifier(cfg.PaymentAPIBase, cfg.PaymentAPIKey)

	repo := action.NewPgRepository(pgPool)
	svc := action.NewService(repo, notifier, payments, sms, log)

	// Run once at startup
	runOnce(rootCtx, svc, log)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping reminder worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, log)
		}
	}
}

func runOnce(ctx context.Context, svc *action.Service, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	start := time.Now()
	sent, err := svc.SendAttendanceReminders(runCtx)
	if err != nil {
		log.Error().Err(err).Msg("reminder run error")
		return
	}
	log.Info().Int("sent", sent).Dur("took", time.Since(start)).Msg("reminder run complete")
}
