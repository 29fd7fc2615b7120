package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/brightdent/appointment-actions/internal/config"
	"github.com/brightdent/appointment-actions/internal/db"
	redisclient "github.com/brightdent/appointment-actions/internal/redis"
)

var log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

func main() {
	log.Info().Msg("seed starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("connect redis")
	}
	defer rdb.Close()

	gofakeit.Seed(time.Now().UnixNano())

	sessions := redisclient.NewSessionStore(rdb, cfg.SessionTTL)

	if err := seedActions(ctx, pool, sessions, 200); err != nil {
		log.Fatal().Err(err).Msg("seed appointment actions")
	}

	log.Info().Msg("seed complete")
}

// seedActions creates one patient per record: a future appointment in the
// next 1-14 days, plus a dev session token so the record is reachable through
// the API. The first few tokens are printed for manual poking.
func seedActions(ctx context.Context, pool *pgxpool.Pool, sessions *redisclient.SessionStore, count int) error {
	log.Info().Int("count", count).Msg("seeding appointment actions")

	doctors := []string{
		"Dr. Kowalska",
		"Dr. Nowak",
		"Dr. Wiśniewski",
		"Dr. Lewandowska",
		"Dr. Zieliński",
	}

	const batchSize = 50

	printed := 0
	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			patientID := uuid.NewString()
			prodentisID := fmt.Sprintf("PRD-%06d", gofakeit.Number(100000, 999999))
			phone := gofakeit.Phone()
			start := time.Now().Add(time.Duration(gofakeit.Number(1, 14*24)) * time.Hour).Truncate(time.Minute)
			doctor := doctors[gofakeit.Number(0, len(doctors)-1)]

			_, err := tx.Exec(ctx, `
				INSERT INTO appointment_actions (
					id, patient_id, prodentis_id, patient_phone,
					appointment_date, appointment_end_date, doctor_name,
					status, created_at, updated_at
				)
				VALUES ($1, $2, $3, $4, $5, $6, $7, 'unpaid_reservation', now(), now())
			`, id, patientID, prodentisID, phone, start, start.Add(30*time.Minute), doctor)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}

			token := uuid.NewString()
			err = sessions.Put(ctx, token, redisclient.Session{
				PatientID:   patientID,
				ProdentisID: prodentisID,
				Phone:       phone,
			})
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}

			if printed < 3 {
				log.Info().
					Str("action_id", id.String()).
					Str("token", token).
					Msg("dev session")
				printed++
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Info().Int("done", end).Int("total", count).Msg("appointment actions seeded")
	}

	return nil
}
