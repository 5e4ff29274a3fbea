package main

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/carecoord/internal/config"
	"github.com/hackgods/carecoord/internal/db"
	"github.com/hackgods/carecoord/internal/logging"
)

const (
	professionalCount = 100
	guardianCount     = 2000
	legacyShare       = 4 // every Nth seeded dependent gets a pre-ledger care record
)

var specializations = map[string][]string{
	"doctor":    {"Pediatrics", "General Practice", "Neurology", "Endocrinology", "Psychiatry"},
	"therapist": {"Speech", "Occupational", "Physical", "Behavioral", "Music"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, "seed")
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, cfg.DBMaxConns, 0)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(context.Background(), pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	_ = gofakeit.Seed(0) // 0 picks a random seed

	doctors, therapists, err := seedProfessionals(context.Background(), pool, professionalCount)
	if err != nil {
		logger.Fatal("seed professionals", zap.Error(err))
	}
	logger.Info("professionals seeded", zap.Int("doctors", len(doctors)), zap.Int("therapists", len(therapists)))

	legacy, err := seedFamilies(context.Background(), pool, guardianCount, doctors, therapists, logger)
	if err != nil {
		logger.Fatal("seed families", zap.Error(err))
	}

	logger.Info("seed complete", zap.Int("legacy_records", legacy))
}

func insertUser(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	dob := gofakeit.DateRange(time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC))
	_, err := tx.Exec(ctx, `
		INSERT INTO users (id, first_name, last_name, date_of_birth, gender)
		VALUES ($1, $2, $3, $4, $5)
	`, id, gofakeit.FirstName(), gofakeit.LastName(), dob, gofakeit.Gender())
	return err
}

func seedProfessionals(ctx context.Context, pool *pgxpool.Pool, count int) (doctors, therapists []uuid.UUID, err error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		if err := insertUser(ctx, tx, id); err != nil {
			return nil, nil, err
		}

		role := "doctor"
		if i%2 == 1 {
			role = "therapist"
		}
		base := gofakeit.Price(50, 200)
		rates, err := json.Marshal(map[string]float64{
			"default":   base,
			"video":     base * 0.8,
			"in-person": base,
		})
		if err != nil {
			return nil, nil, err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO professionals (id, role, specialization, active, rates, session_length_minutes)
			VALUES ($1, $2, $3, $4, $5::jsonb, $6)
		`, id, role, gofakeit.RandomString(specializations[role]), gofakeit.Number(0, 9) > 0, string(rates),
			[]int{30, 45, 60}[gofakeit.Number(0, 2)])
		if err != nil {
			return nil, nil, err
		}

		if role == "doctor" {
			doctors = append(doctors, id)
		} else {
			therapists = append(therapists, id)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return doctors, therapists, nil
}

// seedFamilies inserts guardians with one to three dependents each. Some
// dependents get a care record that only carries the legacy assignment
// columns, for the assignment migration to pick up.
func seedFamilies(ctx context.Context, pool *pgxpool.Pool, count int, doctors, therapists []uuid.UUID, logger *zap.Logger) (int, error) {
	const batchSize = 250
	pick := func(ids []uuid.UUID) uuid.UUID { return ids[gofakeit.Number(0, len(ids)-1)] }

	legacy := 0
	seen := 0
	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return legacy, err
		}

		for i := offset; i < end; i++ {
			guardian := uuid.New()
			if err := insertUser(ctx, tx, guardian); err != nil {
				_ = tx.Rollback(ctx)
				return legacy, err
			}

			for n := gofakeit.Number(1, 3); n > 0; n-- {
				dep := uuid.New()
				first, last := gofakeit.FirstName(), gofakeit.LastName()
				dob := gofakeit.DateRange(time.Date(2008, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC))
				gender := gofakeit.Gender()

				if _, err := tx.Exec(ctx, `
					INSERT INTO dependents (id, guardian_id, first_name, last_name, date_of_birth, gender)
					VALUES ($1, $2, $3, $4, $5, $6)
				`, dep, guardian, first, last, dob, gender); err != nil {
					_ = tx.Rollback(ctx)
					return legacy, err
				}

				seen++
				if seen%legacyShare != 0 || len(doctors) == 0 || len(therapists) == 0 {
					continue
				}

				primaryTherapist := pick(therapists)
				if _, err := tx.Exec(ctx, `
					INSERT INTO care_records (
						id, owner_id, dependent_id, record_type, first_name, last_name, date_of_birth, gender,
						legacy_primary_doctor_id, legacy_primary_therapist_id, legacy_doctor_ids, legacy_therapist_ids)
					VALUES ($1, $2, $3, 'dependent', $4, $5, $6, $7, $8, $9, $10, $11)
				`, uuid.New(), guardian, dep, first, last, dob, gender,
					pick(doctors), primaryTherapist, []uuid.UUID{pick(doctors)}, []uuid.UUID{primaryTherapist, pick(therapists)}); err != nil {
					_ = tx.Rollback(ctx)
					return legacy, err
				}
				legacy++
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return legacy, err
		}

		logger.Info("guardians seeded", zap.Int("done", end), zap.Int("total", count))
	}

	return legacy, nil
}
