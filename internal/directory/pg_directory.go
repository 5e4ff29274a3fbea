package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgDirectory struct {
	pool *pgxpool.Pool
}

func NewPgDirectory(pool *pgxpool.Pool) *PgDirectory {
	return &PgDirectory{pool: pool}
}

func (d *PgDirectory) GetProfessional(ctx context.Context, id uuid.UUID) (*Professional, error) {
	var p Professional
	err := d.pool.QueryRow(ctx, `
		SELECT id, role, specialization, active, rates, session_length_minutes,
		       appointment_count, created_at, updated_at
		FROM professionals
		WHERE id = $1
	`, id).Scan(
		&p.ID,
		&p.Role,
		&p.Specialization,
		&p.Active,
		&p.Rates,
		&p.SessionLengthMinutes,
		&p.AppointmentCount,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfessionalNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (d *PgDirectory) IncrementAppointmentCount(ctx context.Context, id uuid.UUID) error {
	tag, err := d.pool.Exec(ctx, `
		UPDATE professionals
		SET appointment_count = appointment_count + 1,
		    updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("increment appointment count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProfessionalNotFound
	}
	return nil
}

func (d *PgDirectory) GetUser(ctx context.Context, id uuid.UUID) (*Person, error) {
	var p Person
	err := d.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, date_of_birth, gender
		FROM users
		WHERE id = $1
	`, id).Scan(&p.ID, &p.FirstName, &p.LastName, &p.DateOfBirth, &p.Gender)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (d *PgDirectory) GetDependent(ctx context.Context, id uuid.UUID) (*Dependent, error) {
	var dep Dependent
	err := d.pool.QueryRow(ctx, `
		SELECT id, guardian_id, first_name, last_name, date_of_birth, gender
		FROM dependents
		WHERE id = $1
	`, id).Scan(&dep.ID, &dep.GuardianID, &dep.FirstName, &dep.LastName, &dep.DateOfBirth, &dep.Gender)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDependentNotFound
		}
		return nil, err
	}
	return &dep, nil
}
