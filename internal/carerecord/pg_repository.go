package carerecord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const recordColumns = `
	id, owner_id, dependent_id, record_type, first_name, last_name, date_of_birth, gender,
	onboarding_professional_id, assignments, shared_with,
	legacy_primary_doctor_id, legacy_primary_therapist_id, legacy_doctor_ids, legacy_therapist_ids,
	active, version, created_at, updated_at`

func scanRecord(row pgx.Row) (*CareRecord, error) {
	var rec CareRecord

	err := row.Scan(
		&rec.ID,
		&rec.OwnerID,
		&rec.DependentID,
		&rec.RecordType,
		&rec.FirstName,
		&rec.LastName,
		&rec.DateOfBirth,
		&rec.Gender,
		&rec.OnboardingProfessionalID,
		&rec.Assignments,
		&rec.SharedWith,
		&rec.Legacy.PrimaryDoctorID,
		&rec.Legacy.PrimaryTherapistID,
		&rec.Legacy.DoctorIDs,
		&rec.Legacy.TherapistIDs,
		&rec.Active,
		&rec.Version,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	return &rec, nil
}

func scanRecords(rows pgx.Rows) ([]*CareRecord, error) {
	defer rows.Close()

	var result []*CareRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func nonNilIDs(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}

func assignmentsJSON(as []Assignment) ([]byte, error) {
	if as == nil {
		as = []Assignment{}
	}
	return json.Marshal(as)
}

func (r *PgRepository) Create(ctx context.Context, rec *CareRecord) error {
	if err := rec.ValidateLedger(); err != nil {
		return err
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	assignments, err := assignmentsJSON(rec.Assignments)
	if err != nil {
		return fmt.Errorf("encode assignments: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO care_records (
			id, owner_id, dependent_id, record_type, first_name, last_name, date_of_birth, gender,
			onboarding_professional_id, assignments, shared_with,
			legacy_primary_doctor_id, legacy_primary_therapist_id, legacy_doctor_ids, legacy_therapist_ids,
			active, version, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11, $12, $13, $14, $15, $16, 1, now(), now())
		RETURNING version, created_at, updated_at
	`,
		rec.ID, rec.OwnerID, rec.DependentID, rec.RecordType, rec.FirstName, rec.LastName,
		rec.DateOfBirth, rec.Gender, rec.OnboardingProfessionalID, string(assignments),
		nonNilIDs(rec.SharedWith), rec.Legacy.PrimaryDoctorID, rec.Legacy.PrimaryTherapistID,
		nonNilIDs(rec.Legacy.DoctorIDs), nonNilIDs(rec.Legacy.TherapistIDs), rec.Active,
	).Scan(&rec.Version, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrRecordExists
		}
		return fmt.Errorf("insert care record: %w", err)
	}
	return nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*CareRecord, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM care_records WHERE id = $1`, id)
	return scanRecord(row)
}

func (r *PgRepository) FindByDependent(ctx context.Context, dependentID uuid.UUID) (*CareRecord, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM care_records WHERE dependent_id = $1`, dependentID)
	return scanRecord(row)
}

func (r *PgRepository) FindRegularByOwner(ctx context.Context, ownerID uuid.UUID) (*CareRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM care_records
		WHERE owner_id = $1 AND record_type = 'regular'
	`, ownerID)
	return scanRecord(row)
}

func (r *PgRepository) Update(ctx context.Context, rec *CareRecord) error {
	if err := rec.ValidateLedger(); err != nil {
		return err
	}
	assignments, err := assignmentsJSON(rec.Assignments)
	if err != nil {
		return fmt.Errorf("encode assignments: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		UPDATE care_records
		SET owner_id = $3,
		    first_name = $4,
		    last_name = $5,
		    date_of_birth = $6,
		    gender = $7,
		    onboarding_professional_id = $8,
		    assignments = $9::jsonb,
		    shared_with = $10,
		    legacy_primary_doctor_id = $11,
		    legacy_primary_therapist_id = $12,
		    legacy_doctor_ids = $13,
		    legacy_therapist_ids = $14,
		    active = $15,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1
		  AND version = $2
		RETURNING version, updated_at
	`,
		rec.ID, rec.Version, rec.OwnerID, rec.FirstName, rec.LastName, rec.DateOfBirth, rec.Gender,
		rec.OnboardingProfessionalID, string(assignments), nonNilIDs(rec.SharedWith),
		rec.Legacy.PrimaryDoctorID, rec.Legacy.PrimaryTherapistID,
		nonNilIDs(rec.Legacy.DoctorIDs), nonNilIDs(rec.Legacy.TherapistIDs), rec.Active,
	).Scan(&rec.Version, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrVersionConflict
		}
		return fmt.Errorf("update care record: %w", err)
	}
	return nil
}

func (r *PgRepository) ListByProfessional(ctx context.Context, professionalID uuid.UUID, limit int) ([]*CareRecord, error) {
	filter, err := json.Marshal([]map[string]any{{
		"professional_id": professionalID.String(),
		"active":          true,
	}})
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM care_records
		WHERE active AND assignments @> $1::jsonb
		ORDER BY updated_at DESC
		LIMIT $2
	`, string(filter), limit)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

func (r *PgRepository) ListWithLegacy(ctx context.Context, after uuid.UUID, limit int) ([]*CareRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM care_records
		WHERE id > $1
		  AND (legacy_primary_doctor_id IS NOT NULL
		       OR legacy_primary_therapist_id IS NOT NULL
		       OR cardinality(legacy_doctor_ids) > 0
		       OR cardinality(legacy_therapist_ids) > 0)
		ORDER BY id
		LIMIT $2
	`, after, limit)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}
