package carerecord

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/carecoord/internal/apperr"
)

var (
	ErrAccessDenied = apperr.New(apperr.KindAccessDenied, "access to care record denied")
	ErrUnauthorized = apperr.New(apperr.KindUnauthorized, "actor may not modify this care record")
	ErrMissingOwner = apperr.New(apperr.KindValidation, "owner_id is required")
	ErrInvalidActor = apperr.New(apperr.KindValidation, "actor role is not valid")
)

const defaultMaxRetries = 3

type Service struct {
	repo       Repository
	logger     *zap.Logger
	now        func() time.Time
	maxRetries int
}

func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{
		repo:       repo,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		maxRetries: defaultMaxRetries,
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

type CreateInput struct {
	OwnerID     uuid.UUID
	DependentID *uuid.UUID
	FirstName   string
	LastName    string
	DateOfBirth *time.Time
	Gender      string
}

// CreateCareRecord onboards a patient or dependent. A professional creating
// the record becomes its onboarding professional with an onboarding entry.
func (s *Service) CreateCareRecord(ctx context.Context, actor Actor, in CreateInput) (*CareRecord, error) {
	if !actor.Role.Valid() || actor.ID == uuid.Nil {
		return nil, ErrInvalidActor
	}
	if in.OwnerID == uuid.Nil {
		if actor.Role != RoleGuardian && actor.Role != RolePatient {
			return nil, ErrMissingOwner
		}
		in.OwnerID = actor.ID
	}

	rec := &CareRecord{
		ID:          uuid.New(),
		OwnerID:     in.OwnerID,
		DependentID: in.DependentID,
		RecordType:  RecordRegular,
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		DateOfBirth: in.DateOfBirth,
		Gender:      in.Gender,
		Active:      true,
	}
	if in.DependentID != nil {
		rec.RecordType = RecordDependent
	}

	if actor.Role.IsProfessional() {
		id := actor.ID
		rec.OnboardingProfessionalID = &id
		if _, err := rec.AddAssignment(Grant{
			ProfessionalID: actor.ID,
			Role:           actor.Role,
			Standing:       StandingOnboarding,
			GrantedBy:      &id,
		}, s.now()); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create care record: %w", err)
	}

	s.logger.Info("care record created",
		zap.String("record_id", rec.ID.String()),
		zap.String("actor_id", actor.ID.String()),
		zap.String("record_type", string(rec.RecordType)),
	)
	return rec, nil
}

// Provision stores a record created on behalf of the system, without an
// acting user. It returns ErrRecordExists if a matching record won a race.
func (s *Service) Provision(ctx context.Context, rec *CareRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.Active = true
	return s.repo.Create(ctx, rec)
}

func (s *Service) GetCareRecord(ctx context.Context, actor Actor, id uuid.UUID) (*CareRecord, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanAccess(rec, actor.ID, actor.Role) {
		return nil, ErrAccessDenied
	}
	return rec, nil
}

// CanActorAccess loads the record and applies CanAccess.
func (s *Service) CanActorAccess(ctx context.Context, id uuid.UUID, actor Actor) (bool, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return CanAccess(rec, actor.ID, actor.Role), nil
}

type UpdateInput struct {
	FirstName   *string
	LastName    *string
	DateOfBirth *time.Time
	Gender      *string
}

func (s *Service) UpdateCareRecord(ctx context.Context, actor Actor, id uuid.UUID, in UpdateInput) (*CareRecord, error) {
	return s.mutate(ctx, id, func(rec *CareRecord) (bool, error) {
		if !CanAccess(rec, actor.ID, actor.Role) {
			return false, ErrAccessDenied
		}
		if in.FirstName != nil {
			rec.FirstName = *in.FirstName
		}
		if in.LastName != nil {
			rec.LastName = *in.LastName
		}
		if in.DateOfBirth != nil {
			rec.DateOfBirth = in.DateOfBirth
		}
		if in.Gender != nil {
			rec.Gender = *in.Gender
		}
		return true, nil
	})
}

func (s *Service) DeactivateCareRecord(ctx context.Context, actor Actor, id uuid.UUID) (*CareRecord, error) {
	return s.mutate(ctx, id, func(rec *CareRecord) (bool, error) {
		if rec.OwnerID != actor.ID && actor.Role != RoleAdmin {
			return false, ErrUnauthorized
		}
		if !rec.Active {
			return false, nil
		}
		rec.Active = false
		return true, nil
	})
}

func (s *Service) ShareRecord(ctx context.Context, actor Actor, id, userID uuid.UUID) (*CareRecord, error) {
	return s.mutate(ctx, id, func(rec *CareRecord) (bool, error) {
		if rec.OwnerID != actor.ID && actor.Role != RoleAdmin {
			return false, ErrUnauthorized
		}
		if userID == uuid.Nil || containsID(rec.SharedWith, userID) {
			return false, nil
		}
		rec.SharedWith = append(rec.SharedWith, userID)
		return true, nil
	})
}

func (s *Service) UnshareRecord(ctx context.Context, actor Actor, id, userID uuid.UUID) (*CareRecord, error) {
	return s.mutate(ctx, id, func(rec *CareRecord) (bool, error) {
		if rec.OwnerID != actor.ID && actor.Role != RoleAdmin {
			return false, ErrUnauthorized
		}
		for i, v := range rec.SharedWith {
			if v == userID {
				rec.SharedWith = append(rec.SharedWith[:i], rec.SharedWith[i+1:]...)
				return true, nil
			}
		}
		return false, nil
	})
}

type AssignmentInput struct {
	ProfessionalID uuid.UUID
	Role           Role
	Standing       Standing
	Specialization string
}

func (s *Service) AddAssignment(ctx context.Context, actor Actor, id uuid.UUID, in AssignmentInput) (*CareRecord, error) {
	if in.Standing == "" {
		in.Standing = StandingAssigned
	}
	return s.mutate(ctx, id, func(rec *CareRecord) (bool, error) {
		if !canManage(rec, actor) {
			return false, ErrUnauthorized
		}
		grantedBy := actor.ID
		return rec.AddAssignment(Grant{
			ProfessionalID: in.ProfessionalID,
			Role:           in.Role,
			Standing:       in.Standing,
			Specialization: in.Specialization,
			GrantedBy:      &grantedBy,
		}, s.now())
	})
}

// RemoveAssignment revokes (professionalID, role). A professional may always
// remove themselves. The bool is false when no active entry matched.
func (s *Service) RemoveAssignment(ctx context.Context, actor Actor, id, professionalID uuid.UUID, role Role, reason string) (bool, error) {
	if !role.IsProfessional() {
		return false, ErrInvalidRole
	}
	removed := false
	_, err := s.mutate(ctx, id, func(rec *CareRecord) (bool, error) {
		self := actor.ID == professionalID && actor.Role == role
		if !self && !canManage(rec, actor) {
			return false, ErrUnauthorized
		}
		by := actor.ID
		removed = rec.RemoveAssignment(professionalID, role, &by, reason, s.now())
		return removed, nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

func (s *Service) SetPrimary(ctx context.Context, actor Actor, id, professionalID uuid.UUID, role Role) (*CareRecord, error) {
	return s.mutate(ctx, id, func(rec *CareRecord) (bool, error) {
		if !canManage(rec, actor) {
			return false, ErrUnauthorized
		}
		by := actor.ID
		return rec.SetPrimary(professionalID, role, &by, s.now())
	})
}

func (s *Service) RemovePrimary(ctx context.Context, actor Actor, id uuid.UUID, role Role) (*CareRecord, error) {
	if !role.IsProfessional() {
		return nil, ErrInvalidRole
	}
	return s.mutate(ctx, id, func(rec *CareRecord) (bool, error) {
		if !canManage(rec, actor) {
			return false, ErrUnauthorized
		}
		return rec.RemovePrimary(role), nil
	})
}

// EnsureAccess gives professionalID at least an assigned entry unless
// CanAccess already lets them in. It is the system path used during booking
// and reports whether a grant was written.
func (s *Service) EnsureAccess(ctx context.Context, id, professionalID uuid.UUID, role Role, specialization string) (bool, error) {
	granted := false
	_, err := s.mutate(ctx, id, func(rec *CareRecord) (bool, error) {
		if CanAccess(rec, professionalID, role) {
			return false, nil
		}
		changed, err := rec.AddAssignment(Grant{
			ProfessionalID: professionalID,
			Role:           role,
			Standing:       StandingAssigned,
			Specialization: specialization,
		}, s.now())
		granted = changed
		return changed, err
	})
	return granted, err
}

// Lookup reads a record without an access check, for system callers.
func (s *Service) Lookup(ctx context.Context, id uuid.UUID) (*CareRecord, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) FindByDependent(ctx context.Context, dependentID uuid.UUID) (*CareRecord, error) {
	return s.repo.FindByDependent(ctx, dependentID)
}

func (s *Service) FindRegularByOwner(ctx context.Context, ownerID uuid.UUID) (*CareRecord, error) {
	return s.repo.FindRegularByOwner(ctx, ownerID)
}

func (s *Service) ListForProfessional(ctx context.Context, professionalID uuid.UUID, limit int) ([]*CareRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.ListByProfessional(ctx, professionalID, limit)
}

type MigrationReport struct {
	Scanned  int
	Migrated int
	Failed   int
}

// MigrateLegacy walks every record that still carries legacy assignment
// fields and folds them into the ledger. With dryRun nothing is written.
func (s *Service) MigrateLegacy(ctx context.Context, batchSize int, dryRun bool) (MigrationReport, error) {
	var report MigrationReport
	if batchSize <= 0 {
		batchSize = 100
	}

	after := uuid.Nil
	for {
		batch, err := s.repo.ListWithLegacy(ctx, after, batchSize)
		if err != nil {
			return report, fmt.Errorf("list legacy records: %w", err)
		}
		if len(batch) == 0 {
			return report, nil
		}

		for _, rec := range batch {
			report.Scanned++
			after = rec.ID

			if dryRun {
				if changed, err := rec.MigrateLegacy(s.now()); err != nil {
					report.Failed++
				} else if changed {
					report.Migrated++
				}
				continue
			}

			_, err := s.mutate(ctx, rec.ID, func(fresh *CareRecord) (bool, error) {
				return fresh.MigrateLegacy(s.now())
			})
			if err != nil {
				report.Failed++
				s.logger.Warn("legacy migration failed",
					zap.String("record_id", rec.ID.String()),
					zap.Error(err),
				)
				continue
			}
			report.Migrated++
		}
	}
}

// mutate runs a read-modify-write on one record, retrying when another
// writer bumped the version in between.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, fn func(rec *CareRecord) (bool, error)) (*CareRecord, error) {
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		rec, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		changed, err := fn(rec)
		if err != nil {
			return nil, err
		}
		if !changed {
			return rec, nil
		}

		err = s.repo.Update(ctx, rec)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, fmt.Errorf("save care record: %w", err)
		}

		s.logger.Debug("care record version conflict, retrying",
			zap.String("record_id", id.String()),
			zap.Int("attempt", attempt),
		)
	}
	return nil, ErrConcurrentUpdate
}
