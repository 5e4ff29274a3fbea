// Package linker resolves or provisions the care record a booking refers to
// and makes sure the booked professional can see it.
package linker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/carecoord/internal/apperr"
	"github.com/hackgods/carecoord/internal/carerecord"
	"github.com/hackgods/carecoord/internal/directory"
)

var (
	ErrForeignRecord    = apperr.New(apperr.KindAccessDenied, "care record is not accessible to the booking patient")
	ErrForeignDependent = apperr.New(apperr.KindAccessDenied, "dependent is not in the booking patient's care")
)

type Request struct {
	ProfessionalID   uuid.UUID
	ProfessionalRole carerecord.Role
	Specialization   string
	PatientID        uuid.UUID // the booking user
	DependentID      *uuid.UUID
	RecordID         *uuid.UUID
}

type Result struct {
	RecordID uuid.UUID
	Created  bool // a record was provisioned for this booking
	Granted  bool // the professional received a new ledger entry
}

type Linker struct {
	records *carerecord.Service
	people  directory.PeopleDirectory
	logger  *zap.Logger
}

func New(records *carerecord.Service, people directory.PeopleDirectory, logger *zap.Logger) *Linker {
	return &Linker{
		records: records,
		people:  people,
		logger:  logger,
	}
}

// Verify checks the record and dependent references of a booking before it
// is stored. A referenced record must be visible to the patient and a
// dependent must be in the patient's care. Admins only need the references
// to exist.
func (l *Linker) Verify(ctx context.Context, req Request, actor carerecord.Actor) error {
	admin := actor.Role == carerecord.RoleAdmin

	if req.RecordID != nil {
		rec, err := l.records.Lookup(ctx, *req.RecordID)
		if err != nil {
			if errors.Is(err, carerecord.ErrRecordNotFound) {
				return err
			}
			return fmt.Errorf("load care record: %w", err)
		}
		if !admin && !carerecord.CanAccess(rec, req.PatientID, actor.Role) {
			return ErrForeignRecord
		}
	}

	if req.DependentID != nil {
		dep, err := l.people.GetDependent(ctx, *req.DependentID)
		if err != nil {
			if errors.Is(err, directory.ErrDependentNotFound) {
				return err
			}
			return fmt.Errorf("load dependent: %w", err)
		}
		if !admin && dep.GuardianID != req.PatientID {
			return ErrForeignDependent
		}
	}

	return nil
}

// Link resolves the record for req, creating it when none exists, then
// ensures the professional holds at least an assigned entry. A non-nil
// Result may accompany an error when the record was resolved but the grant
// failed.
func (l *Linker) Link(ctx context.Context, req Request) (*Result, error) {
	rec, created, err := l.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	res := &Result{RecordID: rec.ID, Created: created}

	granted, err := l.records.EnsureAccess(ctx, rec.ID, req.ProfessionalID, req.ProfessionalRole, req.Specialization)
	if err != nil {
		return res, fmt.Errorf("grant professional access: %w", err)
	}
	res.Granted = granted

	l.logger.Debug("booking linked to care record",
		zap.String("record_id", rec.ID.String()),
		zap.String("professional_id", req.ProfessionalID.String()),
		zap.Bool("created", created),
		zap.Bool("granted", granted),
	)
	return res, nil
}

func (l *Linker) resolve(ctx context.Context, req Request) (*carerecord.CareRecord, bool, error) {
	switch {
	case req.RecordID != nil:
		rec, err := l.records.Lookup(ctx, *req.RecordID)
		if err != nil {
			return nil, false, fmt.Errorf("load care record: %w", err)
		}
		return rec, false, nil
	case req.DependentID != nil:
		return l.resolveDependent(ctx, req)
	default:
		return l.resolvePatient(ctx, req)
	}
}

func (l *Linker) resolveDependent(ctx context.Context, req Request) (*carerecord.CareRecord, bool, error) {
	find := func() (*carerecord.CareRecord, error) {
		return l.records.FindByDependent(ctx, *req.DependentID)
	}

	rec, err := find()
	if err == nil {
		return rec, false, nil
	}
	if !errors.Is(err, carerecord.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("find dependent record: %w", err)
	}

	dep, err := l.people.GetDependent(ctx, *req.DependentID)
	if err != nil {
		return nil, false, fmt.Errorf("load dependent: %w", err)
	}

	owner := dep.GuardianID
	if owner == uuid.Nil {
		owner = req.PatientID
	}
	depID := dep.ID
	onboarding := req.ProfessionalID

	return l.provision(ctx, &carerecord.CareRecord{
		OwnerID:                  owner,
		DependentID:              &depID,
		RecordType:               carerecord.RecordDependent,
		FirstName:                dep.FirstName,
		LastName:                 dep.LastName,
		DateOfBirth:              dep.DateOfBirth,
		Gender:                   dep.Gender,
		OnboardingProfessionalID: &onboarding,
	}, find)
}

func (l *Linker) resolvePatient(ctx context.Context, req Request) (*carerecord.CareRecord, bool, error) {
	if req.PatientID == uuid.Nil {
		return nil, false, errors.New("booking has no patient reference")
	}

	find := func() (*carerecord.CareRecord, error) {
		return l.records.FindRegularByOwner(ctx, req.PatientID)
	}

	rec, err := find()
	if err == nil {
		return rec, false, nil
	}
	if !errors.Is(err, carerecord.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("find patient record: %w", err)
	}

	user, err := l.people.GetUser(ctx, req.PatientID)
	if err != nil {
		return nil, false, fmt.Errorf("load patient profile: %w", err)
	}

	onboarding := req.ProfessionalID
	return l.provision(ctx, &carerecord.CareRecord{
		OwnerID:                  user.ID,
		RecordType:               carerecord.RecordRegular,
		FirstName:                user.FirstName,
		LastName:                 user.LastName,
		DateOfBirth:              user.DateOfBirth,
		Gender:                   user.Gender,
		OnboardingProfessionalID: &onboarding,
	}, find)
}

// provision creates rec; if a concurrent booking created the same record
// first, the winner is re-read instead.
func (l *Linker) provision(ctx context.Context, rec *carerecord.CareRecord, find func() (*carerecord.CareRecord, error)) (*carerecord.CareRecord, bool, error) {
	err := l.records.Provision(ctx, rec)
	if err == nil {
		l.logger.Info("care record provisioned from booking",
			zap.String("record_id", rec.ID.String()),
			zap.String("record_type", string(rec.RecordType)),
		)
		return rec, true, nil
	}
	if !errors.Is(err, carerecord.ErrRecordExists) {
		return nil, false, fmt.Errorf("provision care record: %w", err)
	}

	existing, err := find()
	if err != nil {
		return nil, false, fmt.Errorf("reload care record: %w", err)
	}
	return existing, false, nil
}
