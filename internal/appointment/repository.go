package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/carecoord/internal/apperr"
)

var (
	ErrAppointmentNotFound = apperr.New(apperr.KindNotFound, "appointment not found")
	ErrSlotTaken           = apperr.New(apperr.KindSlotTaken, "professional already has an appointment in this slot")
	ErrStatusConflict      = apperr.New(apperr.KindConflict, "appointment status changed concurrently")
)

// Repository contains all DB interactions needed by the scheduler.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// For conflict checks: pending/confirmed appointments of professionalID
	// scheduled within [from, to].
	FindActiveInWindow(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]Appointment, error)

	// Create inserts appt. Storage rejects it with ErrSlotTaken when another
	// pending/confirmed appointment of the same professional lies within window.
	Create(ctx context.Context, appt *Appointment, window time.Duration) error
	// UpdateStatus moves id from -> to atomically, ErrStatusConflict if id is no longer in from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, change StatusChange) (*Appointment, error)
	AttachRecord(ctx context.Context, id, recordID uuid.UUID) error

	ListByProfessional(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)

	// Expiry worker
	FindStalePending(ctx context.Context, before time.Time, limit int) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
