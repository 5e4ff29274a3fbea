package appointment

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no-show"
)

// Holds reports whether the status still occupies the professional's slot.
func (s AppointmentStatus) Holds() bool {
	return s == StatusPending || s == StatusConfirmed
}

type CancelledBy string

const (
	CancelledByProfessional CancelledBy = "professional"
	CancelledByPatient      CancelledBy = "patient"
	CancelledBySystem       CancelledBy = "system"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

type Appointment struct {
	ID                 uuid.UUID
	ProfessionalID     uuid.UUID
	PatientID          uuid.UUID // the user who booked: patient or guardian
	DependentID        *uuid.UUID
	RecordID           *uuid.UUID
	ScheduledAt        time.Time
	DurationMinutes    int
	ConsultationType   string
	ConsultationFee    float64
	Status             AppointmentStatus
	CancelledBy        *CancelledBy
	CancelledAt        *time.Time
	CancellationReason *string
	CompletedAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// StatusChange carries the fields stamped alongside a transition.
type StatusChange struct {
	CancelledBy        *CancelledBy
	CancelledAt        *time.Time
	CancellationReason *string
	CompletedAt        *time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
