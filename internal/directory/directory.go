// Package directory exposes the professional and people lookups the
// care-record and scheduling services consume.
package directory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/carecoord/internal/apperr"
)

var (
	ErrProfessionalNotFound = apperr.New(apperr.KindNotFound, "professional not found")
	ErrUserNotFound         = apperr.New(apperr.KindNotFound, "user not found")
	ErrDependentNotFound    = apperr.New(apperr.KindNotFound, "dependent not found")
)

type Professional struct {
	ID                   uuid.UUID
	Role                 string // doctor, therapist
	Specialization       string
	Active               bool
	Rates                map[string]float64 // consultation type -> fee
	SessionLengthMinutes int
	AppointmentCount     int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// PublishedRate returns the fee for consultationType, falling back to the
// "default" rate and then to zero.
func (p *Professional) PublishedRate(consultationType string) float64 {
	if fee, ok := p.Rates[consultationType]; ok {
		return fee
	}
	return p.Rates["default"]
}

type Person struct {
	ID          uuid.UUID
	FirstName   string
	LastName    string
	DateOfBirth *time.Time
	Gender      string
}

type Dependent struct {
	Person
	GuardianID uuid.UUID
}

type ProfessionalDirectory interface {
	GetProfessional(ctx context.Context, id uuid.UUID) (*Professional, error)
	IncrementAppointmentCount(ctx context.Context, id uuid.UUID) error
}

type PeopleDirectory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*Person, error)
	GetDependent(ctx context.Context, id uuid.UUID) (*Dependent, error)
}

type Directory interface {
	ProfessionalDirectory
	PeopleDirectory
}
