// Package dashboard assembles read-only views for professionals from
// independent queries run in parallel.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/carecoord/internal/appointment"
	"github.com/hackgods/carecoord/internal/carerecord"
	"github.com/hackgods/carecoord/internal/directory"
)

const (
	defaultHorizon = 7 * 24 * time.Hour
	recordLimit    = 50
)

type AppointmentLister interface {
	ListProfessionalAppointments(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]appointment.Appointment, error)
}

type RecordLister interface {
	ListForProfessional(ctx context.Context, professionalID uuid.UUID, limit int) ([]*carerecord.CareRecord, error)
}

type StatusCounts map[appointment.AppointmentStatus]int

type ProfessionalDashboard struct {
	Professional *directory.Professional
	From         time.Time
	To           time.Time
	Upcoming     []appointment.Appointment
	Counts       StatusCounts
	Records      []*carerecord.CareRecord
	Primary      int // records on which the professional is primary
}

type Service struct {
	professionals directory.ProfessionalDirectory
	appointments  AppointmentLister
	records       RecordLister
	now           func() time.Time
}

func NewService(professionals directory.ProfessionalDirectory, appointments AppointmentLister, records RecordLister) *Service {
	return &Service{
		professionals: professionals,
		appointments:  appointments,
		records:       records,
		now:           time.Now,
	}
}

func (s *Service) SetClock(now func() time.Time) { s.now = now }

// ProfessionalDashboard loads the profile, the appointments inside horizon
// and the professional's care records concurrently. Any failing query fails
// the whole view.
func (s *Service) ProfessionalDashboard(ctx context.Context, professionalID uuid.UUID, horizon time.Duration) (*ProfessionalDashboard, error) {
	if horizon <= 0 {
		horizon = defaultHorizon
	}
	from := s.now().UTC()
	view := &ProfessionalDashboard{From: from, To: from.Add(horizon)}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		p, err := s.professionals.GetProfessional(gctx, professionalID)
		if err != nil {
			return err
		}
		view.Professional = p
		return nil
	})

	g.Go(func() error {
		appts, err := s.appointments.ListProfessionalAppointments(gctx, professionalID, view.From, view.To)
		if err != nil {
			return fmt.Errorf("load appointments: %w", err)
		}
		view.Upcoming = appts
		return nil
	})

	g.Go(func() error {
		recs, err := s.records.ListForProfessional(gctx, professionalID, recordLimit)
		if err != nil {
			return fmt.Errorf("load care records: %w", err)
		}
		view.Records = recs
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	view.Counts = make(StatusCounts)
	for _, a := range view.Upcoming {
		view.Counts[a.Status]++
	}

	role := carerecord.Role(view.Professional.Role)
	for _, rec := range view.Records {
		if a, ok := rec.ActiveAssignment(professionalID, role); ok && a.Standing == carerecord.StandingPrimary {
			view.Primary++
		}
	}

	return view, nil
}
