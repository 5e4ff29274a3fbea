package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/carecoord/internal/apperr"
	"github.com/hackgods/carecoord/internal/appointment"
	"github.com/hackgods/carecoord/internal/carerecord"
	"github.com/hackgods/carecoord/internal/directory"
)

type stubAppointments struct {
	appts []appointment.Appointment
	err   error
	from  time.Time
	to    time.Time
}

func (s *stubAppointments) ListProfessionalAppointments(_ context.Context, _ uuid.UUID, from, to time.Time) ([]appointment.Appointment, error) {
	s.from, s.to = from, to
	return s.appts, s.err
}

type stubRecords struct {
	recs []*carerecord.CareRecord
}

func (s *stubRecords) ListForProfessional(context.Context, uuid.UUID, int) ([]*carerecord.CareRecord, error) {
	return s.recs, nil
}

var now = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func TestProfessionalDashboard(t *testing.T) {
	dir := directory.NewMemoryDirectory()
	pro := directory.Professional{ID: uuid.New(), Role: "doctor", Active: true}
	dir.PutProfessional(pro)

	appts := &stubAppointments{appts: []appointment.Appointment{
		{ID: uuid.New(), Status: appointment.StatusPending},
		{ID: uuid.New(), Status: appointment.StatusConfirmed},
		{ID: uuid.New(), Status: appointment.StatusConfirmed},
	}}

	primary := &carerecord.CareRecord{ID: uuid.New()}
	_, err := primary.AddAssignment(carerecord.Grant{ProfessionalID: pro.ID, Role: carerecord.RoleDoctor, Standing: carerecord.StandingPrimary}, now)
	require.NoError(t, err)
	assigned := &carerecord.CareRecord{ID: uuid.New()}
	_, err = assigned.AddAssignment(carerecord.Grant{ProfessionalID: pro.ID, Role: carerecord.RoleDoctor, Standing: carerecord.StandingAssigned}, now)
	require.NoError(t, err)

	svc := NewService(dir, appts, &stubRecords{recs: []*carerecord.CareRecord{primary, assigned}})
	svc.SetClock(func() time.Time { return now })

	view, err := svc.ProfessionalDashboard(context.Background(), pro.ID, 0)
	require.NoError(t, err)

	assert.Equal(t, pro.ID, view.Professional.ID)
	assert.Equal(t, now, appts.from)
	assert.Equal(t, now.Add(7*24*time.Hour), appts.to)
	assert.Equal(t, 1, view.Counts[appointment.StatusPending])
	assert.Equal(t, 2, view.Counts[appointment.StatusConfirmed])
	assert.Len(t, view.Records, 2)
	assert.Equal(t, 1, view.Primary)
}

func TestProfessionalDashboard_FailsOnAnyQuery(t *testing.T) {
	dir := directory.NewMemoryDirectory()
	svc := NewService(dir, &stubAppointments{}, &stubRecords{})

	_, err := svc.ProfessionalDashboard(context.Background(), uuid.New(), time.Hour)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	pro := directory.Professional{ID: uuid.New(), Role: "therapist", Active: true}
	dir.PutProfessional(pro)
	svc = NewService(dir, &stubAppointments{err: errors.New("db down")}, &stubRecords{})

	_, err = svc.ProfessionalDashboard(context.Background(), pro.ID, time.Hour)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load appointments")
}
