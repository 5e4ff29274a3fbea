package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/carecoord/internal/apperr"
)

func TestPublishedRate(t *testing.T) {
	p := &Professional{Rates: map[string]float64{"video": 40, "default": 55}}

	assert.Equal(t, 40.0, p.PublishedRate("video"))
	assert.Equal(t, 55.0, p.PublishedRate("in_person"))

	empty := &Professional{}
	assert.Equal(t, 0.0, empty.PublishedRate("video"))
}

func TestMemoryDirectory(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDirectory()
	id := uuid.New()
	d.PutProfessional(Professional{ID: id, Role: "doctor", Active: true})

	require.NoError(t, d.IncrementAppointmentCount(ctx, id))
	require.NoError(t, d.IncrementAppointmentCount(ctx, id))

	p, err := d.GetProfessional(ctx, id)
	require.NoError(t, err)
	assert.EqualValues(t, 2, p.AppointmentCount)

	_, err = d.GetProfessional(ctx, uuid.New())
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.ErrorIs(t, d.IncrementAppointmentCount(ctx, uuid.New()), ErrProfessionalNotFound)

	_, err = d.GetUser(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = d.GetDependent(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrDependentNotFound)
}
