package carerecord

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func activePrimaries(rec *CareRecord, role Role) int {
	n := 0
	for _, a := range rec.Assignments {
		if a.Active && a.Role == role && a.Standing == StandingPrimary {
			n++
		}
	}
	return n
}

func TestAddAssignment_AppendsNewEntry(t *testing.T) {
	rec := &CareRecord{}
	p := uuid.New()

	changed, err := rec.AddAssignment(Grant{ProfessionalID: p, Role: RoleTherapist, Standing: StandingAssigned, Specialization: "speech"}, t0)
	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, rec.Assignments, 1)

	a := rec.Assignments[0]
	assert.Equal(t, p, a.ProfessionalID)
	assert.Equal(t, StandingAssigned, a.Standing)
	assert.Equal(t, "speech", a.Specialization)
	assert.True(t, a.Active)
	assert.Equal(t, t0, a.AssignedAt)
}

func TestAddAssignment_IdempotentKeepsHigherStanding(t *testing.T) {
	cases := []struct {
		first, second, want Standing
	}{
		{StandingAssigned, StandingPrimary, StandingPrimary},
		{StandingPrimary, StandingAssigned, StandingPrimary},
		{StandingPrimary, StandingOnboarding, StandingOnboarding},
		{StandingOnboarding, StandingPrimary, StandingOnboarding},
		{StandingAssigned, StandingAssigned, StandingAssigned},
	}

	for _, tc := range cases {
		rec := &CareRecord{}
		p := uuid.New()

		_, err := rec.AddAssignment(Grant{ProfessionalID: p, Role: RoleDoctor, Standing: tc.first}, t0)
		require.NoError(t, err)
		_, err = rec.AddAssignment(Grant{ProfessionalID: p, Role: RoleDoctor, Standing: tc.second}, t0.Add(time.Hour))
		require.NoError(t, err)

		require.Len(t, rec.Assignments, 1, "%s then %s", tc.first, tc.second)
		assert.Equal(t, tc.want, rec.Assignments[0].Standing, "%s then %s", tc.first, tc.second)
	}
}

func TestAddAssignment_SameProfessionalDifferentRoles(t *testing.T) {
	rec := &CareRecord{}
	p := uuid.New()

	_, err := rec.AddAssignment(Grant{ProfessionalID: p, Role: RoleDoctor, Standing: StandingAssigned}, t0)
	require.NoError(t, err)
	_, err = rec.AddAssignment(Grant{ProfessionalID: p, Role: RoleTherapist, Standing: StandingAssigned}, t0)
	require.NoError(t, err)

	assert.Len(t, rec.Assignments, 2)
}

func TestAddAssignment_Validation(t *testing.T) {
	rec := &CareRecord{}

	_, err := rec.AddAssignment(Grant{ProfessionalID: uuid.New(), Role: RoleAdmin, Standing: StandingAssigned}, t0)
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = rec.AddAssignment(Grant{ProfessionalID: uuid.New(), Role: RoleDoctor, Standing: "boss"}, t0)
	assert.ErrorIs(t, err, ErrInvalidStanding)

	_, err = rec.AddAssignment(Grant{Role: RoleDoctor, Standing: StandingAssigned}, t0)
	assert.ErrorIs(t, err, ErrMissingProfessional)

	assert.Empty(t, rec.Assignments)
}

func TestRemoveThenAdd_ReactivatesOriginalEntry(t *testing.T) {
	rec := &CareRecord{}
	p := uuid.New()
	admin := uuid.New()

	_, err := rec.AddAssignment(Grant{ProfessionalID: p, Role: RoleTherapist, Standing: StandingPrimary, Specialization: "ot"}, t0)
	require.NoError(t, err)

	assert.True(t, rec.RemoveAssignment(p, RoleTherapist, &admin, "", t0.Add(time.Hour)))
	a := rec.Assignments[0]
	assert.False(t, a.Active)
	require.NotNil(t, a.RemovedAt)
	assert.Equal(t, DefaultRemovalReason, a.RemovalReason)
	assert.Equal(t, &admin, a.RemovedBy)

	assert.False(t, rec.RemoveAssignment(p, RoleTherapist, &admin, "again", t0.Add(2*time.Hour)), "second removal is a no-op")

	changed, err := rec.AddAssignment(Grant{ProfessionalID: p, Role: RoleTherapist, Standing: StandingAssigned}, t0.Add(3*time.Hour))
	require.NoError(t, err)
	assert.True(t, changed)

	require.Len(t, rec.Assignments, 1)
	a = rec.Assignments[0]
	assert.True(t, a.Active)
	assert.Equal(t, StandingAssigned, a.Standing, "reactivation overwrites standing")
	assert.Nil(t, a.RemovedAt)
	assert.Nil(t, a.RemovedBy)
	assert.Empty(t, a.RemovalReason)
	assert.Equal(t, "ot", a.Specialization)
}

func TestSetPrimary_MovesPrimary(t *testing.T) {
	rec := &CareRecord{}
	p1, p2 := uuid.New(), uuid.New()

	changed, err := rec.SetPrimary(p1, RoleTherapist, nil, t0)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = rec.SetPrimary(p2, RoleTherapist, nil, t0)
	require.NoError(t, err)
	assert.True(t, changed)

	a1, ok := rec.ActiveAssignment(p1, RoleTherapist)
	require.True(t, ok)
	assert.Equal(t, StandingAssigned, a1.Standing)

	a2, ok := rec.ActiveAssignment(p2, RoleTherapist)
	require.True(t, ok)
	assert.Equal(t, StandingPrimary, a2.Standing)

	assert.Equal(t, 1, activePrimaries(rec, RoleTherapist))
	require.NoError(t, rec.ValidateLedger())

	changed, err = rec.SetPrimary(p2, RoleTherapist, nil, t0)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestSetPrimary_PromotesExistingAndReactivates(t *testing.T) {
	rec := &CareRecord{}
	p1, p2 := uuid.New(), uuid.New()

	_, err := rec.AddAssignment(Grant{ProfessionalID: p1, Role: RoleDoctor, Standing: StandingPrimary}, t0)
	require.NoError(t, err)
	_, err = rec.AddAssignment(Grant{ProfessionalID: p2, Role: RoleDoctor, Standing: StandingAssigned}, t0)
	require.NoError(t, err)
	rec.RemoveAssignment(p2, RoleDoctor, nil, "left", t0)

	_, err = rec.SetPrimary(p2, RoleDoctor, nil, t0.Add(time.Hour))
	require.NoError(t, err)

	require.Len(t, rec.Assignments, 2)
	p, ok := rec.Primary(RoleDoctor)
	require.True(t, ok)
	assert.Equal(t, p2, p.ProfessionalID)
	assert.Empty(t, p.RemovalReason)
	assert.Equal(t, 1, activePrimaries(rec, RoleDoctor))
}

func TestAddAssignment_PrimaryGrantDemotesOthers(t *testing.T) {
	rec := &CareRecord{}
	p1, p2 := uuid.New(), uuid.New()

	_, err := rec.AddAssignment(Grant{ProfessionalID: p1, Role: RoleDoctor, Standing: StandingPrimary}, t0)
	require.NoError(t, err)
	_, err = rec.AddAssignment(Grant{ProfessionalID: p2, Role: RoleDoctor, Standing: StandingPrimary}, t0)
	require.NoError(t, err)

	assert.Equal(t, 1, activePrimaries(rec, RoleDoctor))
	require.NoError(t, rec.ValidateLedger())
}

func TestRemovePrimary(t *testing.T) {
	rec := &CareRecord{}
	p := uuid.New()

	assert.False(t, rec.RemovePrimary(RoleDoctor))

	_, err := rec.SetPrimary(p, RoleDoctor, nil, t0)
	require.NoError(t, err)
	assert.True(t, rec.RemovePrimary(RoleDoctor))

	a, ok := rec.ActiveAssignment(p, RoleDoctor)
	require.True(t, ok)
	assert.Equal(t, StandingAssigned, a.Standing)
	_, ok = rec.Primary(RoleDoctor)
	assert.False(t, ok)
}

func TestPrimaryInvariant_HoldsAcrossOperationSequence(t *testing.T) {
	rec := &CareRecord{}
	pros := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	roles := []Role{RoleDoctor, RoleTherapist}
	standings := []Standing{StandingAssigned, StandingPrimary, StandingOnboarding}

	for i := 0; i < 60; i++ {
		p := pros[i%len(pros)]
		role := roles[(i/3)%len(roles)]
		switch i % 5 {
		case 0:
			_, _ = rec.AddAssignment(Grant{ProfessionalID: p, Role: role, Standing: standings[i%len(standings)]}, t0)
		case 1:
			_, _ = rec.SetPrimary(p, role, nil, t0)
		case 2:
			rec.RemoveAssignment(p, role, nil, "", t0)
		case 3:
			rec.RemovePrimary(role)
		case 4:
			_, _ = rec.SetPrimary(pros[(i+1)%len(pros)], role, nil, t0)
		}

		for _, r := range roles {
			require.LessOrEqual(t, activePrimaries(rec, r), 1, "step %d", i)
		}
		require.NoError(t, rec.ValidateLedger(), "step %d", i)
	}
}

func TestValidateLedger_RejectsCorruptLists(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()

	twoPrimaries := &CareRecord{Assignments: []Assignment{
		{ProfessionalID: p1, Role: RoleDoctor, Standing: StandingPrimary, Active: true},
		{ProfessionalID: p2, Role: RoleDoctor, Standing: StandingPrimary, Active: true},
	}}
	assert.ErrorIs(t, twoPrimaries.ValidateLedger(), ErrMultiplePrimary)

	inactiveSecond := &CareRecord{Assignments: []Assignment{
		{ProfessionalID: p1, Role: RoleDoctor, Standing: StandingPrimary, Active: true},
		{ProfessionalID: p2, Role: RoleDoctor, Standing: StandingPrimary, Active: false},
	}}
	assert.NoError(t, inactiveSecond.ValidateLedger())

	dup := &CareRecord{Assignments: []Assignment{
		{ProfessionalID: p1, Role: RoleDoctor, Standing: StandingAssigned, Active: true},
		{ProfessionalID: p1, Role: RoleDoctor, Standing: StandingAssigned, Active: false},
	}}
	assert.ErrorIs(t, dup.ValidateLedger(), ErrDuplicateAssignment)
}

func TestMigrateLegacy(t *testing.T) {
	d1, d2, th := uuid.New(), uuid.New(), uuid.New()
	rec := &CareRecord{Legacy: LegacyAssignments{
		PrimaryDoctorID:    &d1,
		DoctorIDs:          []uuid.UUID{d1, d2},
		PrimaryTherapistID: &th,
	}}

	changed, err := rec.MigrateLegacy(t0)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, rec.Legacy.IsEmpty())
	require.Len(t, rec.Assignments, 3)

	a, ok := rec.ActiveAssignment(d1, RoleDoctor)
	require.True(t, ok)
	assert.Equal(t, StandingPrimary, a.Standing)
	a, ok = rec.ActiveAssignment(d2, RoleDoctor)
	require.True(t, ok)
	assert.Equal(t, StandingAssigned, a.Standing)
	a, ok = rec.ActiveAssignment(th, RoleTherapist)
	require.True(t, ok)
	assert.Equal(t, StandingPrimary, a.Standing)

	changed, err = rec.MigrateLegacy(t0)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestMigrateLegacy_LedgerWinsWhenPresent(t *testing.T) {
	stale := uuid.New()
	current := uuid.New()
	rec := &CareRecord{
		Assignments: []Assignment{{ProfessionalID: current, Role: RoleDoctor, Standing: StandingAssigned, Active: true}},
		Legacy:      LegacyAssignments{PrimaryDoctorID: &stale},
	}

	changed, err := rec.MigrateLegacy(t0)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, rec.Legacy.IsEmpty())
	assert.Len(t, rec.Assignments, 1)
	_, ok := rec.ActiveAssignment(stale, RoleDoctor)
	assert.False(t, ok)
}
