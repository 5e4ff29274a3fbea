package carerecord

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanAccess_OwnerAndAdmin(t *testing.T) {
	owner := uuid.New()
	rec := &CareRecord{OwnerID: owner}

	assert.True(t, CanAccess(rec, owner, RoleGuardian))
	assert.True(t, CanAccess(rec, uuid.New(), RoleAdmin))
	assert.False(t, CanAccess(rec, uuid.New(), RoleGuardian))
	assert.False(t, CanAccess(rec, uuid.Nil, RoleAdmin))
	assert.False(t, CanAccess(nil, owner, RoleAdmin))
}

func TestCanAccess_AnyActiveStanding(t *testing.T) {
	for _, standing := range []Standing{StandingAssigned, StandingPrimary, StandingOnboarding} {
		rec := &CareRecord{OwnerID: uuid.New()}
		p := uuid.New()
		_, err := rec.AddAssignment(Grant{ProfessionalID: p, Role: RoleTherapist, Standing: standing}, t0)
		require.NoError(t, err)

		assert.True(t, CanAccess(rec, p, RoleTherapist), standing)
		assert.False(t, CanAccess(rec, p, RoleDoctor), "role must match for %s", standing)
	}
}

func TestCanAccess_LegacyFallbackOnlyWhenLedgerEmpty(t *testing.T) {
	p := uuid.New()
	rec := &CareRecord{
		OwnerID: uuid.New(),
		Legacy:  LegacyAssignments{PrimaryTherapistID: &p, DoctorIDs: []uuid.UUID{p}},
	}

	assert.True(t, CanAccess(rec, p, RoleTherapist))
	assert.True(t, CanAccess(rec, p, RoleDoctor))

	_, err := rec.AddAssignment(Grant{ProfessionalID: p, Role: RoleTherapist, Standing: StandingAssigned}, t0)
	require.NoError(t, err)
	rec.RemoveAssignment(p, RoleTherapist, nil, "", t0)

	assert.False(t, CanAccess(rec, p, RoleTherapist), "ledger removal beats stale legacy field")
	assert.False(t, CanAccess(rec, p, RoleDoctor), "non-empty ledger disables legacy lists")
}

func TestCanAccess_ShareGrant(t *testing.T) {
	friend := uuid.New()
	rec := &CareRecord{OwnerID: uuid.New(), SharedWith: []uuid.UUID{friend}}

	assert.True(t, CanAccess(rec, friend, RoleGuardian))
	assert.True(t, CanAccess(rec, friend, RoleDoctor), "share grants apply to professionals without an entry")
}
