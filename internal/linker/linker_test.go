package linker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/carecoord/internal/apperr"
	"github.com/hackgods/carecoord/internal/carerecord"
	"github.com/hackgods/carecoord/internal/directory"
)

type fixture struct {
	linker  *Linker
	records *carerecord.Service
	repo    *carerecord.MemoryRepository
	people  *directory.MemoryDirectory
}

func newFixture() *fixture {
	repo := carerecord.NewMemoryRepository()
	records := carerecord.NewService(repo, zap.NewNop())
	people := directory.NewMemoryDirectory()
	return &fixture{
		linker:  New(records, people, zap.NewNop()),
		records: records,
		repo:    repo,
		people:  people,
	}
}

func TestLink_DependentCreatesRecord(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	guardian := uuid.New()
	dob := time.Date(2018, 6, 1, 0, 0, 0, 0, time.UTC)
	dep := directory.Dependent{
		Person:     directory.Person{ID: uuid.New(), FirstName: "Lia", LastName: "Rossi", DateOfBirth: &dob, Gender: "female"},
		GuardianID: guardian,
	}
	f.people.PutDependent(dep)
	pro := uuid.New()

	res, err := f.linker.Link(ctx, Request{
		ProfessionalID:   pro,
		ProfessionalRole: carerecord.RoleTherapist,
		PatientID:        guardian,
		DependentID:      &dep.ID,
	})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.True(t, res.Granted)

	rec, err := f.repo.GetByID(ctx, res.RecordID)
	require.NoError(t, err)
	assert.Equal(t, carerecord.RecordDependent, rec.RecordType)
	assert.Equal(t, guardian, rec.OwnerID)
	assert.Equal(t, "Lia", rec.FirstName)
	assert.Equal(t, &dob, rec.DateOfBirth)
	assert.Equal(t, "female", rec.Gender)
	require.NotNil(t, rec.OnboardingProfessionalID)
	assert.Equal(t, pro, *rec.OnboardingProfessionalID)

	a, ok := rec.ActiveAssignment(pro, carerecord.RoleTherapist)
	require.True(t, ok)
	assert.Equal(t, carerecord.StandingAssigned, a.Standing)

	// a second booking reuses the record and adds nothing
	again, err := f.linker.Link(ctx, Request{
		ProfessionalID:   pro,
		ProfessionalRole: carerecord.RoleTherapist,
		PatientID:        guardian,
		DependentID:      &dep.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, res.RecordID, again.RecordID)
	assert.False(t, again.Created)
	assert.False(t, again.Granted)
}

func TestLink_BarePatientCreatesRegularRecord(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	user := directory.Person{ID: uuid.New(), FirstName: "Omar", LastName: "Haddad"}
	f.people.PutUser(user)
	pro := uuid.New()

	res, err := f.linker.Link(ctx, Request{ProfessionalID: pro, ProfessionalRole: carerecord.RoleDoctor, PatientID: user.ID})
	require.NoError(t, err)
	assert.True(t, res.Created)

	rec, err := f.repo.GetByID(ctx, res.RecordID)
	require.NoError(t, err)
	assert.Equal(t, carerecord.RecordRegular, rec.RecordType)
	assert.Equal(t, user.ID, rec.OwnerID)
	assert.Equal(t, "Omar", rec.FirstName)
	assert.True(t, carerecord.CanAccess(rec, pro, carerecord.RoleDoctor))
}

func TestLink_SkipsGrantWhenAlreadyAccessible(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	pro := carerecord.Actor{ID: uuid.New(), Role: carerecord.RoleDoctor}
	owner := uuid.New()

	rec, err := f.records.CreateCareRecord(ctx, pro, carerecord.CreateInput{OwnerID: owner})
	require.NoError(t, err)

	res, err := f.linker.Link(ctx, Request{ProfessionalID: pro.ID, ProfessionalRole: pro.Role, PatientID: owner, RecordID: &rec.ID})
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.False(t, res.Granted)

	stored, err := f.repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	a, ok := stored.ActiveAssignment(pro.ID, pro.Role)
	require.True(t, ok)
	assert.Equal(t, carerecord.StandingOnboarding, a.Standing, "existing standing is untouched")
}

func TestLink_MissingProfilesFail(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	missing := uuid.New()

	_, err := f.linker.Link(ctx, Request{ProfessionalID: uuid.New(), ProfessionalRole: carerecord.RoleDoctor, PatientID: uuid.New(), DependentID: &missing})
	assert.ErrorIs(t, err, directory.ErrDependentNotFound)

	_, err = f.linker.Link(ctx, Request{ProfessionalID: uuid.New(), ProfessionalRole: carerecord.RoleDoctor, PatientID: uuid.New()})
	assert.ErrorIs(t, err, directory.ErrUserNotFound)

	_, err = f.linker.Link(ctx, Request{ProfessionalID: uuid.New(), ProfessionalRole: carerecord.RoleDoctor, RecordID: &missing})
	assert.ErrorIs(t, err, carerecord.ErrRecordNotFound)
}

// racingPeople creates the record itself right before the linker tries to,
// the way a concurrent booking would.
type racingPeople struct {
	*directory.MemoryDirectory
	repo *carerecord.MemoryRepository
	rec  *carerecord.CareRecord
}

func (r *racingPeople) GetUser(ctx context.Context, id uuid.UUID) (*directory.Person, error) {
	if r.rec == nil {
		r.rec = &carerecord.CareRecord{OwnerID: id, RecordType: carerecord.RecordRegular, Active: true}
		if err := r.repo.Create(ctx, r.rec); err != nil {
			return nil, err
		}
	}
	return r.MemoryDirectory.GetUser(ctx, id)
}

func TestLink_ProvisionRaceReusesWinner(t *testing.T) {
	repo := carerecord.NewMemoryRepository()
	records := carerecord.NewService(repo, zap.NewNop())
	people := &racingPeople{MemoryDirectory: directory.NewMemoryDirectory(), repo: repo}
	user := directory.Person{ID: uuid.New(), FirstName: "Ana"}
	people.PutUser(user)
	l := New(records, people, zap.NewNop())

	res, err := l.Link(context.Background(), Request{ProfessionalID: uuid.New(), ProfessionalRole: carerecord.RoleDoctor, PatientID: user.ID})
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, people.rec.ID, res.RecordID)
	assert.True(t, res.Granted)
}

func TestVerify_References(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	guardian := uuid.New()
	stranger := uuid.New()
	pro := uuid.New()

	dep := directory.Dependent{Person: directory.Person{ID: uuid.New(), FirstName: "Lia"}, GuardianID: guardian}
	f.people.PutDependent(dep)
	own := &carerecord.CareRecord{OwnerID: guardian, RecordType: carerecord.RecordRegular, Active: true}
	require.NoError(t, f.repo.Create(ctx, own))
	missing := uuid.New()

	guardianActor := carerecord.Actor{ID: guardian, Role: carerecord.RoleGuardian}
	strangerActor := carerecord.Actor{ID: stranger, Role: carerecord.RoleGuardian}
	proActor := carerecord.Actor{ID: pro, Role: carerecord.RoleTherapist}
	admin := carerecord.Actor{ID: uuid.New(), Role: carerecord.RoleAdmin}

	tests := []struct {
		name  string
		req   Request
		actor carerecord.Actor
		want  error
	}{
		{name: "own record", req: Request{PatientID: guardian, RecordID: &own.ID}, actor: guardianActor},
		{name: "own dependent", req: Request{PatientID: guardian, DependentID: &dep.ID}, actor: guardianActor},
		{name: "no references", req: Request{PatientID: stranger}, actor: strangerActor},
		{name: "foreign record", req: Request{PatientID: stranger, RecordID: &own.ID}, actor: strangerActor, want: ErrForeignRecord},
		{name: "professional self-booking on foreign record", req: Request{PatientID: pro, RecordID: &own.ID}, actor: proActor, want: ErrForeignRecord},
		{name: "foreign dependent", req: Request{PatientID: stranger, DependentID: &dep.ID}, actor: strangerActor, want: ErrForeignDependent},
		{name: "admin on behalf", req: Request{PatientID: stranger, RecordID: &own.ID, DependentID: &dep.ID}, actor: admin},
		{name: "unknown record", req: Request{PatientID: guardian, RecordID: &missing}, actor: admin, want: apperr.ErrNotFound},
		{name: "unknown dependent", req: Request{PatientID: guardian, DependentID: &missing}, actor: guardianActor, want: apperr.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.linker.Verify(ctx, tt.req, tt.actor)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}

	rec, err := f.repo.GetByID(ctx, own.ID)
	require.NoError(t, err)
	assert.Empty(t, rec.Assignments)
}
