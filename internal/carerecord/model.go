package carerecord

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleDoctor    Role = "doctor"
	RoleTherapist Role = "therapist"
	RoleAdmin     Role = "admin"
	RoleGuardian  Role = "guardian"
	RolePatient   Role = "patient"
)

// IsProfessional reports whether the role can hold an Assignment.
func (r Role) IsProfessional() bool {
	return r == RoleDoctor || r == RoleTherapist
}

func (r Role) Valid() bool {
	switch r {
	case RoleDoctor, RoleTherapist, RoleAdmin, RoleGuardian, RolePatient:
		return true
	}
	return false
}

type Standing string

const (
	StandingOnboarding Standing = "onboarding"
	StandingPrimary    Standing = "primary"
	StandingAssigned   Standing = "assigned"
)

// rank orders standings for upgrades: onboarding > primary > assigned.
func (s Standing) rank() int {
	switch s {
	case StandingOnboarding:
		return 3
	case StandingPrimary:
		return 2
	case StandingAssigned:
		return 1
	}
	return 0
}

func (s Standing) Valid() bool { return s.rank() > 0 }

type RecordType string

const (
	RecordDependent RecordType = "dependent"
	RecordRegular   RecordType = "regular"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

type Assignment struct {
	ProfessionalID uuid.UUID  `json:"professional_id"`
	Role           Role       `json:"role"`
	Standing       Standing   `json:"standing"`
	Specialization string     `json:"specialization,omitempty"`
	AssignedAt     time.Time  `json:"assigned_at"`
	AssignedBy     *uuid.UUID `json:"assigned_by,omitempty"`
	Active         bool       `json:"active"`
	RemovedAt      *time.Time `json:"removed_at,omitempty"`
	RemovedBy      *uuid.UUID `json:"removed_by,omitempty"`
	RemovalReason  string     `json:"removal_reason,omitempty"`
}

// LegacyAssignments holds the pre-ledger fields of records that have not
// been migrated yet. They are read only while the ledger is empty.
type LegacyAssignments struct {
	PrimaryDoctorID    *uuid.UUID
	PrimaryTherapistID *uuid.UUID
	DoctorIDs          []uuid.UUID
	TherapistIDs       []uuid.UUID
}

func (l LegacyAssignments) IsEmpty() bool {
	return l.PrimaryDoctorID == nil && l.PrimaryTherapistID == nil &&
		len(l.DoctorIDs) == 0 && len(l.TherapistIDs) == 0
}

func (l LegacyAssignments) names(id uuid.UUID, role Role) bool {
	switch role {
	case RoleDoctor:
		if l.PrimaryDoctorID != nil && *l.PrimaryDoctorID == id {
			return true
		}
		return containsID(l.DoctorIDs, id)
	case RoleTherapist:
		if l.PrimaryTherapistID != nil && *l.PrimaryTherapistID == id {
			return true
		}
		return containsID(l.TherapistIDs, id)
	}
	return false
}

type CareRecord struct {
	ID                       uuid.UUID
	OwnerID                  uuid.UUID // guardian for dependents, the patient otherwise
	DependentID              *uuid.UUID
	RecordType               RecordType
	FirstName                string
	LastName                 string
	DateOfBirth              *time.Time
	Gender                   string
	OnboardingProfessionalID *uuid.UUID
	Assignments              []Assignment
	SharedWith               []uuid.UUID
	Legacy                   LegacyAssignments
	Active                   bool
	Version                  int
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// Clone returns a deep copy so stores never share slices with callers.
func (r *CareRecord) Clone() *CareRecord {
	cp := *r
	cp.Assignments = append([]Assignment(nil), r.Assignments...)
	cp.SharedWith = append([]uuid.UUID(nil), r.SharedWith...)
	cp.Legacy.DoctorIDs = append([]uuid.UUID(nil), r.Legacy.DoctorIDs...)
	cp.Legacy.TherapistIDs = append([]uuid.UUID(nil), r.Legacy.TherapistIDs...)
	return &cp
}

// ActiveAssignment returns the active entry for (professionalID, role), if any.
func (r *CareRecord) ActiveAssignment(professionalID uuid.UUID, role Role) (Assignment, bool) {
	if i := r.find(professionalID, role); i >= 0 && r.Assignments[i].Active {
		return r.Assignments[i], true
	}
	return Assignment{}, false
}

// Primary returns the active primary of role, if any.
func (r *CareRecord) Primary(role Role) (Assignment, bool) {
	for _, a := range r.Assignments {
		if a.Active && a.Role == role && a.Standing == StandingPrimary {
			return a, true
		}
	}
	return Assignment{}, false
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
