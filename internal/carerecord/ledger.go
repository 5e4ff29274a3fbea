package carerecord

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/carecoord/internal/apperr"
)

const DefaultRemovalReason = "removed"

var (
	ErrInvalidRole         = apperr.New(apperr.KindValidation, "role must be doctor or therapist")
	ErrInvalidStanding     = apperr.New(apperr.KindValidation, "standing must be onboarding, primary or assigned")
	ErrMissingProfessional = apperr.New(apperr.KindValidation, "professional_id is required")
	ErrMultiplePrimary     = apperr.New(apperr.KindConflict, "more than one active primary for role")
	ErrDuplicateAssignment = apperr.New(apperr.KindConflict, "duplicate assignment entry")
)

// Grant describes an addAssignment request against a record's ledger.
type Grant struct {
	ProfessionalID uuid.UUID
	Role           Role
	Standing       Standing
	Specialization string
	GrantedBy      *uuid.UUID
}

func (g Grant) validate() error {
	if g.ProfessionalID == uuid.Nil {
		return ErrMissingProfessional
	}
	if !g.Role.IsProfessional() {
		return ErrInvalidRole
	}
	if !g.Standing.Valid() {
		return ErrInvalidStanding
	}
	return nil
}

func (r *CareRecord) find(professionalID uuid.UUID, role Role) int {
	for i, a := range r.Assignments {
		if a.ProfessionalID == professionalID && a.Role == role {
			return i
		}
	}
	return -1
}

// AddAssignment grants g idempotently. An inactive entry is reactivated with
// g's standing; an active entry is only upgraded when g's standing outranks
// it. It reports whether the ledger changed.
func (r *CareRecord) AddAssignment(g Grant, now time.Time) (bool, error) {
	if err := g.validate(); err != nil {
		return false, err
	}

	i := r.find(g.ProfessionalID, g.Role)
	switch {
	case i < 0:
		r.Assignments = append(r.Assignments, Assignment{
			ProfessionalID: g.ProfessionalID,
			Role:           g.Role,
			Standing:       g.Standing,
			Specialization: g.Specialization,
			AssignedAt:     now,
			AssignedBy:     g.GrantedBy,
			Active:         true,
		})
		i = len(r.Assignments) - 1
	case !r.Assignments[i].Active:
		a := &r.Assignments[i]
		a.Active = true
		a.Standing = g.Standing
		a.AssignedAt = now
		a.AssignedBy = g.GrantedBy
		a.RemovedAt = nil
		a.RemovedBy = nil
		a.RemovalReason = ""
		if g.Specialization != "" {
			a.Specialization = g.Specialization
		}
	default:
		a := &r.Assignments[i]
		if g.Standing.rank() <= a.Standing.rank() {
			return false, nil
		}
		a.Standing = g.Standing
		if g.Specialization != "" {
			a.Specialization = g.Specialization
		}
	}

	if r.Assignments[i].Standing == StandingPrimary {
		r.demotePrimaries(g.Role, i)
	}
	return true, nil
}

// RemoveAssignment deactivates the active (professionalID, role) entry.
// It returns false when there is nothing to remove.
func (r *CareRecord) RemoveAssignment(professionalID uuid.UUID, role Role, removedBy *uuid.UUID, reason string, now time.Time) bool {
	i := r.find(professionalID, role)
	if i < 0 || !r.Assignments[i].Active {
		return false
	}
	if reason == "" {
		reason = DefaultRemovalReason
	}

	a := &r.Assignments[i]
	a.Active = false
	a.RemovedAt = &now
	a.RemovedBy = removedBy
	a.RemovalReason = reason
	return true
}

// SetPrimary makes professionalID the single primary of role, demoting the
// previous primary to assigned.
func (r *CareRecord) SetPrimary(professionalID uuid.UUID, role Role, grantedBy *uuid.UUID, now time.Time) (bool, error) {
	g := Grant{ProfessionalID: professionalID, Role: role, Standing: StandingPrimary, GrantedBy: grantedBy}
	if err := g.validate(); err != nil {
		return false, err
	}

	i := r.find(professionalID, role)
	if i >= 0 && r.Assignments[i].Active {
		if r.Assignments[i].Standing == StandingPrimary {
			return false, nil
		}
		r.demotePrimaries(role, i)
		r.Assignments[i].Standing = StandingPrimary
		return true, nil
	}

	r.demotePrimaries(role, -1)
	return r.AddAssignment(g, now)
}

// RemovePrimary demotes the active primary of role to assigned.
func (r *CareRecord) RemovePrimary(role Role) bool {
	return r.demotePrimaries(role, -1)
}

func (r *CareRecord) demotePrimaries(role Role, keep int) bool {
	changed := false
	for j := range r.Assignments {
		a := &r.Assignments[j]
		if j != keep && a.Active && a.Role == role && a.Standing == StandingPrimary {
			a.Standing = StandingAssigned
			changed = true
		}
	}
	return changed
}

// ValidateLedger is the persistence-time guard run by every repository
// before a write.
func (r *CareRecord) ValidateLedger() error {
	seen := make(map[string]bool, len(r.Assignments))
	primaries := make(map[Role]int)

	for _, a := range r.Assignments {
		if !a.Role.IsProfessional() {
			return fmt.Errorf("assignment %s: %w", a.ProfessionalID, ErrInvalidRole)
		}
		if !a.Standing.Valid() {
			return fmt.Errorf("assignment %s: %w", a.ProfessionalID, ErrInvalidStanding)
		}

		key := a.ProfessionalID.String() + "/" + string(a.Role)
		if seen[key] {
			return fmt.Errorf("%s: %w", key, ErrDuplicateAssignment)
		}
		seen[key] = true

		if a.Active && a.Standing == StandingPrimary {
			primaries[a.Role]++
			if primaries[a.Role] > 1 {
				return fmt.Errorf("role %s: %w", a.Role, ErrMultiplePrimary)
			}
		}
	}
	return nil
}
