package carerecord

import "github.com/google/uuid"

// CanAccess decides whether actorID, acting as actorRole, may read or edit rec.
// The order is owner, admin, ledger (or legacy fields while the ledger is
// empty), then explicit share grants. It never fails; callers turn false
// into ErrAccessDenied.
func CanAccess(rec *CareRecord, actorID uuid.UUID, actorRole Role) bool {
	if rec == nil || actorID == uuid.Nil {
		return false
	}

	if rec.OwnerID == actorID {
		return true
	}

	if actorRole == RoleAdmin {
		return true
	}

	if actorRole.IsProfessional() {
		if len(rec.Assignments) > 0 {
			if _, ok := rec.ActiveAssignment(actorID, actorRole); ok {
				return true
			}
		} else if rec.Legacy.names(actorID, actorRole) {
			return true
		}
	}

	return containsID(rec.SharedWith, actorID)
}

// canManage reports whether actor may change the record's ledger or shares.
func canManage(rec *CareRecord, actor Actor) bool {
	if rec.OwnerID == actor.ID || actor.Role == RoleAdmin {
		return true
	}
	if !actor.Role.IsProfessional() {
		return false
	}
	a, ok := rec.ActiveAssignment(actor.ID, actor.Role)
	return ok && (a.Standing == StandingOnboarding || a.Standing == StandingPrimary)
}
