package carerecord

import "time"

// MigrateLegacy folds the legacy assignment fields into the ledger and clears
// them. Legacy data is only imported when the ledger is still empty; a
// non-empty ledger already supersedes it. It reports whether rec changed.
func (r *CareRecord) MigrateLegacy(now time.Time) (bool, error) {
	if r.Legacy.IsEmpty() {
		return false, nil
	}

	if len(r.Assignments) == 0 {
		grants := make([]Grant, 0, 2+len(r.Legacy.DoctorIDs)+len(r.Legacy.TherapistIDs))
		if id := r.Legacy.PrimaryDoctorID; id != nil {
			grants = append(grants, Grant{ProfessionalID: *id, Role: RoleDoctor, Standing: StandingPrimary})
		}
		if id := r.Legacy.PrimaryTherapistID; id != nil {
			grants = append(grants, Grant{ProfessionalID: *id, Role: RoleTherapist, Standing: StandingPrimary})
		}
		for _, id := range r.Legacy.DoctorIDs {
			grants = append(grants, Grant{ProfessionalID: id, Role: RoleDoctor, Standing: StandingAssigned})
		}
		for _, id := range r.Legacy.TherapistIDs {
			grants = append(grants, Grant{ProfessionalID: id, Role: RoleTherapist, Standing: StandingAssigned})
		}

		for _, g := range grants {
			if _, err := r.AddAssignment(g, now); err != nil {
				return false, err
			}
		}
	}

	r.Legacy = LegacyAssignments{}
	return true, nil
}
