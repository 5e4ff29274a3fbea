package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository. Create applies the same slot
// exclusion the Postgres constraint does.
type MemoryRepository struct {
	mu           sync.RWMutex
	appointments map[uuid.UUID]*Appointment
	events       []EventLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{appointments: make(map[uuid.UUID]*Appointment)}
}

func (m *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryRepository) FindActiveInWindow(_ context.Context, professionalID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	return m.filter(func(a *Appointment) bool {
		return a.ProfessionalID == professionalID && a.Status.Holds() &&
			!a.ScheduledAt.Before(from) && !a.ScheduledAt.After(to)
	}), nil
}

func (m *MemoryRepository) Create(_ context.Context, appt *Appointment, window time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if appt.Status.Holds() {
		for _, other := range m.appointments {
			if other.ProfessionalID != appt.ProfessionalID || !other.Status.Holds() {
				continue
			}
			diff := other.ScheduledAt.Sub(appt.ScheduledAt)
			if diff < 0 {
				diff = -diff
			}
			if diff <= window {
				return ErrSlotTaken
			}
		}
	}

	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	now := time.Now().UTC()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	cp := *appt
	m.appointments[appt.ID] = &cp
	return nil
}

func (m *MemoryRepository) UpdateStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus, change StatusChange) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrStatusConflict
	}

	a.Status = to
	if change.CancelledBy != nil {
		a.CancelledBy = change.CancelledBy
	}
	if change.CancelledAt != nil {
		a.CancelledAt = change.CancelledAt
	}
	if change.CancellationReason != nil {
		a.CancellationReason = change.CancellationReason
	}
	if change.CompletedAt != nil {
		a.CompletedAt = change.CompletedAt
	}
	a.UpdatedAt = time.Now().UTC()

	cp := *a
	return &cp, nil
}

func (m *MemoryRepository) AttachRecord(_ context.Context, id, recordID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	rid := recordID
	a.RecordID = &rid
	return nil
}

func (m *MemoryRepository) ListByProfessional(_ context.Context, professionalID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	return m.filter(func(a *Appointment) bool {
		return a.ProfessionalID == professionalID && !a.ScheduledAt.Before(from) && a.ScheduledAt.Before(to)
	}), nil
}

func (m *MemoryRepository) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	all := m.filter(func(a *Appointment) bool { return a.PatientID == patientID })
	sort.Slice(all, func(i, j int) bool { return all[i].ScheduledAt.After(all[j].ScheduledAt) })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *MemoryRepository) FindStalePending(_ context.Context, before time.Time, limit int) ([]Appointment, error) {
	all := m.filter(func(a *Appointment) bool {
		return a.Status == StatusPending && a.ScheduledAt.Before(before)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.ID = int64(len(m.events) + 1)
	m.events = append(m.events, ev)
	return nil
}

// Events returns a copy of the recorded event log.
func (m *MemoryRepository) Events() []EventLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]EventLog(nil), m.events...)
}

// filter returns matches ordered by scheduled time.
func (m *MemoryRepository) filter(match func(*Appointment) bool) []Appointment {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Appointment
	for _, a := range m.appointments {
		if match(a) {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ScheduledAt.Before(result[j].ScheduledAt) })
	return result
}
