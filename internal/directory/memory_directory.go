package directory

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryDirectory is an in-process Directory used by tests and local tooling.
type MemoryDirectory struct {
	mu            sync.RWMutex
	professionals map[uuid.UUID]*Professional
	users         map[uuid.UUID]*Person
	dependents    map[uuid.UUID]*Dependent
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		professionals: make(map[uuid.UUID]*Professional),
		users:         make(map[uuid.UUID]*Person),
		dependents:    make(map[uuid.UUID]*Dependent),
	}
}

func (d *MemoryDirectory) PutProfessional(p Professional) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.professionals[p.ID] = &p
}

func (d *MemoryDirectory) PutUser(p Person) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[p.ID] = &p
}

func (d *MemoryDirectory) PutDependent(dep Dependent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dependents[dep.ID] = &dep
}

func (d *MemoryDirectory) GetProfessional(_ context.Context, id uuid.UUID) (*Professional, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.professionals[id]
	if !ok {
		return nil, ErrProfessionalNotFound
	}
	cp := *p
	return &cp, nil
}

func (d *MemoryDirectory) IncrementAppointmentCount(_ context.Context, id uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.professionals[id]
	if !ok {
		return ErrProfessionalNotFound
	}
	p.AppointmentCount++
	return nil
}

func (d *MemoryDirectory) GetUser(_ context.Context, id uuid.UUID) (*Person, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *p
	return &cp, nil
}

func (d *MemoryDirectory) GetDependent(_ context.Context, id uuid.UUID) (*Dependent, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	dep, ok := d.dependents[id]
	if !ok {
		return nil, ErrDependentNotFound
	}
	cp := *dep
	return &cp, nil
}
