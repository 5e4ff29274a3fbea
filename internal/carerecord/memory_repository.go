package carerecord

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps records in process. It enforces the same
// uniqueness, version and ledger checks as the Postgres schema.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*CareRecord
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[uuid.UUID]*CareRecord)}
}

func (m *MemoryRepository) Create(_ context.Context, rec *CareRecord) error {
	if err := rec.ValidateLedger(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.records {
		if rec.DependentID != nil && existing.DependentID != nil && *existing.DependentID == *rec.DependentID {
			return ErrRecordExists
		}
		if rec.RecordType == RecordRegular && existing.RecordType == RecordRegular && existing.OwnerID == rec.OwnerID {
			return ErrRecordExists
		}
	}

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if _, ok := m.records[rec.ID]; ok {
		return ErrRecordExists
	}

	now := time.Now().UTC()
	rec.Version = 1
	rec.CreatedAt = now
	rec.UpdatedAt = now
	m.records[rec.ID] = rec.Clone()
	return nil
}

func (m *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*CareRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return rec.Clone(), nil
}

func (m *MemoryRepository) FindByDependent(_ context.Context, dependentID uuid.UUID) (*CareRecord, error) {
	return m.findOne(func(rec *CareRecord) bool {
		return rec.DependentID != nil && *rec.DependentID == dependentID
	})
}

func (m *MemoryRepository) FindRegularByOwner(_ context.Context, ownerID uuid.UUID) (*CareRecord, error) {
	return m.findOne(func(rec *CareRecord) bool {
		return rec.RecordType == RecordRegular && rec.OwnerID == ownerID
	})
}

func (m *MemoryRepository) findOne(match func(*CareRecord) bool) (*CareRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.records {
		if match(rec) {
			return rec.Clone(), nil
		}
	}
	return nil, ErrRecordNotFound
}

func (m *MemoryRepository) Update(_ context.Context, rec *CareRecord) error {
	if err := rec.ValidateLedger(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.records[rec.ID]
	if !ok || stored.Version != rec.Version {
		return ErrVersionConflict
	}

	rec.Version++
	rec.UpdatedAt = time.Now().UTC()
	rec.CreatedAt = stored.CreatedAt
	m.records[rec.ID] = rec.Clone()
	return nil
}

func (m *MemoryRepository) ListByProfessional(_ context.Context, professionalID uuid.UUID, limit int) ([]*CareRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*CareRecord
	for _, rec := range m.records {
		if !rec.Active {
			continue
		}
		for _, a := range rec.Assignments {
			if a.Active && a.ProfessionalID == professionalID {
				result = append(result, rec.Clone())
				break
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UpdatedAt.After(result[j].UpdatedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryRepository) ListWithLegacy(_ context.Context, after uuid.UUID, limit int) ([]*CareRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*CareRecord
	for _, rec := range m.records {
		if !rec.Legacy.IsEmpty() && bytes.Compare(rec.ID[:], after[:]) > 0 {
			result = append(result, rec.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return bytes.Compare(result[i].ID[:], result[j].ID[:]) < 0 })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
