package carerecord

import (
	"context"

	"github.com/google/uuid"

	"github.com/hackgods/carecoord/internal/apperr"
)

var (
	ErrRecordNotFound   = apperr.New(apperr.KindNotFound, "care record not found")
	ErrRecordExists     = apperr.New(apperr.KindConflict, "care record already exists")
	ErrVersionConflict  = apperr.New(apperr.KindConflict, "care record was modified concurrently")
	ErrConcurrentUpdate = apperr.New(apperr.KindConflict, "care record update kept conflicting, retry later")
)

// Repository persists care records. Update is an optimistic write: it
// succeeds only if rec.Version still matches the stored version, and bumps
// rec.Version on success. Create and Update both run ValidateLedger first.
type Repository interface {
	Create(ctx context.Context, rec *CareRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*CareRecord, error)
	FindByDependent(ctx context.Context, dependentID uuid.UUID) (*CareRecord, error)
	FindRegularByOwner(ctx context.Context, ownerID uuid.UUID) (*CareRecord, error)
	Update(ctx context.Context, rec *CareRecord) error

	// ListByProfessional returns active records on which professionalID has an active assignment.
	ListByProfessional(ctx context.Context, professionalID uuid.UUID, limit int) ([]*CareRecord, error)
	// ListWithLegacy pages, by id, through records still carrying legacy assignment fields.
	ListWithLegacy(ctx context.Context, after uuid.UUID, limit int) ([]*CareRecord, error)
}
