package licensing

import (
	"context"

	"github.com/google/uuid"
)

// Registry persists companies together with their embedded fingerprint roster.
type Registry interface {
	// FindByBusinessKey returns ErrNotFound both for an unknown companyID and a wrong deployKey.
	FindByBusinessKey(ctx context.Context, companyID, deployKey string) (Company, error)
	FindByID(ctx context.Context, id uuid.UUID) (Company, error)
	// Create fails with *ConflictError when companyID or email is taken.
	Create(ctx context.Context, company Company) (Company, error)
	// Update runs patch against the current record under a per-company lock and
	// persists the result. An error from patch aborts without writing.
	Update(ctx context.Context, id uuid.UUID, patch func(*Company) error) (Company, error)
	// List returns all companies, newest first.
	List(ctx context.Context) ([]Company, error)
}

const (
	fieldCompanyID = "companyId"
	fieldEmail     = "email"
)
