package members

import (
	"context"

	"github.com/circlekeep/circlekeep/internal/server/models"
)

// Repository is the member lookup/persistence contract consumed by the
// authorization pipeline and the member lifecycle service.
type Repository interface {
	// Create persists a new member. A duplicate account name yields
	// common.ErrorAlreadyExists, which the bootstrap path relies on to stay
	// idempotent under concurrent creation.
	Create(ctx context.Context, member *models.Member) (*models.Member, error)

	// GetByAccountName resolves a member by unique account name.
	GetByAccountName(ctx context.Context, name string) (*models.Member, error)

	// GetByAccountNameAndCircle narrows the lookup to members holding a
	// trustee row in the given circle. A miss here is not authoritative;
	// callers fall back to the unscoped lookup.
	GetByAccountNameAndCircle(ctx context.Context, name, circleID string) (*models.Member, error)

	// Update rewrites the mutable member fields (wrapped key material,
	// role, active flag).
	Update(ctx context.Context, member *models.Member) error

	// Delete removes the member row.
	Delete(ctx context.Context, id string) error
}
