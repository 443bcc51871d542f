package trustees

import (
	"context"

	"github.com/circlekeep/circlekeep/internal/server/models"
)

// Repository is the trustee lookup/persistence contract. A trustee row is
// the (member, circle) access grant carrying the trust level and the
// circle key wrapped under the member's public key.
type Repository interface {
	// ListByMember returns every grant the member holds.
	ListByMember(ctx context.Context, memberID string) ([]*models.Trustee, error)

	// ListByMemberAndCircle narrows the list to one circle.
	ListByMemberAndCircle(ctx context.Context, memberID, circleID string) ([]*models.Trustee, error)

	// Create inserts a grant. The (member, circle) pair is unique;
	// duplicates yield common.ErrorAlreadyExists.
	Create(ctx context.Context, trustee *models.Trustee) (*models.Trustee, error)

	// UpdateLevel alters the trust level of an existing grant.
	UpdateLevel(ctx context.Context, memberID, circleID string, level string) error

	// Delete removes the grant for the (member, circle) pair.
	Delete(ctx context.Context, memberID, circleID string) error
}
