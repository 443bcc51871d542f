package circles

import (
	"context"

	"github.com/circlekeep/circlekeep/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, circle *models.Circle) (*models.Circle, error)
	GetByID(ctx context.Context, id string) (*models.Circle, error)
	Delete(ctx context.Context, id string) error
}
