package objects

import (
	"context"

	"github.com/circlekeep/circlekeep/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, object *models.DataObject) (*models.DataObject, error)
	GetByCircleAndName(ctx context.Context, circleID, name string) (*models.DataObject, error)
	ListByCircle(ctx context.Context, circleID string) ([]*models.DataObject, error)
	Delete(ctx context.Context, id string) error
}
