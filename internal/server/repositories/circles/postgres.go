package circles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/circlekeep/circlekeep/internal/common"
	"github.com/circlekeep/circlekeep/internal/dbx"
	"github.com/circlekeep/circlekeep/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, circle *models.Circle) (*models.Circle, error) {
	query :=
		`INSERT INTO circles (name)
		 VALUES ($1)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query, circle.Name).
		Scan(&circle.ID, &circle.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return circle, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Circle, error) {
	query := `SELECT id, name, created_at FROM circles WHERE id = $1`

	c := &models.Circle{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM circles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
