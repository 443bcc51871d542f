package objects

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

const selectObjects = `SELECT id, circle_id, name, storage_key, checksum, nonce, created_at
	 FROM data_objects
	 `

func (r *PostgresRepository) Create(ctx context.Context, object *models.DataObject) (*models.DataObject, error) {
	query :=
		`INSERT INTO data_objects (circle_id, name, storage_key, checksum, nonce)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		object.CircleID, object.Name, object.StorageKey, object.Checksum, object.Nonce).
		Scan(&object.ID, &object.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return object, nil
}

func (r *PostgresRepository) GetByCircleAndName(ctx context.Context, circleID, name string) (*models.DataObject, error) {
	row := r.db.QueryRowContext(ctx, selectObjects+`WHERE circle_id = $1 AND name = $2`, circleID, name)

	o := &models.DataObject{}
	err := row.Scan(&o.ID, &o.CircleID, &o.Name, &o.StorageKey, &o.Checksum, &o.Nonce, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return o, nil
}

func (r *PostgresRepository) ListByCircle(ctx context.Context, circleID string) ([]*models.DataObject, error) {
	rows, err := r.db.QueryContext(ctx, selectObjects+`WHERE circle_id = $1 ORDER BY created_at`, circleID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.DataObject
	for rows.Next() {
		o := &models.DataObject{}
		if err := rows.Scan(&o.ID, &o.CircleID, &o.Name, &o.StorageKey,
			&o.Checksum, &o.Nonce, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM data_objects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
