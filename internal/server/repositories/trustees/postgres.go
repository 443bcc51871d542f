package trustees

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/circlekeep/circlekeep/internal/common"
	"github.com/circlekeep/circlekeep/internal/dbx"
	"github.com/circlekeep/circlekeep/internal/server/models"
	"github.com/circlekeep/circlekeep/internal/server/trust"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolationCode = "23505"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectTrustees = `SELECT id, member_id, circle_id, level, wrapped_circle_key, created_at, changed_at
	 FROM trustees
	 `

func (r *PostgresRepository) ListByMember(ctx context.Context, memberID string) ([]*models.Trustee, error) {
	rows, err := r.db.QueryContext(ctx, selectTrustees+`WHERE member_id = $1`, memberID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return scanTrustees(rows)
}

func (r *PostgresRepository) ListByMemberAndCircle(ctx context.Context, memberID, circleID string) ([]*models.Trustee, error) {
	rows, err := r.db.QueryContext(ctx, selectTrustees+`WHERE member_id = $1 AND circle_id = $2`, memberID, circleID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return scanTrustees(rows)
}

func (r *PostgresRepository) Create(ctx context.Context, trustee *models.Trustee) (*models.Trustee, error) {
	query :=
		`INSERT INTO trustees (member_id, circle_id, level, wrapped_circle_key)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, changed_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		trustee.MemberID, trustee.CircleID, trustee.Level.String(), trustee.WrappedCircleKey).
		Scan(&trustee.ID, &trustee.CreatedAt, &trustee.ChangedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return trustee, nil
}

func (r *PostgresRepository) UpdateLevel(ctx context.Context, memberID, circleID string, level string) error {
	query :=
		`UPDATE trustees SET level = $3, changed_at = now()
		 WHERE member_id = $1 AND circle_id = $2
		 `

	res, err := r.db.ExecContext(ctx, query, memberID, circleID, level)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, memberID, circleID string) error {
	query := `DELETE FROM trustees WHERE member_id = $1 AND circle_id = $2`

	res, err := r.db.ExecContext(ctx, query, memberID, circleID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func scanTrustees(rows *sql.Rows) ([]*models.Trustee, error) {
	defer rows.Close()

	var result []*models.Trustee
	for rows.Next() {
		tr := &models.Trustee{}
		var level string
		if err := rows.Scan(&tr.ID, &tr.MemberID, &tr.CircleID, &level,
			&tr.WrappedCircleKey, &tr.CreatedAt, &tr.ChangedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		parsed, err := trust.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		tr.Level = parsed
		result = append(result, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
