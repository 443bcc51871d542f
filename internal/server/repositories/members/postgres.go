package members

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/circlekeep/circlekeep/internal/common"
	"github.com/circlekeep/circlekeep/internal/dbx"
	"github.com/circlekeep/circlekeep/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolationCode = "23505"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, member *models.Member) (*models.Member, error) {
	query :=
		`INSERT INTO members (account_name, salt, wrapped_private_key, public_key, role, active)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, changed_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		member.AccountName, member.Salt, member.WrappedPrivateKey,
		member.PublicKey, member.Role, member.Active).
		Scan(&member.ID, &member.CreatedAt, &member.ChangedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return member, nil
}

func (r *PostgresRepository) GetByAccountName(ctx context.Context, name string) (*models.Member, error) {
	query :=
		`SELECT id, account_name, salt, wrapped_private_key, public_key, role, active, created_at, changed_at
		 FROM members
		 WHERE account_name = $1
		 `

	return r.scanMember(r.db.QueryRowContext(ctx, query, name))
}

func (r *PostgresRepository) GetByAccountNameAndCircle(ctx context.Context, name, circleID string) (*models.Member, error) {
	query :=
		`SELECT m.id, m.account_name, m.salt, m.wrapped_private_key, m.public_key, m.role, m.active, m.created_at, m.changed_at
		 FROM members m
		 JOIN trustees t ON t.member_id = m.id
		 WHERE m.account_name = $1 AND t.circle_id = $2
		 `

	return r.scanMember(r.db.QueryRowContext(ctx, query, name, circleID))
}

func (r *PostgresRepository) Update(ctx context.Context, member *models.Member) error {
	query :=
		`UPDATE members
		 SET wrapped_private_key = $2, public_key = $3, role = $4, active = $5, changed_at = now()
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query,
		member.ID, member.WrappedPrivateKey, member.PublicKey, member.Role, member.Active)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM members WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) scanMember(row *sql.Row) (*models.Member, error) {
	m := &models.Member{}
	err := row.Scan(&m.ID, &m.AccountName, &m.Salt, &m.WrappedPrivateKey,
		&m.PublicKey, &m.Role, &m.Active, &m.CreatedAt, &m.ChangedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return m, nil
}
