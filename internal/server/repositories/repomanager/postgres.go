package repomanager

import (
	"context"
	"database/sql"

	"github.com/circlekeep/circlekeep/internal/dbx"
	"github.com/circlekeep/circlekeep/internal/server/migrations"
	"github.com/circlekeep/circlekeep/internal/server/repositories/circles"
	"github.com/circlekeep/circlekeep/internal/server/repositories/members"
	"github.com/circlekeep/circlekeep/internal/server/repositories/objects"
	"github.com/circlekeep/circlekeep/internal/server/repositories/trustees"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type PostgresRepositoryManager struct{}

func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}

func (m *PostgresRepositoryManager) Members(db dbx.DBTX) members.Repository {
	return members.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Trustees(db dbx.DBTX) trustees.Repository {
	return trustees.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Circles(db dbx.DBTX) circles.Repository {
	return circles.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Objects(db dbx.DBTX) objects.Repository {
	return objects.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and applies them.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}
