// Package repomanager wires repository constructors to a database handle
// and owns schema migrations. Services receive a RepositoryManager and a
// *sql.DB, which lets them run any repository either directly or inside a
// dbx.WithTx transaction.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/circlekeep/circlekeep/internal/dbx"
	"github.com/circlekeep/circlekeep/internal/server/repositories/circles"
	"github.com/circlekeep/circlekeep/internal/server/repositories/members"
	"github.com/circlekeep/circlekeep/internal/server/repositories/objects"
	"github.com/circlekeep/circlekeep/internal/server/repositories/trustees"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Members(db dbx.DBTX) members.Repository
	Trustees(db dbx.DBTX) trustees.Repository
	Circles(db dbx.DBTX) circles.Repository
	Objects(db dbx.DBTX) objects.Repository
}
