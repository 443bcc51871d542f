package trustees

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/circlekeep/circlekeep/internal/common"
	"github.com/circlekeep/circlekeep/internal/server/models"
	"github.com/circlekeep/circlekeep/internal/server/trust"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var trusteeColumns = []string{
	"id", "member_id", "circle_id", "level", "wrapped_circle_key", "created_at", "changed_at",
}

func TestListByMember(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE member_id = $1")).
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows(trusteeColumns).
			AddRow("t1", "m1", "c1", "WRITE", []byte("wrapped"), now, now).
			AddRow("t2", "m1", "c2", "READ", []byte("wrapped"), now, now))

	repo := NewPostgresRepository(db)
	list, err := repo.ListByMember(context.Background(), "m1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, trust.Write, list[0].Level)
	assert.Equal(t, trust.Read, list[1].Level)
}

func TestListByMemberAndCircleEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("AND circle_id = $2")).
		WithArgs("m1", "c9").
		WillReturnRows(sqlmock.NewRows(trusteeColumns))

	repo := NewPostgresRepository(db)
	list, err := repo.ListByMemberAndCircle(context.Background(), "m1", "c9")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestListBadLevel(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE member_id = $1")).
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows(trusteeColumns).
			AddRow("t1", "m1", "c1", "ROOT", []byte("wrapped"), now, now))

	repo := NewPostgresRepository(db)
	_, err = repo.ListByMember(context.Background(), "m1")
	assert.Error(t, err)
}

func TestCreateTrustee(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO trustees")).
		WithArgs("m1", "c1", "ADMIN", []byte("wrapped")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "changed_at"}).
			AddRow("t1", now, now))

	repo := NewPostgresRepository(db)
	tr, err := repo.Create(context.Background(), &models.Trustee{
		MemberID:         "m1",
		CircleID:         "c1",
		Level:            trust.Admin,
		WrappedCircleKey: []byte("wrapped"),
	})
	require.NoError(t, err)
	assert.Equal(t, "t1", tr.ID)
}

func TestCreateTrusteeDuplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO trustees")).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	repo := NewPostgresRepository(db)
	_, err = repo.Create(context.Background(), &models.Trustee{Level: trust.Read})
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestDeleteTrusteeNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM trustees")).
		WithArgs("m1", "c1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewPostgresRepository(db)
	err = repo.Delete(context.Background(), "m1", "c1")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
