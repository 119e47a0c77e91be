package repository

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newStatsRepoWithMock(t *testing.T) (StatsRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewStatsRepository(db), mock, db
}

func TestTryConsume_Sufficient(t *testing.T) {
	repo, mock, db := newStatsRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*UPDATE\s+invitation\.invitation_stats\s+SET\s+available\s*=\s*available\s*-\s*\$2,\s*sent\s*=\s*sent\s*\+\s*\$2.*WHERE\s+user_id\s*=\s*\$1\s+AND\s+available\s*>=\s*\$2`

	mock.ExpectExec(q).
		WithArgs("u-1", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.TryConsume("u-1", 1)
	if err != nil {
		t.Fatalf("TryConsume error: %v", err)
	}
	if !ok {
		t.Fatal("expected consumption to succeed")
	}
}

func TestTryConsume_Insufficient(t *testing.T) {
	repo, mock, db := newStatsRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*UPDATE\s+invitation\.invitation_stats\s+SET\s+available`

	// The conditional update matches no row: balance untouched, no error.
	mock.ExpectExec(q).
		WithArgs("u-1", 5).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.TryConsume("u-1", 5)
	if err != nil {
		t.Fatalf("TryConsume error: %v", err)
	}
	if ok {
		t.Fatal("expected consumption to fail on insufficient balance")
	}
}

func TestGetOrCreate_ExistingRow(t *testing.T) {
	repo, mock, db := newStatsRepoWithMock(t)
	defer db.Close()

	insert := `(?s)^\s*INSERT\s+INTO\s+invitation\.invitation_stats.*ON\s+CONFLICT\s+\(user_id\)\s+DO\s+NOTHING`
	sel := `(?s)^\s*SELECT\s+user_id,\s*available,\s*sent,\s*accepted\s+FROM\s+invitation\.invitation_stats`

	mock.ExpectExec(insert).
		WithArgs("u-1", 10).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(sel).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "available", "sent", "accepted"}).
			AddRow("u-1", 7, 3, 1))

	stats, err := repo.GetOrCreate("u-1", 10)
	if err != nil {
		t.Fatalf("GetOrCreate error: %v", err)
	}
	if stats.Available != 7 || stats.Sent != 3 || stats.Accepted != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestAddAvailable(t *testing.T) {
	repo, mock, db := newStatsRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*UPDATE\s+invitation\.invitation_stats\s+SET\s+available\s*=\s*available\s*\+\s*\$2`

	mock.ExpectQuery(q).
		WithArgs("u-1", 3).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "available", "sent", "accepted"}).
			AddRow("u-1", 3, 0, 0))

	stats, err := repo.AddAvailable("u-1", 3)
	if err != nil {
		t.Fatalf("AddAvailable error: %v", err)
	}
	if stats.Available != 3 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestRecordAccepted_MissingRow(t *testing.T) {
	repo, mock, db := newStatsRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*UPDATE\s+invitation\.invitation_stats\s+SET\s+accepted\s*=\s*accepted\s*\+\s*1`

	mock.ExpectExec(q).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.RecordAccepted("ghost")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("want sql.ErrNoRows, got %v", err)
	}
}
