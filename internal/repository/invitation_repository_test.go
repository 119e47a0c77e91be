package repository

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stanstork/invitation-api/internal/models"
)

var invitationColumns = []string{"id", "key", "sender_id", "email", "created_at", "expires_at", "accepted_at"}

func invitationFixture() models.Invitation {
	created := time.Date(2026, 2, 20, 9, 0, 0, 0, time.UTC)
	return models.Invitation{
		Key:       "test-key",
		SenderID:  "u-1",
		Email:     "friend@example.com",
		CreatedAt: created,
		ExpiresAt: created.Add(14 * 24 * time.Hour),
	}
}

func newInvitationRepoWithMock(t *testing.T) (InvitationRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewInvitationRepository(db), mock, db
}

func TestInvitationCreate_KeyCollision(t *testing.T) {
	repo, mock, db := newInvitationRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*INSERT\s+INTO\s+invitation\.invitations`

	mock.ExpectQuery(q).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.Create(invitationFixture())
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("want ErrDuplicate, got %v", err)
	}
}

func TestInvitationCreate_ReturnsStoredRow(t *testing.T) {
	repo, mock, db := newInvitationRepoWithMock(t)
	defer db.Close()

	inv := invitationFixture()
	q := `(?s)^\s*INSERT\s+INTO\s+invitation\.invitations.*RETURNING`

	mock.ExpectQuery(q).
		WithArgs(inv.Key, inv.SenderID, inv.Email, inv.CreatedAt, inv.ExpiresAt).
		WillReturnRows(sqlmock.NewRows(invitationColumns).
			AddRow("inv-1", inv.Key, inv.SenderID, inv.Email, inv.CreatedAt, inv.ExpiresAt, nil))

	stored, err := repo.Create(inv)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if stored.ID != "inv-1" || stored.Key != inv.Key || stored.AcceptedAt != nil {
		t.Fatalf("unexpected invitation: %+v", stored)
	}
}

func TestMarkAccepted_LostRace(t *testing.T) {
	repo, mock, db := newInvitationRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*UPDATE\s+invitation\.invitations\s+SET\s+accepted_at\s*=\s*\$2\s+WHERE\s+key\s*=\s*\$1\s+AND\s+accepted_at\s+IS\s+NULL\s+AND\s+expires_at\s*>\s*\$2`

	// The conditional update finds nothing to transition.
	mock.ExpectQuery(q).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.MarkAccepted("k", time.Now())
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("want sql.ErrNoRows, got %v", err)
	}
}

func TestFindValidByEmail(t *testing.T) {
	repo, mock, db := newInvitationRepoWithMock(t)
	defer db.Close()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	inv := invitationFixture()
	q := `(?s)^\s*SELECT.*FROM\s+invitation\.invitations\s+WHERE\s+LOWER\(email\)\s*=\s*LOWER\(\$1\)\s+AND\s+accepted_at\s+IS\s+NULL\s+AND\s+expires_at\s*>\s*\$2`

	mock.ExpectQuery(q).
		WithArgs("Friend@Example.com", now).
		WillReturnRows(sqlmock.NewRows(invitationColumns).
			AddRow("inv-1", inv.Key, inv.SenderID, inv.Email, inv.CreatedAt, inv.ExpiresAt, nil))

	found, err := repo.FindValidByEmail("Friend@Example.com", now)
	if err != nil {
		t.Fatalf("FindValidByEmail error: %v", err)
	}
	if found.Key != inv.Key {
		t.Fatalf("unexpected invitation: %+v", found)
	}
}

func TestPurgeExpired(t *testing.T) {
	repo, mock, db := newInvitationRepoWithMock(t)
	defer db.Close()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	q := `(?s)^\s*DELETE\s+FROM\s+invitation\.invitations\s+WHERE\s+accepted_at\s+IS\s+NULL\s+AND\s+expires_at\s*<=\s*\$1`

	mock.ExpectExec(q).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 4))

	purged, err := repo.PurgeExpired(now)
	if err != nil {
		t.Fatalf("PurgeExpired error: %v", err)
	}
	if purged != 4 {
		t.Fatalf("want 4 purged, got %d", purged)
	}
}
