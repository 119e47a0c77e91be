package repository

import (
	"database/sql"

	"github.com/stanstork/invitation-api/internal/models"
)

// StatsRepository owns the per-user invitation quota ledger.
//
// TryConsume and AddAvailable are single conditional UPDATE statements so the
// check-then-decrement is one transactional unit under Postgres row locking;
// concurrent consumers for the same user serialize on the row and can never
// overspend it.
type StatsRepository interface {
	GetOrCreate(userID string, initialAvailable int) (models.InvitationStats, error)
	Get(userID string) (models.InvitationStats, error)
	AddAvailable(userID string, count int) (models.InvitationStats, error)
	TryConsume(userID string, count int) (bool, error)
	RecordAccepted(userID string) error
}

type statsRepository struct {
	db *sql.DB
}

func NewStatsRepository(db *sql.DB) StatsRepository {
	return &statsRepository{db: db}
}

func (r *statsRepository) GetOrCreate(userID string, initialAvailable int) (models.InvitationStats, error) {
	const insert = `
		INSERT INTO invitation.invitation_stats (user_id, available)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING;
	`
	if _, err := r.db.Exec(insert, userID, initialAvailable); err != nil {
		return models.InvitationStats{}, err
	}
	return r.Get(userID)
}

func (r *statsRepository) Get(userID string) (models.InvitationStats, error) {
	const query = `
		SELECT user_id, available, sent, accepted
		FROM invitation.invitation_stats
		WHERE user_id = $1;
	`
	var stats models.InvitationStats
	err := r.db.QueryRow(query, userID).Scan(&stats.UserID, &stats.Available, &stats.Sent, &stats.Accepted)
	if err != nil {
		return models.InvitationStats{}, err
	}
	return stats, nil
}

func (r *statsRepository) AddAvailable(userID string, count int) (models.InvitationStats, error) {
	const query = `
		UPDATE invitation.invitation_stats
		SET available = available + $2, updated_at = now()
		WHERE user_id = $1
		RETURNING user_id, available, sent, accepted;
	`
	var stats models.InvitationStats
	err := r.db.QueryRow(query, userID, count).Scan(&stats.UserID, &stats.Available, &stats.Sent, &stats.Accepted)
	if err != nil {
		return models.InvitationStats{}, err
	}
	return stats, nil
}

// TryConsume atomically spends count units of quota and bumps the sent
// counter. Returns false, leaving the row untouched, when the balance is
// insufficient.
func (r *statsRepository) TryConsume(userID string, count int) (bool, error) {
	const query = `
		UPDATE invitation.invitation_stats
		SET available = available - $2, sent = sent + $2, updated_at = now()
		WHERE user_id = $1 AND available >= $2;
	`
	result, err := r.db.Exec(query, userID, count)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// RecordAccepted is unconditional; idempotency of the accept transition is
// the invitation store's responsibility.
func (r *statsRepository) RecordAccepted(userID string) error {
	const query = `
		UPDATE invitation.invitation_stats
		SET accepted = accepted + 1, updated_at = now()
		WHERE user_id = $1;
	`
	result, err := r.db.Exec(query, userID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
