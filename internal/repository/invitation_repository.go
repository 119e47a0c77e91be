package repository

import (
	"database/sql"
	"time"

	"github.com/stanstork/invitation-api/internal/models"
)

type InvitationRepository interface {
	Create(invitation models.Invitation) (models.Invitation, error)
	GetByKey(key string) (models.Invitation, error)
	FindValidByEmail(email string, now time.Time) (models.Invitation, error)
	MarkAccepted(key string, now time.Time) (models.Invitation, error)
	List(limit int) ([]models.Invitation, error)
	PurgeExpired(now time.Time) (int64, error)
}

type invitationRepository struct {
	db *sql.DB
}

func NewInvitationRepository(db *sql.DB) InvitationRepository {
	return &invitationRepository{db: db}
}

// Create persists a new invitation. A collision on the unique key index is
// reported as ErrDuplicate so the caller can regenerate and retry.
func (r *invitationRepository) Create(invitation models.Invitation) (models.Invitation, error) {
	const query = `
		INSERT INTO invitation.invitations (key, sender_id, email, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, key, sender_id, email, created_at, expires_at, accepted_at;
	`
	err := r.db.QueryRow(query,
		invitation.Key,
		invitation.SenderID,
		invitation.Email,
		invitation.CreatedAt,
		invitation.ExpiresAt,
	).Scan(
		&invitation.ID,
		&invitation.Key,
		&invitation.SenderID,
		&invitation.Email,
		&invitation.CreatedAt,
		&invitation.ExpiresAt,
		&invitation.AcceptedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Invitation{}, ErrDuplicate
		}
		return models.Invitation{}, err
	}
	return invitation, nil
}

func (r *invitationRepository) GetByKey(key string) (models.Invitation, error) {
	const query = `
		SELECT id, key, sender_id, email, created_at, expires_at, accepted_at
		FROM invitation.invitations
		WHERE key = $1;
	`
	var invitation models.Invitation
	err := r.db.QueryRow(query, key).Scan(
		&invitation.ID,
		&invitation.Key,
		&invitation.SenderID,
		&invitation.Email,
		&invitation.CreatedAt,
		&invitation.ExpiresAt,
		&invitation.AcceptedAt,
	)
	if err != nil {
		return models.Invitation{}, err
	}
	return invitation, nil
}

// FindValidByEmail returns the outstanding unaccepted, unexpired invitation
// for the email, compared case-insensitively. There is at most one.
func (r *invitationRepository) FindValidByEmail(email string, now time.Time) (models.Invitation, error) {
	const query = `
		SELECT id, key, sender_id, email, created_at, expires_at, accepted_at
		FROM invitation.invitations
		WHERE LOWER(email) = LOWER($1) AND accepted_at IS NULL AND expires_at > $2
		ORDER BY created_at DESC
		LIMIT 1;
	`
	var invitation models.Invitation
	err := r.db.QueryRow(query, email, now).Scan(
		&invitation.ID,
		&invitation.Key,
		&invitation.SenderID,
		&invitation.Email,
		&invitation.CreatedAt,
		&invitation.ExpiresAt,
		&invitation.AcceptedAt,
	)
	if err != nil {
		return models.Invitation{}, err
	}
	return invitation, nil
}

// MarkAccepted performs the Pending -> Accepted transition as a conditional
// update. sql.ErrNoRows means the invitation was missing, expired, or lost a
// concurrent accept race; the caller classifies which.
func (r *invitationRepository) MarkAccepted(key string, now time.Time) (models.Invitation, error) {
	const query = `
		UPDATE invitation.invitations
		SET accepted_at = $2
		WHERE key = $1 AND accepted_at IS NULL AND expires_at > $2
		RETURNING id, key, sender_id, email, created_at, expires_at, accepted_at;
	`
	var invitation models.Invitation
	err := r.db.QueryRow(query, key, now).Scan(
		&invitation.ID,
		&invitation.Key,
		&invitation.SenderID,
		&invitation.Email,
		&invitation.CreatedAt,
		&invitation.ExpiresAt,
		&invitation.AcceptedAt,
	)
	if err != nil {
		return models.Invitation{}, err
	}
	return invitation, nil
}

func (r *invitationRepository) List(limit int) ([]models.Invitation, error) {
	const query = `
		SELECT id, key, sender_id, email, created_at, expires_at, accepted_at
		FROM invitation.invitations
		ORDER BY created_at DESC
		LIMIT $1;
	`
	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invitations []models.Invitation
	for rows.Next() {
		var invitation models.Invitation
		if err := rows.Scan(
			&invitation.ID,
			&invitation.Key,
			&invitation.SenderID,
			&invitation.Email,
			&invitation.CreatedAt,
			&invitation.ExpiresAt,
			&invitation.AcceptedAt,
		); err != nil {
			return nil, err
		}
		invitations = append(invitations, invitation)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return invitations, nil
}

// PurgeExpired deletes expired, never-accepted invitations. Storage
// reclamation only; validity never depends on it.
func (r *invitationRepository) PurgeExpired(now time.Time) (int64, error) {
	const query = `
		DELETE FROM invitation.invitations
		WHERE accepted_at IS NULL AND expires_at <= $1;
	`
	result, err := r.db.Exec(query, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
