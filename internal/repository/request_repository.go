package repository

import (
	"database/sql"
	"time"

	"github.com/stanstork/invitation-api/internal/models"
)

type RequestRepository interface {
	Create(email string, now time.Time) (models.InvitationRequest, error)
	Oldest(n int) ([]models.InvitationRequest, error)
	Delete(requestID int64) error
	List() ([]models.InvitationRequest, error)
}

type requestRepository struct {
	db *sql.DB
}

func NewRequestRepository(db *sql.DB) RequestRepository {
	return &requestRepository{db: db}
}

// Create enqueues a pending request. A second pending request for the same
// email (case-insensitive unique index) is reported as ErrDuplicate.
func (r *requestRepository) Create(email string, now time.Time) (models.InvitationRequest, error) {
	const query = `
		INSERT INTO invitation.invitation_requests (email, requested_at)
		VALUES ($1, $2)
		RETURNING id, email, requested_at;
	`
	var request models.InvitationRequest
	err := r.db.QueryRow(query, email, now).Scan(&request.ID, &request.Email, &request.RequestedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.InvitationRequest{}, ErrDuplicate
		}
		return models.InvitationRequest{}, err
	}
	return request, nil
}

// Oldest returns up to n requests, FIFO by requested_at with insertion order
// breaking ties. Non-destructive.
func (r *requestRepository) Oldest(n int) ([]models.InvitationRequest, error) {
	const query = `
		SELECT id, email, requested_at
		FROM invitation.invitation_requests
		ORDER BY requested_at ASC, id ASC
		LIMIT $1;
	`
	return r.queryRequests(query, n)
}

func (r *requestRepository) Delete(requestID int64) error {
	const query = `
		DELETE FROM invitation.invitation_requests
		WHERE id = $1;
	`
	result, err := r.db.Exec(query, requestID)
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

func (r *requestRepository) List() ([]models.InvitationRequest, error) {
	const query = `
		SELECT id, email, requested_at
		FROM invitation.invitation_requests
		ORDER BY requested_at ASC, id ASC;
	`
	return r.queryRequests(query)
}

func (r *requestRepository) queryRequests(query string, args ...interface{}) ([]models.InvitationRequest, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []models.InvitationRequest
	for rows.Next() {
		var request models.InvitationRequest
		if err := rows.Scan(&request.ID, &request.Email, &request.RequestedAt); err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return requests, nil
}
