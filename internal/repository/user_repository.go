package repository

import (
	"database/sql"

	"github.com/stanstork/invitation-api/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository is the user directory: it resolves usernames to principals,
// answers email-existence checks, and creates the active account a redeemed
// invitation gates.
type UserRepository interface {
	GetByUsername(username string) (models.User, error)
	GetByID(userID string) (models.User, error)
	ExistsByEmail(email string) (bool, error)
	CreateUser(username, email, password string) (models.User, error)
	DeleteUser(userID string) error
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

func (u *userRepository) GetByUsername(username string) (models.User, error) {
	const query = `
		SELECT id, username, email, password_hash, is_active, role
		FROM invitation.users
		WHERE username = $1 AND deleted_at IS NULL;
	`
	return u.scanUser(u.db.QueryRow(query, username))
}

func (u *userRepository) GetByID(userID string) (models.User, error) {
	const query = `
		SELECT id, username, email, password_hash, is_active, role
		FROM invitation.users
		WHERE id = $1;
	`
	return u.scanUser(u.db.QueryRow(query, userID))
}

func (u *userRepository) ExistsByEmail(email string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM invitation.users
			WHERE LOWER(email) = LOWER($1) AND deleted_at IS NULL
		);
	`
	var exists bool
	if err := u.db.QueryRow(query, email).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// CreateUser creates an active account immediately; the invitation flow does
// not use a separate activation step.
func (u *userRepository) CreateUser(username, email, password string) (models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}

	user := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		IsActive:     true,
		Role:         models.RoleMember,
	}

	const query = `
		INSERT INTO invitation.users (username, email, password_hash, is_active, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id;
	`
	err = u.db.QueryRow(query, user.Username, user.Email, user.PasswordHash, user.IsActive, string(user.Role)).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, ErrDuplicate
		}
		return models.User{}, err
	}
	return user, nil
}

// DeleteUser soft-deletes. Invitations issued by the user are kept and keep
// pointing at the tombstoned row; acceptances still land on its stats.
func (u *userRepository) DeleteUser(userID string) error {
	const query = `
		UPDATE invitation.users
		SET is_active = FALSE, deleted_at = now(), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL;
	`
	result, err := u.db.Exec(query, userID)
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

func (u *userRepository) scanUser(row *sql.Row) (models.User, error) {
	var user models.User
	var role string
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.IsActive, &role)
	if err != nil {
		return models.User{}, err
	}
	user.Role = models.Role(role)
	if !models.IsValidRole(user.Role) {
		user.Role = models.RoleMember
	}
	return user, nil
}
