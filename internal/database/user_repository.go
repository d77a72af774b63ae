package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stayhaven/booking-backend/internal/models"
)

// userColumns keeps the INSERT and both lookups scanning the same shape.
const userColumns = "id, name, email, phone, is_admin, created_at, updated_at"

// UserRepository reads and writes guest profiles. Authentication lives
// elsewhere; this table is the profile the booking flow snapshots
// contact details from.
type UserRepository struct {
	db DB
}

func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser inserts a guest profile. Accounts never start as admins;
// the flag is flipped directly in the database by operations.
func (r *UserRepository) CreateUser(name, email string, phone *string) (*models.User, error) {
	now := time.Now()
	user := &models.User{
		ID:        uuid.New(),
		Name:      name,
		Email:     email,
		Phone:     phone,
		IsAdmin:   false,
		CreatedAt: now,
		UpdatedAt: now,
	}

	query := `INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	if _, err := r.db.Exec(query,
		user.ID, user.Name, user.Email, user.Phone,
		user.IsAdmin, user.CreatedAt, user.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetUserByID loads a profile, reporting a miss as ErrUserNotFound.
func (r *UserRepository) GetUserByID(id uuid.UUID) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	err := r.db.Get(&user, query, id)
	if err == sql.ErrNoRows {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return &user, nil
}

// GetUserByEmail reports a miss as (nil, nil): callers use it as an
// existence probe, and an absent row is an answer, not a failure.
func (r *UserRepository) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	err := r.db.Get(&user, query, email)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

// UpdatePhone replaces the stored contact phone. Callers are expected
// to have run the number through the phone validator first.
func (r *UserRepository) UpdatePhone(id uuid.UUID, phone string) error {
	query := `UPDATE users SET phone = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.Exec(query, phone, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update phone: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update phone: %w", err)
	}
	if affected == 0 {
		return models.ErrUserNotFound
	}
	return nil
}
