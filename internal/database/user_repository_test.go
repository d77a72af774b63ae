package database

import (
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayhaven/booking-backend/internal/models"
)

func setupUserRepoTest(t *testing.T) (*UserRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := NewUserRepository(&PostgresDB{DB: sqlxDB})

	return repo, mock, func() { db.Close() }
}

func userRow(userID uuid.UUID, name, email string, isAdmin bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "email", "phone", "is_admin", "created_at", "updated_at",
	}).AddRow(userID.String(), name, email, "+94771234567", isAdmin, time.Now(), time.Now())
}

func TestCreateUser(t *testing.T) {
	repo, mock, cleanup := setupUserRepoTest(t)
	defer cleanup()

	t.Run("Success", func(t *testing.T) {
		phone := "+94771234567"

		mock.ExpectExec(`INSERT INTO users`).
			WithArgs(sqlmock.AnyArg(), "Nimal Perera", "nimal@example.com", &phone,
				false, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		user, err := repo.CreateUser("Nimal Perera", "nimal@example.com", &phone)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, user.ID)
		assert.Equal(t, "Nimal Perera", user.Name)
		assert.Equal(t, "nimal@example.com", user.Email)
		assert.False(t, user.IsAdmin)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Database Error", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO users`).
			WillReturnError(fmt.Errorf("database error"))

		user, err := repo.CreateUser("Nimal Perera", "nimal@example.com", nil)
		assert.Error(t, err)
		assert.Nil(t, user)
		assert.Contains(t, err.Error(), "failed to create user")

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetUserByID(t *testing.T) {
	repo, mock, cleanup := setupUserRepoTest(t)
	defer cleanup()

	t.Run("Success", func(t *testing.T) {
		userID := uuid.New()

		mock.ExpectQuery(`SELECT (.+) FROM users`).
			WithArgs(userID).
			WillReturnRows(userRow(userID, "Nimal Perera", "nimal@example.com", false))

		user, err := repo.GetUserByID(userID)
		require.NoError(t, err)
		assert.Equal(t, userID, user.ID)
		assert.Equal(t, "Nimal Perera", user.Name)
		require.NotNil(t, user.Phone)
		assert.Equal(t, "+94771234567", *user.Phone)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		userID := uuid.New()

		mock.ExpectQuery(`SELECT (.+) FROM users`).
			WithArgs(userID).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		user, err := repo.GetUserByID(userID)
		assert.ErrorIs(t, err, models.ErrUserNotFound)
		assert.Nil(t, user)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Admin Flag", func(t *testing.T) {
		adminID := uuid.New()

		mock.ExpectQuery(`SELECT (.+) FROM users`).
			WithArgs(adminID).
			WillReturnRows(userRow(adminID, "Ops Admin", "ops@stayhaven.lk", true))

		user, err := repo.GetUserByID(adminID)
		require.NoError(t, err)
		assert.True(t, user.IsAdmin)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetUserByEmail(t *testing.T) {
	repo, mock, cleanup := setupUserRepoTest(t)
	defer cleanup()

	t.Run("Found", func(t *testing.T) {
		userID := uuid.New()

		mock.ExpectQuery(`SELECT (.+) FROM users`).
			WithArgs("nimal@example.com").
			WillReturnRows(userRow(userID, "Nimal Perera", "nimal@example.com", false))

		user, err := repo.GetUserByEmail("nimal@example.com")
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, userID, user.ID)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found Returns Nil", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM users`).
			WithArgs("nobody@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		user, err := repo.GetUserByEmail("nobody@example.com")
		assert.NoError(t, err)
		assert.Nil(t, user)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUpdatePhone(t *testing.T) {
	repo, mock, cleanup := setupUserRepoTest(t)
	defer cleanup()

	t.Run("Success", func(t *testing.T) {
		userID := uuid.New()

		mock.ExpectExec(`UPDATE users`).
			WithArgs("0712345678", sqlmock.AnyArg(), userID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.UpdatePhone(userID, "0712345678")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		userID := uuid.New()

		mock.ExpectExec(`UPDATE users`).
			WithArgs("0712345678", sqlmock.AnyArg(), userID).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdatePhone(userID, "0712345678")
		assert.ErrorIs(t, err, models.ErrUserNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
