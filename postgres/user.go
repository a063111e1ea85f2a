package postgres

import (
	"context"
	"database/sql"
	"errors"

	almalead "github.com/phbpx/almalead"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) almalead.UserRepository {
	return &UserRepository{
		db: db,
	}
}

func (ur UserRepository) GetByEmail(ctx context.Context, email string) (almalead.User, error) {
	query := `
	SELECT
		id,
		email,
		password_hash,
		first_name,
		last_name,
		created_at,
		updated_at
	FROM users
	WHERE email=$1`

	user := almalead.User{}
	err := ur.db.QueryRowContext(ctx, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user, almalead.ErrUserNotFound
		}
		return user, err
	}

	return user, nil
}

// Create inserts a user. An existing row with the same email yields
// ErrDuplicatedUser.
func (ur UserRepository) Create(ctx context.Context, user almalead.User) error {
	query := `
	INSERT INTO users (
		id, email, password_hash, first_name, last_name, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7
	)`

	_, err := ur.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return almalead.ErrDuplicatedUser
		}
		return err
	}

	return nil
}
