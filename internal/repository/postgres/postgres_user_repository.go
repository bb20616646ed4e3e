package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/honeynil/mdd-api/internal/models"
	pkgerrors "github.com/honeynil/mdd-api/pkg/errors"
)

const userColumns = `id, email, username, password_hash, created_at, updated_at`

type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func validateUser(user *models.User) error {
	if user == nil {
		return pkgerrors.ErrNilUser
	}
	if user.Email == "" {
		return fmt.Errorf("%w: email is required", pkgerrors.ErrInvalidInput)
	}
	if user.Username == "" {
		return fmt.Errorf("%w: username is required", pkgerrors.ErrInvalidInput)
	}
	if user.PasswordHash == "" {
		return fmt.Errorf("%w: password_hash is required", pkgerrors.ErrInvalidInput)
	}
	return nil
}

// mapUserConflict turns a unique violation on users into the matching
// domain error.
func mapUserConflict(err error) error {
	pqErr, ok := pqError(err)
	if !ok || pqErr.Code != uniqueViolation {
		return err
	}
	switch {
	case strings.Contains(pqErr.Constraint, "email"):
		return pkgerrors.ErrEmailTaken
	case strings.Contains(pqErr.Constraint, "username"):
		return pkgerrors.ErrUsernameTaken
	default:
		return pkgerrors.ErrUserAlreadyExists
	}
}

func (r *PostgresUserRepository) Create(ctx context.Context, user *models.User) (err error) {
	ctx, done := startOp(ctx, "UserRepository.Create")
	defer done(&err)

	if err = validateUser(user); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	query := `INSERT INTO users (email, username, password_hash) VALUES ($1, $2, $3) RETURNING id, created_at, updated_at`
	err = tx.QueryRowContext(ctx, query, user.Email, user.Username, user.PasswordHash).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.Error("rollback failed", "method", "UserRepository.Create", "error", rbErr)
			return fmt.Errorf("rollback failed: %v; original error: %w", rbErr, err)
		}
		if mapped := mapUserConflict(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	slog.Info("user created", "user_id", user.ID, "username", user.Username)
	return nil
}

func (r *PostgresUserRepository) Update(ctx context.Context, user *models.User) (err error) {
	ctx, done := startOp(ctx, "UserRepository.Update")
	defer done(&err)

	if err = validateUser(user); err != nil {
		return err
	}

	query := `UPDATE users SET email = $1, username = $2, password_hash = $3, updated_at = NOW() WHERE id = $4 RETURNING updated_at`
	err = r.db.QueryRowContext(ctx, query, user.Email, user.Username, user.PasswordHash, user.ID).Scan(&user.UpdatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return pkgerrors.ErrUserNotFound
	case err != nil:
		if mapped := mapUserConflict(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to update user %d: %w", user.ID, err)
	}
	return nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id int64) (_ *models.User, err error) {
	ctx, done := startOp(ctx, "UserRepository.GetByID")
	defer done(&err)

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// FindByEmailOrUsername prefers an email match when the login matches one
// user's email and another user's username.
func (r *PostgresUserRepository) FindByEmailOrUsername(ctx context.Context, login string) (_ *models.User, err error) {
	ctx, done := startOp(ctx, "UserRepository.FindByEmailOrUsername")
	defer done(&err)

	if login == "" {
		return nil, pkgerrors.ErrUserNotFound
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 OR username = $1 ORDER BY (email = $1) DESC LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, login))
}

func (r *PostgresUserRepository) ExistsByEmail(ctx context.Context, email string) (exists bool, err error) {
	ctx, done := startOp(ctx, "UserRepository.ExistsByEmail")
	defer done(&err)

	err = r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return exists, nil
}

func (r *PostgresUserRepository) ExistsByUsername(ctx context.Context, username string) (exists bool, err error) {
	ctx, done := startOp(ctx, "UserRepository.ExistsByUsername")
	defer done(&err)

	err = r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return exists, nil
}

func (r *PostgresUserRepository) scanOne(row *sql.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, pkgerrors.ErrUserNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}
