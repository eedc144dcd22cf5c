package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/storefront/internal/domain"
	apperrors "github.com/spec-kit/storefront/pkg/util/errorutil"
)

const uniqueViolation = "23505"

// UserRepository defines persistence access for identities. Lookups that
// find nothing return pgx.ErrNoRows.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	UpdateProfile(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string, userType domain.UserType) (*domain.User, error)
	Delete(ctx context.Context, id string) error
}

// SessionTracker persists the single valid refresh-token hash per user.
type SessionTracker interface {
	SetRefreshHash(ctx context.Context, userID, hash string) error
	// SwapRefreshHash replaces expected with next and reports false when the
	// stored hash no longer equals expected.
	SwapRefreshHash(ctx context.Context, userID, expected, next string) (bool, error)
	ClearRefreshHash(ctx context.Context, userID string) error
}

// UserStore is a credential store that also tracks refresh sessions.
type UserStore interface {
	UserRepository
	SessionTracker
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation of both the
// credential store and the session tracker.
func NewUserRepository(pool *pgxpool.Pool) UserStore {
	return &userRepository{pool: pool}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (name, email, password_hash, user_type, profile)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.UserType,
		user.Profile,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return apperrors.ErrDuplicateUser.With(err)
	}
	return err
}

func (r *userRepository) UpdateProfile(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET name=$1, profile=$2, updated_at=NOW()
        WHERE id=$3
        RETURNING updated_at`

	if !validUUID(user.ID) {
		return pgx.ErrNoRows
	}
	return r.pool.QueryRow(ctx, query, user.Name, user.Profile, user.ID).Scan(&user.UpdatedAt)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `
        SELECT id, name, email, password_hash, refresh_token_hash, user_type, profile, created_at, updated_at
        FROM users WHERE id=$1`

	if !validUUID(id) {
		return nil, pgx.ErrNoRows
	}
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string, userType domain.UserType) (*domain.User, error) {
	const query = `
        SELECT id, name, email, password_hash, refresh_token_hash, user_type, profile, created_at, updated_at
        FROM users WHERE email=$1 AND user_type=$2`

	return scanUser(r.pool.QueryRow(ctx, query, email, userType))
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	if !validUUID(id) {
		return pgx.ErrNoRows
	}
	cmd, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) SetRefreshHash(ctx context.Context, userID, hash string) error {
	if !validUUID(userID) {
		return pgx.ErrNoRows
	}
	cmd, err := r.pool.Exec(ctx,
		`UPDATE users SET refresh_token_hash=$1, updated_at=NOW() WHERE id=$2`, hash, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) SwapRefreshHash(ctx context.Context, userID, expected, next string) (bool, error) {
	if !validUUID(userID) {
		return false, nil
	}
	cmd, err := r.pool.Exec(ctx,
		`UPDATE users SET refresh_token_hash=$1, updated_at=NOW()
         WHERE id=$2 AND refresh_token_hash=$3`, next, userID, expected)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *userRepository) ClearRefreshHash(ctx context.Context, userID string) error {
	if !validUUID(userID) {
		return nil
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET refresh_token_hash=NULL, updated_at=NOW() WHERE id=$1`, userID)
	return err
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.RefreshTokenHash,
		&user.UserType,
		&user.Profile,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func validUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
