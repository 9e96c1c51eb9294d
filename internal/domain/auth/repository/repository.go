// Package repository persists user accounts.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrUserNotFound means no account matched the lookup.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists means the username is taken.
	ErrUserAlreadyExists = errors.New("user already exists")
)

// User is an account row.
type User struct {
	ID             uuid.UUID
	Username       string
	HashedPassword string
	Email          string
	DisplayName    string
	Role           string
	IsActive       bool
	CreatedAt      time.Time
	LastLoginAt    *time.Time
}

// NewUserParams are the fields of a fresh account.
type NewUserParams struct {
	Username       string
	HashedPassword string
	Email          string
	DisplayName    string
	Role           string
}

// UserRepository persists accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, params NewUserParams) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID) error
}

// DB is the subset of pgxpool.Pool the repository uses; satisfied by
// pgxmock in tests.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresUserRepository is the pgx-backed UserRepository.
type PostgresUserRepository struct {
	db DB
}

// NewPostgresUserRepository creates a new user repository.
func NewPostgresUserRepository(db DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

const userColumns = `id, username, hashed_password, email, display_name, role, is_active, created_at, last_login_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.HashedPassword, &u.Email, &u.DisplayName, &u.Role, &u.IsActive, &u.CreatedAt, &u.LastLoginAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new active account.
func (r *PostgresUserRepository) CreateUser(ctx context.Context, params NewUserParams) (*User, error) {
	role := params.Role
	if role == "" {
		role = "user"
	}
	query := `
		INSERT INTO users (username, hashed_password, email, display_name, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + userColumns
	u, err := scanUser(r.db.QueryRow(ctx, query,
		params.Username, params.HashedPassword, params.Email, params.DisplayName, role))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetUserByUsername fetches an account by username.
func (r *PostgresUserRepository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	u, err := scanUser(r.db.QueryRow(ctx, query, username))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

// GetUserByID fetches an account by id.
func (r *PostgresUserRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// UpdateLastLogin stamps a successful login.
func (r *PostgresUserRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.Exec(ctx,
		`UPDATE users SET last_login_at = CURRENT_TIMESTAMP WHERE id = $1`, id); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}
