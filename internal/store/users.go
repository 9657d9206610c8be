package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"medchat/internal/models"
)

// PostgresUserStore implements the UserStore interface using PostgreSQL.
type PostgresUserStore struct {
	db *pgxpool.Pool
}

func NewPostgresUserStore(db *pgxpool.Pool) *PostgresUserStore {
	return &PostgresUserStore{
		db: db,
	}
}

// CreateUser inserts user and sets its ID and CreatedAt.
func (s *PostgresUserStore) CreateUser(ctx context.Context, user *models.User) error {
	query := `
        INSERT INTO users (username, email, role, hashed_password)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at
    `
	err := s.db.QueryRow(ctx, query,
		user.Username,
		user.Email,
		user.Role.String(),
		user.HashedPassword,
	).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return ErrUsernameExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *PostgresUserStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `
		SELECT id, username, email, role, hashed_password, created_at
		FROM users
		WHERE username = $1
	`
	return scanUser(s.db.QueryRow(ctx, query, username))
}

func (s *PostgresUserStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT id, username, email, role, hashed_password, created_at
		FROM users
		WHERE id = $1
	`
	return scanUser(s.db.QueryRow(ctx, query, id))
}

func scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	var role string
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&role,
		&user.HashedPassword,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	// An unrecognised role leaves RoleUnknown, which may chat with no one.
	user.Role, _ = models.ParseRole(role)
	return user, nil
}
