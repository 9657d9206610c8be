package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresAssignmentStore implements AssignmentStore with PostgreSQL.
type PostgresAssignmentStore struct {
	db *pgxpool.Pool
}

func NewPostgresAssignmentStore(db *pgxpool.Pool) *PostgresAssignmentStore {
	return &PostgresAssignmentStore{
		db: db,
	}
}

func (s *PostgresAssignmentStore) Assign(ctx context.Context, doctorID, userID int64) error {
	query := `
        INSERT INTO doctor_assignments (doctor_id, user_id)
        VALUES ($1, $2)
        ON CONFLICT (doctor_id, user_id) DO NOTHING
    `
	if _, err := s.db.Exec(ctx, query, doctorID, userID); err != nil {
		return fmt.Errorf("failed to assign user %d to doctor %d: %w", userID, doctorID, err)
	}
	return nil
}

func (s *PostgresAssignmentStore) IsAssigned(ctx context.Context, doctorID, userID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM doctor_assignments WHERE doctor_id = $1 AND user_id = $2)`
	var ok bool
	if err := s.db.QueryRow(ctx, query, doctorID, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("failed to check assignment: %w", err)
	}
	return ok, nil
}
