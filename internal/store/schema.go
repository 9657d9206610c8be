package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id              BIGSERIAL PRIMARY KEY,
    username        TEXT NOT NULL UNIQUE,
    email           TEXT NOT NULL DEFAULT '',
    role            TEXT NOT NULL CHECK (role IN ('admin', 'doctor', 'user')),
    hashed_password TEXT NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS doctor_assignments (
    doctor_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    user_id   BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    PRIMARY KEY (doctor_id, user_id)
);

CREATE TABLE IF NOT EXISTS chats (
    id             BIGSERIAL PRIMARY KEY,
    sender_id      BIGINT NOT NULL REFERENCES users(id),
    receiver_id    BIGINT NOT NULL REFERENCES users(id),
    message        TEXT NOT NULL,
    delivery_state TEXT NOT NULL DEFAULT 'sent',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS chats_pair_idx ON chats (LEAST(sender_id, receiver_id), GREATEST(sender_id, receiver_id), created_at);
`

// Migrate creates the tables the Postgres stores use if they are missing.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
