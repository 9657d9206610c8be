package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"medchat/internal/models"
)

// PostgresMessageStore implements MessageStore with PostgreSQL.
type PostgresMessageStore struct {
	db *pgxpool.Pool
}

func NewPostgresMessageStore(db *pgxpool.Pool) *PostgresMessageStore {
	return &PostgresMessageStore{
		db: db,
	}
}

func scanMessageWithSender(row pgx.Row) (*models.Message, error) {
	var msg models.Message
	var createdAt time.Time
	var state string

	err := row.Scan(
		&msg.ID,
		&msg.SenderID,
		&msg.ReceiverID,
		&msg.Body,
		&state,
		&createdAt,
		&msg.SenderName,
	)
	if err != nil {
		return nil, err
	}
	msg.CreatedAt = models.JSONTime(createdAt)
	msg.State = models.DeliveryState(state)
	return &msg, nil
}

const messageColumns = `
            m.id, m.sender_id, m.receiver_id, m.message, m.delivery_state, m.created_at,
            u.username AS sender_name
`

func (s *PostgresMessageStore) CreateMessage(ctx context.Context, message *models.Message) error {
	query := `
        WITH inserted AS (
            INSERT INTO chats (sender_id, receiver_id, message, delivery_state)
            VALUES ($1, $2, $3, $4)
            RETURNING id, created_at, sender_id
        )
        SELECT inserted.id, inserted.created_at, u.username
        FROM inserted
        JOIN users u ON u.id = inserted.sender_id
    `
	var createdAt time.Time
	err := s.db.QueryRow(ctx, query,
		message.SenderID,
		message.ReceiverID,
		message.Body,
		string(models.StateSent),
	).Scan(&message.ID, &createdAt, &message.SenderName)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	message.CreatedAt = models.JSONTime(createdAt)
	message.State = models.StateSent
	return nil
}

func (s *PostgresMessageStore) GetConversation(ctx context.Context, a, b int64) ([]models.Message, error) {
	query := `
        SELECT` + messageColumns + `
        FROM chats m
        JOIN users u ON m.sender_id = u.id
        WHERE (m.sender_id = $1 AND m.receiver_id = $2)
           OR (m.sender_id = $2 AND m.receiver_id = $1)
        ORDER BY m.created_at ASC, m.id ASC
    `
	rows, err := s.db.Query(ctx, query, a, b)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		msg, err := scanMessageWithSender(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, *msg)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}
	return messages, nil
}

func (s *PostgresMessageStore) GetMessageByID(ctx context.Context, messageID int64) (*models.Message, error) {
	query := `
        SELECT` + messageColumns + `
        FROM chats m
        JOIN users u ON m.sender_id = u.id
        WHERE m.id = $1
    `
	msg, err := scanMessageWithSender(s.db.QueryRow(ctx, query, messageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to get message by ID: %w", err)
	}
	return msg, nil
}

func (s *PostgresMessageStore) UpdateDeliveryState(ctx context.Context, messageID int64, state models.DeliveryState) error {
	query := `UPDATE chats SET delivery_state = $1 WHERE id = $2`

	result, err := s.db.Exec(ctx, query, string(state), messageID)
	if err != nil {
		return fmt.Errorf("failed to update delivery state for message %d: %w", messageID, err)
	}
	if result.RowsAffected() == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func (s *PostgresMessageStore) ListConversations(ctx context.Context, userID int64) ([]models.Conversation, error) {
	query := `
        SELECT DISTINCT ON (peer.id)
            peer.id, peer.username, peer.role, m.message, m.created_at
        FROM chats m
        JOIN users peer ON peer.id = CASE WHEN m.sender_id = $1 THEN m.receiver_id ELSE m.sender_id END
        WHERE m.sender_id = $1 OR m.receiver_id = $1
        ORDER BY peer.id, m.created_at DESC, m.id DESC
    `
	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	convs := make([]models.Conversation, 0)
	for rows.Next() {
		var c models.Conversation
		var role string
		var last time.Time
		if err := rows.Scan(&c.OtherUserID, &c.OtherUsername, &role, &c.LastMessage, &last); err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		c.OtherRole, _ = models.ParseRole(role)
		c.LastMessageTime = models.JSONTime(last)
		convs = append(convs, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversation rows: %w", err)
	}
	sortConversations(convs)
	return convs, nil
}

func (s *PostgresMessageStore) RecentLogs(ctx context.Context, limit int) ([]models.ChatLog, error) {
	query := `
        SELECT m.id, m.sender_id, m.receiver_id, m.message, m.created_at,
               s.username AS sender_name, r.username AS receiver_name
        FROM chats m
        JOIN users s ON m.sender_id = s.id
        JOIN users r ON m.receiver_id = r.id
        ORDER BY m.created_at DESC, m.id DESC
        LIMIT $1
    `
	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat logs: %w", err)
	}
	defer rows.Close()

	logs := make([]models.ChatLog, 0)
	for rows.Next() {
		var l models.ChatLog
		var ts time.Time
		if err := rows.Scan(&l.ID, &l.SenderID, &l.ReceiverID, &l.Body, &ts, &l.SenderName, &l.ReceiverName); err != nil {
			return nil, fmt.Errorf("failed to scan chat log row: %w", err)
		}
		l.CreatedAt = models.JSONTime(ts)
		logs = append(logs, l)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat log rows: %w", err)
	}
	return logs, nil
}
