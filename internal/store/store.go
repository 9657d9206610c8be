package store

import (
	"context"
	"fmt"

	"medchat/internal/models"
)

// UserStore defines the interface for user data operations.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// AssignmentStore records which patients each doctor looks after.
type AssignmentStore interface {
	Assign(ctx context.Context, doctorID, userID int64) error
	IsAssigned(ctx context.Context, doctorID, userID int64) (bool, error)
}

// MessageStore defines persistence operations for messages.
type MessageStore interface {
	// CreateMessage stores message and fills in its ID, CreatedAt, State
	// and SenderName.
	CreateMessage(ctx context.Context, message *models.Message) error
	// GetConversation returns every message between a and b, oldest first.
	GetConversation(ctx context.Context, a, b int64) ([]models.Message, error)
	GetMessageByID(ctx context.Context, messageID int64) (*models.Message, error)
	UpdateDeliveryState(ctx context.Context, messageID int64, state models.DeliveryState) error
	// ListConversations returns one row per peer of userID, newest first.
	ListConversations(ctx context.Context, userID int64) ([]models.Conversation, error)
	// RecentLogs returns the latest messages across all users, newest first.
	RecentLogs(ctx context.Context, limit int) ([]models.ChatLog, error)
}

var (
	ErrUserNotFound    = fmt.Errorf("user not found")
	ErrUsernameExists  = fmt.Errorf("username already exists")
	ErrMessageNotFound = fmt.Errorf("message not found")
)
