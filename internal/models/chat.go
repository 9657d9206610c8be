package models

import "encoding/json"

// Envelope statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope is the response wrapper used by every API endpoint.
// Message is a string on errors and an object on a successful send, so it is
// kept raw until the caller knows which.
type Envelope struct {
	Status  string          `json:"status"`
	Message json.RawMessage `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ErrorText returns the human-readable error carried by the envelope, if any.
func (e *Envelope) ErrorText() string {
	if len(e.Message) > 0 {
		var s string
		if err := json.Unmarshal(e.Message, &s); err == nil && s != "" {
			return s
		}
	}
	return e.Error
}

// Conversation is one row of GET /chat/conversations.
type Conversation struct {
	OtherUserID     int64    `json:"other_user_id"`
	OtherUsername   string   `json:"other_username"`
	OtherRole       Role     `json:"other_role"`
	LastMessage     string   `json:"last_message"`
	LastMessageTime JSONTime `json:"last_message_time"`
}

// ChatLog is one row of the admin read-only chat log.
type ChatLog struct {
	ID           int64    `json:"id"`
	SenderID     int64    `json:"sender_id"`
	ReceiverID   int64    `json:"receiver_id"`
	Body         string   `json:"message"`
	CreatedAt    JSONTime `json:"timestamp"`
	SenderName   string   `json:"sender_name"`
	ReceiverName string   `json:"receiver_name"`
}

// DeliveryReceipt is the payload of POST /chat/mark_delivered/{id}.
type DeliveryReceipt struct {
	MessageID int64         `json:"message_id"`
	State     DeliveryState `json:"delivery_state"`
}
