package websocket

import (
	"medchat/internal/models"
)

// Server-to-client event types.
const (
	MessageTypeNewMessage          = "new_message"
	MessageTypeMessageStatusUpdate = "message_status_update"
	MessageTypeTypingIndicator     = "typing_indicator"
)

// WebSocketMessage is a generic wrapper for all messages sent over WebSocket.
// The Type field determines how Payload is interpreted.
type WebSocketMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// TypingIndicatorPayload tells a receiver that a peer started or stopped typing.
type TypingIndicatorPayload struct {
	UserID   int64 `json:"user_id"`
	IsTyping bool  `json:"is_typing"`
}

// MessageStatusUpdatePayload tells a sender that a message changed state.
type MessageStatusUpdatePayload struct {
	MessageID int64                `json:"message_id"`
	State     models.DeliveryState `json:"delivery_state"`
	UserID    int64                `json:"user_id"`
}
