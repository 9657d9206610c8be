package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DeliveryState indicates where a message is in its lifecycle.
type DeliveryState string

const (
	StatePending   DeliveryState = "pending"
	StateSent      DeliveryState = "sent"
	StateDelivered DeliveryState = "delivered"
)

// Valid reports whether s is one of the known delivery states.
func (s DeliveryState) Valid() bool {
	switch s {
	case StatePending, StateSent, StateDelivered:
		return true
	}
	return false
}

// Message is one chat message as exchanged with the API.
// An ID of zero means the message has not been confirmed by the server.
type Message struct {
	ID         int64         `json:"id,omitempty"`
	SenderID   int64         `json:"sender_id"`
	ReceiverID int64         `json:"receiver_id"`
	Body       string        `json:"message"`
	CreatedAt  JSONTime      `json:"timestamp"`
	SenderName string        `json:"sender_name,omitempty"`
	State      DeliveryState `json:"delivery_state,omitempty"`
}

// UnmarshalJSON defaults the delivery state of server-confirmed messages to sent.
func (m *Message) UnmarshalJSON(b []byte) error {
	type alias Message
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*m = Message(a)
	if m.State == "" && m.ID != 0 {
		m.State = StateSent
	}
	return nil
}

// Confirmed reports whether the server assigned this message an id.
func (m Message) Confirmed() bool {
	return m.ID != 0
}

// SamePayload compares sender, receiver and body, ignoring server-assigned fields.
func (m Message) SamePayload(o Message) bool {
	return m.SenderID == o.SenderID && m.ReceiverID == o.ReceiverID && m.Body == o.Body
}

func (m Message) String() string {
	return fmt.Sprintf("Message{id=%d from=%d to=%d state=%s}", m.ID, m.SenderID, m.ReceiverID, m.State)
}

// SendMessageRequest is the body of POST /chat/send.
type SendMessageRequest struct {
	ReceiverID int64  `json:"receiver_id" binding:"required"`
	Message    string `json:"message" binding:"required,max=4096"`
}

// Normalize trims the message text.
func (r *SendMessageRequest) Normalize() {
	r.Message = strings.TrimSpace(r.Message)
}

// TypingSignal is the ephemeral typing state sent to POST /chat/typing.
type TypingSignal struct {
	ReceiverID int64 `json:"receiver_id" binding:"required"`
	IsTyping   bool  `json:"is_typing"`
	SenderID   int64 `json:"sender_id,omitempty"`
}
