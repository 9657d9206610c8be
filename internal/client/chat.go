package client

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"medchat/internal/models"
)

// SendMessage posts body to receiverID and returns the stored message.
func (t *Transport) SendMessage(ctx context.Context, receiverID int64, body string) (*models.Message, error) {
	if receiverID <= 0 || body == "" {
		return nil, &ValidationError{StatusCode: http.StatusBadRequest, Message: "Receiver ID and message are required"}
	}

	env, err := t.do(ctx, http.MethodPost, "/chat/send", models.SendMessageRequest{ReceiverID: receiverID, Message: body}, true)
	if err != nil {
		return nil, err
	}

	var msg models.Message
	if err := decode("message", env.Message, &msg); err != nil {
		return nil, err
	}
	if !msg.Confirmed() {
		return nil, &ProtocolError{Reason: "sent message has no id"}
	}
	return &msg, nil
}

// FetchMessages returns the full history with peerID in server order.
func (t *Transport) FetchMessages(ctx context.Context, peerID int64) ([]models.Message, error) {
	env, err := t.do(ctx, http.MethodGet, fmt.Sprintf("/chat/messages/%d", peerID), nil, true)
	if err != nil {
		return nil, err
	}

	msgs := []models.Message{}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return msgs, nil
	}
	if err := decode("data", env.Data, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// SendTyping reports the typing state to receiverID. The signal is best
// effort: failures are logged here and returned for the caller to drop.
func (t *Transport) SendTyping(ctx context.Context, receiverID int64, isTyping bool) error {
	_, err := t.do(ctx, http.MethodPost, "/chat/typing", models.TypingSignal{ReceiverID: receiverID, IsTyping: isTyping}, true)
	if err != nil {
		t.logger.Debug("typing signal failed",
			zap.Int64("peer_id", receiverID), zap.Bool("is_typing", isTyping), zap.Error(err))
	}
	return err
}

// Conversations lists the caller's conversations, most recent first.
func (t *Transport) Conversations(ctx context.Context) ([]models.Conversation, error) {
	env, err := t.do(ctx, http.MethodGet, "/chat/conversations", nil, true)
	if err != nil {
		return nil, err
	}
	convs := []models.Conversation{}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return convs, nil
	}
	if err := decode("data", env.Data, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// MarkDelivered acknowledges receipt of a message.
func (t *Transport) MarkDelivered(ctx context.Context, messageID int64) (*models.DeliveryReceipt, error) {
	env, err := t.do(ctx, http.MethodPost, fmt.Sprintf("/chat/mark_delivered/%d", messageID), nil, true)
	if err != nil {
		return nil, err
	}
	var receipt models.DeliveryReceipt
	if err := decode("data", env.Data, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// ChatLogs returns the latest messages across all conversations. Admin only.
func (t *Transport) ChatLogs(ctx context.Context) ([]models.ChatLog, error) {
	env, err := t.do(ctx, http.MethodGet, "/chat/admin/logs", nil, true)
	if err != nil {
		return nil, err
	}
	logs := []models.ChatLog{}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return logs, nil
	}
	if err := decode("data", env.Data, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}
