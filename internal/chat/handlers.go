package chat

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"medchat/internal/middleware"
	"medchat/internal/models"
	"medchat/internal/store"
	"medchat/internal/websocket"
)

const adminLogLimit = 100

// Notifier pushes real-time events to a user's open connections.
type Notifier interface {
	NotifyUser(userID int64, msgType string, payload interface{})
}

// RestHandler serves the /chat endpoints.
type RestHandler struct {
	userStore       store.UserStore
	assignmentStore store.AssignmentStore
	messageStore    store.MessageStore
	notifier        Notifier
	logger          *zap.Logger
}

func NewRestHandler(us store.UserStore, as store.AssignmentStore, ms store.MessageStore, notifier Notifier, logger *zap.Logger) *RestHandler {
	return &RestHandler{
		userStore:       us,
		assignmentStore: as,
		messageStore:    ms,
		notifier:        notifier,
		logger:          logger,
	}
}

func fail(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{"status": models.StatusError, "message": msg})
}

// errRelationship marks a pair of users that may not exchange messages.
var errRelationship = errors.New("invalid chat relationship")

// checkRelationship loads both users and applies the role policy. It
// returns store.ErrUserNotFound or errRelationship for client errors.
func (h *RestHandler) checkRelationship(c *gin.Context, senderID, peerID int64) error {
	ctx := c.Request.Context()
	sender, err := h.userStore.GetUserByID(ctx, senderID)
	if err != nil {
		return err
	}
	peer, err := h.userStore.GetUserByID(ctx, peerID)
	if err != nil {
		return err
	}

	assigned := false
	switch {
	case sender.Role == models.RoleDoctor && peer.Role == models.RoleUser:
		assigned, err = h.assignmentStore.IsAssigned(ctx, sender.ID, peer.ID)
	case sender.Role == models.RoleUser && peer.Role == models.RoleDoctor:
		assigned, err = h.assignmentStore.IsAssigned(ctx, peer.ID, sender.ID)
	}
	if err != nil {
		return err
	}
	if sender.ID == peer.ID || !sender.Role.CanChatWith(peer.Role, assigned) {
		return errRelationship
	}
	return nil
}

func (h *RestHandler) relationshipFailed(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, store.ErrUserNotFound):
		fail(c, http.StatusNotFound, "Sender or receiver not found")
	case errors.Is(err, errRelationship):
		fail(c, http.StatusForbidden, "Invalid chat relationship")
	default:
		h.logger.Error(op+": checking relationship", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to process request")
	}
}

// PostMessage handles POST /chat/send.
func (h *RestHandler) PostMessage(c *gin.Context) {
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Receiver ID and message are required")
		return
	}
	req.Normalize()
	if req.Message == "" {
		fail(c, http.StatusBadRequest, "Receiver ID and message are required")
		return
	}

	senderID, _, _ := middleware.CurrentUser(c)
	if err := h.checkRelationship(c, senderID, req.ReceiverID); err != nil {
		h.relationshipFailed(c, "PostMessage", err)
		return
	}

	message := &models.Message{SenderID: senderID, ReceiverID: req.ReceiverID, Body: req.Message}
	if err := h.messageStore.CreateMessage(c.Request.Context(), message); err != nil {
		h.logger.Error("PostMessage: failed to store message",
			zap.Int64("sender_id", senderID), zap.Int64("receiver_id", req.ReceiverID), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to send message")
		return
	}

	h.notifier.NotifyUser(req.ReceiverID, websocket.MessageTypeNewMessage, message)
	c.JSON(http.StatusOK, gin.H{"status": models.StatusSuccess, "message": message})
}

// GetMessages handles GET /chat/messages/:receiverId.
func (h *RestHandler) GetMessages(c *gin.Context) {
	peerID, err := strconv.ParseInt(c.Param("receiverId"), 10, 64)
	if err != nil || peerID <= 0 {
		fail(c, http.StatusBadRequest, "Invalid receiver ID")
		return
	}

	userID, _, _ := middleware.CurrentUser(c)
	if err := h.checkRelationship(c, userID, peerID); err != nil {
		h.relationshipFailed(c, "GetMessages", err)
		return
	}

	msgs, err := h.messageStore.GetConversation(c.Request.Context(), userID, peerID)
	if err != nil {
		h.logger.Error("GetMessages: failed to load conversation", zap.Int64("peer_id", peerID), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to load messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": models.StatusSuccess, "data": msgs})
}

// GetConversations handles GET /chat/conversations.
func (h *RestHandler) GetConversations(c *gin.Context) {
	userID, _, _ := middleware.CurrentUser(c)
	convs, err := h.messageStore.ListConversations(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("GetConversations: failed", zap.Int64("user_id", userID), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to load conversations")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": models.StatusSuccess, "data": convs})
}

// Typing handles POST /chat/typing and relays the signal to the receiver.
// The pair must be allowed to chat, as for PostMessage.
func (h *RestHandler) Typing(c *gin.Context) {
	var req models.TypingSignal
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Receiver ID is required")
		return
	}

	userID, _, _ := middleware.CurrentUser(c)
	if err := h.checkRelationship(c, userID, req.ReceiverID); err != nil {
		h.relationshipFailed(c, "Typing", err)
		return
	}
	h.notifier.NotifyUser(req.ReceiverID, websocket.MessageTypeTypingIndicator,
		websocket.TypingIndicatorPayload{UserID: userID, IsTyping: req.IsTyping})
	c.JSON(http.StatusOK, gin.H{"status": models.StatusSuccess})
}

// MarkDelivered handles POST /chat/mark_delivered/:messageId. Only the
// receiver of a message can acknowledge it.
func (h *RestHandler) MarkDelivered(c *gin.Context) {
	messageID, err := strconv.ParseInt(c.Param("messageId"), 10, 64)
	if err != nil || messageID <= 0 {
		fail(c, http.StatusBadRequest, "Invalid message ID")
		return
	}

	userID, _, _ := middleware.CurrentUser(c)
	ctx := c.Request.Context()
	msg, err := h.messageStore.GetMessageByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrMessageNotFound) {
			fail(c, http.StatusNotFound, "Message not found")
			return
		}
		h.logger.Error("MarkDelivered: lookup failed", zap.Int64("message_id", messageID), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to update message")
		return
	}
	if msg.ReceiverID != userID {
		fail(c, http.StatusForbidden, "Not the receiver of this message")
		return
	}

	if err := h.messageStore.UpdateDeliveryState(ctx, messageID, models.StateDelivered); err != nil {
		h.logger.Error("MarkDelivered: update failed", zap.Int64("message_id", messageID), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to update message")
		return
	}

	h.notifier.NotifyUser(msg.SenderID, websocket.MessageTypeMessageStatusUpdate,
		websocket.MessageStatusUpdatePayload{MessageID: messageID, State: models.StateDelivered, UserID: userID})
	c.JSON(http.StatusOK, gin.H{
		"status": models.StatusSuccess,
		"data":   models.DeliveryReceipt{MessageID: messageID, State: models.StateDelivered},
	})
}

// AdminLogs handles GET /chat/admin/logs.
func (h *RestHandler) AdminLogs(c *gin.Context) {
	if _, role, _ := middleware.CurrentUser(c); role != models.RoleAdmin {
		fail(c, http.StatusForbidden, "Not authorized")
		return
	}

	logs, err := h.messageStore.RecentLogs(c.Request.Context(), adminLogLimit)
	if err != nil {
		h.logger.Error("AdminLogs: failed", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to load chat logs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": models.StatusSuccess, "data": logs})
}
