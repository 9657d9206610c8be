package websocket

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"medchat/internal/utils"
)

// WSHandler handles WebSocket connection requests.
type WSHandler struct {
	hub        *Hub
	jwtManager *utils.JWTManager
	upgrader   websocket.Upgrader
}

// NewWSHandler creates a WSHandler. A non-empty allowedOrigins limits
// browser origins; requests without an Origin header are always accepted.
func NewWSHandler(hub *Hub, jwtManager *utils.JWTManager, allowedOrigins []string) *WSHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &WSHandler{
		hub:        hub,
		jwtManager: jwtManager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowed) == 0 || allowed[origin]
			},
		},
	}
}

// HandleWebSocketConnection upgrades GET /ws?token=<jwt> to a push channel
// for the token's user.
func (h *WSHandler) HandleWebSocketConnection(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	claims, err := h.jwtManager.ValidateJWT(tokenString)
	if err != nil {
		h.hub.logger.Debug("websocket: invalid token", zap.Error(err))
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.hub.logger.Warn("websocket: upgrade failed", zap.Int64("user_id", claims.UserID), zap.Error(err))
		return
	}

	client := NewClient(h.hub, conn, claims.UserID)
	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		h.hub.logger.Debug("websocket: hub stopped, closing connection", zap.Int64("user_id", claims.UserID))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), time.Now().Add(writeWait))
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
