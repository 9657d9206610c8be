package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"medchat/internal/auth"
	"medchat/internal/chat"
	"medchat/internal/middleware"
	"medchat/internal/store"
	"medchat/internal/utils"
	"medchat/internal/websocket"
)

// Deps are the collaborators the API routes are built from.
type Deps struct {
	Users          store.UserStore
	Assignments    store.AssignmentStore
	Messages       store.MessageStore
	JWT            *utils.JWTManager
	Hub            *websocket.Hub
	LoginLimiter   *middleware.LimiterStore
	AllowedOrigins []string
	Logger         *zap.Logger
	// RequestLog enables gin's access log.
	RequestLog bool
}

// NewRouter builds the API: /api/auth/*, /api/chat/*, /ws and /health.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.RedirectTrailingSlash = false
	if d.RequestLog {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(d.AllowedOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = d.AllowedOrigins
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "Upgrade", "Connection"}
	corsConfig.MaxAge = 12 * time.Hour
	r.Use(cors.New(corsConfig))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})

	authHandler := auth.NewAuthHandler(d.Users, d.JWT, d.Logger)
	chatHandler := chat.NewRestHandler(d.Users, d.Assignments, d.Messages, d.Hub, d.Logger)
	wsHandler := websocket.NewWSHandler(d.Hub, d.JWT, d.AllowedOrigins)

	r.GET("/ws", wsHandler.HandleWebSocketConnection)

	api := r.Group("/api")
	{
		login := []gin.HandlerFunc{authHandler.Login}
		if d.LoginLimiter != nil {
			login = append([]gin.HandlerFunc{middleware.RateLimit(d.LoginLimiter)}, login...)
		}
		api.POST("/auth/login", login...)

		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware(d.JWT, d.Logger))
		{
			protected.POST("/auth/logout", authHandler.Logout)
			protected.GET("/auth/profile", authHandler.Profile)

			protected.POST("/chat/send", chatHandler.PostMessage)
			protected.GET("/chat/messages/:receiverId", chatHandler.GetMessages)
			protected.GET("/chat/conversations", chatHandler.GetConversations)
			protected.POST("/chat/typing", chatHandler.Typing)
			protected.POST("/chat/mark_delivered/:messageId", chatHandler.MarkDelivered)
			protected.GET("/chat/admin/logs", chatHandler.AdminLogs)
		}
	}
	return r
}
