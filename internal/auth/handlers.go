package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"medchat/internal/middleware"
	"medchat/internal/models"
	"medchat/internal/store"
	"medchat/internal/utils"
)

// AuthHandler handles authentication-related HTTP requests.
type AuthHandler struct {
	userStore  store.UserStore
	jwtManager *utils.JWTManager
	logger     *zap.Logger
}

func NewAuthHandler(userStore store.UserStore, jwtManager *utils.JWTManager, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		userStore:  userStore,
		jwtManager: jwtManager,
		logger:     logger,
	}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("Login: bad request data", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"status": models.StatusError, "message": "Username and password are required"})
		return
	}

	user, err := h.userStore.GetUserByUsername(c.Request.Context(), req.Username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"status": models.StatusError, "message": "Invalid credentials"})
			return
		}
		h.logger.Error("Login: failed to get user", zap.String("username", req.Username), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": models.StatusError, "message": "Login failed"})
		return
	}

	if !utils.CheckPasswordHash(req.Password, user.HashedPassword) {
		c.JSON(http.StatusUnauthorized, gin.H{"status": models.StatusError, "message": "Invalid credentials"})
		return
	}

	token, err := h.jwtManager.GenerateJWT(user)
	if err != nil {
		h.logger.Error("Login: failed to generate JWT", zap.Int64("user_id", user.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": models.StatusError, "message": "Login failed"})
		return
	}

	h.logger.Info("user logged in", zap.Int64("user_id", user.ID), zap.Stringer("role", user.Role))
	c.JSON(http.StatusOK, gin.H{
		"status": models.StatusSuccess,
		"data":   models.LoginResponse{Token: token, User: user.ToPublicUser()},
	})
}

// Logout acknowledges the sign-out. Tokens are stateless, so the client
// discarding its copy is what ends the session.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": models.StatusSuccess, "message": "Logged out successfully"})
}

func (h *AuthHandler) Profile(c *gin.Context) {
	userID, _, ok := middleware.CurrentUser(c)
	if !ok {
		h.logger.Error("Profile: userID not found in context, middleware issue?")
		c.JSON(http.StatusInternalServerError, gin.H{"status": models.StatusError, "message": "User ID not found in context"})
		return
	}

	user, err := h.userStore.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"status": models.StatusError, "message": "User not found"})
			return
		}
		h.logger.Error("Profile: failed to get user", zap.Int64("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": models.StatusError, "message": "Failed to retrieve user information"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": models.StatusSuccess, "data": user.ToPublicUser()})
}
