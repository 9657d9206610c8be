package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"medchat/internal/models"
	"medchat/internal/utils"
)

const (
	authorizationHeaderKey  = "Authorization"
	authorizationTypeBearer = "bearer"
	UserIDKey               = "userID"
	RoleKey                 = "role"
)

// AuthMiddleware returns a Gin middleware that validates bearer tokens and
// stores the caller's id and role in the context.
func AuthMiddleware(jwtManager *utils.JWTManager, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(authorizationHeaderKey)
		if len(authHeader) == 0 {
			abortUnauthorized(c, "Not authenticated")
			return
		}

		fields := strings.Fields(authHeader)
		if len(fields) < 2 {
			abortUnauthorized(c, "Invalid authorization header format")
			return
		}
		if strings.ToLower(fields[0]) != authorizationTypeBearer {
			abortUnauthorized(c, "Unsupported authorization type, 'Bearer' required")
			return
		}

		claims, err := jwtManager.ValidateJWT(fields[1])
		if err != nil {
			logger.Debug("rejected token", zap.String("path", c.FullPath()), zap.Error(err))
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		// Tokens carrying an unknown role authenticate but may chat with no one.
		role, _ := models.ParseRole(claims.Role)
		c.Set(UserIDKey, claims.UserID)
		c.Set(RoleKey, role)
		c.Next()
	}
}

// CurrentUser returns the caller set by AuthMiddleware.
func CurrentUser(c *gin.Context) (int64, models.Role, bool) {
	id, ok := c.Get(UserIDKey)
	if !ok {
		return 0, models.RoleUnknown, false
	}
	role, _ := c.Get(RoleKey)
	r, _ := role.(models.Role)
	return id.(int64), r, true
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": models.StatusError, "message": msg})
}
