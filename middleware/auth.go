package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vehicle-service-server/logger"
	"vehicle-service-server/models"
	"vehicle-service-server/types"
	"vehicle-service-server/utils"
)

// Context keys set by the auth middlewares.
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

// AuthMiddleware validates the bearer access token and puts the caller's id
// and role on the context. Whether the account is still active is checked by
// the services on every operation.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Authorization header required",
				"message": "Please provide a valid token",
			})
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid token format",
				"message": "Token must be in format: Bearer <token>",
			})
			return
		}

		authenticate(c, tokenString)
	}
}

// WebSocketAuthMiddleware reads the token from the query string since
// browsers cannot set headers on a WebSocket handshake.
func WebSocketAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.Query("token")
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Token required",
				"message": "Please provide a valid token in query parameters",
			})
			return
		}
		authenticate(c, tokenString)
	}
}

func authenticate(c *gin.Context, tokenString string) {
	claims, err := utils.VerifyToken(tokenString)
	if err != nil {
		logger.Debug("🔍 Token rejected", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":   "Invalid token",
			"message": "Token is invalid or expired",
		})
		return
	}
	setClaims(c, claims)
	c.Next()
}

func setClaims(c *gin.Context, claims *types.Claims) {
	c.Set(ContextUserID, claims.UserID)
	c.Set(ContextRole, models.UserRole(claims.Role))
}

// RequireRole rejects callers whose token carries a different role.
func RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := CurrentRole(c)
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":   "Forbidden",
			"message": "Your account cannot perform this action",
		})
	}
}

// CurrentUserID returns the authenticated account id, or 0.
func CurrentUserID(c *gin.Context) uint {
	id, _ := c.Get(ContextUserID)
	v, _ := id.(uint)
	return v
}

func CurrentRole(c *gin.Context) models.UserRole {
	role, _ := c.Get(ContextRole)
	v, _ := role.(models.UserRole)
	return v
}
