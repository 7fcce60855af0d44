package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/toxikmusic/traxx-current-sub001/internal/core/domain"
	"github.com/toxikmusic/traxx-current-sub001/internal/core/services"
)

const (
	ContextUserID   = "user_id"
	ContextUsername = "username"
)

// AuthMiddleware requires a valid bearer token and places the caller's
// identity in the gin context.
func AuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := bearerClaims(c, authService)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUsername, claims.Username)
		c.Next()
	}
}

// OptionalAuthMiddleware attaches identity when a valid token is present but
// never rejects the request.
func OptionalAuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, ok := bearerClaims(c, authService); ok {
			c.Set(ContextUserID, claims.UserID)
			c.Set(ContextUsername, claims.Username)
		}
		c.Next()
	}
}

func bearerClaims(c *gin.Context, authService services.AuthService) (*services.Claims, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil, false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, false
	}

	claims, err := authService.ValidateToken(parts[1])
	if err != nil {
		return nil, false
	}
	return claims, true
}

// UserFromContext returns the authenticated user id, if any.
func UserFromContext(c *gin.Context) (domain.UserID, bool) {
	val, exists := c.Get(ContextUserID)
	if !exists {
		return "", false
	}
	userID, ok := val.(domain.UserID)
	return userID, ok
}
