package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ContextUserID is the gin context key holding the authenticated user id.
const ContextUserID = "user_id"

// TokenParser resolves a bearer token to a user id.
type TokenParser interface {
	Parse(token string) (string, error)
}

// JWT requires a valid bearer token and stores the user id in the context.
func JWT(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		userID, err := tokens.Parse(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ContextUserID, userID)
		c.Next()
	}
}

// Admin lets through only users accepted by isAdmin. Must run after JWT.
func Admin(isAdmin func(userID string) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isAdmin(c.GetString(ContextUserID)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin only"})
			return
		}
		c.Next()
	}
}

// WebhookToken checks the shared secret the payment gateway sends in X-Webhook-Token.
// An empty secret closes the endpoint.
func WebhookToken(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" || c.GetHeader("X-Webhook-Token") != secret {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook token"})
			return
		}
		c.Next()
	}
}
