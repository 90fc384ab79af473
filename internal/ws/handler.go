package ws

import (
	"net/http"

	"tournament_market/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// TokenParser resolves a bearer token to a user id.
type TokenParser interface {
	Parse(token string) (string, error)
}

// HandleWS upgrades an authenticated request and serves the tournament feed.
// Browsers cannot set headers on websocket requests, so the token comes in the query string.
func HandleWS(hub *Hub, tokens TokenParser, allowedOrigin string) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == allowedOrigin
		},
	}
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token required"})
			return
		}
		userID, err := tokens.Parse(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("ws upgrade error", "error", err)
			return
		}

		client := NewClient(userID, conn, hub)
		if id := c.Query("tournament_id"); id != "" {
			hub.Subscribe(client, id)
		}
		go client.Run()
	}
}
