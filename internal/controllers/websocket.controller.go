package controllers

import (
	"log"
	"net/http"
	"time"

	"statusbot/internal/middleware"
	"statusbot/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const maxClientMessageSize = 4096

// claimsFrom returns the claims stored by middleware.AuthMiddleware
func claimsFrom(c *gin.Context) *services.GatewayClaims {
	if v, ok := c.Get(middleware.ClaimsKey); ok {
		if claims, ok := v.(*services.GatewayClaims); ok {
			return claims
		}
	}
	return nil
}

// HandleWebSocket subscribes an authenticated client to monitor pushes
func HandleWebSocket(hub *services.WebSocketHub, allowedOrigins []string) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// Non-browser chat hosts send no Origin
			return origin == "" || middleware.OriginAllowed(origin, allowedOrigins)
		},
	}

	return func(c *gin.Context) {
		serverName := "unknown"
		if claims := claimsFrom(c); claims != nil {
			serverName = claims.ServerName
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[WS] Upgrade error: %v", err)
			return
		}

		middleware.GlobalSecurityLogger.LogWebSocketConnected(c.ClientIP(), serverName)

		client := services.NewClientConnection(c.ClientIP()+"-"+serverName, ws)
		hub.Register(client)

		go readPump(client, hub, c.ClientIP())
		go writePump(client)
	}
}

// readPump reads control messages from the WebSocket client
func readPump(client *services.ClientConnection, hub *services.WebSocketHub, ip string) {
	defer func() {
		hub.Unregister(client)
		client.Conn.Close()
		middleware.GlobalSecurityLogger.LogWebSocketDisconnected(ip, client.ID)
	}()

	client.Conn.SetReadLimit(maxClientMessageSize)

	for {
		var msg services.WebSocketMessage
		err := client.Conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] WebSocket error: %v", err)
			}
			return
		}

		switch msg.Type {
		case "ping":
			client.Queue(services.WebSocketMessage{
				Type:      "pong",
				Timestamp: time.Now(),
			})

		case "subscribe":
			// Already subscribed on connect
			log.Printf("[WS] Client %s subscribed to updates", client.ID)

		case "unsubscribe":
			return

		default:
			log.Printf("[WS] Unknown message type: %s", msg.Type)
			client.Queue(services.WebSocketMessage{
				Type:      "error",
				Timestamp: time.Now(),
				Error:     "unknown message type",
			})
		}
	}
}

// writePump writes queued messages to the WebSocket client
func writePump(client *services.ClientConnection) {
	defer client.Conn.Close()

	for msg := range client.Send {
		if err := client.Conn.WriteJSON(msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] Write error: %v", err)
			}
			return
		}
	}

	// Send channel closed by the hub
	client.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// HandleTokenStatus describes the token used for this request
func HandleTokenStatus(c *gin.Context) {
	claims := claimsFrom(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":      true,
		"server":     claims.ServerName,
		"expires_at": claims.ExpiresAt.Time,
		"issued_at":  claims.IssuedAt.Time,
	})
}
