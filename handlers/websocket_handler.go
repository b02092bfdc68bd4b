package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"messenger-shop-bot/services"
)

// WebSocketMessage is an incoming dashboard client message.
type WebSocketMessage struct {
	Type     string `json:"type"`
	SenderID string `json:"sender_id,omitempty"`
	Message  string `json:"message,omitempty"`
}

// WebSocketUpgrade gates the websocket route to real upgrade requests.
func WebSocketUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// HandleWebSocket runs the dashboard live-feed connection for one page.
// The page comes from the route param; auth middleware already ran.
func HandleWebSocket(c *websocket.Conn) {
	pageID := c.Params("pageID")
	if pageID == "" {
		slog.Error("WebSocket connection without page ID")
		c.Close()
		return
	}
	if _, ok := appConfig.PageTokens[pageID]; !ok {
		slog.Warn("WebSocket connection for unknown page", "page_id", pageID)
		c.Close()
		return
	}

	userID, _ := c.Locals("user_id").(string)
	username, _ := c.Locals("username").(string)
	if userID == "" {
		userID = uuid.NewString()
	}

	conn := &services.WebSocketConnection{
		Conn:     c,
		PageID:   pageID,
		UserID:   userID,
		Username: username,
		Send:     make(chan []byte, 256),
	}

	manager := services.GetWebSocketManager()
	manager.RegisterConnection(conn)
	defer manager.UnregisterConnection(pageID, userID)

	slog.Info("WebSocket connection established", "page_id", pageID, "user_id", userID)

	welcome := map[string]interface{}{
		"type":    "connected",
		"page_id": pageID,
		"user_id": userID,
	}
	if data, err := json.Marshal(welcome); err == nil {
		c.WriteMessage(websocket.TextMessage, data)
	}

	go webSocketSendLoop(conn)
	webSocketReceiveLoop(conn)
}

func webSocketSendLoop(conn *services.WebSocketConnection) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		conn.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				slog.Error("Failed to write WebSocket message", "error", err)
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func webSocketReceiveLoop(conn *services.WebSocketConnection) {
	defer conn.Conn.Close()

	conn.Conn.SetReadLimit(512 * 1024)
	conn.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, messageBytes, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket read error", "error", err)
			}
			break
		}
		conn.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		var msg WebSocketMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			slog.Error("Failed to parse WebSocket message", "error", err)
			continue
		}

		switch msg.Type {
		case "ping":
			if data, err := json.Marshal(map[string]string{"type": "pong"}); err == nil {
				conn.Send <- data
			}

		case "send_message":
			handleDashboardMessage(conn, msg)

		default:
			slog.Warn("Unknown WebSocket message type", "type", msg.Type, "page_id", conn.PageID)
		}
	}
}

// handleDashboardMessage relays an agent reply typed in the dashboard
// straight to the customer on Messenger.
func handleDashboardMessage(conn *services.WebSocketConnection, msg WebSocketMessage) {
	if msg.SenderID == "" || msg.Message == "" {
		sendWebSocketError(conn, "sender_id and message are required")
		return
	}

	token := appConfig.PageTokens[conn.PageID]
	if token == "" {
		sendWebSocketError(conn, "Page has no access token configured")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := services.SendMessengerReply(ctx, msg.SenderID, msg.Message, token); err != nil {
		slog.Error("Failed to send dashboard message", "error", err, "sender_id", msg.SenderID)
		sendWebSocketError(conn, "Failed to send message to customer")
		return
	}

	saveTurn(ctx, msg.SenderID, conn.PageID, "", "agent", msg.Message, "")

	ack := map[string]interface{}{
		"type":      "message_sent",
		"sender_id": msg.SenderID,
		"timestamp": time.Now().Unix(),
	}
	if data, err := json.Marshal(ack); err == nil {
		conn.Send <- data
	}

	broadcastTurn(conn.PageID, msg.SenderID, "agent", msg.Message)

	slog.Info("Dashboard message sent", "sender_id", msg.SenderID, "page_id", conn.PageID, "agent", conn.Username)
}

func sendWebSocketError(conn *services.WebSocketConnection, errorMessage string) {
	payload := map[string]string{
		"type":  "error",
		"error": errorMessage,
	}
	if data, err := json.Marshal(payload); err == nil {
		conn.Send <- data
	}
}
