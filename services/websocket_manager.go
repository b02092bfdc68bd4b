package services

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
)

// WebSocket errors
var (
	ErrConnectionNotFound   = errors.New("connection not found")
	ErrConnectionBufferFull = errors.New("connection buffer full")
)

// WebSocketManager pushes live bot events (new messages, new leads,
// handoff requests) to connected dashboard clients, keyed by page.
type WebSocketManager struct {
	// Map of page ID to map of user ID to connection
	connections map[string]map[string]*WebSocketConnection
	mu          sync.RWMutex
	broadcast   chan BroadcastMessage
}

// WebSocketConnection represents a single dashboard client
type WebSocketConnection struct {
	Conn     *websocket.Conn
	PageID   string
	UserID   string
	Username string
	Send     chan []byte
}

// BroadcastMessage represents a message to broadcast
type BroadcastMessage struct {
	PageID string
	Type   string
	Data   interface{}
}

// MessagePayload represents the structure of WebSocket messages
type MessagePayload struct {
	Type      string      `json:"type"`
	PageID    string      `json:"page_id,omitempty"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

var wsManager *WebSocketManager
var once sync.Once

// GetWebSocketManager returns the singleton WebSocket manager
func GetWebSocketManager() *WebSocketManager {
	once.Do(func() {
		wsManager = &WebSocketManager{
			connections: make(map[string]map[string]*WebSocketConnection),
			broadcast:   make(chan BroadcastMessage, 100),
		}
		go wsManager.handleBroadcast()
	})
	return wsManager
}

// RegisterConnection registers a new WebSocket connection
func (m *WebSocketManager) RegisterConnection(conn *WebSocketConnection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connections[conn.PageID] == nil {
		m.connections[conn.PageID] = make(map[string]*WebSocketConnection)
	}

	m.connections[conn.PageID][conn.UserID] = conn

	slog.Info("WebSocket connection registered",
		"pageID", conn.PageID,
		"userID", conn.UserID,
		"totalConnections", len(m.connections[conn.PageID]))
}

// UnregisterConnection removes a WebSocket connection
func (m *WebSocketManager) UnregisterConnection(pageID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pageConns, exists := m.connections[pageID]; exists {
		if conn, exists := pageConns[userID]; exists {
			close(conn.Send)
			delete(pageConns, userID)

			slog.Info("WebSocket connection unregistered",
				"pageID", pageID,
				"userID", userID,
				"remainingConnections", len(pageConns))

			if len(pageConns) == 0 {
				delete(m.connections, pageID)
			}
		}
	}
}

// BroadcastToPage sends a message to all dashboard clients watching a page
func (m *WebSocketManager) BroadcastToPage(pageID string, message BroadcastMessage) {
	message.PageID = pageID
	select {
	case m.broadcast <- message:
	default:
		slog.Warn("Broadcast channel full, dropping event", "type", message.Type)
	}
}

// handleBroadcast processes broadcast messages
func (m *WebSocketManager) handleBroadcast() {
	for message := range m.broadcast {
		m.mu.RLock()
		pageConns, exists := m.connections[message.PageID]
		m.mu.RUnlock()

		if !exists {
			continue
		}

		payload := MessagePayload{
			Type:      message.Type,
			PageID:    message.PageID,
			Data:      message.Data,
			Timestamp: time.Now().Unix(),
		}

		jsonData, err := json.Marshal(payload)
		if err != nil {
			slog.Error("Failed to marshal WebSocket message", "error", err)
			continue
		}

		m.mu.RLock()
		for _, conn := range pageConns {
			select {
			case conn.Send <- jsonData:
				// Message sent successfully
			default:
				slog.Warn("WebSocket connection buffer full",
					"pageID", message.PageID,
					"userID", conn.UserID)
			}
		}
		m.mu.RUnlock()
	}
}

// SendToConnection sends a message to a specific connection
func (m *WebSocketManager) SendToConnection(pageID, userID string, data []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if pageConns, exists := m.connections[pageID]; exists {
		if conn, exists := pageConns[userID]; exists {
			select {
			case conn.Send <- data:
				return nil
			default:
				return ErrConnectionBufferFull
			}
		}
	}
	return ErrConnectionNotFound
}

// GetConnectionCount returns the number of active connections for a page
func (m *WebSocketManager) GetConnectionCount(pageID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if pageConns, exists := m.connections[pageID]; exists {
		return len(pageConns)
	}
	return 0
}
