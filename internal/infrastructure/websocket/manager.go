package websocket

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"

	"clipfolio/pkg/logger"
)

// Client is one authenticated WebSocket connection.
type Client struct {
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte

	// OnMessage receives each inbound text frame (session commands).
	OnMessage func(data []byte)

	// OnClose runs once when the connection is torn down, before the client
	// is unregistered.
	OnClose func()
}

// Manager tracks the active connection per user.
type Manager struct {
	clients    map[string]*Client
	Register   chan *Client
	Unregister chan *Client
	mutex      sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		clients:    make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Start runs the manager's main loop in a goroutine.
func (m *Manager) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case client := <-m.Register:
				m.mutex.Lock()
				if old, ok := m.clients[client.UserID]; ok {
					// A newer connection replaces the old one.
					close(old.Send)
				}
				m.clients[client.UserID] = client
				m.mutex.Unlock()
				logger.Info("client registered: %s", client.UserID)

			case client := <-m.Unregister:
				m.mutex.Lock()
				if current, ok := m.clients[client.UserID]; ok && current == client {
					delete(m.clients, client.UserID)
					close(client.Send)
				}
				m.mutex.Unlock()
				logger.Info("client unregistered: %s", client.UserID)

			case <-ctx.Done():
				return
			}
		}
	}()
}

// SendToUser delivers a message to a user's connection, if any.
func (m *Manager) SendToUser(userID string, message []byte) {
	m.mutex.RLock()
	client, ok := m.clients[userID]
	m.mutex.RUnlock()

	if !ok {
		return
	}

	select {
	case client.Send <- message:
	default:
		logger.Warn("send buffer full for %s, dropping frame", userID)
	}
}

// ReadPump reads frames from the connection and hands them to the session.
func (c *Client) ReadPump(m *Manager) {
	defer func() {
		if c.OnClose != nil {
			c.OnClose()
		}
		m.Unregister <- c
		c.Conn.Close()
	}()

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("read error for %s: %v", c.UserID, err)
			}
			break
		}

		if c.OnMessage != nil {
			c.OnMessage(message)
		}
	}
}

// WritePump sends queued frames to the connection.
func (c *Client) WritePump() {
	defer c.Conn.Close()

	for {
		message, ok := <-c.Send
		if !ok {
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			logger.Error("write error for %s: %v", c.UserID, err)
			return
		}
	}
}
