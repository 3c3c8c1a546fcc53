package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

type ClientMessage struct {
	Client  *Client
	Message []byte
}

type Config struct {
	MaxConnPerUser int
	MaxMessageSize int64
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
}

// Manager tracks live connections per user and pushes session events to them.
type Manager struct {
	clients        map[string]*Client
	userIndex      map[string]map[string]bool
	clientsMutex   sync.RWMutex
	Register       chan *Client
	Unregister     chan *Client
	HandleMessage  chan *ClientMessage
	done           chan struct{}
	maxConnPerUser int
	maxMessageSize int64
	writeWait      time.Duration
	pongWait       time.Duration
	pingPeriod     time.Duration
	logger         *slog.Logger
}

func NewManager(cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		clients:        make(map[string]*Client),
		userIndex:      make(map[string]map[string]bool),
		Register:       make(chan *Client),
		Unregister:     make(chan *Client),
		HandleMessage:  make(chan *ClientMessage),
		done:           make(chan struct{}),
		maxConnPerUser: cfg.MaxConnPerUser,
		maxMessageSize: cfg.MaxMessageSize,
		writeWait:      cfg.WriteWait,
		pongWait:       cfg.PongWait,
		pingPeriod:     cfg.PingPeriod,
		logger:         logger.With("component", "websocket"),
	}
}

// Run serves the register, unregister and message channels until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			close(m.done)
			return

		case client := <-m.Register:
			m.registerClient(client)

		case client := <-m.Unregister:
			m.unregisterClient(client)

		case clientMsg := <-m.HandleMessage:
			m.processMessage(clientMsg)
		}
	}
}

// Join hands client to Run. It reports false once the manager has stopped.
func (m *Manager) Join(client *Client) bool {
	select {
	case m.Register <- client:
		return true
	case <-m.done:
		return false
	}
}

// Leave is a no-op once the manager has stopped; closeAll already released the client.
func (m *Manager) Leave(client *Client) {
	select {
	case m.Unregister <- client:
	case <-m.done:
	}
}

func (m *Manager) deliver(msg *ClientMessage) bool {
	select {
	case m.HandleMessage <- msg:
		return true
	case <-m.done:
		return false
	}
}

func (m *Manager) registerClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if m.userIndex[client.UserID] == nil {
		m.userIndex[client.UserID] = make(map[string]bool)
	}

	if m.maxConnPerUser > 0 && len(m.userIndex[client.UserID]) >= m.maxConnPerUser {
		m.logger.Warn("max connections reached", "user_id", client.UserID)
		close(client.Send)
		return
	}

	m.clients[client.ID] = client
	m.userIndex[client.UserID][client.ID] = true

	m.logger.Debug("client registered", "client_id", client.ID, "user_id", client.UserID)
}

func (m *Manager) unregisterClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if _, ok := m.clients[client.ID]; ok {
		delete(m.clients, client.ID)
		delete(m.userIndex[client.UserID], client.ID)

		if len(m.userIndex[client.UserID]) == 0 {
			delete(m.userIndex, client.UserID)
		}

		close(client.Send)
		m.logger.Debug("client unregistered", "client_id", client.ID)
	}
}

func (m *Manager) closeAll() {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	for id, client := range m.clients {
		close(client.Send)
		delete(m.clients, id)
	}
	m.userIndex = make(map[string]map[string]bool)
}

func (m *Manager) processMessage(clientMsg *ClientMessage) {
	var msg Message
	if err := json.Unmarshal(clientMsg.Message, &msg); err != nil {
		m.logger.Debug("dropping malformed message", "client_id", clientMsg.Client.ID, "error", err)
		return
	}

	switch msg.Type {
	case TypePing:
		pong, err := NewMessage(TypePong, nil)
		if err != nil {
			return
		}
		m.SendToClient(clientMsg.Client.ID, pong)
	default:
		m.logger.Debug("unknown message type", "type", msg.Type)
	}
}

// BroadcastToUser queues message on every connection of userID. Connections whose buffer
// is full are dropped.
func (m *Manager) BroadcastToUser(userID string, message *Message) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	var slow []*Client

	m.clientsMutex.RLock()
	for clientID := range m.userIndex[userID] {
		client := m.clients[clientID]
		select {
		case client.Send <- messageBytes:
		default:
			slow = append(slow, client)
		}
	}
	m.clientsMutex.RUnlock()

	for _, client := range slow {
		m.logger.Warn("send buffer full, dropping client", "client_id", client.ID)
		m.unregisterClient(client)
	}

	return nil
}

func (m *Manager) SendToClient(clientID string, message *Message) error {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	client, exists := m.clients[clientID]
	if !exists {
		return nil
	}

	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	select {
	case client.Send <- messageBytes:
	default:
		m.logger.Warn("send buffer full", "client_id", clientID)
	}

	return nil
}

// SessionRevoked tells every connection of userID that its refresh session ended.
func (m *Manager) SessionRevoked(userID, reason string) {
	msg, err := NewMessage(TypeSessionRevoked, &SessionRevokedPayload{Reason: reason})
	if err != nil {
		m.logger.Error("failed to build session event", "error", err)
		return
	}
	if err := m.BroadcastToUser(userID, msg); err != nil {
		m.logger.Error("failed to broadcast session event", "user_id", userID, "error", err)
	}
}

func (m *Manager) GetUserConnections(userID string) int {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	return len(m.userIndex[userID])
}
