// internal/handler/websocket_types.go
package handler

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"emg-service/internal/model"
)

// Stream message types sent to clients
const (
	MessageTypeSnapshot = "snapshot"
	MessageTypeResponse = "response"
	MessageTypeError    = "error"
	MessageTypePong     = "pong"
)

// Intents accepted from clients
const (
	IntentConnectWifi      = "connect_wifi"
	IntentConnectBluetooth = "connect_bluetooth"
	IntentConnectSerial    = "connect_serial"
	IntentDisconnect       = "disconnect"
	IntentStartTraining    = "start_training"
	IntentStopTraining     = "stop_training"
	IntentClearStatus      = "clear_status"
	IntentRefreshDevices   = "refresh_devices"
	IntentSnapshot         = "snapshot"
	IntentPing             = "ping"
)

// Client represents a WebSocket stream client
type Client struct {
	ID          string            `json:"id"`
	Connection  *websocket.Conn   `json:"-"`
	Send        chan []byte       `json:"-"`
	UserAgent   string            `json:"user_agent"`
	RemoteAddr  string            `json:"remote_addr"`
	ConnectedAt time.Time         `json:"connected_at"`
	EventTypes  []model.EventType `json:"event_types,omitempty"`

	done      chan struct{}
	closeOnce sync.Once
}

// StreamMessage is the envelope exchanged with stream clients
type StreamMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// IntentMessage is a request received from a stream client
type IntentMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// IntentResponse reports the outcome of one intent
type IntentResponse struct {
	Intent  string                `json:"intent"`
	Success bool                  `json:"success"`
	Code    string                `json:"code,omitempty"`
	Message string                `json:"message,omitempty"`
	State   model.ConnectionState `json:"state"`
}

func newClient(conn *websocket.Conn, id string, sendBuffer int) *Client {
	return &Client{
		ID:          id,
		Connection:  conn,
		Send:        make(chan []byte, sendBuffer),
		ConnectedAt: time.Now(),
		done:        make(chan struct{}),
	}
}

// enqueue queues a frame for the write pump. Frames for a full queue are
// dropped; false is returned once the client is closed or the frame was
// dropped.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.Send <- frame:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

// Close stops the client pumps. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Done is closed once the client is closed
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// ClientHub tracks connected stream clients
type ClientHub struct {
	clients map[string]*Client
	mutex   sync.RWMutex
}

// NewClientHub creates an empty hub
func NewClientHub() *ClientHub {
	return &ClientHub{
		clients: make(map[string]*Client),
	}
}

// Register registers a new client
func (h *ClientHub) Register(client *Client) {
	h.mutex.Lock()
	h.clients[client.ID] = client
	h.mutex.Unlock()
}

// Unregister removes a client and closes it
func (h *ClientHub) Unregister(client *Client) {
	h.mutex.Lock()
	delete(h.clients, client.ID)
	h.mutex.Unlock()

	client.Close()
}

// Count returns the number of connected clients
func (h *ClientHub) Count() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// CloseAll closes every connected client
func (h *ClientHub) CloseAll() {
	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		client.Close()
	}
}

// GetStats returns connection statistics
func (h *ClientHub) GetStats() *ClientStats {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	stats := &ClientStats{
		TotalConnections: len(h.clients),
		Clients:          make([]*Client, 0, len(h.clients)),
	}
	for _, client := range h.clients {
		stats.Clients = append(stats.Clients, client)
	}
	return stats
}

// ClientStats represents connection statistics
type ClientStats struct {
	TotalConnections int       `json:"total_connections"`
	Clients          []*Client `json:"clients"`
}
