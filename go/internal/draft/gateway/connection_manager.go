package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/mcdev12/draftroom/go/internal/draft/events"
)

// ConnectionManager owns every live WebSocket connection and the per-room
// subscription pools events fan out through.
type ConnectionManager struct {
	mu sync.RWMutex
	// All live connections by connection ID.
	conns map[string]*Connection
	// Connection pools by room code; membership changes on join/disconnect.
	roomConns map[string]map[*Connection]bool

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan broadcastMessage

	// onMessage routes inbound client messages; onDisconnect is fired after
	// a connection is unregistered.
	onMessage    func(connID string, raw []byte)
	onDisconnect func(connID string)

	// sink, when set, receives a copy of every room-scoped event.
	sink EventSink
}

// EventSink receives room-scoped events after they are queued for fan-out.
// Implementations must not block.
type EventSink interface {
	Publish(event *Event)
}

// Connection is one client's WebSocket session.
type Connection struct {
	ID       string
	RoomCode string // guarded by the manager's lock
	Conn     *websocket.Conn
	Send     chan []byte
	Manager  *ConnectionManager

	limiter *rate.Limiter

	ConnectedAt time.Time
	LastPing    time.Time
}

// ConnectionConfig holds configuration for WebSocket connections.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	// MessagesPerSec caps inbound messages per connection; excess messages
	// are dropped without closing the connection.
	MessagesPerSec float64
	MessageBurst   int
	CheckOrigin    func(r *http.Request) bool
}

type broadcastMessage struct {
	RoomCode string
	ConnID   string // if set, deliver to this single connection
	Event    *Event
}

// DefaultConnectionConfig returns default WebSocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		MessagesPerSec:  20,
		MessageBurst:    40,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewConnectionManager creates a connection manager.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		conns:     make(map[string]*Connection),
		roomConns: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan broadcastMessage, 1000),
	}
}

// OnMessage sets the inbound message handler. Must be called before the
// first upgrade.
func (cm *ConnectionManager) OnMessage(fn func(connID string, raw []byte)) {
	cm.onMessage = fn
}

// OnDisconnect sets the disconnect handler. Must be called before the first
// upgrade.
func (cm *ConnectionManager) OnDisconnect(fn func(connID string)) {
	cm.onDisconnect = fn
}

// SetSink attaches an event sink receiving a copy of room-scoped events.
func (cm *ConnectionManager) SetSink(sink EventSink) {
	cm.sink = sink
}

// Start processes broadcast messages until ctx is cancelled.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP request to a WebSocket session and
// starts its read/write pumps. The connection starts unsubscribed; it joins
// a room pool through the createRoom/joinRoom protocol actions.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		limiter:     rate.NewLimiter(rate.Limit(cm.config.MessagesPerSec), cm.config.MessageBurst),
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}

	cm.mu.Lock()
	cm.conns[connection.ID] = connection
	cm.mu.Unlock()

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket connection established")

	return nil
}

// Subscribe adds a connection to a room's broadcast pool. Joining a room is
// the only way into a pool; disconnect is the only way out.
func (cm *ConnectionManager) Subscribe(connID, roomCode string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	conn, ok := cm.conns[connID]
	if !ok {
		return
	}
	conn.RoomCode = roomCode
	if cm.roomConns[roomCode] == nil {
		cm.roomConns[roomCode] = make(map[*Connection]bool)
	}
	cm.roomConns[roomCode][conn] = true

	log.Debug().
		Str("connection_id", connID).
		Str("room_code", roomCode).
		Int("room_connections", len(cm.roomConns[roomCode])).
		Msg("connection subscribed to room")
}

// unregisterConnection removes a connection from the manager and its room
// pool, if any.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, exists := cm.conns[conn.ID]; !exists {
		return false
	}
	delete(cm.conns, conn.ID)
	close(conn.Send)

	if pool, exists := cm.roomConns[conn.RoomCode]; exists {
		delete(pool, conn)
		if len(pool) == 0 {
			delete(cm.roomConns, conn.RoomCode)
		}
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("room_code", conn.RoomCode).
		Msg("connection unregistered")
	return true
}

// ToRoom queues an event for every connection subscribed to a room. Never
// blocks; the event is dropped if the broadcast queue is full.
func (cm *ConnectionManager) ToRoom(roomCode string, kind events.Type, payload any) {
	event, err := newEvent(roomCode, kind, payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(kind)).Msg("failed to build room event")
		return
	}
	select {
	case cm.broadcastCh <- broadcastMessage{RoomCode: roomCode, Event: event}:
	default:
		log.Warn().Str("room_code", roomCode).Msg("broadcast channel full, dropping message")
	}
}

// ToConnection queues an event for a single connection. Used for
// request-scoped errors and creation/join acknowledgments.
func (cm *ConnectionManager) ToConnection(connID string, kind events.Type, payload any) {
	event, err := newEvent("", kind, payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(kind)).Msg("failed to build connection event")
		return
	}
	select {
	case cm.broadcastCh <- broadcastMessage{ConnID: connID, Event: event}:
	default:
		log.Warn().Str("connection_id", connID).Msg("broadcast channel full, dropping message")
	}
}

func newEvent(roomCode string, kind events.Type, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Event{
		ID:        uuid.New().String(),
		RoomCode:  roomCode,
		Type:      kind,
		Timestamp: time.Now(),
		Data:      data,
	}, nil
}

func (cm *ConnectionManager) handleBroadcast(message broadcastMessage) {
	var targets []*Connection

	cm.mu.RLock()
	if message.ConnID != "" {
		if conn, ok := cm.conns[message.ConnID]; ok {
			targets = append(targets, conn)
		}
	} else {
		for conn := range cm.roomConns[message.RoomCode] {
			targets = append(targets, conn)
		}
	}
	cm.mu.RUnlock()

	if message.ConnID == "" && cm.sink != nil {
		cm.sink.Publish(message.Event)
	}

	if len(targets) == 0 {
		return
	}

	eventData, err := json.Marshal(message.Event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	for _, conn := range targets {
		select {
		case conn.Send <- eventData:
		default:
			// Connection is slow/dead, close it
			log.Warn().
				Str("connection_id", conn.ID).
				Msg("connection send buffer full, closing connection")
			if cm.unregisterConnection(conn) {
				conn.Conn.Close()
				if cm.onDisconnect != nil {
					cm.onDisconnect(conn.ID)
				}
			}
		}
	}
}

// GetConnectionStats returns statistics about active connections.
func (cm *ConnectionManager) GetConnectionStats() (total int, rooms int) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.conns), len(cm.roomConns)
}

// writePump handles sending messages to the WebSocket connection.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				// Channel was closed
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			c.LastPing = time.Now()
		}
	}
}

// readPump handles reading messages from the WebSocket connection.
func (c *Connection) readPump() {
	defer func() {
		removed := c.Manager.unregisterConnection(c)
		c.Conn.Close()
		if removed && c.Manager.onDisconnect != nil {
			c.Manager.onDisconnect(c.ID)
		}
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("unexpected WebSocket close error")
			}
			break
		}

		if !c.limiter.Allow() {
			log.Warn().Str("connection_id", c.ID).Msg("inbound message rate exceeded, dropping")
			c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
			continue
		}

		if c.Manager.onMessage != nil {
			c.Manager.onMessage(c.ID, message)
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
