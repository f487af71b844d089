package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ConnectionHandler receives inbound traffic and lifecycle signals for
// established connections.
type ConnectionHandler interface {
	HandleMessage(ctx context.Context, conn *Connection, data []byte)
	HandleDisconnect(ctx context.Context, conn *Connection)
}

// Manager owns every live WebSocket connection and fans typed events out
// to per-room subscriber groups. Delivery is best-effort, at most once
// per subscriber; events published to the same room are delivered to
// each subscriber in publish order because a single dispatcher goroutine
// drains the broadcast queue.
type Manager struct {
	mu    sync.RWMutex
	pools map[string]map[*Connection]bool

	upgrader    websocket.Upgrader
	config      ConnectionConfig
	handler     ConnectionHandler
	broadcastCh chan broadcastMessage
}

// Connection represents one WebSocket client.
type Connection struct {
	ID     string
	UserID string

	ws      *websocket.Conn
	send    chan []byte
	manager *Manager

	ConnectedAt time.Time

	mu     sync.Mutex
	rooms  map[string]struct{}
	gone   bool // membership already taken by the disconnect path
	closed bool // send channel closed
}

// ConnectionConfig holds WebSocket tuning knobs.
type ConnectionConfig struct {
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	PingInterval    time.Duration `yaml:"pingInterval"`
	MaxMessageSize  int64         `yaml:"maxMessageSize"`
	ReadBufferSize  int           `yaml:"readBufferSize"`
	WriteBufferSize int           `yaml:"writeBufferSize"`
	CheckOrigin     func(r *http.Request) bool `yaml:"-"`
}

type broadcastMessage struct {
	roomID  string
	event   string
	payload any
}

// DefaultConnectionConfig returns the default WebSocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewManager creates a connection manager.
func NewManager(config ConnectionConfig) *Manager {
	return &Manager{
		pools: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan broadcastMessage, 1000),
	}
}

// SetHandler wires the inbound message handler. Must be called before
// any connection is upgraded.
func (m *Manager) SetHandler(h ConnectionHandler) {
	m.handler = h
}

// Run processes broadcast messages until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	log.Info().Msg("connection manager started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case msg := <-m.broadcastCh:
			m.deliver(msg)
		}
	}
}

// Upgrade upgrades an HTTP request to a WebSocket connection and starts
// its read/write pumps.
func (m *Manager) Upgrade(w http.ResponseWriter, r *http.Request, connID, userID string) (*Connection, error) {
	ws, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	conn := &Connection{
		ID:          connID,
		UserID:      userID,
		ws:          ws,
		send:        make(chan []byte, 256),
		manager:     m,
		ConnectedAt: time.Now(),
		rooms:       make(map[string]struct{}),
	}

	go conn.writePump()
	go conn.readPump()

	log.Info().
		Str("connection_id", conn.ID).
		Str("user_id", userID).
		Msg("websocket connection established")
	return conn, nil
}

// JoinGroup subscribes the connection to a room's event stream. The room
// ID is kept as the raw string the client supplied.
func (m *Manager) JoinGroup(conn *Connection, roomID string) {
	conn.mu.Lock()
	if conn.gone {
		conn.mu.Unlock()
		return
	}
	conn.rooms[roomID] = struct{}{}
	conn.mu.Unlock()

	m.mu.Lock()
	pool := m.pools[roomID]
	if pool == nil {
		pool = make(map[*Connection]bool)
		m.pools[roomID] = pool
	}
	pool[conn] = true
	size := len(pool)
	m.mu.Unlock()

	log.Debug().
		Str("connection_id", conn.ID).
		Str("room_id", roomID).
		Int("group_size", size).
		Msg("connection joined group")
}

// LeaveGroup unsubscribes the connection from a room's event stream.
func (m *Manager) LeaveGroup(conn *Connection, roomID string) {
	conn.mu.Lock()
	delete(conn.rooms, roomID)
	conn.mu.Unlock()

	m.mu.Lock()
	if pool, ok := m.pools[roomID]; ok {
		delete(pool, conn)
		if len(pool) == 0 {
			delete(m.pools, roomID)
		}
	}
	m.mu.Unlock()
}

// Publish queues an event for every current subscriber of the room.
func (m *Manager) Publish(roomID string, event string, payload any) {
	select {
	case m.broadcastCh <- broadcastMessage{roomID: roomID, event: event, payload: payload}:
	default:
		log.Warn().
			Str("room_id", roomID).
			Str("event", event).
			Msg("broadcast channel full, dropping event")
	}
}

// PublishToConn sends an event to a single connection only.
func (m *Manager) PublishToConn(conn *Connection, roomID string, event string, payload any) {
	data, err := json.Marshal(Envelope{Event: event, RoomID: roomID, Data: payload})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to marshal event")
		return
	}
	m.enqueue(conn, data)
}

// GroupSize returns the number of connections subscribed to a room.
func (m *Manager) GroupSize(roomID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pools[roomID])
}

// Stats returns connection statistics for the health endpoint.
func (m *Manager) Stats() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, pool := range m.pools {
		total += len(pool)
	}
	return map[string]any{
		"active_rooms":        len(m.pools),
		"group_subscriptions": total,
	}
}

func (m *Manager) deliver(msg broadcastMessage) {
	m.mu.RLock()
	pool, ok := m.pools[msg.roomID]
	if !ok {
		m.mu.RUnlock()
		return
	}
	targets := make([]*Connection, 0, len(pool))
	for conn := range pool {
		targets = append(targets, conn)
	}
	m.mu.RUnlock()

	data, err := json.Marshal(Envelope{Event: msg.event, RoomID: msg.roomID, Data: msg.payload})
	if err != nil {
		log.Error().Err(err).Str("event", msg.event).Msg("failed to marshal event")
		return
	}

	for _, conn := range targets {
		m.enqueue(conn, data)
	}

	log.Debug().
		Str("event", msg.event).
		Str("room_id", msg.roomID).
		Int("connections", len(targets)).
		Msg("event broadcast")
}

// enqueue hands data to the connection's write pump, dropping the
// connection if its buffer is full.
func (m *Manager) enqueue(conn *Connection, data []byte) {
	conn.mu.Lock()
	if conn.closed {
		conn.mu.Unlock()
		return
	}
	select {
	case conn.send <- data:
		conn.mu.Unlock()
	default:
		conn.mu.Unlock()
		log.Warn().
			Str("connection_id", conn.ID).
			Str("user_id", conn.UserID).
			Msg("send buffer full, closing connection")
		conn.close()
	}
}

// TakeRooms atomically removes and returns the connection's room
// membership set. Later calls return nil, which is what makes the
// disconnect cleanup run exactly once.
func (c *Connection) TakeRooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gone {
		return nil
	}
	c.gone = true
	rooms := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		rooms = append(rooms, id)
	}
	c.rooms = make(map[string]struct{})
	return rooms
}

func (c *Connection) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()
	if c.ws != nil {
		c.ws.Close()
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message")
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Connection) readPump() {
	// The request context dies as soon as the HTTP handler returns, so
	// hub calls run against a fresh background context.
	ctx := context.Background()
	defer func() {
		if c.manager.handler != nil {
			c.manager.handler.HandleDisconnect(ctx, c)
		}
		c.manager.dropFromAllGroups(c)
		c.close()
	}()

	c.ws.SetReadLimit(c.manager.config.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected websocket close")
			}
			return
		}
		if c.manager.handler != nil {
			c.manager.handler.HandleMessage(ctx, c, data)
		}
		c.ws.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	}
}

// dropFromAllGroups removes the connection from every pool it is still
// subscribed to, regardless of hub-level cleanup.
func (m *Manager) dropFromAllGroups(conn *Connection) {
	conn.mu.Lock()
	rooms := make([]string, 0, len(conn.rooms))
	for id := range conn.rooms {
		rooms = append(rooms, id)
	}
	conn.rooms = make(map[string]struct{})
	conn.mu.Unlock()

	m.mu.Lock()
	for _, roomID := range rooms {
		if pool, ok := m.pools[roomID]; ok {
			delete(pool, conn)
			if len(pool) == 0 {
				delete(m.pools, roomID)
			}
		}
	}
	m.mu.Unlock()

	log.Info().
		Str("connection_id", conn.ID).
		Str("user_id", conn.UserID).
		Msg("connection unregistered")
}
