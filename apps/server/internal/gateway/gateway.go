package gateway

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"partyline/apps/server/internal/codec"
	"partyline/apps/server/internal/fanout"
	"partyline/apps/server/internal/lobby"
	"partyline/apps/server/internal/room"
	"partyline/apps/server/internal/validate"
	"partyline/game"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 65536
)

var errJoinFirst = errors.New("join a room first")

type Config struct {
	CodeLength    int
	MaxNameLength int
	MaxTextLength int
	SendBuffer    int
	// AllowedOrigins restricts browser origins; empty allows any.
	AllowedOrigins []string
}

func (c Config) withDefaults() Config {
	if c.CodeLength <= 0 {
		c.CodeLength = validate.DefaultRoomCodeLength
	}
	if c.MaxNameLength <= 0 {
		c.MaxNameLength = validate.DefaultMaxNameLength
	}
	if c.MaxTextLength <= 0 {
		c.MaxTextLength = validate.DefaultMaxTextLength
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 256
	}
	return c
}

// Connection represents a WebSocket client connection
type Connection struct {
	ID       string
	Conn     *websocket.Conn
	Send     chan []byte
	Gateway  *Gateway
	LastPing time.Time

	// Framing of the last inbound message; replies use the same.
	framing atomic.Int32
	closed  chan struct{}
	once    sync.Once
}

// Gateway manages WebSocket connections
type Gateway struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	lobby       *lobby.Lobby
	router      *fanout.Router
	cfg         Config
	upgrader    websocket.Upgrader
	seq         atomic.Uint64
}

func New(lby *lobby.Lobby, router *fanout.Router, cfg Config) *Gateway {
	cfg = cfg.withDefaults()
	g := &Gateway{
		connections: make(map[string]*Connection),
		lobby:       lby,
		router:      router,
		cfg:         cfg,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	if len(g.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range g.cfg.AllowedOrigins {
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}
	return false
}

// Count returns the number of open connections.
func (g *Gateway) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.connections)
}

// HandleWebSocket handles WebSocket upgrade and connection
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Gateway] Upgrade error: %v", err)
		return
	}

	c := &Connection{
		ID:       uuid.NewString(),
		Conn:     conn,
		Send:     make(chan []byte, g.cfg.SendBuffer),
		Gateway:  g,
		LastPing: time.Now(),
		closed:   make(chan struct{}),
	}

	g.mu.Lock()
	g.connections[c.ID] = c
	total := len(g.connections)
	g.mu.Unlock()
	g.router.Register(c.ID, c)

	log.Printf("[Gateway] Client connected: %s, total: %d", c.ID, total)

	go c.readPump()
	go c.writePump()
}

// Deliver implements fanout.Sink.
func (c *Connection) Deliver(env *codec.Envelope) bool {
	data, err := codec.Encode(env, codec.Framing(c.framing.Load()))
	if err != nil {
		log.Printf("[Gateway] %v", err)
		return false
	}
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.Send <- data:
		return true
	default:
		// Drop if buffer full
		return false
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.Gateway.removeConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		c.LastPing = time.Now()
		return nil
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Gateway] Read error: %v", err)
			}
			break
		}

		framing := codec.FramingJSON
		if messageType == websocket.BinaryMessage {
			framing = codec.FramingProto
		}
		c.framing.Store(int32(framing))
		c.handleMessage(message, framing)
	}
}

func (c *Connection) handleMessage(data []byte, framing codec.Framing) {
	msg, err := codec.Decode(data, framing)
	if err != nil {
		c.sendError("", "invalid message format")
		return
	}

	if err := c.Gateway.route(c.ID, msg); err != nil {
		c.sendError(msg.Room, clientMessage(err))
	}
}

// clientMessage hides internal wrapping from clients.
func clientMessage(err error) string {
	var verr *validate.Error
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, game.ErrUnknownGame):
		return game.ErrUnknownGame.Error()
	case errors.Is(err, room.ErrEventNotAllowed):
		return room.ErrEventNotAllowed.Error()
	default:
		return err.Error()
	}
}

func (c *Connection) sendError(roomCode, msg string) {
	c.Deliver(c.Gateway.envelope(codec.TypeError, roomCode, codec.ErrorPayload{Message: msg}))
}

func (g *Gateway) envelope(typ, roomCode string, payload any) *codec.Envelope {
	return &codec.Envelope{
		Type:    typ,
		Room:    roomCode,
		Seq:     g.seq.Add(1),
		TsMs:    time.Now().UnixMilli(),
		Payload: payload,
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case <-c.closed:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			kind := websocket.TextMessage
			if codec.Framing(c.framing.Load()) == codec.FramingProto {
				kind = websocket.BinaryMessage
			}
			if err := c.Conn.WriteMessage(kind, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) removeConnection(c *Connection) {
	c.once.Do(func() { close(c.closed) })
	g.router.Unregister(c.ID, c)

	g.mu.Lock()
	delete(g.connections, c.ID)
	total := len(g.connections)
	g.mu.Unlock()

	g.lobby.Disconnect(c.ID)
	log.Printf("[Gateway] Client disconnected: %s, total: %d", c.ID, total)
}
