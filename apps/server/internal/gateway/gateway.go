package gateway

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"holdem-kit/apps/server/internal/auth"
	"holdem-kit/apps/server/internal/codec"
	"holdem-kit/apps/server/internal/lobby"
	"holdem-kit/apps/server/internal/table"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // TODO: Restrict in production
	},
}

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Connection represents a WebSocket client connection
type Connection struct {
	ID       string
	UserID   uint64
	Nickname string
	Conn     *websocket.Conn
	Send     chan []byte
	Gateway  *Gateway
	LastPing time.Time

	// Current table association
	TableID string
	Table   *table.Table
}

// Gateway 维护所有 WebSocket 连接并把请求路由到大厅 / 牌桌。
type Gateway struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	userConns   map[uint64]*Connection // userID -> connection
	nextConnID  uint64
	lobby       *lobby.Lobby
	auth        auth.Service
}

// New creates a new Gateway instance
func New(lby *lobby.Lobby, authService auth.Service) *Gateway {
	return &Gateway{
		connections: make(map[string]*Connection),
		userConns:   make(map[uint64]*Connection),
		lobby:       lby,
		auth:        authService,
	}
}

// HandleWebSocket upgrades the request and binds the connection to the
// session resolved from the token query parameter.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	userID, username, ok := g.auth.ResolveSession(token)
	if !ok {
		http.Error(w, "invalid session token", http.StatusUnauthorized)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Gateway] WebSocket upgrade failed: %v", err)
		return
	}

	connID := fmt.Sprintf("conn_%d", atomic.AddUint64(&g.nextConnID, 1))
	c := &Connection{
		ID:       connID,
		UserID:   userID,
		Nickname: username,
		Conn:     ws,
		Send:     make(chan []byte, 256),
		Gateway:  g,
		LastPing: time.Now(),
	}

	g.mu.Lock()
	// 同一账号重连时顶掉旧连接
	if old := g.userConns[userID]; old != nil {
		close(old.Send)
		delete(g.connections, old.ID)
	}
	g.connections[connID] = c
	g.userConns[userID] = c
	g.mu.Unlock()

	log.Printf("[Gateway] Connection %s established for user %d (%s)", connID, userID, username)

	go c.writePump()
	go c.readPump()
}

func (c *Connection) readPump() {
	defer func() {
		c.Gateway.removeConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.LastPing = time.Now()
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[Gateway] Connection %s read error: %v", c.ID, err)
			}
			return
		}
		c.handleMessage(data)
	}
}

func (c *Connection) handleMessage(data []byte) {
	env, err := codec.DecodeClient(data)
	if err != nil {
		log.Printf("[Gateway] Connection %s sent invalid message: %v", c.ID, err)
		c.sendError("BAD_REQUEST", "invalid message")
		return
	}

	switch env.Type {
	case codec.ClientTypeQuickStart:
		c.handleQuickStart()
	case codec.ClientTypeSitDown:
		if env.SitDown == nil {
			c.sendError("BAD_REQUEST", "missing sitDown payload")
			return
		}
		c.submitToTable(table.Event{
			Type:     table.EventSitDown,
			UserID:   c.UserID,
			Nickname: c.Nickname,
			Chair:    env.SitDown.Chair,
			Amount:   env.SitDown.BuyIn,
		})
	case codec.ClientTypeStandUp:
		c.submitToTable(table.Event{
			Type:   table.EventStandUp,
			UserID: c.UserID,
		})
	case codec.ClientTypeAction:
		if env.Action == nil {
			c.sendError("BAD_REQUEST", "missing action payload")
			return
		}
		action, err := codec.ParseActionName(env.Action.Action)
		if err != nil {
			c.sendError("BAD_REQUEST", err.Error())
			return
		}
		c.submitToTable(table.Event{
			Type:   table.EventAction,
			UserID: c.UserID,
			Action: action,
			Amount: env.Action.AmountTo,
		})
	default:
		c.sendError("BAD_REQUEST", fmt.Sprintf("unknown message type %q", env.Type))
	}
}

func (c *Connection) handleQuickStart() {
	t, err := c.Gateway.lobby.QuickStart(c.UserID, c.Gateway.broadcastToUser)
	if err != nil {
		log.Printf("[Gateway] QuickStart failed for user %d: %v", c.UserID, err)
		c.sendError("QUICK_START_FAILED", "no table available")
		return
	}
	c.Table = t
	c.TableID = t.ID

	if err := t.SubmitEvent(table.Event{
		Type:     table.EventJoinTable,
		UserID:   c.UserID,
		Nickname: c.Nickname,
	}); err != nil {
		log.Printf("[Gateway] JoinTable failed for user %d: %v", c.UserID, err)
		c.sendError("JOIN_FAILED", err.Error())
	}
}

func (c *Connection) submitToTable(e table.Event) {
	if c.Table == nil {
		c.sendError("NO_TABLE", "join a table first")
		return
	}
	if err := c.Table.SubmitEvent(e); err != nil {
		c.sendError("TABLE_REJECTED", err.Error())
	}
}

func (c *Connection) sendError(code, message string) {
	env := codec.NewServerEnvelope(c.TableID, 0, codec.ServerTypeError)
	env.Error = &codec.ErrorNotice{Code: code, Message: message}
	data, err := codec.EncodeServer(env)
	if err != nil {
		return
	}
	select {
	case c.Send <- data:
	default:
		log.Printf("[Gateway] Send buffer full for connection %s, dropping error", c.ID)
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
		case data, ok := <-c.Send:
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("[Gateway] Connection %s write error: %v", c.ID, err)
				return
			}
		case <-ticker.C:
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) removeConnection(c *Connection) {
	g.mu.Lock()
	if cur, ok := g.connections[c.ID]; ok && cur == c {
		delete(g.connections, c.ID)
	}
	if cur, ok := g.userConns[c.UserID]; ok && cur == c {
		delete(g.userConns, c.UserID)
	}
	g.mu.Unlock()

	if c.Table != nil {
		_ = c.Table.SubmitEvent(table.Event{
			Type:   table.EventConnLost,
			UserID: c.UserID,
		})
	}
	log.Printf("[Gateway] Connection %s removed (user %d)", c.ID, c.UserID)
}

// broadcastToUser delivers table events to a user's active connection.
// Slow consumers are dropped rather than blocking the table actor.
func (g *Gateway) broadcastToUser(userID uint64, data []byte) {
	g.mu.RLock()
	c := g.userConns[userID]
	g.mu.RUnlock()
	if c == nil {
		return
	}
	select {
	case c.Send <- data:
	default:
		log.Printf("[Gateway] Send buffer full for user %d, dropping message", userID)
	}
}

// Broadcast sends a message to every connected client.
func (g *Gateway) Broadcast(data []byte) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, c := range g.connections {
		select {
		case c.Send <- data:
		default:
		}
	}
}
