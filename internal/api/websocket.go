package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/ac-bridge/internal/bridge"
	"github.com/nerrad567/ac-bridge/internal/infrastructure/config"
	"github.com/nerrad567/ac-bridge/internal/infrastructure/logging"
)

// defaultSendBuffer is the per-client outbound queue length when the
// configuration leaves it unset.
const defaultSendBuffer = 256

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Dashboards are served from anywhere on the LAN, including file://.
		return true
	},
}

// Hub owns the live WebSocket connections. Membership for fanout lives in
// the bridge roster; the hub only tracks connections so it can close them
// on shutdown.
type Hub struct {
	cfg        config.WebSocketConfig
	logger     *logging.Logger
	dispatcher Dispatcher
	clients    map[*WSClient]struct{}
	mu         sync.RWMutex
}

// WSClient is one dashboard connection. It implements bridge.Session.
type WSClient struct {
	id         string
	remoteAddr string
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte

	mu    sync.Mutex // guards state and closing send
	state bridge.SessionState
}

// NewHub creates a new WebSocket hub that reports session events to dispatcher.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger, dispatcher Dispatcher) *Hub {
	return &Hub{
		cfg:        cfg,
		logger:     logger,
		dispatcher: dispatcher,
		clients:    make(map[*WSClient]struct{}),
	}
}

// Run blocks until the context is cancelled, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client and tells the dispatcher it is gone. Only the
// call that actually removes the client dispatches.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	client.Close() //nolint:errcheck // idempotent
	if existed {
		h.dispatcher.Dispatch(bridge.ClientDisconnected{Session: client})
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeAll disconnects all clients so their pumps exit.
func (h *Hub) closeAll() {
	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Close() //nolint:errcheck // shutting down
		if c.conn != nil {
			c.conn.Close()
		}
	}
}

// sendBuffer returns the configured queue length.
func (h *Hub) sendBuffer() int {
	if h.cfg.SendBuffer > 0 {
		return h.cfg.SendBuffer
	}
	return defaultSendBuffer
}

// newWSClient creates a client in the connecting state.
func newWSClient(h *Hub, conn *websocket.Conn, remoteAddr string) *WSClient {
	return &WSClient{
		id:         uuid.NewString(),
		remoteAddr: remoteAddr,
		hub:        h,
		conn:       conn,
		send:       make(chan []byte, h.sendBuffer()),
		state:      bridge.StateConnecting,
	}
}

// ID returns the session's unique identifier.
func (c *WSClient) ID() string { return c.id }

// State returns the session's liveness.
func (c *WSClient) State() bridge.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Send queues payload for the write pump without blocking.
func (c *WSClient) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != bridge.StateOpen {
		return bridge.ErrSessionClosed
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return bridge.ErrSendBufferFull
	}
}

// Close marks the session closed and stops the write pump, which sends a
// close frame. Safe to call more than once.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == bridge.StateClosed {
		return nil
	}
	c.state = bridge.StateClosed
	close(c.send)
	return nil
}

func (c *WSClient) markOpen() {
	c.mu.Lock()
	if c.state == bridge.StateConnecting {
		c.state = bridge.StateOpen
	}
	c.mu.Unlock()
}

// handleWebSocket upgrades the HTTP connection to a dashboard session.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := newWSClient(s.hub, conn, r.RemoteAddr)
	s.hub.Register(client)

	go client.writePump(s.wsCfg)
	client.markOpen()
	s.logger.Debug("websocket client connected", "session", client.id, "remote", client.remoteAddr)
	s.dispatcher.Dispatch(bridge.ClientConnected{Session: client})

	go client.readPump(s.wsCfg)
}

// readPump reads client frames and hands them to the dispatcher.
func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "session", c.id, "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "session", c.id, "error", err)
			}
			return
		}
		// Any client frame keeps the connection alive, even from browsers
		// that do not answer protocol pings.
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		c.hub.dispatcher.Dispatch(bridge.ClientCommand{Session: c, Raw: message})
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	pongWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
