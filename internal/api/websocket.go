package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/townyadvanced/townylog/internal/infrastructure/config"
	"github.com/townyadvanced/townylog/internal/infrastructure/logging"
	"github.com/townyadvanced/townylog/internal/sink"
)

// Tail message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// wsSendBufferSize is the per-client queue length. Debug bursts beyond
	// it are dropped for that client.
	wsSendBufferSize = 256
)

// WSMessage is an outbound tail message. Events carry a sink.Event payload.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload for subscribe/unsubscribe messages.
// Channel names may omit the "log." prefix.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// Hub manages websocket connections and fans log records out to them.
// It implements sink.Broadcaster.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	clients map[*WSClient]struct{}
	mu      sync.RWMutex
}

// WSClient is one tail connection.
type WSClient struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	subscriptions map[string]struct{}
	mu            sync.RWMutex
	closed        bool // guarded by mu; set before send is closed
	subject       string
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Tail clients authenticate with a token, not cookies.
		return true
	},
}

// NewHub creates a hub. Call Run to tie its lifetime to a context.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("tail client connected", "subject", client.subject, "clients", n)
}

// Unregister removes a client. The caller that removes it from the map
// closes its send queue, so a concurrent closeAll never double-closes.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, registered := h.clients[client]
	delete(h.clients, client)
	n := len(h.clients)
	h.mu.Unlock()

	if registered {
		client.closeSend()
		h.logger.Debug("tail client disconnected", "subject", client.subject, "clients", n)
	}
}

// Broadcast implements sink.Broadcaster. It runs on the logging path and
// never blocks: a client whose queue is full misses the event.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("failed to marshal tail event", "channel", channel, "error", err)
		return
	}

	for _, client := range h.snapshot() {
		if client.isSubscribed(channel) {
			client.trySend(data)
		}
	}
}

// snapshot copies the client set so sends happen without the hub lock.
func (h *Hub) snapshot() []*WSClient {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeAll drops every client, closing its queue so its writePump exits.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		delete(h.clients, client)
		client.closeSend()
		if client.conn != nil {
			client.conn.Close()
		}
	}
}

// handleTail upgrades the connection to a websocket that streams records
// of the subscribed channels. The admin token travels in ?token= and an
// optional ?channels=main,money pre-subscribes.
func (s *Server) handleTail(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("token")
	if raw == "" {
		writeUnauthorized(w, "token query parameter is required")
		return
	}
	claims, err := ParseToken(raw, s.secCfg.JWT.Secret)
	if err != nil {
		writeUnauthorized(w, "invalid or expired token")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
		subject:       claims.Subject,
	}
	for _, ch := range strings.Split(r.URL.Query().Get("channels"), ",") {
		if ch = strings.TrimSpace(ch); ch != "" {
			client.subscriptions[subscriptionName(ch)] = struct{}{}
		}
	}

	s.hub.Register(client)

	go client.writePump()
	go client.readPump()
}

// subscriptionName accepts both "main" and "log.main".
func subscriptionName(ch string) string {
	if strings.HasPrefix(ch, sink.BroadcastPrefix) {
		return ch
	}
	return sink.BroadcastPrefix + ch
}

// inboundMessage is a client request. Payload is decoded per type.
type inboundMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// Fallbacks for non-positive keepalive settings.
const (
	defaultPingInterval = 30 * time.Second
	defaultWriteWait    = 10 * time.Second
)

// keepalive returns the ping interval and the read window: one interval
// plus the pong grace.
func keepalive(cfg config.WebSocketConfig) (ping, window time.Duration) {
	ping = time.Duration(cfg.PingInterval) * time.Second
	if ping <= 0 {
		ping = defaultPingInterval
	}
	return ping, ping + time.Duration(cfg.PongTimeout)*time.Second
}

// readPump handles client requests until the connection fails. It owns
// unregistration.
func (c *WSClient) readPump() {
	cfg := c.hub.cfg
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	_, window := keepalive(cfg)
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(window)) }

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	extend() //nolint:errcheck // a failed deadline surfaces on the next read
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "subject", c.subject, "error", err)
			}
			return
		}
		// Browsers may not answer protocol pings; any request counts.
		extend() //nolint:errcheck // a failed deadline surfaces on the next read
		c.handleMessage(data)
	}
}

// writePump drains the send queue and pings on the configured interval.
// It exits when the hub closes the queue or a write fails.
func (c *WSClient) writePump() {
	cfg := c.hub.cfg
	ping, _ := keepalive(cfg)
	writeWait := time.Duration(cfg.PongTimeout) * time.Second
	if writeWait <= 0 {
		writeWait = defaultWriteWait
	}
	ticker := time.NewTicker(ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // write error reported below
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				write(websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
				return
			}
			if write(websocket.TextMessage, data) != nil {
				return
			}
		case <-ticker.C:
			if write(websocket.PingMessage, nil) != nil {
				return
			}
		}
	}
}

// handleMessage dispatches one client request.
func (c *WSClient) handleMessage(data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe, WSTypeUnsubscribe:
		c.updateSubscriptions(msg)
	case WSTypePing:
		c.reply(msg.ID, WSTypePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// updateSubscriptions adds or removes the requested channels and echoes
// their normalised names.
func (c *WSClient) updateSubscriptions(msg inboundMessage) {
	var req WSSubscribePayload
	if len(msg.Payload) == 0 || json.Unmarshal(msg.Payload, &req) != nil {
		c.sendError(msg.ID, "invalid "+msg.Type+" payload")
		return
	}

	names := make([]string, len(req.Channels))
	c.mu.Lock()
	for i, ch := range req.Channels {
		names[i] = subscriptionName(ch)
		if msg.Type == WSTypeSubscribe {
			c.subscriptions[names[i]] = struct{}{}
		} else {
			delete(c.subscriptions, names[i])
		}
	}
	c.mu.Unlock()

	key := "subscribed"
	if msg.Type == WSTypeUnsubscribe {
		key = "unsubscribed"
	}
	c.hub.logger.Debug("websocket subscriptions updated", "subject", c.subject, key, names)
	c.reply(msg.ID, WSTypeResponse, map[string][]string{key: names})
}

// trySend queues data without blocking. A full queue drops the message
// and a closed queue is skipped.
func (c *WSClient) trySend(data []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// closeSend closes the send queue once. Senders holding the read lock
// finish before the close.
func (c *WSClient) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *WSClient) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[channel]
	return ok
}

// reply queues a response to request id.
func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}

func (c *WSClient) sendError(id, message string) {
	c.reply(id, WSTypeError, map[string]string{"message": message})
}
