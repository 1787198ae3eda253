package api

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/scanctl/internal/auth"
	"github.com/nerrad567/scanctl/internal/console"
	"github.com/nerrad567/scanctl/internal/infrastructure/config"
	"github.com/nerrad567/scanctl/internal/infrastructure/logging"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// wsQueueSize is the per-client outbound queue length. Events for a client
// whose queue is full are dropped; progress is superseded by the next one.
const wsQueueSize = 256

// wsChannels are the event channels a client may subscribe to.
var wsChannels = map[string]struct{}{
	console.ChannelDispatchProgress:  {},
	console.ChannelDispatchCompleted: {},
	console.ChannelRegistryChanged:   {},
}

// WSMessage is the envelope for every frame in either direction.
// Events carry Channel and Data; requests carry an ID echoed in the reply.
type WSMessage struct {
	Type    string    `json:"type"`
	ID      string    `json:"id,omitempty"`
	Channel string    `json:"channel,omitempty"`
	At      time.Time `json:"at,omitzero"`
	Data    any       `json:"data,omitempty"`
}

// WSSubscribe is the data of subscribe and unsubscribe requests.
// RunID narrows the dispatch channels to one run.
type WSSubscribe struct {
	Channels []string `json:"channels"`
	RunID    string   `json:"run_id,omitempty"`
}

// Hub fans console events out to WebSocket clients. It implements
// console.WSHub and remembers the latest progress of each run in flight so
// a client subscribing mid-run sees where it is.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	// mu guards clients and inflight. A client's queue is only written
	// while mu is held (read or write) and only closed while it is held for
	// writing, so a send never races a close.
	mu       sync.RWMutex
	clients  map[*WSClient]struct{}
	inflight map[string]console.ProgressEvent
	closed   bool
}

// WSClient is one connected operator.
type WSClient struct {
	hub   *Hub
	conn  *websocket.Conn
	queue chan []byte

	operator string
	role     auth.Role

	mu   sync.Mutex
	subs map[string]string // channel -> run filter ("" = every run)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// NewHub creates a hub. Run must be started for shutdown to disconnect
// clients.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:      cfg,
		logger:   logger,
		clients:  make(map[*WSClient]struct{}),
		inflight: make(map[string]console.ProgressEvent),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.dropLocked(c)
		if c.conn != nil {
			c.conn.Close()
		}
	}
}

// attach adds a client. It reports false once the hub has shut down.
func (h *Hub) attach(c *WSClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.logger.Debug("websocket client connected", "operator", c.operator, "clients", len(h.clients))
	return true
}

// detach removes a client and closes its queue. Safe to call twice.
func (h *Hub) detach(c *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

func (h *Hub) dropLocked(c *WSClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.queue)
	h.logger.Debug("websocket client disconnected", "operator", c.operator, "clients", len(h.clients))
}

// Broadcast delivers an event to the clients subscribed to channel.
// Dispatch events are also matched against each client's run filter.
func (h *Hub) Broadcast(channel string, payload any) {
	runID := eventRunID(payload)

	data, err := json.Marshal(WSMessage{
		Type:    WSTypeEvent,
		Channel: channel,
		At:      time.Now().UTC(),
		Data:    payload,
	})
	if err != nil {
		h.logger.Error("failed to marshal websocket event", "channel", channel, "error", err)
		return
	}

	h.track(payload)

	h.mu.RLock()
	defer h.mu.RUnlock()
	recipients := 0
	for c := range h.clients {
		if c.wants(channel, runID) && c.enqueue(data) {
			recipients++
		}
	}
	if recipients > 0 {
		h.logger.Debug("websocket event sent", "channel", channel, "run_id", runID, "recipients", recipients)
	}
}

// track keeps the latest progress of each active run.
func (h *Hub) track(payload any) {
	switch ev := payload.(type) {
	case console.ProgressEvent:
		h.mu.Lock()
		h.inflight[ev.RunID] = ev
		h.mu.Unlock()
	case console.CompletedEvent:
		h.mu.Lock()
		delete(h.inflight, ev.RunID)
		h.mu.Unlock()
	}
}

// catchUp queues the latest progress of every tracked run matching
// runID ("" = all) to c.
func (h *Hub) catchUp(c *WSClient, runID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	for id, ev := range h.inflight {
		if runID != "" && id != runID {
			continue
		}
		data, err := json.Marshal(WSMessage{
			Type:    WSTypeEvent,
			Channel: console.ChannelDispatchProgress,
			At:      time.Now().UTC(),
			Data:    ev,
		})
		if err == nil {
			c.enqueue(data)
		}
	}
}

// Progress returns the latest progress seen for runID.
func (h *Hub) Progress(runID string) (console.ProgressEvent, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ev, ok := h.inflight[runID]
	return ev, ok
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func eventRunID(payload any) string {
	switch ev := payload.(type) {
	case console.ProgressEvent:
		return ev.RunID
	case console.CompletedEvent:
		return ev.RunID
	}
	return ""
}

// handleWebSocket upgrades an authenticated request. Browsers cannot set
// headers on the upgrade, so the operator presents a single-use ticket
// from POST /auth/ws-ticket instead of a bearer token.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		writeUnauthorized(w, "ticket query parameter is required")
		return
	}
	entry, ok := s.validateTicket(ticket)
	if !ok {
		writeUnauthorized(w, "invalid or expired ticket")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &WSClient{
		hub:      s.hub,
		conn:     conn,
		queue:    make(chan []byte, wsQueueSize),
		operator: entry.operator,
		role:     entry.role,
		subs:     make(map[string]string),
	}
	if !s.hub.attach(c) {
		conn.Close()
		return
	}

	ka := newKeepalive(s.wsCfg)
	go c.writeLoop(ka)
	go c.readLoop(ka, int64(s.wsCfg.MaxMessageSize))
}

// keepalive holds the ping cadence. A connection is dropped when nothing
// (pong or message) arrives within interval+grace.
type keepalive struct {
	interval time.Duration
	grace    time.Duration
}

func newKeepalive(cfg config.WebSocketConfig) keepalive {
	return keepalive{
		interval: time.Duration(cfg.PingInterval) * time.Second,
		grace:    time.Duration(cfg.PongTimeout) * time.Second,
	}
}

func (k keepalive) readDeadline() time.Time {
	return time.Now().Add(k.interval + k.grace)
}

func (c *WSClient) readLoop(ka keepalive, limit int64) {
	defer func() {
		c.hub.detach(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(limit)
	c.conn.SetReadDeadline(ka.readDeadline()) //nolint:errcheck // read error surfaces below
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(ka.readDeadline())
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "operator", c.operator, "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(ka.readDeadline()) //nolint:errcheck // read error surfaces on next read
		c.dispatch(raw)
	}
}

func (c *WSClient) writeLoop(ka keepalive) {
	ping := time.NewTicker(ka.interval)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.queue:
			c.conn.SetWriteDeadline(time.Now().Add(ka.grace)) //nolint:errcheck // write error surfaces below
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(ka.grace)) //nolint:errcheck // write error surfaces below
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch handles one request frame from the client.
func (c *WSClient) dispatch(raw []byte) {
	var req struct {
		Type string          `json:"type"`
		ID   string          `json:"id"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		c.reply("", WSTypeError, errorData("invalid JSON message"))
		return
	}

	switch req.Type {
	case WSTypePing:
		c.reply(req.ID, WSTypePong, nil)
	case WSTypeSubscribe, WSTypeUnsubscribe:
		var sub WSSubscribe
		if len(req.Data) == 0 || json.Unmarshal(req.Data, &sub) != nil || len(sub.Channels) == 0 {
			c.reply(req.ID, WSTypeError, errorData("data.channels is required"))
			return
		}
		for _, ch := range sub.Channels {
			if _, ok := wsChannels[ch]; !ok {
				c.reply(req.ID, WSTypeError, errorData("unknown channel: "+ch))
				return
			}
		}
		if req.Type == WSTypeSubscribe {
			c.subscribe(req.ID, sub)
		} else {
			c.unsubscribe(req.ID, sub)
		}
	default:
		c.reply(req.ID, WSTypeError, errorData("unknown message type: "+req.Type))
	}
}

func (c *WSClient) subscribe(id string, sub WSSubscribe) {
	c.mu.Lock()
	for _, ch := range sub.Channels {
		c.subs[ch] = sub.RunID
	}
	c.mu.Unlock()

	c.hub.logger.Debug("websocket client subscribed", "operator", c.operator, "channels", sub.Channels, "run_id", sub.RunID)
	c.reply(id, WSTypeResponse, map[string]any{"subscribed": sub.Channels})

	if slices.Contains(sub.Channels, console.ChannelDispatchProgress) {
		c.hub.catchUp(c, sub.RunID)
	}
}

func (c *WSClient) unsubscribe(id string, sub WSSubscribe) {
	c.mu.Lock()
	for _, ch := range sub.Channels {
		delete(c.subs, ch)
	}
	c.mu.Unlock()

	c.reply(id, WSTypeResponse, map[string]any{"unsubscribed": sub.Channels})
}

func (c *WSClient) filter(channel string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	runID, ok := c.subs[channel]
	return runID, ok
}

// wants reports whether an event on channel for runID goes to this client.
func (c *WSClient) wants(channel, runID string) bool {
	filter, ok := c.filter(channel)
	return ok && (filter == "" || runID == "" || filter == runID)
}

// enqueue queues data without blocking. Callers hold the hub lock.
func (c *WSClient) enqueue(data []byte) bool {
	select {
	case c.queue <- data:
		return true
	default:
		return false
	}
}

// reply queues a response to a client request.
func (c *WSClient) reply(id, msgType string, data any) {
	raw, err := json.Marshal(WSMessage{
		Type: msgType,
		ID:   id,
		At:   time.Now().UTC(),
		Data: data,
	})
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c]; ok {
		c.enqueue(raw)
	}
}

func errorData(message string) map[string]string {
	return map[string]string{"message": message}
}
