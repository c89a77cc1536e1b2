package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	cerrors "github.com/r3d91ll/consensus/pkg/errors"
	"github.com/r3d91ll/consensus/pkg/logging"
	"github.com/r3d91ll/consensus/pkg/simulation"
)

// -----------------------------------------------------------------------------
// WebSocket Constants
// -----------------------------------------------------------------------------

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8192

	// Size of client send buffer.
	sendBufferSize = 256

	// Size of the client buffer for lifecycle messages and replies, which
	// are written before queued updates.
	priorityBufferSize = 1024
)

// Channel names for subscriptions.
const (
	// ChannelUpdates carries distribution snapshots.
	ChannelUpdates = "updates"
	// ChannelLifecycle carries phase changes, batch starts and finishes.
	ChannelLifecycle = "lifecycle"
)

// Message types exchanged over the socket.
const (
	EventTypeUpdate       = "update"
	EventTypeNext         = "next"
	EventTypeFinish       = "finish"
	EventTypeBatchStarted = "batch_started"
	EventTypeBatchDone    = "batch_done"
	EventTypeControl      = "control"
	EventTypeControlAck   = "control_ack"
	EventTypeSubscribe    = "subscribe"
	EventTypeUnsubscribe  = "unsubscribe"
	EventTypePing         = "ping"
	EventTypePong         = "pong"
	EventTypeError        = "error"
)

// -----------------------------------------------------------------------------
// WebSocket Message Types
// -----------------------------------------------------------------------------

// WSMessage is the standard WebSocket message envelope.
type WSMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Channels  []string        `json:"channels,omitempty"` // For subscribe messages
}

// newMessage encodes data into an envelope stamped with the current time.
func newMessage(msgType string, data any) (*WSMessage, error) {
	msg := &WSMessage{
		Type:      msgType,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		msg.Data = raw
	}
	return msg, nil
}

// ControlData is the payload of an inbound control message. An empty Batch
// addresses every active batch.
type ControlData struct {
	Action string `json:"action"`
	Batch  string `json:"batch,omitempty"`
}

// ControlAckData reports how many instances a control message reached.
type ControlAckData struct {
	Action    string `json:"action"`
	Batch     string `json:"batch,omitempty"`
	Delivered int    `json:"delivered"`
}

// ErrorData is the payload of an error message.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Controller applies control messages received from clients.
type Controller interface {
	Control(batchID string, msg simulation.ControlMessage) (int, error)
}

// -----------------------------------------------------------------------------
// WebSocket Upgrader
// -----------------------------------------------------------------------------

func newUpgrader(checkOrigin func(*http.Request) bool) *websocket.Upgrader {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin,
	}
}

// -----------------------------------------------------------------------------
// Client
// -----------------------------------------------------------------------------

// Client represents a single WebSocket client connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	// priority carries lifecycle messages and replies so a flood of updates
	// cannot crowd out a finish.
	priority chan []byte

	subscriptions map[string]bool
	subMu         sync.RWMutex
}

// NewClient creates a new WebSocket client. New clients listen to every
// channel until they subscribe explicitly.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		priority: make(chan []byte, priorityBufferSize),
		subscriptions: map[string]bool{
			ChannelUpdates:   true,
			ChannelLifecycle: true,
		},
	}
}

// SetSubscriptions replaces the client's channels.
func (c *Client) SetSubscriptions(channels ...string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.subscriptions = make(map[string]bool, len(channels))
	for _, ch := range channels {
		c.subscriptions[ch] = true
	}
}

// Unsubscribe removes channel subscriptions.
func (c *Client) Unsubscribe(channels ...string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range channels {
		delete(c.subscriptions, ch)
	}
}

// IsSubscribed checks if the client is subscribed to a channel.
func (c *Client) IsSubscribed(channel string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return c.subscriptions[channel]
}

// readPump pumps messages from the WebSocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("[ws] read error", "error", err)
			}
			break
		}
		c.handleMessage(message)
	}
}

// handleMessage processes an incoming message from the client.
func (c *Client) handleMessage(message []byte) {
	var msg WSMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.sendError("invalid_json", "Failed to parse message")
		return
	}

	switch msg.Type {
	case EventTypeSubscribe:
		c.handleSubscribe(msg)
	case EventTypeUnsubscribe:
		c.Unsubscribe(msg.Channels...)
	case EventTypeControl:
		c.handleControl(msg)
	case EventTypePing:
		c.reply(EventTypePong, nil)
	default:
		c.hub.logger.Debug("[ws] unknown message type", "type", msg.Type)
		c.sendError("unknown_type", "Unknown message type: "+msg.Type)
	}
}

func (c *Client) handleSubscribe(msg WSMessage) {
	if len(msg.Channels) == 0 {
		c.sendError("invalid_subscribe", "No channels specified")
		return
	}

	valid := make([]string, 0, len(msg.Channels))
	for _, ch := range msg.Channels {
		switch ch {
		case ChannelUpdates, ChannelLifecycle:
			valid = append(valid, ch)
		default:
			c.hub.logger.Debug("[ws] unknown channel", "channel", ch)
		}
	}
	if len(valid) == 0 {
		c.sendError("invalid_subscribe", "No known channels specified")
		return
	}
	c.SetSubscriptions(valid...)
	c.hub.logger.Debug("[ws] client subscribed", "channels", valid)
}

func (c *Client) handleControl(msg WSMessage) {
	var data ControlData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		c.sendError("invalid_control", "Control data must be an object with an action")
		return
	}
	action, err := simulation.ParseControlMessage(data.Action)
	if err != nil {
		c.sendError("invalid_control", err.Error())
		return
	}
	if c.hub.controller == nil {
		c.sendError("control_unavailable", "No controller attached")
		return
	}

	delivered, err := c.hub.controller.Control(data.Batch, action)
	if err != nil {
		c.sendError("control_failed", err.Error())
		return
	}
	c.hub.logger.Info("[ws] control applied", "action", action, "batch", data.Batch, "delivered", delivered)
	c.reply(EventTypeControlAck, ControlAckData{Action: action.String(), Batch: data.Batch, Delivered: delivered})
}

// reply queues a message for this client only.
func (c *Client) reply(msgType string, data any) {
	msg, err := newMessage(msgType, data)
	if err != nil {
		return
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.priority <- raw:
	default:
		// Buffer full, drop the message
	}
}

// close closes both outbound queues. The hub calls it with mu held.
func (c *Client) close() {
	close(c.send)
	close(c.priority)
}

func (c *Client) sendError(code, message string) {
	c.reply(EventTypeError, ErrorData{Code: code, Message: message})
}

// writePump pumps messages from the hub to the WebSocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		// Lifecycle messages and replies go out first.
		select {
		case message, ok := <-c.priority:
			if !c.write(message, ok) {
				return
			}
			continue
		default:
		}

		select {
		case message, ok := <-c.priority:
			if !c.write(message, ok) {
				return
			}
		case message, ok := <-c.send:
			if !c.write(message, ok) {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// write sends one frame. It reports false once the hub closed the queue or
// the connection failed.
func (c *Client) write(message []byte, ok bool) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if !ok {
		// The hub closed the channel.
		c.conn.WriteMessage(websocket.CloseMessage, []byte{})
		return false
	}
	// One JSON document per frame.
	return c.conn.WriteMessage(websocket.TextMessage, message) == nil
}

// -----------------------------------------------------------------------------
// Hub
// -----------------------------------------------------------------------------

// Hub maintains the set of active clients and fans engine events out to
// them. It implements simulation.Observer.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	done       chan struct{}
	stopOnce   sync.Once

	controller Controller
	logger     *slog.Logger
}

// NewHub creates a new WebSocket hub. controller may be nil.
func NewHub(controller Controller, logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		controller: controller,
		logger:     logging.OrDefault(logger),
	}
}

// Run starts the hub's main loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				client.close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("[ws] client connected", "total", n)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("[ws] client disconnected", "total", n)
		}
	}
}

// Stop gracefully stops the hub. It is safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastToChannel sends a message to clients subscribed to a channel.
// Lifecycle messages use the priority queue. Clients whose buffer is full
// miss the message. After Stop it returns a SIM_CHANNEL_CLOSED error.
func (h *Hub) BroadcastToChannel(channel string, msg *WSMessage) error {
	select {
	case <-h.done:
		return cerrors.Simulation(cerrors.ErrChannelClosed, "websocket hub is stopped")
	default:
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if !client.IsSubscribed(channel) {
			continue
		}
		queue := client.send
		if channel == ChannelLifecycle {
			queue = client.priority
		}
		select {
		case queue <- data:
		default:
			if channel == ChannelLifecycle {
				h.logger.Warn("[ws] lifecycle message dropped", "type", msg.Type)
			}
		}
	}
	return nil
}

// Publish implements simulation.Observer. Update events go to the updates
// channel, Next and Finish to the lifecycle channel.
func (h *Hub) Publish(ev simulation.Event) error {
	var channel, msgType string
	switch ev.Type {
	case simulation.EventUpdate:
		channel, msgType = ChannelUpdates, EventTypeUpdate
	case simulation.EventNext:
		channel, msgType = ChannelLifecycle, EventTypeNext
	case simulation.EventFinish:
		channel, msgType = ChannelLifecycle, EventTypeFinish
	default:
		return nil
	}

	msg, err := newMessage(msgType, ev)
	if err != nil {
		return err
	}
	return h.BroadcastToChannel(channel, msg)
}

// BroadcastBatch announces a batch lifecycle change on the lifecycle channel.
func (h *Hub) BroadcastBatch(msgType string, summary simulation.BatchSummary) error {
	msg, err := newMessage(msgType, summary)
	if err != nil {
		return err
	}
	return h.BroadcastToChannel(ChannelLifecycle, msg)
}

// -----------------------------------------------------------------------------
// HTTP Handler
// -----------------------------------------------------------------------------

// WebSocketHandler handles WebSocket upgrade requests.
type WebSocketHandler struct {
	hub      *Hub
	upgrader *websocket.Upgrader
}

// NewWebSocketHandler creates a handler. checkOrigin may be nil to accept
// any origin.
func NewWebSocketHandler(hub *Hub, checkOrigin func(*http.Request) bool) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, upgrader: newUpgrader(checkOrigin)}
}

// ServeHTTP implements http.Handler for WebSocket connections.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.hub.logger.Warn("[ws] upgrade error", "error", err)
		return
	}

	client := NewClient(h.hub, conn)
	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
