package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/abrezinsky/blockvote/internal/logger"
	"github.com/abrezinsky/blockvote/internal/models"
)

const (
	// MessageStatusSnapshot is sent once to every new client
	MessageStatusSnapshot = "election-statuses"

	sendBuffer      = 256
	broadcastBuffer = 256
	pongWait        = 60 * time.Second
	pingPeriod      = 54 * time.Second
	writeWait       = 10 * time.Second

	// DefaultStatusInterval is how often WatchStatuses looks for window transitions
	DefaultStatusInterval = time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced by the router
	},
}

// StatusSource lists elections with their status at read time
type StatusSource interface {
	ListElections(ctx context.Context) ([]models.ElectionView, error)
}

// StatusChange is the payload of election-status messages
type StatusChange struct {
	ElectionID int64         `json:"election_id"`
	Status     models.Status `json:"status"`
}

// Hub maintains the set of active clients and fans committed ledger events out to them
type Hub struct {
	log        logger.Logger
	clients    map[*Client]bool
	broadcast  chan models.WSMessage
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mutex      sync.RWMutex
	elections  StatusSource

	statusMu sync.Mutex
	statuses map[int64]models.Status
}

// Client is a middleman between the websocket connection and the hub
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan models.WSMessage
}

// New creates a new Hub instance with injected dependencies
func New(log logger.Logger, elections StatusSource) *Hub {
	return &Hub{
		log:        log,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan models.WSMessage, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		elections:  elections,
		statuses:   make(map[int64]models.Status),
	}
}

// Start begins the hub's main loop in a goroutine. The loop exits and
// disconnects every client when ctx is cancelled.
func (h *Hub) Start(ctx context.Context) {
	go h.run(ctx)
}

// run handles client registration/unregistration and message broadcasting
func (h *Hub) run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()
			h.log.Debug("Hub stopped")
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			h.log.Debug("Client connected", "total_clients", total)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.log.Debug("Client disconnected", "total_clients", total)

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow client, drop it rather than stall everyone else
					delete(h.clients, client)
					close(client.send)
					h.log.Warn("Dropped slow websocket client")
				}
			}
			h.mutex.Unlock()
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// BroadcastMessage queues a message for every connected client. It never
// blocks; when the queue is full the message is dropped.
func (h *Hub) BroadcastMessage(msgType string, payload interface{}) {
	select {
	case h.broadcast <- models.WSMessage{Type: msgType, Payload: payload}:
	default:
		h.log.Warn("Broadcast queue full, dropping message", "type", msgType)
	}
}

// Publish implements services.Broadcaster
func (h *Hub) Publish(evt models.Event) {
	h.BroadcastMessage(string(evt.Type), evt)
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("WebSocket error", "error", err)
			}
			break
		}

		// The feed is one-way; client messages are only logged
		var msg models.WSMessage
		if err := json.Unmarshal(message, &msg); err == nil {
			c.hub.log.Debug("Received message", "type", msg.Type)
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
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

// ServeWs upgrades the request and subscribes the client to the event feed.
// The first message is a snapshot of every election's current status.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("WebSocket upgrade error", "error", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan models.WSMessage, sendBuffer),
	}
	if snapshot, err := h.snapshot(r.Context()); err != nil {
		h.log.Warn("Failed to load election statuses", "error", err)
	} else {
		client.send <- models.WSMessage{Type: MessageStatusSnapshot, Payload: snapshot}
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (h *Hub) snapshot(ctx context.Context) ([]StatusChange, error) {
	views, err := h.elections.ListElections(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]StatusChange, 0, len(views))
	for _, v := range views {
		out = append(out, StatusChange{ElectionID: v.ID, Status: v.Status})
	}
	return out, nil
}

// WatchStatuses polls election statuses until ctx is cancelled and broadcasts
// an election-status message whenever a window opens or closes
func (h *Hub) WatchStatuses(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultStatusInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.checkStatuses(ctx)
	for {
		select {
		case <-ctx.Done():
			h.log.Info("Election status watcher stopped")
			return
		case <-ticker.C:
			h.checkStatuses(ctx)
		}
	}
}

// checkStatuses compares current statuses with the last observed ones.
// Elections seen for the first time are recorded without a broadcast.
func (h *Hub) checkStatuses(ctx context.Context) {
	views, err := h.elections.ListElections(ctx)
	if err != nil {
		if ctx.Err() == nil {
			h.log.Warn("Failed to poll election statuses", "error", err)
		}
		return
	}

	h.statusMu.Lock()
	defer h.statusMu.Unlock()

	seen := make(map[int64]bool, len(views))
	for _, v := range views {
		seen[v.ID] = true
		prev, known := h.statuses[v.ID]
		h.statuses[v.ID] = v.Status
		if !known || prev == v.Status {
			continue
		}
		h.log.Info("Election status changed", "election_id", v.ID, "from", string(prev), "to", string(v.Status))
		h.BroadcastMessage(string(models.EventElectionStatus), StatusChange{ElectionID: v.ID, Status: v.Status})
	}
	for id := range h.statuses {
		if !seen[id] {
			delete(h.statuses, id)
		}
	}
}
