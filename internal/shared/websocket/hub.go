package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/cristianortiz/auctionEngine/internal/shared/logger"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Subscribers only send control frames.
	maxMessageSize = 512

	sendBuffer    = 16
	controlBuffer = 64
)

// Hub keeps client's registry and fans lot updates out to the subscribers of each lot.
type Hub struct {
	// Registered clients, grouped by lot ID. Written only by Run.
	mu      sync.RWMutex
	clients map[int64]map[*Client]bool

	broadcast  chan *Message
	register   chan *Client
	unregister chan *Client
}

// Client represents a ws individual connection
type Client struct {
	Hub *Hub
	// The websocket connection, nil in tests.
	Conn *websocket.Conn
	// Buffered channel of outbound messages.
	Send chan []byte
	// The lot this client is subscribed to.
	LotID int64
	ID    string
}

type Message struct {
	LotID int64
	Data  []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]bool),
		broadcast:  make(chan *Message, controlBuffer*4),
		register:   make(chan *Client, controlBuffer),
		unregister: make(chan *Client, controlBuffer),
	}
}

func NewClient(hub *Hub, conn *websocket.Conn, lotID int64) *Client {
	return &Client{
		Hub:   hub,
		Conn:  conn,
		Send:  make(chan []byte, sendBuffer),
		LotID: lotID,
		ID:    uuid.NewString(),
	}
}

// Run starts the hub listening in their channels
func (h *Hub) Run(ctx context.Context) {
	log.Info("Websocket Hub started")
	for {
		select {
		case <-ctx.Done():
			log.Info("WebSocket Hub shutting down due to context cancellation")
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.clients[client.LotID]; !ok {
				h.clients[client.LotID] = make(map[*Client]bool)
			}
			h.clients[client.LotID][client] = true
			total := h.totalLocked()
			h.mu.Unlock()

			log.Info("Client registered",
				zap.String("clientID", client.ID),
				zap.Int64("lotID", client.LotID),
				zap.Int("total_clients", total),
			)

		case client := <-h.unregister:
			h.mu.Lock()
			removed := h.removeLocked(client)
			total := h.totalLocked()
			h.mu.Unlock()

			if removed {
				log.Info("Client unregistered",
					zap.String("clientID", client.ID),
					zap.Int64("lotID", client.LotID),
					zap.Int("total_clients", total),
				)
			}

		case message := <-h.broadcast:
			h.mu.Lock()
			clients := h.clients[message.LotID]
			log.Debug("Broadcasting message to lot", zap.Int64("lotID", message.LotID), zap.Int("clients", len(clients)))
			for client := range clients {
				select {
				case client.Send <- message.Data:
				default:
					// a subscriber that cannot keep up is dropped
					h.removeLocked(client)
					log.Warn("Failed to Send message to client, unregistering",
						zap.String("clientID", client.ID),
						zap.Int64("lotID", client.LotID),
					)
				}
			}
			h.mu.Unlock()
		}
	}
}

// removeLocked must be called with mu held.
func (h *Hub) removeLocked(client *Client) bool {
	clients, ok := h.clients[client.LotID]
	if !ok {
		return false
	}
	if _, ok := clients[client]; !ok {
		return false
	}
	delete(clients, client)
	close(client.Send)
	if len(clients) == 0 {
		delete(h.clients, client.LotID)
		log.Debug("Lot group removed as empty", zap.Int64("lotID", client.LotID))
	}
	return true
}

func (h *Hub) totalLocked() int {
	count := 0
	for _, lotClients := range h.clients {
		count += len(lotClients)
	}
	return count
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.clients {
		for client := range clients {
			h.removeLocked(client)
		}
	}
}

// ClientCount reports how many clients are subscribed to lotID.
func (h *Hub) ClientCount(lotID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[lotID])
}

// RegisterClient register a new client in the hub
func (h *Hub) RegisterClient(client *Client) bool {
	select {
	case h.register <- client:
		log.Debug("Client queued for registration",
			zap.String("clientID", client.ID),
			zap.Int64("lotID", client.LotID),
		)
		return true
	default:
		log.Error("Register channel is full, client registration failed",
			zap.String("clientID", client.ID),
			zap.Int64("lotID", client.LotID),
		)
		return false
	}
}

// UnregisterClient delete a client from the hub
func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	default:
		log.Error("Unregister channel is full, client unregistration failed",
			zap.String("clientID", client.ID),
			zap.Int64("lotID", client.LotID),
		)
	}
}

// BroadcastMessageToLot queues data for every client subscribed to lotID. It never blocks.
func (h *Hub) BroadcastMessageToLot(lotID int64, data []byte) {
	select {
	case h.broadcast <- &Message{LotID: lotID, Data: data}:
		log.Debug("Message queued for broadcast", zap.Int64("lotID", lotID))
	default:
		log.Error("Broadcast channel is full, message dropped", zap.Int64("lotID", lotID))
	}
}

// ReadPump keeps the read side alive so pongs and close frames are processed.
// Anything else a subscriber sends is discarded. It returns when the peer goes away.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.UnregisterClient(c)
		log.Debug("ReadPump stopped for client", zap.String("clientID", c.ID), zap.Int64("lotID", c.LotID))
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { return c.Conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("WebSocket read error",
					zap.String("clientID", c.ID),
					zap.Int64("lotID", c.LotID),
					zap.Error(err),
				)
			}
			return
		}
		log.Debug("Ignoring message from subscriber",
			zap.String("clientID", c.ID),
			zap.Int("bytes", len(message)),
		)
	}
}

// WritePump pumps messages from the hub to the websocket connection.
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// invoking WriteControl and WriteMessage from a single goroutine.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Hub.UnregisterClient(c)
		_ = c.Conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			err := c.Conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			if err != nil {
				log.Debug("Failed to send close control message", zap.String("clientID", c.ID), zap.Error(err))
			}
			return

		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The Hub closed the channel.
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// one JSON document per frame
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Warn("Failed to write message to client",
					zap.String("clientID", c.ID),
					zap.Int64("lotID", c.LotID),
					zap.Error(err),
				)
				return
			}

		case <-ticker.C:
			if err := c.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug("Failed to write ping message to client", zap.String("clientID", c.ID), zap.Error(err))
				return
			}
		}
	}
}
