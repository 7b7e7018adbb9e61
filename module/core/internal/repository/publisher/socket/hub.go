// Package socket fans realtime events out to websocket clients grouped in
// tenant and vehicle rooms.
package socket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nandanugg/fleet-gps/module/core/domain"
	"github.com/nandanugg/fleet-gps/module/core/internal/repository/publisher"
)

var _ publisher.EventPublisher = (*Hub)(nil)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	DefaultSendBuffer = 64
)

// Hub tracks connected clients by room.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Client]struct{}
	buffer int
}

// Client is one websocket connection. Rooms is guarded by Hub.mu.
type Client struct {
	ID       string
	tenantID string
	conn     *websocket.Conn
	send     chan []byte
	rooms    map[string]struct{}
	done     chan struct{}
	once     sync.Once
}

type controlMessage struct {
	Action    string `json:"action"`
	VehicleID string `json:"vehicleId"`
}

func NewHub(sendBuffer int) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	return &Hub{
		rooms:  make(map[string]map[*Client]struct{}),
		buffer: sendBuffer,
	}
}

func (h *Hub) newClient(tenantID string, conn *websocket.Conn) *Client {
	return &Client{
		ID:       uuid.NewString(),
		tenantID: tenantID,
		conn:     conn,
		send:     make(chan []byte, h.buffer),
		rooms:    make(map[string]struct{}),
		done:     make(chan struct{}),
	}
}

// Publish queues the event for every client in the tenant room or the
// vehicle room. A client present in both receives it once. Clients whose
// buffer is full miss the event.
func (h *Hub) Publish(_ context.Context, e *domain.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	h.mu.RLock()
	recipients := make(map[*Client]struct{})
	for _, room := range []string{domain.TenantChannel(e.TenantID), domain.VehicleChannel(e.TenantID, e.VehicleID)} {
		for c := range h.rooms[room] {
			recipients[c] = struct{}{}
		}
	}
	h.mu.RUnlock()

	for c := range recipients {
		select {
		case c.send <- body:
		default:
			slog.Warn("websocket client buffer full, dropping event", "client", c.ID, "tenant", e.TenantID, "event", e.Type)
		}
	}
	return nil
}

// Serve registers the connection and blocks until it closes.
func (h *Hub) Serve(conn *websocket.Conn, tenantID, vehicleID string) {
	c := h.newClient(tenantID, conn)
	h.join(c, domain.TenantChannel(tenantID))
	if vehicleID != "" {
		h.join(c, domain.VehicleChannel(tenantID, vehicleID))
	}
	slog.Info("websocket client registered", "client", c.ID, "tenant", tenantID, "vehicle", vehicleID)

	go h.writePump(c)
	h.readPump(c)

	h.unregister(c)
	c.close()
	_ = conn.Close()
	slog.Info("websocket client unregistered", "client", c.ID, "tenant", tenantID)
}

// Clients returns the number of clients connected for a tenant.
func (h *Hub) Clients(tenantID string) int {
	return h.RoomSize(domain.TenantChannel(tenantID))
}

func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c, room)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range c.rooms {
		h.removeLocked(c, room)
	}
}

func (h *Hub) removeLocked(c *Client, room string) {
	delete(c.rooms, room)
	members := h.rooms[room]
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

func (h *Hub) readPump(c *Client) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket closed unexpectedly", "client", c.ID, "err", err)
			}
			return
		}

		var msg controlMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.VehicleID == "" {
			continue
		}
		room := domain.VehicleChannel(c.tenantID, msg.VehicleID)
		switch msg.Action {
		case "join":
			h.join(c, room)
		case "leave":
			h.leave(c, room)
		}
	}
}

func (h *Hub) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case body := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, body); err != nil {
				_ = c.conn.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.conn.Close()
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}

func (c *Client) close() {
	c.once.Do(func() { close(c.done) })
}
