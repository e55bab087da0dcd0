// Package hub fans store changes and connection status out to dashboard
// clients over websockets.
package hub

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/crisisdesk/alertdeck/server/backend"
	"github.com/crisisdesk/alertdeck/server/metrics"
	"github.com/crisisdesk/alertdeck/server/store"
	"github.com/crisisdesk/alertdeck/server/view"
)

// Message types sent to clients
const (
	TypeSnapshot = "snapshot"
	TypeAlert    = "alert"
	TypeCleared  = "cleared"
	TypeStatus   = "status"
)

// Message is one frame on the live feed.
type Message struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is the full state a client receives when it attaches.
type Snapshot struct {
	Alerts []backend.Alert `json:"alerts"`
	Stats  view.Stats      `json:"stats"`
	Status backend.Status  `json:"status"`
}

// AlertUpdate carries an added or replaced alert. Clients upsert by ID, so a
// change that raced with the snapshot is harmless when seen twice.
type AlertUpdate struct {
	Change store.ChangeKind `json:"change"`
	Alert  backend.Alert    `json:"alert"`
	Stats  view.Stats       `json:"stats"`
}

// SnapshotFunc builds the current state for a new client
type SnapshotFunc func() Snapshot

// Hub manages live feed connections. The Run loop owns the client set.
type Hub struct {
	logger   *zap.SugaredLogger
	snapshot SnapshotFunc
	upgrader websocket.Upgrader

	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	done      chan struct{}
	stopped   chan struct{}
	stopOnce  sync.Once
	connected atomic.Int64
}

// NewHub creates a hub. checkOrigin decides which browser origins may attach;
// nil allows same-origin requests only.
func NewHub(logger *zap.SugaredLogger, snapshot SnapshotFunc, checkOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		logger:   logger,
		snapshot: snapshot,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until Stop is called
func (h *Hub) Run() {
	defer close(h.stopped)

	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.setConnected()

			// Enqueued before any broadcast processed after registration
			if data := h.encode(TypeSnapshot, h.snapshot()); data != nil {
				client.send <- data
			}
			h.logger.Debugw("Live client connected", "clients", len(h.clients), "remote", client.remote)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.setConnected()
				h.logger.Debugw("Live client disconnected", "clients", len(h.clients), "remote", client.remote)
			}

		case data := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					// Slow client; it reconnects and gets a fresh snapshot
					delete(h.clients, client)
					close(client.send)
					h.logger.Warnw("Dropping slow live client", "remote", client.remote)
				}
			}
			h.setConnected()

		case <-h.done:
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.setConnected()
			return
		}
	}
}

// Stop disconnects every client and ends Run
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
	<-h.stopped
}

// Clients returns the number of attached clients
func (h *Hub) Clients() int {
	return int(h.connected.Load())
}

// PublishChange forwards a store change. It is used as a store subscriber.
func (h *Hub) PublishChange(change store.Change, stats view.Stats) {
	if change.Kind == store.ChangeCleared {
		h.publish(TypeCleared, stats)
		return
	}

	h.publish(TypeAlert, AlertUpdate{
		Change: change.Kind,
		Alert:  change.Alert,
		Stats:  stats,
	})
}

// PublishStatus forwards a connection status transition
func (h *Hub) PublishStatus(status backend.Status) {
	h.publish(TypeStatus, status)
}

// ServeHTTP upgrades the request and attaches the client
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		h.logger.Warnw("Failed to upgrade live feed connection", "error", err.Error(), "remote", r.RemoteAddr)
		return
	}

	client := newClient(h, conn, r.RemoteAddr)

	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (h *Hub) publish(kind string, data any) {
	encoded := h.encode(kind, data)
	if encoded == nil {
		return
	}

	select {
	case h.broadcast <- encoded:
	case <-h.done:
	}
}

func (h *Hub) encode(kind string, data any) []byte {
	encoded, err := json.Marshal(Message{Type: kind, Data: data, Timestamp: time.Now().UTC()})
	if err != nil {
		h.logger.Errorw("Failed to encode live feed message", "type", kind, "error", err.Error())
		return nil
	}
	return encoded
}

func (h *Hub) setConnected() {
	h.connected.Store(int64(len(h.clients)))
	metrics.LiveClients.Set(float64(len(h.clients)))
}
