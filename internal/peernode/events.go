package peernode

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/klingon-exchange/lamportledger/pkg/logging"
)

// Event is one notification pushed to /events subscribers: a ledger
// append or a queue insertion. Removals from the queues are not reported
// as events of their own. It is observability-only; nothing in the
// ordering protocol depends on delivery.
type Event struct {
	Kind string `json:"kind"` // "ledger_append", "queue_insert"
	Data any    `json:"data"`
}

// Hub fans Event values out to every connected /events websocket client.
// A slow or gone client is dropped rather than allowed to back-pressure
// the engine; the feed is best-effort.
type Hub struct {
	mu      sync.Mutex
	clients map[*hubClient]struct{}
	log     *logging.Logger
}

type hubClient struct {
	conn *websocket.Conn
	send chan Event
}

// NewHub returns an empty event hub.
func NewHub(log *logging.Logger) *Hub {
	if log == nil {
		log = logging.Default()
	}
	return &Hub{clients: make(map[*hubClient]struct{}), log: log.Component("events")}
}

// Broadcast pushes ev to every connected client, non-blocking.
func (h *Hub) Broadcast(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			h.log.Warn("dropping slow events subscriber")
			h.removeLocked(c)
		}
	}
}

func (h *Hub) removeLocked(c *hubClient) {
	delete(h.clients, c)
	close(c.send)
	c.conn.Close()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeHTTP upgrades the request to a websocket and streams events until
// the client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("events upgrade failed", "err", err)
		return
	}

	client := &hubClient{conn: conn, send: make(chan Event, 32)}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[client]; ok {
			h.removeLocked(client)
		}
		h.mu.Unlock()
	}()

	// Drain (and discard) inbound frames so control frames (ping/close)
	// are handled by gorilla/websocket's read loop.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	for ev := range client.send {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}
