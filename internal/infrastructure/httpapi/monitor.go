package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"vr-screenshotter/internal/domain"
	"vr-screenshotter/internal/usecase"
)

// MonitorHub forwards status hub events to websocket clients. New clients
// first receive the latest event of each type.
type MonitorHub struct {
	status   *usecase.StatusHub
	mu       sync.RWMutex
	clients  map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
	wmu      sync.Mutex
}

func NewMonitorHub(status *usecase.StatusHub) *MonitorHub {
	return &MonitorHub{
		status:   status,
		clients:  make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// Run pumps status events to clients until ctx ends.
func (h *MonitorHub) Run(ctx context.Context) {
	if h.status == nil {
		return
	}
	ch := h.status.Subscribe()
	defer h.status.Unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			h.Broadcast(ev)
		}
	}
}

func (h *MonitorHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	c, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.wmu.Lock()
	if h.status != nil {
		last := h.status.Last()
		sort.Slice(last, func(i, j int) bool { return last[i].Ts.Before(last[j].Ts) })
		for _, ev := range last {
			h.write(c, ev)
		}
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.wmu.Unlock()

	for {
		// reads only detect the client going away
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	_ = c.Close()
}

func (h *MonitorHub) Broadcast(ev domain.StatusEvent) {
	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	h.wmu.Lock()
	for _, c := range clients {
		h.write(c, ev)
	}
	h.wmu.Unlock()
}

// Clients returns the number of connected monitor clients.
func (h *MonitorHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *MonitorHub) write(c *websocket.Conn, ev domain.StatusEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_ = c.SetWriteDeadline(time.Now().Add(2 * time.Second))
	_ = c.WriteMessage(websocket.TextMessage, data)
}
