package remote

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"vr-screenshotter/internal/domain"
)

const writeTimeout = 5 * time.Second

// Session is one connected websocket client.
type Session struct {
	id          string
	addr        string
	connectedAt time.Time
	conn        *websocket.Conn
	// gorilla/websocket allows a single concurrent writer
	writeMu sync.Mutex
	alive   atomic.Bool

	received  atomic.Int64
	delivered atomic.Int64
	dropped   atomic.Int64
}

func newSession(id string, conn *websocket.Conn, addr string) *Session {
	s := &Session{id: id, addr: addr, connectedAt: time.Now().UTC(), conn: conn}
	s.alive.Store(true)
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) Alive() bool { return s.alive.Load() }

func (s *Session) writeText(payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *Session) close() {
	s.alive.Store(false)
	s.writeMu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
	s.writeMu.Unlock()
	_ = s.conn.Close()
}

func (s *Session) info() domain.RemoteSessionInfo {
	return domain.RemoteSessionInfo{
		ID:          s.id,
		ClientAddr:  s.addr,
		ConnectedAt: s.connectedAt,
		Alive:       s.alive.Load(),
		Messages: domain.MessageCounters{
			Received:  s.received.Load(),
			Delivered: s.delivered.Load(),
			Dropped:   s.dropped.Load(),
		},
	}
}
