package remote

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"vr-screenshotter/internal/domain"
)

// MessageHandler receives every inbound text frame.
type MessageHandler interface {
	HandleMessage(session domain.SessionRef, raw []byte) error
}

type StatusPublisher interface {
	Publish(ev domain.StatusEvent)
}

type Metrics interface {
	SetActiveSessions(n int)
	Message(direction string)
}

// Server is the remote socket server and its session registry. The registry
// is the only state touched directly from network goroutines.
type Server struct {
	logger   *zerolog.Logger
	status   StatusPublisher
	metrics  Metrics
	upgrader websocket.Upgrader

	handler atomic.Value // MessageHandler

	mu      sync.Mutex // guards srv, ln
	srv     *http.Server
	ln      net.Listener
	running atomic.Bool

	smu      sync.RWMutex
	sessions map[string]*Session

	received  atomic.Int64
	delivered atomic.Int64
	dropped   atomic.Int64
}

func NewServer(logger *zerolog.Logger, status StatusPublisher, metrics Metrics) *Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Server{
		logger:   logger,
		status:   status,
		metrics:  metrics,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		sessions: make(map[string]*Session),
	}
}

// SetHandler installs the inbound message handler. It may be called before
// or after Start.
func (s *Server) SetHandler(h MessageHandler) { s.handler.Store(h) }

func (s *Server) Running() bool { return s.running.Load() }

// Addr returns the bound listener address, empty while stopped.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Start stops any running listener and opens a new one on port (0 picks a
// free port).
func (s *Server) Start(port int) error {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		s.logger.Error().Err(err).Int("port", port).Msg("remote server failed to start")
		s.publish("error", 0, err.Error())
		return fmt.Errorf("listen on %d: %w", port, err)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWS)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	s.srv, s.ln = srv, ln
	s.running.Store(true)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("remote server stopped")
		}
	}()
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("remote server listening")
	s.publish("connected", 1, ln.Addr().String())
	return nil
}

// Stop closes the listener and every session. It always reports a
// disconnected status.
func (s *Server) Stop() {
	s.mu.Lock()
	srv := s.srv
	s.srv, s.ln = nil, nil
	s.running.Store(false)
	s.mu.Unlock()

	if srv != nil {
		_ = srv.Close()
	}
	for _, sess := range s.snapshot() {
		sess.close()
		s.OnDisconnect(sess)
	}
	s.publish("disconnected", 0, "")
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	c, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	sess := newSession(uuid.NewString(), c, r.RemoteAddr)
	s.OnConnect(sess)
	defer func() {
		s.OnDisconnect(sess)
		sess.alive.Store(false)
		_ = c.Close()
	}()
	for {
		mt, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		sess.received.Add(1)
		s.received.Add(1)
		s.countMessage("received")
		s.publish("received", int(s.received.Load()), "")
		if h, ok := s.handler.Load().(MessageHandler); ok && h != nil {
			if err := h.HandleMessage(sess, data); err != nil {
				s.logger.Debug().Err(err).Str("session", sess.id).Msg("message not dispatched")
			}
		}
	}
}

func (s *Server) OnConnect(sess *Session) {
	s.smu.Lock()
	s.sessions[sess.id] = sess
	n := len(s.sessions)
	s.smu.Unlock()
	s.logger.Info().Str("session", sess.id).Str("addr", sess.addr).Msg("remote client connected")
	s.sessionCount(n)
}

// OnDisconnect removes sess; unknown sessions are ignored.
func (s *Server) OnDisconnect(sess *Session) {
	s.smu.Lock()
	_, ok := s.sessions[sess.id]
	delete(s.sessions, sess.id)
	n := len(s.sessions)
	s.smu.Unlock()
	if ok {
		s.logger.Info().Str("session", sess.id).Msg("remote client disconnected")
	}
	s.sessionCount(n)
}

// Send delivers payload to one session, or to everyone when session is nil
// or the server is not running.
func (s *Server) Send(session domain.SessionRef, payload []byte) {
	if session == nil || !s.Running() {
		s.Broadcast(payload)
		return
	}
	s.smu.RLock()
	sess := s.sessions[session.ID()]
	s.smu.RUnlock()
	if sess == nil {
		s.dropped.Add(1)
		s.countMessage("dropped")
		s.logger.Debug().Str("session", session.ID()).Msg("reply dropped: session gone")
		return
	}
	s.deliver(sess, payload)
}

// Broadcast writes payload to every session in the current snapshot.
func (s *Server) Broadcast(payload []byte) {
	for _, sess := range s.snapshot() {
		if !sess.Alive() {
			continue
		}
		s.deliver(sess, payload)
	}
}

func (s *Server) deliver(sess *Session, payload []byte) {
	if err := sess.writeText(payload); err != nil {
		sess.alive.Store(false)
		sess.dropped.Add(1)
		s.dropped.Add(1)
		s.countMessage("dropped")
		s.logger.Debug().Err(err).Str("session", sess.id).Msg("write to session failed")
		return
	}
	sess.delivered.Add(1)
	n := s.delivered.Add(1)
	s.countMessage("delivered")
	s.publish("delivered", int(n), "")
}

// Sessions returns a view of the connected sessions ordered by connect time.
func (s *Server) Sessions() []domain.RemoteSessionInfo {
	snap := s.snapshot()
	out := make([]domain.RemoteSessionInfo, 0, len(snap))
	for _, sess := range snap {
		out = append(out, sess.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConnectedAt.Before(out[j].ConnectedAt) })
	return out
}

func (s *Server) Status() domain.ServerStatus {
	s.smu.RLock()
	n := len(s.sessions)
	s.smu.RUnlock()
	return domain.ServerStatus{
		Running:   s.Running(),
		Addr:      s.Addr(),
		Sessions:  n,
		Received:  s.received.Load(),
		Delivered: s.delivered.Load(),
		Dropped:   s.dropped.Load(),
	}
}

func (s *Server) snapshot() []*Session {
	s.smu.RLock()
	defer s.smu.RUnlock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

func (s *Server) sessionCount(n int) {
	if s.metrics != nil {
		s.metrics.SetActiveSessions(n)
	}
	s.publish("sessions", n, "")
}

func (s *Server) countMessage(direction string) {
	if s.metrics != nil {
		s.metrics.Message(direction)
	}
}

func (s *Server) publish(name string, value int, text string) {
	if s.status == nil {
		return
	}
	s.status.Publish(domain.StatusEvent{Type: domain.StatusServer, Name: name, Value: value, Text: text})
}
