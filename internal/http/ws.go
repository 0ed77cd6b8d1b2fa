package httpapi

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// WSSession represents a connected rider client waiting for session updates.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) Send(snap SessionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(snap)
}

// WSRegistry holds rider sessions keyed by user id.
type WSRegistry struct {
	mu       sync.RWMutex
	logger   *slog.Logger
	sessions map[string]*WSSession
}

func NewWSRegistry(logger *slog.Logger) *WSRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSRegistry{logger: logger, sessions: make(map[string]*WSSession)}
}

func (r *WSRegistry) Add(userID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.sessions[userID]; ok {
		_ = old.conn.Close()
	}
	r.sessions[userID] = &WSSession{conn: conn}
}

func (r *WSRegistry) Remove(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[userID]; ok {
		_ = s.conn.Close()
		delete(r.sessions, userID)
	}
}

// Push sends the snapshot to the rider's socket if one is connected.
// A missing socket is not an error; snapshots are best effort.
func (r *WSRegistry) Push(userID string, snap SessionSnapshot) {
	r.mu.RLock()
	s, ok := r.sessions[userID]
	r.mu.RUnlock()
	if !ok {
		return
	}
	if err := s.Send(snap); err != nil {
		r.logger.Warn("ws push failed", "user_id", userID, "error", err)
	}
}
