package ws

import (
	"sync"

	"go.uber.org/zap"

	"hextactics.gg/internal/protocol"
)

type session struct {
	playerID string
	binary   bool
	out      chan []byte
}

// Hub routes lobby notifications to connected sessions. It implements
// lobby.Notifier.
type Hub struct {
	log *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*session
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{log: logger, sessions: map[string]*session{}}
}

func (h *Hub) register(sess *session) {
	h.mu.Lock()
	h.sessions[sess.playerID] = sess
	h.mu.Unlock()
}

func (h *Hub) unregister(playerID string) {
	h.mu.Lock()
	delete(h.sessions, playerID)
	h.mu.Unlock()
}

// Connected reports the number of registered sessions.
func (h *Hub) Connected() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Notify encodes msg for playerID's session and queues it. Unknown players
// are ignored.
func (h *Hub) Notify(playerID string, msg any) {
	h.mu.RLock()
	sess := h.sessions[playerID]
	h.mu.RUnlock()
	if sess == nil {
		return
	}
	b, err := protocol.Marshal(msg, sess.binary)
	if err != nil {
		h.log.Warn("encode notification", zap.String("player_id", playerID), zap.Error(err))
		return
	}
	sendLatest(sess.out, b)
}

// sendLatest queues b, dropping the oldest queued frame when the queue is full.
func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
