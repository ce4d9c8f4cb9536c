// Package session tracks live participants: the PlayerID issued to each
// transport session, its outbox, and the rooms it currently occupies.
package session

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/cory-johannsen/arena/internal/game/room"
)

// Membership names one room a session occupies.
type Membership struct {
	Kind room.Kind
	Code string
}

// Session is one live participant.
type Session struct {
	// ID is the participant identity for the life of this transport session.
	ID room.PlayerID
	// RemoteAddr is the peer address reported by the transport (for logging).
	RemoteAddr string
	// Transport names the carrying transport, e.g. "websocket" or "telnet".
	Transport string
	// ConnectedAt is when the session was opened.
	ConnectedAt time.Time
	// Outbox receives every message addressed to this participant.
	Outbox *Outbox

	limiter *rate.Limiter
}

// Allow reports whether one more inbound message fits the session's rate limit.
func (s *Session) Allow() bool {
	return s.limiter.Allow()
}

// Options configures sessions opened by a Manager.
type Options struct {
	// OutboxSize is the per-session outbound buffer length.
	OutboxSize int
	// RateLimit is the sustained inbound messages per second; <= 0 disables limiting.
	RateLimit float64
	// RateBurst is the inbound burst allowance.
	RateBurst int
}

// Manager tracks all live sessions and their room memberships.
// All methods are safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	opts     Options
	sessions map[room.PlayerID]*Session
	rooms    map[room.PlayerID]map[Membership]struct{}
	current  map[room.PlayerID]map[room.Kind]string
}

// NewManager creates an empty session Manager.
func NewManager(opts Options) *Manager {
	return &Manager{
		opts:     opts,
		sessions: make(map[room.PlayerID]*Session),
		rooms:    make(map[room.PlayerID]map[Membership]struct{}),
		current:  make(map[room.PlayerID]map[room.Kind]string),
	}
}

// Open registers a new session with a freshly issued PlayerID.
//
// Postcondition: Returns a Session with a unique ID and an open Outbox.
func (m *Manager) Open(remoteAddr, transport string) *Session {
	limit := rate.Inf
	if m.opts.RateLimit > 0 {
		limit = rate.Limit(m.opts.RateLimit)
	}
	burst := m.opts.RateBurst
	if burst <= 0 {
		burst = 1
	}

	id := room.PlayerID(uuid.NewString())
	sess := &Session{
		ID:          id,
		RemoteAddr:  remoteAddr,
		Transport:   transport,
		ConnectedAt: time.Now(),
		Outbox:      NewOutbox(id, m.opts.OutboxSize),
		limiter:     rate.NewLimiter(limit, burst),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = sess
	m.rooms[id] = make(map[Membership]struct{})
	m.current[id] = make(map[room.Kind]string)
	return sess
}

// Close removes a session and closes its outbox.
//
// Postcondition: Returns the memberships the session still held, ordered by
// kind then code, or an error if the session is unknown.
func (m *Manager) Close(id room.PlayerID) ([]Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %q not found", id)
	}
	held := m.membershipsLocked(id)

	_ = sess.Outbox.Close()
	delete(m.sessions, id)
	delete(m.rooms, id)
	delete(m.current, id)
	return held, nil
}

// Get returns the session for id.
//
// Postcondition: Returns (session, true) if found, or (nil, false) otherwise.
func (m *Manager) Get(id room.PlayerID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

// Join records that id holds a seat in (kind, code) and makes it the
// session's current room of that kind.
//
// Postcondition: Returns an error if the session is unknown.
func (m *Manager) Join(id room.PlayerID, kind room.Kind, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.rooms[id]
	if !ok {
		return fmt.Errorf("session %q not found", id)
	}
	set[Membership{Kind: kind, Code: code}] = struct{}{}
	m.current[id][kind] = code
	return nil
}

// Leave forgets id's seat in (kind, code), clearing the current room of that
// kind when it matches.
func (m *Manager) Leave(id room.PlayerID, kind room.Kind, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if set, ok := m.rooms[id]; ok {
		delete(set, Membership{Kind: kind, Code: code})
	}
	if cur, ok := m.current[id]; ok && cur[kind] == code {
		delete(cur, kind)
	}
}

// Current returns the room of the given kind id joined most recently and still occupies.
func (m *Manager) Current(id room.PlayerID, kind room.Kind) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	code, ok := m.current[id][kind]
	return code, ok
}

// Memberships returns every room id occupies, ordered by kind then code.
func (m *Manager) Memberships(id room.PlayerID) []Membership {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.membershipsLocked(id)
}

func (m *Manager) membershipsLocked(id room.PlayerID) []Membership {
	out := make([]Membership, 0, len(m.rooms[id]))
	for ms := range m.rooms[id] {
		out = append(out, ms)
	}
	slices.SortFunc(out, func(a, b Membership) int {
		if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
			return c
		}
		return cmp.Compare(a.Code, b.Code)
	})
	return out
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
