package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/trainbook/internal/transport"
)

var ErrRegistryClosed = errors.New("session registry closed")

// Registry is the server-wide table of active sessions keyed by connection
// id. Ids come from a single counter and are never reused.
type Registry struct {
	mu       sync.Mutex
	nextID   uint64
	sessions map[uint64]*Session
	closed   bool

	now func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[uint64]*Session),
		now:      time.Now,
	}
}

// Register assigns the next connection id to conn and records the session.
// After CloseAll it refuses new sessions with ErrRegistryClosed.
func (r *Registry) Register(conn transport.Conn) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}

	r.nextID++
	s := &Session{
		ID:          r.nextID,
		Conn:        conn,
		RemoteAddr:  conn.RemoteAddr(),
		ConnectedAt: r.now(),
	}
	r.sessions[s.ID] = s
	return s, nil
}

// Deregister removes the session if present. It reports whether this call
// removed it, so exactly one of any number of concurrent calls returns true.
func (r *Registry) Deregister(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Snapshot returns the current sessions ordered by id.
func (r *Registry) Snapshot() []*Session {
	r.mu.Lock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ForEach calls fn for every session present when the call started. fn runs
// without the registry lock held, so it may deregister sessions.
func (r *Registry) ForEach(fn func(*Session)) {
	for _, s := range r.Snapshot() {
		fn(s)
	}
}

// CloseAll stops accepting registrations and closes every active
// connection, unblocking their pending receives. It returns how many
// connections were closed.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	n := 0
	r.ForEach(func(s *Session) {
		_ = s.Conn.Close()
		n++
	})
	return n
}
