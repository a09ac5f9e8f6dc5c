package bridge

import "sync"

// SessionState is the liveness of a client session.
type SessionState int

// Session states.
const (
	StateConnecting SessionState = iota
	StateOpen
	StateClosed
)

// String returns the state name.
func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is one connected dashboard. The transport owns the connection;
// the Roster only tracks membership.
type Session interface {
	ID() string
	State() SessionState
	// Send queues payload without blocking. It returns ErrSessionClosed or
	// ErrSendBufferFull when the payload cannot be delivered.
	Send(payload []byte) error
	Close() error
}

// Roster is the set of connected sessions.
//
// Thread Safety: all methods are safe for concurrent use. Callbacks run
// without the roster lock held.
type Roster struct {
	mu       sync.Mutex
	sessions map[string]Session
}

// NewRoster creates an empty roster.
func NewRoster() *Roster {
	return &Roster{sessions: make(map[string]Session)}
}

// Add registers a session. Adding the same ID twice replaces the entry.
func (r *Roster) Add(s Session) {
	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()
}

// Remove drops a session and reports whether it was present.
func (r *Roster) Remove(s Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID()]; !ok {
		return false
	}
	delete(r.sessions, s.ID())
	return true
}

// Count returns the number of tracked sessions.
func (r *Roster) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// ForEachOpen calls fn for every open session. Sessions found closed are
// removed; sessions still connecting are skipped but kept.
func (r *Roster) ForEachOpen(fn func(Session)) {
	for _, s := range r.members() {
		switch s.State() {
		case StateOpen:
			fn(s)
		case StateClosed:
			r.Remove(s)
		}
	}
}

// Broadcast sends payload to every open session. A failed send drops and
// closes that session; it never affects delivery to the others.
func (r *Roster) Broadcast(payload []byte) (sent, failed int) {
	r.ForEachOpen(func(s Session) {
		if err := s.Send(payload); err != nil {
			failed++
			r.Remove(s)
			s.Close() //nolint:errcheck // session is being dropped
			return
		}
		sent++
	})
	return sent, failed
}

func (r *Roster) members() []Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}
