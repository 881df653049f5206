package server

import "sync"

// registry is the process-wide session table. It enforces the connection
// cap and the one-connection-per-session rule: a second connection for a
// session id displaces the first.
type registry struct {
	mu   sync.RWMutex
	max  int
	byID map[string]*session
}

func newRegistry(max int) *registry {
	return &registry{max: max, byID: make(map[string]*session)}
}

// hasCapacity reports whether a connection for id could be admitted right
// now. Reconnecting an existing session id reuses its slot, so it is
// always admissible.
func (r *registry) hasCapacity(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, reuse := r.byID[id]; reuse {
		return true
	}
	return r.max <= 0 || len(r.byID) < r.max
}

// add registers s and returns the session it displaced, if any. It fails
// when the table is full and s would not reuse an existing slot.
func (r *registry) add(s *session) (*session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, reuse := r.byID[s.id]
	if !reuse && r.max > 0 && len(r.byID) >= r.max {
		return nil, false
	}
	r.byID[s.id] = s
	return prev, true
}

// remove deletes s only while it is still the registered occupant of its
// slot, so a displaced session tearing down cannot evict its replacement.
func (r *registry) remove(s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byID[s.id] == s {
		delete(r.byID, s.id)
	}
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// snapshot returns the current sessions for iteration outside the lock.
func (r *registry) snapshot() []*session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*session, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, s)
	}
	return out
}
