package memory

import "sync"

// ListenerRegistry tracks listener membership per session. Membership is
// connection-local state, so it always lives in process memory regardless of
// the session store backend.
type ListenerRegistry struct {
	mu       sync.RWMutex
	members  map[string]map[string]struct{} // code -> connection ids
	sessions map[string]string              // connection id -> code
}

func NewListenerRegistry() *ListenerRegistry {
	return &ListenerRegistry{
		members:  make(map[string]map[string]struct{}),
		sessions: make(map[string]string),
	}
}

// Add inserts membership and returns the new size. A connection belongs to at
// most one session: re-subscribing moves it, and a duplicate add is a no-op.
func (r *ListenerRegistry) Add(code string, connectionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.sessions[connectionID]; ok && prev != code {
		r.removeLocked(prev, connectionID)
	}

	set, ok := r.members[code]
	if !ok {
		set = make(map[string]struct{})
		r.members[code] = set
	}
	set[connectionID] = struct{}{}
	r.sessions[connectionID] = code
	return len(set)
}

// Remove deletes membership if present. Returns the new size, 0 for an
// unknown session; never an error.
func (r *ListenerRegistry) Remove(code string, connectionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(code, connectionID)
	return len(r.members[code])
}

func (r *ListenerRegistry) removeLocked(code string, connectionID string) {
	set, ok := r.members[code]
	if !ok {
		return
	}
	if _, member := set[connectionID]; !member {
		return
	}
	delete(set, connectionID)
	delete(r.sessions, connectionID)
	if len(set) == 0 {
		delete(r.members, code)
	}
}

func (r *ListenerRegistry) Count(code string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members[code])
}

func (r *ListenerRegistry) SessionOf(connectionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	code, ok := r.sessions[connectionID]
	return code, ok
}

// Drop clears all membership for a session and returns the removed ids.
func (r *ListenerRegistry) Drop(code string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.members[code]
	if !ok {
		return nil
	}
	removed := make([]string, 0, len(set))
	for connectionID := range set {
		removed = append(removed, connectionID)
		delete(r.sessions, connectionID)
	}
	delete(r.members, code)
	return removed
}
