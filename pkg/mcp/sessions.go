package mcp

import (
	"slices"
	"sync"
)

// WatchRegistry maps case IDs to the MCP sessions watching them.
type WatchRegistry struct {
	mu      sync.RWMutex
	watches map[string][]string // caseID → sessionIDs
}

// NewWatchRegistry creates a new empty WatchRegistry.
func NewWatchRegistry() *WatchRegistry {
	return &WatchRegistry{watches: make(map[string][]string)}
}

// Watch subscribes a session to a case. Watching twice is a no-op.
func (r *WatchRegistry) Watch(caseID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !slices.Contains(r.watches[caseID], sessionID) {
		r.watches[caseID] = append(r.watches[caseID], sessionID)
	}
}

// Unwatch removes a single subscription.
func (r *WatchRegistry) Unwatch(caseID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteLocked(caseID, sessionID)
}

// SessionsFor returns the sessions watching caseID.
func (r *WatchRegistry) SessionsFor(caseID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.watches[caseID])
}

// Remove deletes every subscription of a session.
// Called when a session disconnects.
func (r *WatchRegistry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for caseID := range r.watches {
		r.deleteLocked(caseID, sessionID)
	}
}

func (r *WatchRegistry) deleteLocked(caseID, sessionID string) {
	sessions := slices.DeleteFunc(r.watches[caseID], func(s string) bool { return s == sessionID })
	if len(sessions) == 0 {
		delete(r.watches, caseID)
		return
	}
	r.watches[caseID] = sessions
}
