package bridge

import (
	"fmt"
	"sync"
)

// Session is the runtime record of one active bridged call. It exists from
// the moment the agent leg is negotiated until either socket closes.
type Session struct {
	StreamID       string
	ProviderCallID string
	CampaignID     string

	Telephony Conn
	Agent     AgentSession
}

// Registry maps a telephony stream id to its live session. It is explicitly
// owned state handed to the components that need it, not a package global.
//
// Invariant: at most one Session per stream id.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: map[string]*Session{}}
}

func (r *Registry) Register(s *Session) error {
	if s == nil || s.StreamID == "" {
		return fmt.Errorf("bridge: session stream id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[s.StreamID]; exists {
		return fmt.Errorf("bridge: session already registered for stream %s", s.StreamID)
	}
	r.sessions[s.StreamID] = s
	return nil
}

func (r *Registry) Get(streamID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[streamID]
	return s, ok
}

// Remove deletes the session for streamID; removing an absent id is a no-op.
func (r *Registry) Remove(streamID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, streamID)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Snapshot returns the current sessions; used for graceful shutdown.
func (r *Registry) Snapshot() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}
