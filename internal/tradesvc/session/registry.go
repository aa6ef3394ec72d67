package session

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Registry is the shared session directory mapping an authenticated
// username to its live session, so any session can route notifications
// to a counterpart. One instance per server, injected where needed.
type Registry struct {
	sessions sync.Map // username -> *Session
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register binds a username to its session. A second login for the
// same username replaces the first; the replaced session is returned
// so the caller can close it.
func (r *Registry) Register(username string, s *Session) *Session {
	prev, loaded := r.sessions.Swap(username, s)
	if !loaded {
		return nil
	}
	old := prev.(*Session)
	if old == s {
		return nil
	}
	log.Warnf("user %s logged in again, replacing existing session %s", username, old.ID)
	return old
}

// Unregister removes the binding, but only if it still points at s.
// A session replaced by a later login must not evict its successor
// during teardown.
func (r *Registry) Unregister(username string, s *Session) {
	r.sessions.CompareAndDelete(username, s)
}

func (r *Registry) Get(username string) (*Session, bool) {
	v, ok := r.sessions.Load(username)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

// Notify pushes an unsolicited message to the user's session, if one
// is live. Implements service.Notifier.
func (r *Registry) Notify(username string, payload any) bool {
	s, ok := r.Get(username)
	if !ok {
		return false
	}
	if err := s.Send(payload); err != nil {
		log.Errorf("Error notifying %s: %v", username, err)
		return false
	}
	return true
}
