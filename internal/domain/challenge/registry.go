// Package challenge tracks pending login verifications. The registry is an
// injected dependency so tests and multiple server instances never share
// hidden global state.
package challenge

import (
	"sync"

	"autopost-server-go/internal/domain/social"
)

// Registry holds pending challenges keyed by account username. At most one
// challenge per account is pending; a newer login attempt replaces the
// older entry.
type Registry struct {
	mutex   sync.RWMutex
	pending map[string]*social.Challenge
}

func NewRegistry() *Registry {
	return &Registry{
		pending: make(map[string]*social.Challenge),
	}
}

// Register records a pending challenge for the account, replacing any
// previous one.
func (r *Registry) Register(ch *social.Challenge) {
	if ch == nil || ch.Username == "" {
		return
	}
	r.mutex.Lock()
	r.pending[ch.Username] = ch
	r.mutex.Unlock()
}

// Resolve returns the pending challenge for the username, if any.
func (r *Registry) Resolve(username string) (*social.Challenge, bool) {
	r.mutex.RLock()
	ch, ok := r.pending[username]
	r.mutex.RUnlock()
	return ch, ok
}

// Remove clears the pending challenge for the username.
func (r *Registry) Remove(username string) {
	r.mutex.Lock()
	delete(r.pending, username)
	r.mutex.Unlock()
}

// List returns the usernames with a pending challenge.
func (r *Registry) List() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	names := make([]string, 0, len(r.pending))
	for name := range r.pending {
		names = append(names, name)
	}
	return names
}
