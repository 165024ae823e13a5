// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2026 breeze-mqtt

package breeze

import (
	"sync"

	"github.com/breeze-mqtt/breeze/packets"
)

// SessionRegistry is an in-memory Registry mapping client ids to their
// live sessions. Registering an id already held by another session
// fires a takeover shutdown on the prior holder without waiting for it
// to terminate.
type SessionRegistry struct {
	sync.Mutex
	internal map[string]*Session
}

// NewRegistry returns a new instance of SessionRegistry.
func NewRegistry() *SessionRegistry {
	return &SessionRegistry{
		internal: map[string]*Session{},
	}
}

// Register records s as the holder of id. Any prior holder receives a
// takeover shutdown; the shutdown is fire-and-forget so registration
// never blocks on the displaced session.
func (r *SessionRegistry) Register(id string, s *Session) {
	r.Lock()
	prior := r.internal[id]
	r.internal[id] = s
	r.Unlock()

	if prior != nil && prior != s {
		go prior.Shutdown(packets.ErrSessionTakenOver)
	}
}

// Unregister removes s as the holder of id. A session displaced by a
// takeover must not unregister, or it would race the replacement; the
// caller enforces this by skipping Unregister on takeover shutdowns.
func (r *SessionRegistry) Unregister(id string, s *Session) {
	r.Lock()
	defer r.Unlock()

	if r.internal[id] == s {
		delete(r.internal, id)
	}
}

// Get returns the current holder of id.
func (r *SessionRegistry) Get(id string) (*Session, bool) {
	r.Lock()
	defer r.Unlock()

	s, ok := r.internal[id]
	return s, ok
}

// Len returns the number of registered sessions.
func (r *SessionRegistry) Len() int {
	r.Lock()
	defer r.Unlock()

	return len(r.internal)
}
