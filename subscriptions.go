// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2026 breeze-mqtt

package breeze

import (
	"sync"

	"github.com/breeze-mqtt/breeze/packets"
)

// Subscriptions is a map of the subscription filters a session holds,
// keyed on filter, carrying the granted QoS. The session's event loop
// is the only writer; the lock allows hooks and the host to read
// concurrently.
type Subscriptions struct {
	sync.RWMutex
	internal map[string]packets.Subscription
}

// NewSubscriptions returns a new instance of Subscriptions.
func NewSubscriptions() *Subscriptions {
	return &Subscriptions{
		internal: map[string]packets.Subscription{},
	}
}

// Add adds or updates a subscription by filter, returning true if the
// filter was not previously present.
func (s *Subscriptions) Add(sub packets.Subscription) bool {
	s.Lock()
	defer s.Unlock()

	_, ok := s.internal[sub.Filter]
	s.internal[sub.Filter] = sub

	return !ok
}

// Get returns the subscription for a filter.
func (s *Subscriptions) Get(filter string) (packets.Subscription, bool) {
	s.RLock()
	defer s.RUnlock()

	sub, ok := s.internal[filter]
	return sub, ok
}

// Delete removes a subscription by filter, returning true if it was
// present.
func (s *Subscriptions) Delete(filter string) bool {
	s.Lock()
	defer s.Unlock()

	_, ok := s.internal[filter]
	delete(s.internal, filter)

	return ok
}

// GetAll returns a copy of all subscriptions.
func (s *Subscriptions) GetAll() map[string]packets.Subscription {
	s.RLock()
	defer s.RUnlock()

	m := make(map[string]packets.Subscription, len(s.internal))
	for filter, sub := range s.internal {
		m[filter] = sub
	}

	return m
}

// Len returns the number of subscriptions.
func (s *Subscriptions) Len() int {
	s.RLock()
	defer s.RUnlock()

	return len(s.internal)
}
