// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2026 breeze-mqtt

// Package router provides an in-memory topic router for single-node
// use: a prefix trie of subscription filters plus a retained-message
// index. Hosts embedding the session engine in a larger broker may
// substitute their own breeze.Router implementation.
package router

import (
	"strings"
	"sync"

	"github.com/breeze-mqtt/breeze"
	"github.com/breeze-mqtt/breeze/packets"
)

// leaf is a child node on the filter trie.
type leaf struct {
	key     string           // the filter level that created this leaf
	parent  *leaf            // the parent node
	leaves  map[string]*leaf // child nodes, keyed on level
	clients map[string]byte  // client ids subscribed at this leaf -> granted qos
	filter  string           // the full filter terminating at this leaf
}

func newLeaf(key string, parent *leaf) *leaf {
	return &leaf{
		key:     key,
		parent:  parent,
		leaves:  map[string]*leaf{},
		clients: map[string]byte{},
	}
}

// Memory is an in-memory breeze.Router: a trie of subscription filters
// with per-client granted QoS, plus retained messages keyed on topic.
type Memory struct {
	mu       sync.RWMutex
	root     *leaf
	retained map[string]packets.Packet
	sessions map[string]breeze.Deliverer
}

// New returns a new instance of Memory.
func New() *Memory {
	return &Memory{
		root:     newLeaf("", nil),
		retained: map[string]packets.Packet{},
		sessions: map[string]breeze.Deliverer{},
	}
}

// Subscribe installs a subscription filter for a client and delivers
// any retained messages matching the filter.
func (m *Memory) Subscribe(id string, sub packets.Subscription, d breeze.Deliverer) {
	m.mu.Lock()
	n := m.root
	for _, level := range strings.Split(sub.Filter, "/") {
		child := n.leaves[level]
		if child == nil {
			child = newLeaf(level, n)
			n.leaves[level] = child
		}

		n = child
	}

	n.clients[id] = sub.Qos
	n.filter = sub.Filter
	m.sessions[id] = d

	var retained []packets.Packet
	for topic, pk := range m.retained {
		if packets.MatchFilter(sub.Filter, topic) {
			retained = append(retained, pk)
		}
	}
	m.mu.Unlock()

	for _, pk := range retained {
		d.Deliver(sub.Filter, pk)
	}
}

// SetQos updates the granted QoS of an existing subscription.
func (m *Memory) SetQos(id string, filter string, qos byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.walk(filter)
	if n == nil {
		return
	}

	if _, ok := n.clients[id]; ok {
		n.clients[id] = qos
	}
}

// Unsubscribe removes a subscription filter for a client, pruning any
// leaves left without subscribers.
func (m *Memory) Unsubscribe(id string, filter string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.walk(filter)
	if n == nil {
		return
	}

	delete(n.clients, id)

	for n.parent != nil {
		key := n.key
		orphaned := len(n.clients) == 0 && len(n.leaves) == 0
		n = n.parent
		if orphaned {
			delete(n.leaves, key)
		}
	}
}

// walk returns the leaf terminating a filter, or nil.
func (m *Memory) walk(filter string) *leaf {
	n := m.root
	for _, level := range strings.Split(filter, "/") {
		n = n.leaves[level]
		if n == nil {
			return nil
		}
	}

	return n
}

// match is one subscriber matched to a published topic.
type match struct {
	id     string
	filter string
}

// Publish routes a message to all subscribers with matching filters.
// Retained messages are stored, or cleared by a retained message with
// an empty payload.
func (m *Memory) Publish(pk packets.Packet) {
	m.mu.Lock()
	if pk.FixedHeader.Retain {
		if len(pk.Payload) == 0 {
			delete(m.retained, pk.TopicName)
		} else {
			m.retained[pk.TopicName] = pk
		}
	}

	matches := m.root.scan(strings.Split(pk.TopicName, "/"), 0, nil)

	type target struct {
		d      breeze.Deliverer
		filter string
	}

	targets := make([]target, 0, len(matches))
	for _, mt := range matches {
		if d, ok := m.sessions[mt.id]; ok {
			targets = append(targets, target{d: d, filter: mt.filter})
		}
	}
	m.mu.Unlock()

	for _, t := range targets {
		t.d.Deliver(t.filter, pk)
	}
}

// scan recursively collects the subscribers of every filter matching a
// topic, honouring the + and # wildcards.
func (l *leaf) scan(levels []string, d int, matches []match) []match {
	if d == len(levels) {
		for id := range l.clients {
			matches = append(matches, match{id: id, filter: l.filter})
		}

		// A trailing # also matches the topic ending at its parent
		// level [MQTT-4.7.1-2].
		if child, ok := l.leaves["#"]; ok {
			for id := range child.clients {
				matches = append(matches, match{id: id, filter: child.filter})
			}
		}

		return matches
	}

	for _, level := range []string{levels[d], "+"} {
		if child, ok := l.leaves[level]; ok {
			matches = child.scan(levels, d+1, matches)
		}
	}

	if child, ok := l.leaves["#"]; ok {
		for id := range child.clients {
			matches = append(matches, match{id: id, filter: child.filter})
		}
	}

	return matches
}
