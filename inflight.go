// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2026 breeze-mqtt

package breeze

import (
	"sort"
	"sync"

	"github.com/breeze-mqtt/breeze/packets"
)

// inflightEntry tracks one QoS 1 message sent but not yet acknowledged.
type inflightEntry struct {
	pk      packets.Packet
	seq     uint64 // send order
	sent    int64  // unix timestamp of the most recent send
	resends int
}

// Inflight holds the QoS 1 messages sent to the client and awaiting
// acknowledgement, keyed on packet id and ordered by send sequence. The
// session's event loop is the only writer; the lock allows hooks and
// the host to read concurrently.
type Inflight struct {
	sync.RWMutex
	internal map[uint16]*inflightEntry
	seq      uint64
}

// NewInflight returns a new instance of an Inflight message map.
func NewInflight() *Inflight {
	return &Inflight{
		internal: map[uint16]*inflightEntry{},
	}
}

// Set stores a message by packet id at the tail of the send order,
// returning true if the id was not already present.
func (i *Inflight) Set(pk packets.Packet, sent int64) bool {
	i.Lock()
	defer i.Unlock()

	_, ok := i.internal[pk.PacketID]
	i.seq++
	i.internal[pk.PacketID] = &inflightEntry{
		pk:   pk,
		seq:  i.seq,
		sent: sent,
	}

	return !ok
}

// Get returns the message for a packet id.
func (i *Inflight) Get(id uint16) (packets.Packet, bool) {
	i.RLock()
	defer i.RUnlock()

	if entry, ok := i.internal[id]; ok {
		return entry.pk, true
	}

	return packets.Packet{}, false
}

// Delete removes a message by packet id, returning true if it existed.
func (i *Inflight) Delete(id uint16) bool {
	i.Lock()
	defer i.Unlock()

	_, ok := i.internal[id]
	delete(i.internal, id)

	return ok
}

// Len returns the number of inflight messages.
func (i *Inflight) Len() int {
	i.RLock()
	defer i.RUnlock()

	return len(i.internal)
}

// GetAll returns all inflight messages in send order.
func (i *Inflight) GetAll() []packets.Packet {
	i.RLock()
	defer i.RUnlock()

	entries := make([]*inflightEntry, 0, len(i.internal))
	for _, entry := range i.internal {
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(a, b int) bool {
		return entries[a].seq < entries[b].seq
	})

	m := make([]packets.Packet, 0, len(entries))
	for _, entry := range entries {
		m = append(m, entry.pk)
	}

	return m
}

// Resend marks the message for a packet id as a duplicate delivery,
// preserving its packet id and send order, and returns the updated
// message along with the resend count.
func (i *Inflight) Resend(id uint16, sent int64) (packets.Packet, int, bool) {
	i.Lock()
	defer i.Unlock()

	entry, ok := i.internal[id]
	if !ok {
		return packets.Packet{}, 0, false
	}

	entry.pk.FixedHeader.Dup = true
	entry.sent = sent
	entry.resends++

	return entry.pk, entry.resends, true
}
