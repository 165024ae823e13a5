// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2026 breeze-mqtt

package router

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breeze-mqtt/breeze/packets"
)

// sink records deliveries for a fake subscriber.
type sink struct {
	mu        sync.Mutex
	delivered []struct {
		matched string
		pk      packets.Packet
	}
}

func (s *sink) Deliver(matched string, pk packets.Packet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, struct {
		matched string
		pk      packets.Packet
	}{matched, pk})
}

func (s *sink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delivered)
}

func (s *sink) last() (string, packets.Packet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.delivered[len(s.delivered)-1]
	return d.matched, d.pk
}

func publish(topic string, payload []byte) packets.Packet {
	return packets.Packet{
		FixedHeader: packets.NewFixedHeader(packets.Publish),
		TopicName:   topic,
		Payload:     payload,
	}
}

func TestPublishToExactSubscription(t *testing.T) {
	m := New()
	d := new(sink)

	m.Subscribe("c1", packets.Subscription{Filter: "a/b", Qos: 1}, d)
	m.Publish(publish("a/b", []byte("m")))

	require.Equal(t, 1, d.count())
	matched, pk := d.last()
	assert.Equal(t, "a/b", matched)
	assert.Equal(t, []byte("m"), pk.Payload)
}

func TestPublishWildcardMatches(t *testing.T) {
	m := New()
	plus := new(sink)
	hash := new(sink)
	miss := new(sink)

	m.Subscribe("c1", packets.Subscription{Filter: "a/+/c", Qos: 0}, plus)
	m.Subscribe("c2", packets.Subscription{Filter: "a/#", Qos: 0}, hash)
	m.Subscribe("c3", packets.Subscription{Filter: "x/y", Qos: 0}, miss)

	m.Publish(publish("a/b/c", nil))

	assert.Equal(t, 1, plus.count())
	assert.Equal(t, 1, hash.count())
	assert.Zero(t, miss.count())

	matched, _ := hash.last()
	assert.Equal(t, "a/#", matched)
}

func TestHashMatchesParentLevel(t *testing.T) {
	m := New()
	d := new(sink)

	m.Subscribe("c1", packets.Subscription{Filter: "a/#", Qos: 0}, d)
	m.Publish(publish("a", nil))

	assert.Equal(t, 1, d.count())
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	m := New()
	d := new(sink)

	m.Subscribe("c1", packets.Subscription{Filter: "a/b", Qos: 0}, d)
	m.Unsubscribe("c1", "a/b")
	m.Publish(publish("a/b", nil))

	assert.Zero(t, d.count())
}

func TestUnsubscribeUnknownFilterNoop(t *testing.T) {
	m := New()
	m.Unsubscribe("c1", "never/was")
}

func TestRetainedDeliveredOnSubscribe(t *testing.T) {
	m := New()

	pk := publish("a/b", []byte("kept"))
	pk.FixedHeader.Retain = true
	m.Publish(pk)

	d := new(sink)
	m.Subscribe("c1", packets.Subscription{Filter: "a/+", Qos: 0}, d)

	require.Equal(t, 1, d.count())
	matched, got := d.last()
	assert.Equal(t, "a/+", matched)
	assert.Equal(t, []byte("kept"), got.Payload)
}

func TestRetainedClearedByEmptyPayload(t *testing.T) {
	m := New()

	pk := publish("a/b", []byte("kept"))
	pk.FixedHeader.Retain = true
	m.Publish(pk)

	tombstone := publish("a/b", nil)
	tombstone.FixedHeader.Retain = true
	m.Publish(tombstone)

	d := new(sink)
	m.Subscribe("c1", packets.Subscription{Filter: "a/b", Qos: 0}, d)
	assert.Zero(t, d.count())
}

func TestSetQosUpdatesGrant(t *testing.T) {
	m := New()
	d := new(sink)

	m.Subscribe("c1", packets.Subscription{Filter: "a/b", Qos: 0}, d)
	m.SetQos("c1", "a/b", 1)

	n := m.walk("a/b")
	require.NotNil(t, n)
	assert.Equal(t, byte(1), n.clients["c1"])
}
