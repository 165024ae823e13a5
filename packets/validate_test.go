// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2026 breeze-mqtt

package packets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidTopicName(t *testing.T) {
	tests := []struct {
		topic string
		want  bool
	}{
		{"a/b/c", true},
		{"a", true},
		{"/", true},
		{"", false},
		{"a/+/c", false},
		{"a/#", false},
		{"#", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsValidTopicName(tt.topic), tt.topic)
	}
}

func TestIsValidFilter(t *testing.T) {
	tests := []struct {
		filter string
		want   bool
	}{
		{"a/b/c", true},
		{"a/+/c", true},
		{"+", true},
		{"#", true},
		{"a/#", true},
		{"a/+/#", true},
		{"", false},
		{"a/#/c", false},
		{"a/b#", false},
		{"a/b+", false},
		{"a/+b/c", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsValidFilter(tt.filter), tt.filter)
	}
}

func TestMatchFilter(t *testing.T) {
	tests := []struct {
		filter string
		topic  string
		want   bool
	}{
		{"a/b/c", "a/b/c", true},
		{"a/b/c", "a/b", false},
		{"a/+/c", "a/x/c", true},
		{"a/+/c", "a/x/y", false},
		{"a/#", "a/b/c", true},
		{"#", "anything/at/all", true},
		{"a/b", "a/b/c", false},
		{"+", "a", true},
		{"+", "a/b", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchFilter(tt.filter, tt.topic), tt.filter+" ~ "+tt.topic)
	}
}

func TestValidatePublish(t *testing.T) {
	pk := Packet{FixedHeader: NewFixedHeader(Publish), TopicName: "a/b"}
	require.NoError(t, pk.Validate())

	pk.TopicName = "a/+"
	require.ErrorIs(t, pk.Validate(), ErrBadTopic)

	pk.TopicName = ""
	require.ErrorIs(t, pk.Validate(), ErrBadTopic)
}

func TestValidateSubscribe(t *testing.T) {
	pk := Packet{FixedHeader: NewFixedHeader(Subscribe), PacketID: 1}
	require.ErrorIs(t, pk.Validate(), ErrEmptyTopics)

	pk.Filters = Subscriptions{{Filter: "a/#", Qos: 1}}
	require.NoError(t, pk.Validate())

	pk.Filters = Subscriptions{{Filter: "a/#/b", Qos: 1}}
	require.ErrorIs(t, pk.Validate(), ErrBadTopic)

	pk.Filters = Subscriptions{{Filter: "a/b", Qos: 3}}
	require.ErrorIs(t, pk.Validate(), ErrBadTopic)
}

func TestValidateUnsubscribe(t *testing.T) {
	pk := Packet{FixedHeader: NewFixedHeader(Unsubscribe), PacketID: 1}
	require.ErrorIs(t, pk.Validate(), ErrEmptyTopics)

	pk.Filters = Subscriptions{{Filter: "a/+"}}
	require.NoError(t, pk.Validate())

	pk.Filters = Subscriptions{{Filter: ""}}
	require.ErrorIs(t, pk.Validate(), ErrBadTopic)
}

func TestValidateOtherTypesPass(t *testing.T) {
	for _, packetType := range []byte{Connect, Connack, Puback, Pingreq, Pingresp, Disconnect} {
		pk := Packet{FixedHeader: NewFixedHeader(packetType)}
		require.NoError(t, pk.Validate(), Names[packetType])
	}
}
