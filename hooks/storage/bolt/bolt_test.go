// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2026 breeze-mqtt

package bolt

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breeze-mqtt/breeze"
	"github.com/breeze-mqtt/breeze/hooks/storage"
	"github.com/breeze-mqtt/breeze/packets"
)

type fakeTransport struct{}

func (fakeTransport) Send(pk packets.Packet) error { return nil }
func (fakeTransport) Remote() string               { return "fake:1883" }
func (fakeTransport) ArmKeepalive(d time.Duration) {}

func newTestHook(t *testing.T) *Hook {
	t.Helper()

	h := new(Hook)
	h.SetOpts(slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	require.NoError(t, h.Init(&Options{
		Path: filepath.Join(t.TempDir(), "test.bolt"),
	}))
	t.Cleanup(func() {
		_ = h.Stop()
	})

	return h
}

func testSession(t *testing.T) *breeze.Session {
	t.Helper()

	s := breeze.NewSession(fakeTransport{}, &breeze.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, breeze.SessionOptions{})
	s.ID = "c1"

	return s
}

func TestHookIDAndProvides(t *testing.T) {
	h := new(Hook)
	assert.Equal(t, "bolt-db", h.ID())
	assert.True(t, h.Provides(breeze.OnSessionEstablished))
	assert.True(t, h.Provides(breeze.OnWillSent))
	assert.False(t, h.Provides(breeze.OnACLCheck))
}

func TestInitBadConfig(t *testing.T) {
	h := new(Hook)
	require.Error(t, h.Init(map[string]any{}))
}

func TestInitDefaults(t *testing.T) {
	h := new(Hook)
	h.SetOpts(slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	require.NoError(t, h.Init(&Options{
		Path: filepath.Join(t.TempDir(), "defaults.bolt"),
	}))
	defer func() {
		_ = h.Stop()
	}()

	assert.Equal(t, defaultBucket, h.config.Bucket)
}

func TestClientRecordRoundTrip(t *testing.T) {
	h := newTestHook(t)
	cl := testSession(t)

	h.OnSessionEstablished(cl, packets.Packet{})

	var record storage.Client
	ok, err := h.getJSON(clientKey(cl), &record)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "c1", record.ID)
	assert.Equal(t, "fake:1883", record.Remote)
	assert.Zero(t, record.DisconnectedAt)

	h.OnDisconnect(cl, packets.ErrSocketError)
	ok, err = h.getJSON(clientKey(cl), &record)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotZero(t, record.DisconnectedAt)
}

func TestSubscriptionRecords(t *testing.T) {
	h := newTestHook(t)
	cl := testSession(t)

	pk := packets.Packet{
		FixedHeader: packets.NewFixedHeader(packets.Subscribe),
		Filters:     packets.Subscriptions{{Filter: "a/b", Qos: 1}},
	}
	h.OnSubscribed(cl, pk, []byte{1})

	var record storage.Subscription
	ok, err := h.getJSON(subscriptionKey(cl, "a/b"), &record)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, byte(1), record.Qos)

	h.OnUnsubscribed(cl, pk)
	ok, err = h.getJSON(subscriptionKey(cl, "a/b"), &record)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFailedSubscriptionNotStored(t *testing.T) {
	h := newTestHook(t)
	cl := testSession(t)

	pk := packets.Packet{
		FixedHeader: packets.NewFixedHeader(packets.Subscribe),
		Filters:     packets.Subscriptions{{Filter: "a/b", Qos: 1}},
	}
	h.OnSubscribed(cl, pk, []byte{packets.QosFailure})

	var record storage.Subscription
	ok, err := h.getJSON(subscriptionKey(cl, "a/b"), &record)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInflightRecords(t *testing.T) {
	h := newTestHook(t)
	cl := testSession(t)

	pk := packets.Packet{
		FixedHeader: packets.FixedHeader{Type: packets.Publish, Qos: 1},
		TopicName:   "a/b",
		PacketID:    7,
		Payload:     []byte("m"),
	}
	h.OnQosPublish(cl, pk, time.Now().Unix(), 0)

	var record storage.Message
	ok, err := h.getJSON(inflightKey(cl, pk), &record)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint16(7), record.PacketID)

	h.OnQosComplete(cl, pk)
	ok, err = h.getJSON(inflightKey(cl, pk), &record)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWillRecord(t *testing.T) {
	h := newTestHook(t)
	cl := testSession(t)

	h.OnWillSent(cl, packets.Packet{
		FixedHeader: packets.FixedHeader{Type: packets.Publish, Qos: 1, Retain: true},
		TopicName:   "will/t",
		Payload:     []byte("gone"),
	})

	var record storage.Message
	ok, err := h.getJSON(willKey(cl), &record)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "will/t", record.TopicName)
	assert.True(t, record.Retain)
}
