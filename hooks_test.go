// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2026 breeze-mqtt

package breeze

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breeze-mqtt/breeze/packets"
)

// modifierHook rewrites subscribe tables and rejects publishes to a
// given topic.
type modifierHook struct {
	HookBase
	rejectTopic string
	initErr     error
	stopped     bool
}

func (h *modifierHook) ID() string {
	return "modifier"
}

func (h *modifierHook) Provides(b byte) bool {
	return b == OnSubscribe || b == OnPublish
}

func (h *modifierHook) Init(config any) error {
	return h.initErr
}

func (h *modifierHook) Stop() error {
	h.stopped = true
	return nil
}

func (h *modifierHook) OnSubscribe(cl *Session, pk packets.Packet) packets.Packet {
	for i := range pk.Filters {
		pk.Filters[i].Qos = 0
	}
	return pk
}

func (h *modifierHook) OnPublish(cl *Session, pk packets.Packet) (packets.Packet, error) {
	if pk.TopicName == h.rejectTopic {
		return pk, packets.ErrRejectPacket
	}
	return pk, nil
}

func newTestHooks(t *testing.T, hooks ...Hook) *Hooks {
	t.Helper()

	h := new(Hooks)
	h.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, hook := range hooks {
		require.NoError(t, h.Add(hook, nil))
	}

	return h
}

func TestHooksAddAndLen(t *testing.T) {
	h := newTestHooks(t, new(modifierHook))
	assert.Equal(t, int64(1), h.Len())
	assert.Len(t, h.GetAll(), 1)
}

func TestHooksAddInitFailure(t *testing.T) {
	h := new(Hooks)
	h.Log = slog.New(slog.NewTextHandler(io.Discard, nil))

	err := h.Add(&modifierHook{initErr: errors.New("bad config")}, nil)
	require.Error(t, err)
	assert.Zero(t, h.Len())
}

func TestHooksProvides(t *testing.T) {
	h := newTestHooks(t, new(modifierHook))
	assert.True(t, h.Provides(OnSubscribe))
	assert.False(t, h.Provides(OnACLCheck))
}

func TestHooksOnSubscribeRewrites(t *testing.T) {
	h := newTestHooks(t, new(modifierHook))

	pk := h.OnSubscribe(nil, packets.Packet{
		Filters: packets.Subscriptions{{Filter: "a/b", Qos: 2}},
	})
	assert.Equal(t, byte(0), pk.Filters[0].Qos)
}

func TestHooksOnPublishReject(t *testing.T) {
	h := newTestHooks(t, &modifierHook{rejectTopic: "blocked"})

	_, err := h.OnPublish(nil, packets.Packet{TopicName: "blocked"})
	require.ErrorIs(t, err, packets.ErrRejectPacket)

	_, err = h.OnPublish(nil, packets.Packet{TopicName: "open"})
	require.NoError(t, err)
}

func TestHooksDefaultDenies(t *testing.T) {
	h := newTestHooks(t)
	assert.False(t, h.OnConnectAuthenticate(nil, packets.Packet{}))
	assert.False(t, h.OnACLCheck(nil, "a/b", true))
}

func TestHooksStop(t *testing.T) {
	hook := new(modifierHook)
	h := newTestHooks(t, hook)

	h.Stop()
	assert.True(t, hook.stopped)
}

func TestHookBaseDefaults(t *testing.T) {
	base := new(HookBase)

	assert.Equal(t, "base", base.ID())
	assert.False(t, base.Provides(OnSubscribe))
	require.NoError(t, base.Init(nil))
	require.NoError(t, base.Stop())

	pk, err := base.OnPacketRead(nil, packets.Packet{TopicName: "a"})
	require.NoError(t, err)
	assert.Equal(t, "a", pk.TopicName)

	will, err := base.OnWill(nil, Will{TopicName: "w"})
	require.NoError(t, err)
	assert.Equal(t, "w", will.TopicName)
}
