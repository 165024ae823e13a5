// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2026 breeze-mqtt

package breeze

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/breeze-mqtt/breeze/packets"
)

// The hook methods a Hook may provide, used with Hook.Provides.
const (
	OnConnectAuthenticate byte = iota
	OnACLCheck
	OnConnect
	OnSessionEstablished
	OnDisconnect
	OnPacketRead
	OnPacketSent
	OnSubscribe
	OnSubscribed
	OnUnsubscribe
	OnUnsubscribed
	OnPublish
	OnPublished
	OnPublishDropped
	OnQosPublish
	OnQosComplete
	OnWill
	OnWillSent
)

var (
	// ErrInvalidConfigType indicates a different type of config value was expected to what was received.
	ErrInvalidConfigType = errors.New("invalid config type provided")
)

// Hook provides an interface of handlers for the events which occur
// during the lifecycle of a client session.
type Hook interface {
	ID() string
	Provides(b byte) bool
	Init(config any) error
	Stop() error
	SetOpts(l *slog.Logger, o *HookOptions)
	OnConnectAuthenticate(cl *Session, pk packets.Packet) bool
	OnACLCheck(cl *Session, topic string, write bool) bool
	OnConnect(cl *Session, pk packets.Packet) error
	OnSessionEstablished(cl *Session, pk packets.Packet)
	OnDisconnect(cl *Session, err error)
	OnPacketRead(cl *Session, pk packets.Packet) (packets.Packet, error) // triggers when a new packet is received by a client, but before packet validation
	OnPacketSent(cl *Session, pk packets.Packet)                        // triggers when a packet has been written to the client
	OnSubscribe(cl *Session, pk packets.Packet) packets.Packet          // may rewrite the topic table
	OnSubscribed(cl *Session, pk packets.Packet, reasonCodes []byte)
	OnUnsubscribe(cl *Session, pk packets.Packet) packets.Packet // may rewrite the topic table
	OnUnsubscribed(cl *Session, pk packets.Packet)
	OnPublish(cl *Session, pk packets.Packet) (packets.Packet, error) // may rewrite or reject an ingress publish
	OnPublished(cl *Session, pk packets.Packet)
	OnPublishDropped(cl *Session, pk packets.Packet)
	OnQosPublish(cl *Session, pk packets.Packet, sent int64, resends int)
	OnQosComplete(cl *Session, pk packets.Packet)
	OnWill(cl *Session, will Will) (Will, error) // may rewrite the will message
	OnWillSent(cl *Session, pk packets.Packet)
}

// HookOptions contains values which are inherited from the host broker
// on initialisation.
type HookOptions struct {
	Options *Options
}

// Hooks is a slice of Hook interfaces to be called in sequence.
type Hooks struct {
	Log        *slog.Logger   // a logger for the hooks (from the host)
	internal   atomic.Value   // a slice of []Hook
	wg         sync.WaitGroup // a waitgroup for syncing hook shutdown
	qty        int64          // the number of hooks in use
	sync.Mutex                // a mutex for locking when adding hooks
}

// Len returns the number of hooks added.
func (h *Hooks) Len() int64 {
	return atomic.LoadInt64(&h.qty)
}

// Provides returns true if any one hook provides any of the requested
// hook methods.
func (h *Hooks) Provides(b ...byte) bool {
	for _, hook := range h.GetAll() {
		for _, hb := range b {
			if hook.Provides(hb) {
				return true
			}
		}
	}

	return false
}

// Add adds and initializes a new hook.
func (h *Hooks) Add(hook Hook, config any) error {
	h.Lock()
	defer h.Unlock()

	if h.Log == nil {
		h.Log = slog.Default()
	}

	hook.SetOpts(h.Log.With("hook", hook.ID()), new(HookOptions))

	err := hook.Init(config)
	if err != nil {
		return fmt.Errorf("failed initialising %s hook: %w", hook.ID(), err)
	}

	i, ok := h.internal.Load().([]Hook)
	if !ok {
		i = []Hook{}
	}

	i = append(i, hook)
	h.internal.Store(i)
	atomic.AddInt64(&h.qty, 1)
	h.wg.Add(1)

	return nil
}

// GetAll returns a slice of all the hooks.
func (h *Hooks) GetAll() []Hook {
	i, ok := h.internal.Load().([]Hook)
	if !ok {
		return []Hook{}
	}

	return i
}

// Stop indicates all attached hooks to gracefully end.
func (h *Hooks) Stop() {
	go func() {
		for _, hook := range h.GetAll() {
			h.Log.Info("stopping hook", "hook", hook.ID())
			if err := hook.Stop(); err != nil {
				h.Log.Debug("problem stopping hook", "error", err, "hook", hook.ID())
			}

			h.wg.Done()
		}
	}()

	h.wg.Wait()
}

// OnConnectAuthenticate is called when a client attempts to
// authenticate with the broker. An implementation of this method MUST
// be used to allow or deny access (see hooks/auth/allow_all or ledger).
func (h *Hooks) OnConnectAuthenticate(cl *Session, pk packets.Packet) bool {
	for _, hook := range h.GetAll() {
		if hook.Provides(OnConnectAuthenticate) {
			if ok := hook.OnConnectAuthenticate(cl, pk); ok {
				return true
			}
		}
	}

	return false
}

// OnACLCheck is called when a client attempts to publish (write) or
// subscribe (read) to a topic. An implementation of this method MUST be
// used to allow or deny access (see hooks/auth/allow_all or ledger).
func (h *Hooks) OnACLCheck(cl *Session, topic string, write bool) bool {
	for _, hook := range h.GetAll() {
		if hook.Provides(OnACLCheck) {
			if ok := hook.OnACLCheck(cl, topic, write); ok {
				return true
			}
		}
	}

	return false
}

// OnConnect is called when a new client connects, and may return an
// error to halt the connection.
func (h *Hooks) OnConnect(cl *Session, pk packets.Packet) error {
	for _, hook := range h.GetAll() {
		if hook.Provides(OnConnect) {
			err := hook.OnConnect(cl, pk)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// OnSessionEstablished is called when a client's CONNECT has been
// accepted and its session registered, immediately before the CONNACK
// is sent.
func (h *Hooks) OnSessionEstablished(cl *Session, pk packets.Packet) {
	for _, hook := range h.GetAll() {
		if hook.Provides(OnSessionEstablished) {
			hook.OnSessionEstablished(cl, pk)
		}
	}
}

// OnDisconnect is called when a session terminates for any reason.
func (h *Hooks) OnDisconnect(cl *Session, err error) {
	for _, hook := range h.GetAll() {
		if hook.Provides(OnDisconnect) {
			hook.OnDisconnect(cl, err)
		}
	}
}

// OnPacketRead is called when a packet is received from a client. The
// packet may be rewritten, or rejected with packets.ErrRejectPacket.
func (h *Hooks) OnPacketRead(cl *Session, pk packets.Packet) (pkx packets.Packet, err error) {
	pkx = pk
	for _, hook := range h.GetAll() {
		if hook.Provides(OnPacketRead) {
			npk, err := hook.OnPacketRead(cl, pkx)
			if err != nil && errors.Is(err, packets.ErrRejectPacket) {
				h.Log.Debug("packet rejected", "hook", hook.ID(), "packet", pkx)
				return pk, err
			} else if err != nil {
				continue
			}

			pkx = npk
		}
	}

	return
}

// OnPacketSent is called when a packet has been sent to a client.
func (h *Hooks) OnPacketSent(cl *Session, pk packets.Packet) {
	for _, hook := range h.GetAll() {
		if hook.Provides(OnPacketSent) {
			hook.OnPacketSent(cl, pk)
		}
	}
}

// OnSubscribe is called when a client subscribes to one or more
// filters. This method differs from OnSubscribed in that it allows you
// to modify the subscription values before the packet is processed. The
// return values of the hook methods are passed-through in the order the
// hooks were attached.
func (h *Hooks) OnSubscribe(cl *Session, pk packets.Packet) packets.Packet {
	for _, hook := range h.GetAll() {
		if hook.Provides(OnSubscribe) {
			pk = hook.OnSubscribe(cl, pk)
		}
	}

	return pk
}

// OnSubscribed is called when a client's subscriptions have been
// installed, with the granted QoS for each requested filter.
func (h *Hooks) OnSubscribed(cl *Session, pk packets.Packet, reasonCodes []byte) {
	for _, hook := range h.GetAll() {
		if hook.Provides(OnSubscribed) {
			hook.OnSubscribed(cl, pk, reasonCodes)
		}
	}
}

// OnUnsubscribe is called when a client unsubscribes from one or more
// filters. This method differs from OnUnsubscribed in that it allows
// you to modify the unsubscription values before the packet is
// processed.
func (h *Hooks) OnUnsubscribe(cl *Session, pk packets.Packet) packets.Packet {
	for _, hook := range h.GetAll() {
		if hook.Provides(OnUnsubscribe) {
			pk = hook.OnUnsubscribe(cl, pk)
		}
	}

	return pk
}

// OnUnsubscribed is called when a client's subscriptions have been
// removed.
func (h *Hooks) OnUnsubscribed(cl *Session, pk packets.Packet) {
	for _, hook := range h.GetAll() {
		if hook.Provides(OnUnsubscribed) {
			hook.OnUnsubscribed(cl, pk)
		}
	}
}

// OnPublish is called when a client publishes a message. This method
// differs from OnPublished in that it allows you to modify the incoming
// packet before it is processed, or to reject it with
// packets.ErrRejectPacket.
func (h *Hooks) OnPublish(cl *Session, pk packets.Packet) (pkx packets.Packet, err error) {
	pkx = pk
	for _, hook := range h.GetAll() {
		if hook.Provides(OnPublish) {
			npk, err := hook.OnPublish(cl, pkx)
			if err != nil {
				if errors.Is(err, packets.ErrRejectPacket) {
					h.Log.Debug("publish packet rejected", "error", err, "hook", hook.ID(), "packet", pkx)
					return pk, err
				}

				continue
			}

			pkx = npk
		}
	}

	return
}

// OnPublished is called when a client's message has been handed to the
// router.
func (h *Hooks) OnPublished(cl *Session, pk packets.Packet) {
	for _, hook := range h.GetAll() {
		if hook.Provides(OnPublished) {
			hook.OnPublished(cl, pk)
		}
	}
}

// OnPublishDropped is called when a message is dropped instead of being
// processed or delivered, such as on an ACL deny or a full mailbox.
func (h *Hooks) OnPublishDropped(cl *Session, pk packets.Packet) {
	for _, hook := range h.GetAll() {
		if hook.Provides(OnPublishDropped) {
			hook.OnPublishDropped(cl, pk)
		}
	}
}

// OnQosPublish is called when a QoS 1 publish packet is issued to a
// subscriber, including retransmissions.
func (h *Hooks) OnQosPublish(cl *Session, pk packets.Packet, sent int64, resends int) {
	for _, hook := range h.GetAll() {
		if hook.Provides(OnQosPublish) {
			hook.OnQosPublish(cl, pk, sent, resends)
		}
	}
}

// OnQosComplete is called when the QoS flow for a message has been
// completed by a PUBACK from the client.
func (h *Hooks) OnQosComplete(cl *Session, pk packets.Packet) {
	for _, hook := range h.GetAll() {
		if hook.Provides(OnQosComplete) {
			hook.OnQosComplete(cl, pk)
		}
	}
}

// OnWill is called when a session terminates abnormally and intends to
// publish a will message. The will may be rewritten; a hook which
// returns an error is logged and its rewrite is skipped, and the
// returned error is always nil.
func (h *Hooks) OnWill(cl *Session, will Will) (Will, error) {
	for _, hook := range h.GetAll() {
		if hook.Provides(OnWill) {
			mlwt, err := hook.OnWill(cl, will)
			if err != nil {
				h.Log.Error("parse will error", "error", err, "hook", hook.ID(), "will", will)
				continue
			}

			will = mlwt
		}
	}

	return will, nil
}

// OnWillSent is called when a will message has been issued from a
// terminating session.
func (h *Hooks) OnWillSent(cl *Session, pk packets.Packet) {
	for _, hook := range h.GetAll() {
		if hook.Provides(OnWillSent) {
			hook.OnWillSent(cl, pk)
		}
	}
}

// HookBase provides a set of default methods for each hook. It should
// be embedded in all hooks.
type HookBase struct {
	Hook
	Log  *slog.Logger
	Opts *HookOptions
}

// ID returns the ID of the hook.
func (h *HookBase) ID() string {
	return "base"
}

// Provides indicates which methods a hook provides. The default is none
// - this method should be overridden by the embedding hook.
func (h *HookBase) Provides(b byte) bool {
	return false
}

// Init performs any pre-start initializations for the hook, such as
// connecting to databases or opening files.
func (h *HookBase) Init(config any) error {
	return nil
}

// SetOpts is called by the host to propagate internal values and
// generally should not be called manually.
func (h *HookBase) SetOpts(l *slog.Logger, opts *HookOptions) {
	h.Log = l
	h.Opts = opts
}

// Stop is called to gracefully shut down the hook.
func (h *HookBase) Stop() error {
	return nil
}

// OnConnectAuthenticate is called when a client attempts to authenticate with the broker.
func (h *HookBase) OnConnectAuthenticate(cl *Session, pk packets.Packet) bool {
	return false
}

// OnACLCheck is called when a client attempts to publish or subscribe to a topic.
func (h *HookBase) OnACLCheck(cl *Session, topic string, write bool) bool {
	return false
}

// OnConnect is called when a new client connects.
func (h *HookBase) OnConnect(cl *Session, pk packets.Packet) error {
	return nil
}

// OnSessionEstablished is called when a client's session has been established.
func (h *HookBase) OnSessionEstablished(cl *Session, pk packets.Packet) {}

// OnDisconnect is called when a session terminates for any reason.
func (h *HookBase) OnDisconnect(cl *Session, err error) {}

// OnPacketRead is called when a packet is received.
func (h *HookBase) OnPacketRead(cl *Session, pk packets.Packet) (packets.Packet, error) {
	return pk, nil
}

// OnPacketSent is called immediately after a packet is written to a client.
func (h *HookBase) OnPacketSent(cl *Session, pk packets.Packet) {}

// OnSubscribe is called when a client subscribes to one or more filters.
func (h *HookBase) OnSubscribe(cl *Session, pk packets.Packet) packets.Packet {
	return pk
}

// OnSubscribed is called when a client's subscriptions have been installed.
func (h *HookBase) OnSubscribed(cl *Session, pk packets.Packet, reasonCodes []byte) {}

// OnUnsubscribe is called when a client unsubscribes from one or more filters.
func (h *HookBase) OnUnsubscribe(cl *Session, pk packets.Packet) packets.Packet {
	return pk
}

// OnUnsubscribed is called when a client's subscriptions have been removed.
func (h *HookBase) OnUnsubscribed(cl *Session, pk packets.Packet) {}

// OnPublish is called when a client publishes a message.
func (h *HookBase) OnPublish(cl *Session, pk packets.Packet) (packets.Packet, error) {
	return pk, nil
}

// OnPublished is called when a client's message has been handed to the router.
func (h *HookBase) OnPublished(cl *Session, pk packets.Packet) {}

// OnPublishDropped is called when a message is dropped instead of being delivered.
func (h *HookBase) OnPublishDropped(cl *Session, pk packets.Packet) {}

// OnQosPublish is called when a QoS 1 publish packet is issued to a subscriber.
func (h *HookBase) OnQosPublish(cl *Session, pk packets.Packet, sent int64, resends int) {}

// OnQosComplete is called when the QoS flow for a message has been completed.
func (h *HookBase) OnQosComplete(cl *Session, pk packets.Packet) {}

// OnWill is called when a terminating session intends to publish a will message.
func (h *HookBase) OnWill(cl *Session, will Will) (Will, error) {
	return will, nil
}

// OnWillSent is called when a will message has been issued from a terminating session.
func (h *HookBase) OnWillSent(cl *Session, pk packets.Packet) {}
