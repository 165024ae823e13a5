// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2026 breeze-mqtt

// Package breeze implements the server side of the MQTT 3.1 and 3.1.1
// protocols at the packet-semantics level. Each connected client is
// owned by a Session: a mailbox actor which validates inbound packets,
// gates the connection on authentication and authorization, maintains
// subscriptions and inflight QoS 1 state, delivers messages with QoS
// downgrade, and emits the will message on abnormal termination.
//
// Byte-level packet framing, the topic router, and the client registry
// are collaborators supplied by the host broker; in-memory
// implementations of the router and registry are provided for
// single-node use.
package breeze

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/breeze-mqtt/breeze/packets"
	"github.com/breeze-mqtt/breeze/system"
)

const (
	// defaultMaxClientIDLen is the maximum accepted length of a client
	// identifier unless configured otherwise.
	defaultMaxClientIDLen = 1024

	// defaultRetryInterval is the interval at which unacknowledged QoS 1
	// messages are retransmitted.
	defaultRetryInterval = 30 * time.Second

	// defaultACLCacheSize bounds the per-session publish ACL cache.
	defaultACLCacheSize = 1024

	// defaultMailboxSize is the default capacity of a session's event
	// mailbox.
	defaultMailboxSize = 128

	// keepaliveGrace is the multiplier applied to a client's advertised
	// keepalive interval before the connection is considered dead.
	keepaliveGrace = 1.25
)

// Transport is the connection-facing contract a session consumes. Send
// writes exactly one framed packet; buffering and backpressure are the
// transport's concern, so the session treats it as infallible.
type Transport interface {
	// Send frames and writes a single packet to the peer.
	Send(pk packets.Packet) error

	// Remote returns the peer's network address, opaque to the session.
	Remote() string

	// ArmKeepalive instructs the transport to consider the connection
	// dead if no client packet arrives within d.
	ArmKeepalive(d time.Duration)
}

// Deliverer receives messages matched to a subscription by the router.
type Deliverer interface {
	// Deliver enqueues an outbound publish; matched is the subscription
	// filter the message was routed on.
	Deliver(matched string, pk packets.Packet)
}

// Router is the topic-routing contract a session consumes. Calls are
// expected to be non-blocking or of bounded latency.
type Router interface {
	// Publish routes a message to matching subscribers.
	Publish(pk packets.Packet)

	// Subscribe installs a subscription for a client.
	Subscribe(id string, sub packets.Subscription, d Deliverer)

	// SetQos updates the granted QoS of an existing subscription.
	SetQos(id string, filter string, qos byte)

	// Unsubscribe removes a subscription for a client.
	Unsubscribe(id string, filter string)
}

// Registry mediates client-id ownership across sessions. Registering an
// id already held by a live session triggers a takeover shutdown of the
// prior holder.
type Registry interface {
	Register(id string, s *Session)
	Unregister(id string, s *Session)
}

// Will is a message declared at CONNECT which the broker publishes on
// behalf of the client if the session terminates abnormally.
type Will struct {
	TopicName string `json:"topicName"`
	Payload   []byte `json:"payload"`
	Qos       byte   `json:"qos"`
	Retain    bool   `json:"retain"`
}

// Options contains the configurable values and collaborators shared by
// the sessions of a broker.
type Options struct {
	// MaxClientIDLen is the maximum accepted client identifier length.
	MaxClientIDLen int `yaml:"max_clientid_len" json:"max_clientid_len"`

	// RetryInterval is the QoS 1 retransmission interval.
	RetryInterval time.Duration `yaml:"-" json:"-"`

	// CacheACL enables per-session memoization of publish ACL decisions
	// (default true). Subscribe decisions are never cached.
	CacheACL *bool `yaml:"cache_acl" json:"cache_acl"`

	// ACLCacheSize bounds the publish ACL cache.
	ACLCacheSize int `yaml:"acl_cache_size" json:"acl_cache_size"`

	// MailboxSize is the capacity of each session's event mailbox.
	MailboxSize int `yaml:"mailbox_size" json:"mailbox_size"`

	// Logger receives structured session logs.
	Logger *slog.Logger `yaml:"-" json:"-"`

	// Hooks dispatches protocol milestone callbacks, including the
	// authentication and ACL backends.
	Hooks *Hooks `yaml:"-" json:"-"`

	// Router routes publishes and owns subscription state.
	Router Router `yaml:"-" json:"-"`

	// Registry detects client-id takeover between sessions.
	Registry Registry `yaml:"-" json:"-"`

	// SysInfo accumulates server statistics.
	SysInfo *system.Info `yaml:"-" json:"-"`
}

// ensureDefaults fills any zero-valued options and collaborators with
// usable defaults.
func (o *Options) ensureDefaults() {
	if o.MaxClientIDLen <= 0 {
		o.MaxClientIDLen = defaultMaxClientIDLen
	}

	if o.RetryInterval <= 0 {
		o.RetryInterval = defaultRetryInterval
	}

	if o.CacheACL == nil {
		cache := true
		o.CacheACL = &cache
	}

	if o.ACLCacheSize <= 0 {
		o.ACLCacheSize = defaultACLCacheSize
	}

	if o.MailboxSize <= 0 {
		o.MailboxSize = defaultMailboxSize
	}

	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(os.Stdout, nil))
	}

	if o.Hooks == nil {
		o.Hooks = new(Hooks)
	}

	if o.Hooks.Log == nil {
		o.Hooks.Log = o.Logger
	}

	if o.Router == nil {
		o.Router = new(nopRouter)
	}

	if o.Registry == nil {
		o.Registry = NewRegistry()
	}

	if o.SysInfo == nil {
		o.SysInfo = new(system.Info)
	}
}

// HookLoadConfig contains the hook and configuration as loaded from a
// configuration source.
type HookLoadConfig struct {
	Hook   Hook
	Config any
}

// SessionOptions carries the per-connection values assigned when a
// transport accepts a connection.
type SessionOptions struct {
	// WSInitialHeaders is an opaque passthrough of the initial HTTP
	// headers of a websocket client.
	WSInitialHeaders http.Header
}

// nopRouter discards publishes and subscription changes. It stands in
// when the host supplies no router.
type nopRouter struct{}

func (nopRouter) Publish(pk packets.Packet)                                  {}
func (nopRouter) Subscribe(id string, sub packets.Subscription, d Deliverer) {}
func (nopRouter) SetQos(id string, filter string, qos byte)                  {}
func (nopRouter) Unsubscribe(id string, filter string)                       {}
