// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2026 breeze-mqtt

package breeze

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/xid"

	"github.com/breeze-mqtt/breeze/packets"
)

// Session states. A session begins awaiting a CONNECT, transitions to
// connected when one is accepted, and terminates exactly once.
const (
	StateAwaitingConnect int32 = iota
	StateConnected
	StateTerminated
)

// Mailbox events: each is a single unit of work serialized into the
// session's event loop.
type packetEvent struct{ pk packets.Packet }

type timeoutEvent struct{ id uint16 } // a retransmit timer fired

type deliverEvent struct {
	matched string
	pk      packets.Packet
}

type shutdownEvent struct{ reason error }

// Session owns one client connection from the moment packets arrive on
// the transport until the session terminates. All state is mutated by a
// single event loop; inbound packets, timer fires, router deliveries
// and shutdown requests are serialized into one mailbox.
type Session struct {
	ops   *Options
	log   *slog.Logger
	tport Transport

	// sid correlates log lines for this connection before and after a
	// client id is known.
	sid string

	events chan any
	done   chan struct{}
	once   sync.Once
	err    error
	state  int32 // atomic

	// Values assigned during CONNECT processing.
	ID               string
	ProtocolName     string
	ProtocolVersion  byte
	CleanSession     bool
	Username         []byte
	Keepalive        uint16
	Will             *Will
	ConnectedAt      int64
	WSInitialHeaders http.Header

	Subscriptions *Subscriptions
	Inflight      *Inflight

	acl      *aclCache
	pids     *packetIDs
	awaiting map[uint16]*time.Timer // packet id -> retransmit timer
}

// NewSession returns a session bound to a transport. The caller retains
// ownership of opts, which may be shared across sessions.
func NewSession(t Transport, opts *Options, sopts SessionOptions) *Session {
	if opts == nil {
		opts = new(Options)
	}
	opts.ensureDefaults()

	s := &Session{
		ops:              opts,
		tport:            t,
		sid:              xid.New().String(),
		events:           make(chan any, opts.MailboxSize),
		done:             make(chan struct{}),
		WSInitialHeaders: sopts.WSInitialHeaders,
		Subscriptions:    NewSubscriptions(),
		Inflight:         NewInflight(),
		acl:              newACLCache(*opts.CacheACL, opts.ACLCacheSize),
		pids:             newPacketIDs(),
		awaiting:         map[uint16]*time.Timer{},
	}

	s.log = opts.Logger.With("sid", s.sid, "remote", t.Remote())

	return s
}

// Start launches the session's event loop. The transport adapter should
// watch Done and close the connection when it fires.
func (s *Session) Start() {
	go s.run()
}

// run drains the mailbox, processing one event at a time until the
// session terminates.
func (s *Session) run() {
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.events:
			switch ev := ev.(type) {
			case packetEvent:
				if err := s.receive(ev.pk); err != nil {
					s.terminate(err)
					return
				}
			case timeoutEvent:
				s.retry(ev.id)
			case deliverEvent:
				s.deliverMessage(ev.matched, ev.pk)
			case shutdownEvent:
				s.terminate(ev.reason)
				return
			}
		}
	}
}

// Receive enqueues one parsed inbound packet.
func (s *Session) Receive(pk packets.Packet) {
	s.push(packetEvent{pk: pk})
}

// Timeout enqueues an awaiting-ack timer event for a packet id.
func (s *Session) Timeout(id uint16) {
	s.push(timeoutEvent{id: id})
}

// Deliver enqueues an outbound publish originating from the router;
// matched is the subscription filter the message was routed on. If the
// mailbox is full the message is dropped rather than blocking the
// router.
func (s *Session) Deliver(matched string, pk packets.Packet) {
	select {
	case s.events <- deliverEvent{matched: matched, pk: pk}:
	case <-s.done:
	default:
		s.log.Warn("dropping delivery to slow session", "client", s.ID, "topic", pk.TopicName)
		atomic.AddInt64(&s.ops.SysInfo.MessagesDropped, 1)
		s.ops.Hooks.OnPublishDropped(s, pk)
	}
}

// Shutdown requests termination with a reason. The will message is
// emitted unless the reason is a session takeover or no client id was
// ever assigned.
func (s *Session) Shutdown(reason error) {
	s.push(shutdownEvent{reason: reason})
}

// push enqueues an event unless the session has terminated.
func (s *Session) push(ev any) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// Done fires when the session has terminated. The transport adapter
// should then close the connection.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the termination reason once Done has fired.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Remote returns the peer's network address.
func (s *Session) Remote() string {
	return s.tport.Remote()
}

// State returns the session's lifecycle state.
func (s *Session) State() int32 {
	return atomic.LoadInt32(&s.state)
}

// Connected returns true if a CONNECT has been accepted.
func (s *Session) Connected() bool {
	return s.State() == StateConnected
}

// receive processes one inbound packet, returning an error when the
// session must be terminated.
func (s *Session) receive(pk packets.Packet) error {
	s.log.Info("received packet", "packet", packets.Names[pk.FixedHeader.Type], "client", s.ID)
	atomic.AddInt64(&s.ops.SysInfo.PacketsReceived, 1)

	pk, err := s.ops.Hooks.OnPacketRead(s, pk)
	if err != nil {
		if errors.Is(err, packets.ErrRejectPacket) {
			return nil
		}

		return err
	}

	// Before an accepted CONNECT, only a CONNECT packet may arrive; a
	// second CONNECT afterwards is a protocol violation [MQTT-3.1.0-2].
	if s.State() == StateAwaitingConnect && pk.FixedHeader.Type != packets.Connect {
		return packets.ErrNotConnected
	}

	if s.State() == StateConnected && pk.FixedHeader.Type == packets.Connect {
		return packets.ErrAlreadyConnected
	}

	if err := pk.Validate(); err != nil {
		return err
	}

	switch pk.FixedHeader.Type {
	case packets.Connect:
		return s.processConnect(pk)
	case packets.Publish:
		return s.processPublish(pk)
	case packets.Puback:
		return s.processPuback(pk)
	case packets.Subscribe:
		return s.processSubscribe(pk)
	case packets.Unsubscribe:
		return s.processUnsubscribe(pk)
	case packets.Pingreq:
		s.send(packets.Packet{FixedHeader: packets.NewFixedHeader(packets.Pingresp)})
		return nil
	case packets.Disconnect:
		return s.processDisconnect(pk)
	case packets.Pubrec, packets.Pubrel, packets.Pubcomp:
		// QoS 2 is deliberately unsupported; fail the session rather
		// than silently mishandling an exactly-once flow.
		return packets.ErrQosNotSupported
	default:
		s.log.Warn("ignoring unexpected packet", "packet", packets.Names[pk.FixedHeader.Type], "client", s.ID)
		return nil
	}
}

// validProtocol reports whether the (version, name) pair from a CONNECT
// identifies a recognized MQTT 3.1 or 3.1.1 client.
func validProtocol(version byte, name string) bool {
	return (version == packets.ProtocolVersionV31 && name == packets.ProtocolNameV31) ||
		(version == packets.ProtocolVersionV311 && name == packets.ProtocolNameV311)
}

// processConnect validates a CONNECT packet and, when acceptable,
// transitions the session to connected and replies with a CONNACK.
func (s *Session) processConnect(pk packets.Packet) error {
	s.ProtocolName = pk.Connect.ProtocolName
	s.ProtocolVersion = pk.Connect.ProtocolVersion
	s.CleanSession = pk.Connect.Clean
	s.Keepalive = pk.Connect.Keepalive
	s.ID = pk.Connect.ClientIdentifier

	if pk.Connect.UsernameFlag {
		s.Username = pk.Connect.Username
	}

	if pk.Connect.WillFlag {
		s.Will = &Will{
			TopicName: pk.Connect.WillTopic,
			Payload:   pk.Connect.WillPayload,
			Qos:       pk.Connect.WillQos,
			Retain:    pk.Connect.WillRetain,
		}
	}

	if !validProtocol(s.ProtocolVersion, s.ProtocolName) {
		s.sendConnack(packets.ErrUnacceptableProtocolVersion)
		return packets.ErrUnacceptableProtocolVersion
	}

	if err := s.validateClientID(); err != nil {
		code := packets.ErrIdentifierRejected
		s.sendConnack(code)
		return code
	}

	if !s.ops.Hooks.OnConnectAuthenticate(s, pk) {
		s.sendConnack(packets.ErrBadCredentials)
		return packets.ErrBadCredentials
	}

	if err := s.ops.Hooks.OnConnect(s, pk); err != nil {
		return err
	}

	if s.ID == "" {
		s.ID = generateClientID()
	}

	// Registration may fire a takeover shutdown on a prior holder of
	// this client id; it must not wait for that session to terminate.
	s.ops.Registry.Register(s.ID, s)

	atomic.StoreInt32(&s.state, StateConnected)
	s.ConnectedAt = time.Now().Unix()
	atomic.AddInt64(&s.ops.SysInfo.ClientsConnected, 1)

	if s.Keepalive > 0 {
		grace := time.Duration(math.Ceil(float64(s.Keepalive)*keepaliveGrace)) * time.Second
		s.tport.ArmKeepalive(grace)
	}

	s.ops.Hooks.OnSessionEstablished(s, pk)
	s.sendConnack(packets.CodeConnectAccepted)

	return nil
}

// validateClientID applies the client identifier rules: a supplied id
// must fit the configured length; an empty id is acceptable only for a
// clean MQTT 3.1.1 session, in which case one is generated later.
func (s *Session) validateClientID() error {
	if n := len(s.ID); n > 0 {
		if n > s.ops.MaxClientIDLen {
			return packets.ErrIdentifierRejected
		}

		return nil
	}

	if !s.CleanSession {
		return packets.ErrIdentifierRejected
	}

	if s.ProtocolVersion == packets.ProtocolVersionV311 {
		return nil
	}

	return packets.ErrIdentifierRejected
}

// sendConnack replies to a CONNECT. Session-present is always false:
// durable session resumption is not implemented.
func (s *Session) sendConnack(code packets.Code) {
	s.send(packets.Packet{
		FixedHeader:    packets.NewFixedHeader(packets.Connack),
		ReturnCode:     code.Code,
		SessionPresent: false,
	})
}

// processSubscribe installs the subscriptions of a SUBSCRIBE packet and
// replies with a SUBACK carrying the granted QoS for each filter in
// request order. If the ACL denies any filter the whole batch fails.
func (s *Session) processSubscribe(pk packets.Packet) error {
	pk = s.ops.Hooks.OnSubscribe(s, pk)

	for _, sub := range pk.Filters {
		if !s.ops.Hooks.OnACLCheck(s, sub.Filter, false) {
			s.log.Info("subscribe denied by acl", "client", s.ID, "filter", sub.Filter)
			codes := make([]byte, len(pk.Filters))
			for i := range codes {
				codes[i] = packets.QosFailure
			}

			s.send(packets.Packet{
				FixedHeader: packets.NewFixedHeader(packets.Suback),
				PacketID:    pk.PacketID,
				ReasonCodes: codes,
			})

			return nil
		}
	}

	reasonCodes := make([]byte, len(pk.Filters))
	for i, sub := range pk.Filters {
		sub.Qos = degradeQos(sub.Qos)

		existing, ok := s.Subscriptions.Get(sub.Filter)
		switch {
		case !ok:
			s.ops.Router.Subscribe(s.ID, sub, s)
			s.Subscriptions.Add(sub)
			atomic.AddInt64(&s.ops.SysInfo.Subscriptions, 1)
		case existing.Qos == sub.Qos:
			s.log.Debug("duplicate subscription", "client", s.ID, "filter", sub.Filter, "qos", sub.Qos)
		default:
			s.ops.Router.SetQos(s.ID, sub.Filter, sub.Qos)
			s.Subscriptions.Add(sub)
		}

		reasonCodes[i] = sub.Qos
	}

	s.ops.Hooks.OnSubscribed(s, pk, reasonCodes)
	s.send(packets.Packet{
		FixedHeader: packets.NewFixedHeader(packets.Suback),
		PacketID:    pk.PacketID,
		ReasonCodes: reasonCodes,
	})

	return nil
}

// processUnsubscribe removes the filters of an UNSUBSCRIBE packet from
// the router and the subscription map. Filters which were never
// subscribed are ignored.
func (s *Session) processUnsubscribe(pk packets.Packet) error {
	pk = s.ops.Hooks.OnUnsubscribe(s, pk)

	for _, sub := range pk.Filters {
		if !s.Subscriptions.Delete(sub.Filter) {
			s.log.Debug("unsubscribe for unknown filter", "client", s.ID, "filter", sub.Filter)
			continue
		}

		s.ops.Router.Unsubscribe(s.ID, sub.Filter)
		atomic.AddInt64(&s.ops.SysInfo.Subscriptions, -1)
	}

	s.ops.Hooks.OnUnsubscribed(s, pk)
	s.send(packets.Packet{
		FixedHeader: packets.NewFixedHeader(packets.Unsuback),
		PacketID:    pk.PacketID,
	})

	return nil
}

// processDisconnect handles a clean termination requested by the
// client. The will message is discarded [MQTT-3.14.4-3].
func (s *Session) processDisconnect(pk packets.Packet) error {
	s.Will = nil
	return packets.CodeDisconnect
}

// send writes one packet to the transport. The transport owns buffering
// and backpressure, so failures are logged rather than surfaced.
func (s *Session) send(pk packets.Packet) {
	if err := s.tport.Send(pk); err != nil {
		s.log.Warn("failed writing packet", "error", err, "packet", packets.Names[pk.FixedHeader.Type], "client", s.ID)
	}

	s.log.Info("sent packet", "packet", packets.Names[pk.FixedHeader.Type], "client", s.ID)
	s.ops.SysInfo.AddSent(pk.FixedHeader.Type, 1)
	atomic.AddInt64(&s.ops.SysInfo.PacketsSent, 1)
	s.ops.Hooks.OnPacketSent(s, pk)
}

// terminate ends the session exactly once: timers are released, the
// will message is emitted when appropriate, the registry entry is
// removed, and the disconnect hook fires.
func (s *Session) terminate(reason error) {
	s.once.Do(func() {
		prev := atomic.SwapInt32(&s.state, StateTerminated)

		for id, timer := range s.awaiting {
			timer.Stop()
			delete(s.awaiting, id)
		}

		if prev == StateConnected {
			takeover := errors.Is(reason, packets.ErrSessionTakenOver)

			if s.Will != nil && !takeover && s.ID != "" {
				s.publishWill()
			}

			// A displaced session must not unregister: the replacement
			// already owns the id and removing it would race.
			if !takeover {
				s.ops.Registry.Unregister(s.ID, s)
			}

			atomic.AddInt64(&s.ops.SysInfo.ClientsConnected, -1)
			atomic.AddInt64(&s.ops.SysInfo.ClientsDisconnected, 1)
		}

		s.ops.Hooks.OnDisconnect(s, reason)
		s.log.Info("session terminated", "client", s.ID, "reason", reason)

		s.err = reason
		close(s.done)
	})
}

// publishWill hands the session's will message to the router on behalf
// of the client. The packet's Origin is the client id; the username is
// not attached.
func (s *Session) publishWill() {
	will, err := s.ops.Hooks.OnWill(s, *s.Will)
	if err != nil || will.TopicName == "" {
		return
	}

	pk := packets.Packet{
		FixedHeader: packets.FixedHeader{
			Type:   packets.Publish,
			Qos:    will.Qos,
			Retain: will.Retain,
		},
		TopicName: will.TopicName,
		Payload:   will.Payload,
		Origin:    s.ID,
		Created:   time.Now().Unix(),
	}

	s.ops.Router.Publish(pk)
	s.ops.Hooks.OnWillSent(s, pk)
}
