// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2026 breeze-mqtt

package breeze

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/breeze-mqtt/breeze/packets"
)

// degradeQos caps a QoS byte at 1. QoS 2 is not supported, so both
// subscription grants and deliveries are degraded on admission.
func degradeQos(qos byte) byte {
	if qos > 1 {
		return 1
	}

	return qos
}

// processPublish handles an ingress PUBLISH from the client. QoS 0 and
// 1 messages are checked against the (cached) publish ACL and handed to
// the router; QoS 1 is acknowledged with a PUBACK once routed. A QoS 2
// PUBLISH fails the session.
func (s *Session) processPublish(pk packets.Packet) error {
	if pk.FixedHeader.Qos > 1 {
		return packets.ErrQosNotSupported
	}

	allowed := s.acl.Check(pk.TopicName, func() bool {
		return s.ops.Hooks.OnACLCheck(s, pk.TopicName, true)
	})

	// MQTT 3 has no negative acknowledgement for a denied publish at
	// QoS <= 1; the message is dropped silently.
	if !allowed {
		s.log.Info("publish denied by acl", "client", s.ID, "topic", pk.TopicName)
		atomic.AddInt64(&s.ops.SysInfo.MessagesDropped, 1)
		s.ops.Hooks.OnPublishDropped(s, pk)
		return nil
	}

	pkx, err := s.ops.Hooks.OnPublish(s, pk)
	if err != nil {
		if errors.Is(err, packets.ErrRejectPacket) {
			return nil
		}

		return err
	}
	pk = pkx

	pk.Origin = s.ID
	pk.Created = time.Now().Unix()
	s.ops.Router.Publish(pk)
	atomic.AddInt64(&s.ops.SysInfo.MessagesReceived, 1)
	s.ops.Hooks.OnPublished(s, pk)

	if pk.FixedHeader.Qos == 1 {
		s.send(packets.Packet{
			FixedHeader: packets.NewFixedHeader(packets.Puback),
			PacketID:    pk.PacketID,
		})
	}

	return nil
}

// processPuback completes the QoS 1 flow for an outbound message: the
// retransmit timer is cancelled and the message leaves the inflight
// queue. An ack for an unknown packet id is logged and ignored.
func (s *Session) processPuback(pk packets.Packet) error {
	timer, ok := s.awaiting[pk.PacketID]
	if !ok {
		s.log.Warn(packets.ErrPacketIDNotFound.Reason, "client", s.ID, "id", pk.PacketID)
		return nil
	}

	timer.Stop()
	delete(s.awaiting, pk.PacketID)

	acked, found := s.Inflight.Get(pk.PacketID)
	s.Inflight.Delete(pk.PacketID)
	atomic.AddInt64(&s.ops.SysInfo.Inflight, -1)

	if found {
		s.ops.Hooks.OnQosComplete(s, acked)
	}

	return nil
}

// deliverMessage sends one message from the router out to the client.
// The effective QoS is the lesser of the degraded message QoS and the
// granted subscription QoS; QoS 1 deliveries are assigned a fresh
// packet id, tracked inflight, and scheduled for retransmission.
func (s *Session) deliverMessage(matched string, pk packets.Packet) {
	out := pk.Copy()

	subQos := degradeQos(pk.FixedHeader.Qos)
	if sub, ok := s.Subscriptions.Get(matched); ok {
		subQos = sub.Qos
	} else {
		s.log.Debug("delivery without matching subscription", "client", s.ID, "filter", matched)
	}

	qos := degradeQos(pk.FixedHeader.Qos)
	if subQos < qos {
		qos = subQos
	}
	out.FixedHeader.Qos = qos

	if qos == 0 {
		s.send(out)
		atomic.AddInt64(&s.ops.SysInfo.MessagesSent, 1)
		return
	}

	out.PacketID = s.pids.Next()
	out.FixedHeader.Dup = false

	now := time.Now().Unix()
	s.send(out)
	atomic.AddInt64(&s.ops.SysInfo.MessagesSent, 1)

	s.Inflight.Set(out, now)
	atomic.AddInt64(&s.ops.SysInfo.Inflight, 1)
	s.armRetry(out.PacketID)
	s.ops.Hooks.OnQosPublish(s, out, now, 0)
}

// armRetry schedules a retransmission for a packet id. The timer fire
// is delivered as a mailbox event so it never runs concurrently with
// packet handling.
func (s *Session) armRetry(id uint16) {
	s.awaiting[id] = time.AfterFunc(s.ops.RetryInterval, func() {
		s.Timeout(id)
	})
}

// retry handles an awaiting-ack timer fire: the message is re-sent with
// the dup flag set and its original packet id, and the timer re-armed.
// A fire for an already-acknowledged id is stale and ignored.
func (s *Session) retry(id uint16) {
	if _, ok := s.awaiting[id]; !ok {
		s.log.Debug("stale retransmit timer", "client", s.ID, "id", id)
		return
	}

	now := time.Now().Unix()
	out, resends, ok := s.Inflight.Resend(id, now)
	if !ok {
		s.log.Error(packets.ErrInflightInconsistent.Reason, "client", s.ID, "id", id)
		delete(s.awaiting, id)
		return
	}

	s.send(out)
	atomic.AddInt64(&s.ops.SysInfo.MessagesSent, 1)
	s.armRetry(id)
	s.ops.Hooks.OnQosPublish(s, out, now, resends)
}
