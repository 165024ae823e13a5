// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2026 breeze-mqtt

// Package debug provides a hook which logs additional low-level
// information about a session's packet flow.
package debug

import (
	"log/slog"

	"github.com/breeze-mqtt/breeze"
	"github.com/breeze-mqtt/breeze/packets"
)

// Options contains configuration settings for the debug output.
type Options struct {
	ShowPacketData bool `yaml:"show_packet_data" json:"show_packet_data"` // include decoded packet data (default false)
	ShowPings      bool `yaml:"show_pings" json:"show_pings"`             // show ping requests and responses (default false)
}

// Hook is a debugging hook which logs additional low-level information
// from the session engine.
type Hook struct {
	breeze.HookBase
	config *Options
	Log    *slog.Logger
}

// ID returns the ID of the hook.
func (h *Hook) ID() string {
	return "debug"
}

// Provides indicates that this hook provides all methods.
func (h *Hook) Provides(b byte) bool {
	return true
}

// Init is called when the hook is initialized.
func (h *Hook) Init(config any) error {
	if _, ok := config.(*Options); !ok && config != nil {
		return breeze.ErrInvalidConfigType
	}

	if config == nil {
		config = new(Options)
	}

	h.config = config.(*Options)

	return nil
}

// SetOpts is called when the hook receives inheritable host parameters.
func (h *Hook) SetOpts(l *slog.Logger, opts *breeze.HookOptions) {
	h.HookBase.SetOpts(l, opts)
	h.Log = l
}

// OnPacketRead is called when a new packet is received from a client.
func (h *Hook) OnPacketRead(cl *breeze.Session, pk packets.Packet) (packets.Packet, error) {
	if pk.FixedHeader.Type == packets.Pingreq && !h.config.ShowPings {
		return pk, nil
	}

	args := []any{"client", cl.ID, "packet", packets.Names[pk.FixedHeader.Type]}
	if h.config.ShowPacketData {
		args = append(args, "topic", pk.TopicName, "payload", string(pk.Payload))
	}

	h.Log.Debug("packet read", args...)
	return pk, nil
}

// OnPacketSent is called when a packet has been written to a client.
func (h *Hook) OnPacketSent(cl *breeze.Session, pk packets.Packet) {
	if pk.FixedHeader.Type == packets.Pingresp && !h.config.ShowPings {
		return
	}

	h.Log.Debug("packet sent", "client", cl.ID, "packet", packets.Names[pk.FixedHeader.Type])
}

// OnSessionEstablished is called when a client's session has been established.
func (h *Hook) OnSessionEstablished(cl *breeze.Session, pk packets.Packet) {
	h.Log.Debug("session established",
		"client", cl.ID,
		"clean", cl.CleanSession,
		"keepalive", cl.Keepalive,
		"version", cl.ProtocolVersion)
}

// OnDisconnect is called when a session terminates for any reason.
func (h *Hook) OnDisconnect(cl *breeze.Session, err error) {
	h.Log.Debug("session disconnected", "client", cl.ID, "reason", err)
}

// OnQosPublish is called when a QoS 1 publish packet is issued to a subscriber.
func (h *Hook) OnQosPublish(cl *breeze.Session, pk packets.Packet, sent int64, resends int) {
	h.Log.Debug("qos publish", "client", cl.ID, "id", pk.PacketID, "dup", pk.FixedHeader.Dup, "resends", resends)
}

// OnQosComplete is called when the QoS flow for a message has been completed.
func (h *Hook) OnQosComplete(cl *breeze.Session, pk packets.Packet) {
	h.Log.Debug("qos complete", "client", cl.ID, "id", pk.PacketID)
}
