// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2026 breeze-mqtt

// Package system contains the atomic counters a broker accumulates
// about its sessions, in the style of the MQTT $SYS topics.
package system

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/breeze-mqtt/breeze/packets"
)

// maxPacketType bounds the per-packet-type counter array; MQTT 3 packet
// types occupy [1, 14].
const maxPacketType = 15

// Info contains atomic counters for various server statistics commonly
// found in $SYS topics. All fields must be accessed atomically.
type Info struct {
	Started             int64 `json:"started"`              // the time the broker started in unix seconds
	ClientsConnected    int64 `json:"clients_connected"`    // number of currently connected clients
	ClientsDisconnected int64 `json:"clients_disconnected"` // total number of disconnected clients
	MessagesReceived    int64 `json:"messages_received"`    // total number of publish messages received
	MessagesSent        int64 `json:"messages_sent"`        // total number of publish messages sent
	MessagesDropped     int64 `json:"messages_dropped"`     // total number of publish messages dropped
	Inflight            int64 `json:"inflight"`             // the number of messages currently in-flight
	Subscriptions       int64 `json:"subscriptions"`        // total number of subscriptions active on the broker
	PacketsReceived     int64 `json:"packets_received"`     // the total number of packets received
	PacketsSent         int64 `json:"packets_sent"`         // the total number of packets sent

	// sentByType counts sent packets per packet type, indexed by the
	// packet type byte.
	sentByType [maxPacketType]int64
}

// AddSent increments the sent counter for a packet type.
func (i *Info) AddSent(packetType byte, n int64) {
	if int(packetType) >= maxPacketType {
		return
	}

	atomic.AddInt64(&i.sentByType[packetType], n)
}

// Sent returns the number of packets sent for a packet type.
func (i *Info) Sent(packetType byte) int64 {
	if int(packetType) >= maxPacketType {
		return 0
	}

	return atomic.LoadInt64(&i.sentByType[packetType])
}

// Clone makes a copy of Info using atomic operations.
func (i *Info) Clone() *Info {
	c := &Info{
		Started:             atomic.LoadInt64(&i.Started),
		ClientsConnected:    atomic.LoadInt64(&i.ClientsConnected),
		ClientsDisconnected: atomic.LoadInt64(&i.ClientsDisconnected),
		MessagesReceived:    atomic.LoadInt64(&i.MessagesReceived),
		MessagesSent:        atomic.LoadInt64(&i.MessagesSent),
		MessagesDropped:     atomic.LoadInt64(&i.MessagesDropped),
		Inflight:            atomic.LoadInt64(&i.Inflight),
		Subscriptions:       atomic.LoadInt64(&i.Subscriptions),
		PacketsReceived:     atomic.LoadInt64(&i.PacketsReceived),
		PacketsSent:         atomic.LoadInt64(&i.PacketsSent),
	}

	for t := range i.sentByType {
		c.sentByType[t] = atomic.LoadInt64(&i.sentByType[t])
	}

	return c
}

// RegisterPrometheusMetrics exposes the counters on a prometheus
// registry. A nil registry uses the default registerer.
func (i *Info) RegisterPrometheusMetrics(registry prometheus.Registerer) {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	type metric struct {
		metricType string
		name       string
		help       string
		value      *int64
	}

	metricsList := []metric{
		{"g", "clients_connected", "A gauge of the number of currently connected clients", &i.ClientsConnected},
		{"c", "clients_disconnected", "A counter of the total number of disconnected clients", &i.ClientsDisconnected},
		{"c", "messages_received", "A counter of the total number of publish messages received", &i.MessagesReceived},
		{"c", "messages_sent", "A counter of the total number of publish messages sent", &i.MessagesSent},
		{"c", "messages_dropped", "A counter of the total number of publish messages dropped", &i.MessagesDropped},
		{"g", "inflight", "A gauge of the number of messages currently in-flight", &i.Inflight},
		{"g", "subscriptions", "A gauge of the total number of active subscriptions", &i.Subscriptions},
		{"c", "packets_received", "A counter of the total number of packets received", &i.PacketsReceived},
		{"c", "packets_sent", "A counter of the total number of packets sent", &i.PacketsSent},
	}

	for t := byte(1); t < maxPacketType; t++ {
		t := t
		registry.MustRegister(
			prometheus.NewCounterFunc(
				prometheus.CounterOpts{
					Name:        "packets_sent_by_type",
					Help:        "A counter of the packets sent per packet type",
					ConstLabels: prometheus.Labels{"type": packets.Names[t]},
				},
				func() float64 {
					return float64(i.Sent(t))
				},
			),
		)
	}

	for _, m := range metricsList {
		m := m
		fn := func() float64 {
			return float64(atomic.LoadInt64(m.value))
		}

		switch m.metricType {
		case "c":
			registry.MustRegister(
				prometheus.NewCounterFunc(
					prometheus.CounterOpts{
						Name: m.name,
						Help: m.help,
					},
					fn,
				),
			)
		case "g":
			registry.MustRegister(
				prometheus.NewGaugeFunc(
					prometheus.GaugeOpts{
						Name: m.name,
						Help: m.help,
					},
					fn,
				),
			)
		}
	}
}
