// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2026 breeze-mqtt

// Package packets contains the in-memory representation of MQTT 3.1 and
// 3.1.1 control packets, the CONNACK return codes, and the structural
// validation rules applied to inbound packets before dispatch. Byte-level
// framing and parsing belong to the transport and are not part of this
// package.
package packets

import (
	"fmt"

	"github.com/jinzhu/copier"
)

// All of the valid packet types and their packet type identifier.
const (
	Reserved    byte = iota
	Connect          // 1
	Connack          // 2
	Publish          // 3
	Puback           // 4
	Pubrec           // 5
	Pubrel           // 6
	Pubcomp          // 7
	Subscribe        // 8
	Suback           // 9
	Unsubscribe      // 10
	Unsuback         // 11
	Pingreq          // 12
	Pingresp         // 13
	Disconnect       // 14
)

// Names is a map that provides human-readable names for the different
// MQTT packet types based on their ids.
var Names = map[byte]string{
	0:  "RESERVED",
	1:  "CONNECT",
	2:  "CONNACK",
	3:  "PUBLISH",
	4:  "PUBACK",
	5:  "PUBREC",
	6:  "PUBREL",
	7:  "PUBCOMP",
	8:  "SUBSCRIBE",
	9:  "SUBACK",
	10: "UNSUBSCRIBE",
	11: "UNSUBACK",
	12: "PINGREQ",
	13: "PINGRESP",
	14: "DISCONNECT",
}

const (
	// ProtocolNameV31 is the protocol name presented by MQTT 3.1 clients.
	ProtocolNameV31 = "MQIsdp"

	// ProtocolNameV311 is the protocol name presented by MQTT 3.1.1 clients.
	ProtocolNameV311 = "MQTT"

	// ProtocolVersionV31 is the protocol level of MQTT 3.1.
	ProtocolVersionV31 byte = 3

	// ProtocolVersionV311 is the protocol level of MQTT 3.1.1.
	ProtocolVersionV311 byte = 4
)

// FixedHeader contains the values of the fixed header portion of an
// MQTT packet.
type FixedHeader struct {
	Type   byte `json:"t"` // the type of the packet (PUBLISH, SUBSCRIBE, etc).
	Dup    bool `json:"d"` // indicates if the packet was already sent at an earlier time.
	Qos    byte `json:"q"` // indicates the quality of service expected.
	Retain bool `json:"r"` // whether the message should be retained.
}

// NewFixedHeader returns a fresh fixed header for a given packet type.
func NewFixedHeader(packetType byte) FixedHeader {
	return FixedHeader{
		Type: packetType,
	}
}

// ConnectParams contains the protocol and session values presented by a
// client in a CONNECT packet.
type ConnectParams struct {
	ProtocolName     string `json:"protocolName"`
	ProtocolVersion  byte   `json:"protocolVersion"`
	Clean            bool   `json:"clean"`
	ClientIdentifier string `json:"clientId"`
	Keepalive        uint16 `json:"keepalive"`
	Username         []byte `json:"username"`
	Password         []byte `json:"password"`
	UsernameFlag     bool   `json:"usernameFlag"`
	PasswordFlag     bool   `json:"passwordFlag"`
	WillFlag         bool   `json:"willFlag"`
	WillTopic        string `json:"willTopic"`
	WillPayload      []byte `json:"willPayload"`
	WillQos          byte   `json:"willQos"`
	WillRetain       bool   `json:"willRetain"`
}

// Subscription is the parsed form of a single (filter, qos) entry from a
// SUBSCRIBE topic table. Once granted, Qos holds the granted QoS.
type Subscription struct {
	Filter string `json:"filter"`
	Qos    byte   `json:"qos"`
}

// Subscriptions is a list of subscription entries, in request order.
type Subscriptions []Subscription

// Packet is the in-memory representation of an MQTT packet. A single
// struct is used for all packet types; only the fields relevant to the
// packet's type are populated.
type Packet struct {
	Connect        ConnectParams `json:"connect"`     // CONNECT packet values
	Filters        Subscriptions `json:"filters"`     // SUBSCRIBE/UNSUBSCRIBE topic tables
	TopicName      string        `json:"topicName"`   // PUBLISH topic
	Payload        []byte        `json:"payload"`     // PUBLISH payload
	ReasonCodes    []byte        `json:"reasonCodes"` // SUBACK granted/failure codes
	Origin         string        `json:"origin"`      // the client id of the publisher
	FixedHeader    FixedHeader   `json:"fixedHeader"`
	PacketID       uint16        `json:"packetId"`
	ReturnCode     byte          `json:"returnCode"`     // CONNACK return code
	SessionPresent bool          `json:"sessionPresent"` // CONNACK session present flag
	Created        int64         `json:"created"`        // unix timestamp the packet was created
}

// Copy returns a deep copy of a packet suitable for delivery to a
// subscriber: payload and topic are retained, while the dup flag and
// packet id are reset so the receiving session can assign its own.
func (pk Packet) Copy() Packet {
	out := Packet{
		FixedHeader: FixedHeader{
			Type:   pk.FixedHeader.Type,
			Qos:    pk.FixedHeader.Qos,
			Retain: pk.FixedHeader.Retain,
		},
		TopicName: pk.TopicName,
		Origin:    pk.Origin,
		Created:   pk.Created,
	}

	_ = copier.CopyWithOption(&out.Payload, &pk.Payload, copier.Option{DeepCopy: true})
	_ = copier.CopyWithOption(&out.Filters, &pk.Filters, copier.Option{DeepCopy: true})

	return out
}

// FormatID returns the decimal string form of the packet id.
func (pk Packet) FormatID() string {
	return fmt.Sprint(pk.PacketID)
}
