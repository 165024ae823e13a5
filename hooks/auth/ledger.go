// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2026 breeze-mqtt

package auth

import (
	"encoding/json"

	"gopkg.in/yaml.v3"

	"github.com/breeze-mqtt/breeze"
	"github.com/breeze-mqtt/breeze/packets"
)

// Access levels an ACL rule may grant on matching filters.
const (
	Deny      = "deny"
	ReadOnly  = "read"
	WriteOnly = "write"
	ReadWrite = "readwrite"
)

// AuthRule defines a connection authentication rule. An empty username
// matches any client; an empty password matches any password.
type AuthRule struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	Allow    bool   `yaml:"allow" json:"allow"`
}

// ACLRule grants or denies access to the topics matching a filter for
// the clients matching a username. An empty username matches any
// client.
type ACLRule struct {
	Username string `yaml:"username" json:"username"`
	Filter   string `yaml:"filter" json:"filter"`
	Access   string `yaml:"access" json:"access"`
}

// Ledger is a set of access rules for authentication and topic ACL
// checks. Rules are evaluated in order; the first match decides.
type Ledger struct {
	Auth []AuthRule `yaml:"auth" json:"auth"`
	ACL  []ACLRule  `yaml:"acl" json:"acl"`
}

// Unmarshal parses a byte slice of YAML or JSON rules into the ledger.
func (l *Ledger) Unmarshal(data []byte) error {
	if len(data) > 0 && data[0] == '{' {
		return json.Unmarshal(data, l)
	}

	return yaml.Unmarshal(data, l)
}

// AuthOk returns true if the connecting client matches an auth rule
// which allows access. No matching rule denies.
func (l *Ledger) AuthOk(cl *breeze.Session, pk packets.Packet) bool {
	for _, rule := range l.Auth {
		if rule.Username != "" && rule.Username != string(pk.Connect.Username) {
			continue
		}

		if rule.Password != "" && rule.Password != string(pk.Connect.Password) {
			continue
		}

		return rule.Allow
	}

	return false
}

// ACLOk returns true if the client may publish (write) or subscribe
// (read) to a topic. Clients without a matching rule are allowed.
func (l *Ledger) ACLOk(cl *breeze.Session, topic string, write bool) bool {
	for _, rule := range l.ACL {
		if rule.Username != "" && rule.Username != string(cl.Username) {
			continue
		}

		if !packets.MatchFilter(rule.Filter, topic) {
			continue
		}

		switch rule.Access {
		case ReadWrite:
			return true
		case ReadOnly:
			return !write
		case WriteOnly:
			return write
		default:
			return false
		}
	}

	return true
}
