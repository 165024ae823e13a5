// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2026 breeze-mqtt

package packets

import (
	"strings"
)

// IsValidTopicName returns true if the topic is a valid publication
// topic name: non-empty and free of the + and # wildcards.
func IsValidTopicName(topic string) bool {
	if len(topic) == 0 {
		return false
	}

	return !strings.ContainsAny(topic, "+#")
}

// IsValidFilter returns true if the filter is a valid subscription
// filter: non-empty, + occupying whole levels only, and # occupying the
// whole final level only.
func IsValidFilter(filter string) bool {
	if len(filter) == 0 {
		return false
	}

	levels := strings.Split(filter, "/")
	for i, level := range levels {
		if level == "+" {
			continue
		}

		if level == "#" {
			return i == len(levels)-1
		}

		if strings.ContainsAny(level, "+#") {
			return false
		}
	}

	return true
}

// MatchFilter returns true if a topic name matches a subscription
// filter, honouring the + and # wildcards.
func MatchFilter(filter, topic string) bool {
	fparts := strings.Split(filter, "/")
	tparts := strings.Split(topic, "/")

	for i, part := range fparts {
		if part == "#" {
			return true
		}

		if i >= len(tparts) {
			return false
		}

		if part != "+" && part != tparts[i] {
			return false
		}
	}

	return len(fparts) == len(tparts)
}

// Validate performs the structural checks applied to an inbound packet
// before dispatch. PUBLISH topics must be wildcard-free names, and
// SUBSCRIBE and UNSUBSCRIBE packets must carry a non-empty table of
// valid filters. All other packet types pass.
func (pk Packet) Validate() error {
	switch pk.FixedHeader.Type {
	case Publish:
		if !IsValidTopicName(pk.TopicName) {
			return ErrBadTopic
		}
	case Subscribe:
		if len(pk.Filters) == 0 {
			return ErrEmptyTopics
		}

		for _, sub := range pk.Filters {
			if !IsValidFilter(sub.Filter) {
				return ErrBadTopic
			}

			if sub.Qos > 2 {
				return ErrBadTopic
			}
		}
	case Unsubscribe:
		if len(pk.Filters) == 0 {
			return ErrEmptyTopics
		}

		for _, sub := range pk.Filters {
			if !IsValidFilter(sub.Filter) {
				return ErrBadTopic
			}
		}
	}

	return nil
}
