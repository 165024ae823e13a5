// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2026 breeze-mqtt

package breeze

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// aclCache memoizes publish ACL decisions per session, keyed on topic
// name. The cache lives for the lifetime of the session and is never
// shared across sessions; once it holds size entries, the least
// recently used entry is evicted and its topic is checked again on the
// next publish. Subscribe decisions are not cached.
type aclCache struct {
	entries *lru.Cache[string, bool]
	enabled bool
}

// newACLCache returns an aclCache bounded to size entries. When
// disabled, every check consults the backend.
func newACLCache(enabled bool, size int) *aclCache {
	c := &aclCache{
		enabled: enabled,
	}

	if enabled {
		c.entries, _ = lru.New[string, bool](size)
	}

	return c
}

// Check returns the memoized decision for a topic, consulting check on
// a miss and storing its result.
func (c *aclCache) Check(topic string, check func() bool) bool {
	if !c.enabled {
		return check()
	}

	if allowed, ok := c.entries.Get(topic); ok {
		return allowed
	}

	allowed := check()
	c.entries.Add(topic, allowed)

	return allowed
}
