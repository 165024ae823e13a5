// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2026 breeze-mqtt

package breeze

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestACLCacheMemoizes(t *testing.T) {
	c := newACLCache(true, 8)

	calls := 0
	check := func() bool {
		calls++
		return true
	}

	assert.True(t, c.Check("a/b", check))
	assert.True(t, c.Check("a/b", check))
	assert.Equal(t, 1, calls)
}

func TestACLCacheStoresDeny(t *testing.T) {
	c := newACLCache(true, 8)

	calls := 0
	check := func() bool {
		calls++
		return false
	}

	assert.False(t, c.Check("a/b", check))
	assert.False(t, c.Check("a/b", check))
	assert.Equal(t, 1, calls)
}

func TestACLCacheDisabledAlwaysChecks(t *testing.T) {
	c := newACLCache(false, 8)

	calls := 0
	check := func() bool {
		calls++
		return true
	}

	c.Check("a/b", check)
	c.Check("a/b", check)
	assert.Equal(t, 2, calls)
}

func TestACLCacheKeyedByTopic(t *testing.T) {
	c := newACLCache(true, 8)

	assert.True(t, c.Check("a", func() bool { return true }))
	assert.False(t, c.Check("b", func() bool { return false }))
	assert.True(t, c.Check("a", func() bool { return false })) // memoized
}
