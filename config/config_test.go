// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2026 breeze-mqtt

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breeze-mqtt/breeze/hooks/auth"
	"github.com/breeze-mqtt/breeze/hooks/storage/bolt"
)

const yamlConfig = `
options:
  max_clientid_len: 64
  retry_interval: 10
  cache_acl: false
hooks:
  auth:
    allow_all: true
  storage:
    bolt:
      path: test.bolt
      bucket: test
`

const jsonConfig = `{
  "options": {
    "max_clientid_len": 32,
    "retry_interval": 5
  },
  "hooks": {
    "auth": {
      "ledger": {
        "auth": [{"username": "u1", "password": "p1", "allow": true}],
        "acl": [{"username": "u1", "filter": "a/#", "access": "readwrite"}]
      }
    }
  }
}`

func TestFromBytesYaml(t *testing.T) {
	opts, hooks, err := FromBytes([]byte(yamlConfig))
	require.NoError(t, err)
	require.NotNil(t, opts)

	assert.Equal(t, 64, opts.MaxClientIDLen)
	assert.Equal(t, 10*time.Second, opts.RetryInterval)
	require.NotNil(t, opts.CacheACL)
	assert.False(t, *opts.CacheACL)

	require.Len(t, hooks, 2)
	assert.IsType(t, new(auth.AllowHook), hooks[0].Hook)
	assert.IsType(t, new(bolt.Hook), hooks[1].Hook)

	boltOpts, ok := hooks[1].Config.(*bolt.Options)
	require.True(t, ok)
	assert.Equal(t, "test.bolt", boltOpts.Path)
	assert.Equal(t, "test", boltOpts.Bucket)
}

func TestFromBytesJson(t *testing.T) {
	opts, hooks, err := FromBytes([]byte(jsonConfig))
	require.NoError(t, err)

	assert.Equal(t, 32, opts.MaxClientIDLen)
	assert.Equal(t, 5*time.Second, opts.RetryInterval)
	assert.Nil(t, opts.CacheACL) // unset; defaults apply later

	require.Len(t, hooks, 1)
	_, ok := hooks[0].Hook.(*auth.Hook)
	require.True(t, ok)

	authOpts, ok := hooks[0].Config.(*auth.Options)
	require.True(t, ok)
	require.Len(t, authOpts.Ledger.Auth, 1)
	assert.Equal(t, "u1", authOpts.Ledger.Auth[0].Username)
	require.Len(t, authOpts.Ledger.ACL, 1)
	assert.Equal(t, "a/#", authOpts.Ledger.ACL[0].Filter)
}

func TestFromBytesEmpty(t *testing.T) {
	opts, hooks, err := FromBytes(nil)
	require.NoError(t, err)
	assert.Nil(t, opts)
	assert.Nil(t, hooks)
}

func TestFromBytesInvalidYaml(t *testing.T) {
	_, _, err := FromBytes([]byte("options: ["))
	require.Error(t, err)
}
