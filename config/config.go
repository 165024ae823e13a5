// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2026 breeze-mqtt

// Package config parses YAML or JSON configuration data into session
// options and hook configurations.
package config

import (
	"encoding/json"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/breeze-mqtt/breeze"
	"github.com/breeze-mqtt/breeze/hooks/auth"
	"github.com/breeze-mqtt/breeze/hooks/debug"
	"github.com/breeze-mqtt/breeze/hooks/storage/bolt"
)

// config defines the structure of configuration data to be parsed from
// a config source.
type config struct {
	Options     options     `yaml:"options" json:"options"`
	HookConfigs HookConfigs `yaml:"hooks" json:"hooks"`
}

// options mirrors breeze.Options with durations expressed in seconds,
// as they appear in configuration files.
type options struct {
	MaxClientIDLen       int   `yaml:"max_clientid_len" json:"max_clientid_len"`
	RetryIntervalSeconds int   `yaml:"retry_interval" json:"retry_interval"`
	CacheACL             *bool `yaml:"cache_acl" json:"cache_acl"`
	ACLCacheSize         int   `yaml:"acl_cache_size" json:"acl_cache_size"`
	MailboxSize          int   `yaml:"mailbox_size" json:"mailbox_size"`
}

// HookConfigs contains configurations to enable individual hooks.
type HookConfigs struct {
	Auth    *HookAuthConfig    `yaml:"auth" json:"auth"`
	Storage *HookStorageConfig `yaml:"storage" json:"storage"`
	Debug   *debug.Options     `yaml:"debug" json:"debug"`
}

// HookAuthConfig contains configurations for the auth hook.
type HookAuthConfig struct {
	Ledger   auth.Ledger `yaml:"ledger" json:"ledger"`
	AllowAll bool        `yaml:"allow_all" json:"allow_all"`
}

// HookStorageConfig contains configurations for the storage hooks.
type HookStorageConfig struct {
	Bolt *bolt.Options `yaml:"bolt" json:"bolt"`
}

// ToHooks converts hook file configurations into hooks to be added by
// the host.
func (hc HookConfigs) ToHooks() []breeze.HookLoadConfig {
	var hlc []breeze.HookLoadConfig

	if hc.Auth != nil {
		if hc.Auth.AllowAll {
			hlc = append(hlc, breeze.HookLoadConfig{
				Hook: new(auth.AllowHook),
			})
		} else {
			hlc = append(hlc, breeze.HookLoadConfig{
				Hook: new(auth.Hook),
				Config: &auth.Options{
					Ledger: &auth.Ledger{
						Auth: hc.Auth.Ledger.Auth,
						ACL:  hc.Auth.Ledger.ACL,
					},
				},
			})
		}
	}

	if hc.Storage != nil && hc.Storage.Bolt != nil {
		hlc = append(hlc, breeze.HookLoadConfig{
			Hook:   new(bolt.Hook),
			Config: hc.Storage.Bolt,
		})
	}

	if hc.Debug != nil {
		hlc = append(hlc, breeze.HookLoadConfig{
			Hook:   new(debug.Hook),
			Config: hc.Debug,
		})
	}

	return hlc
}

// FromBytes unmarshals a byte slice of JSON or YAML config data into
// session options and hook load configurations.
func FromBytes(b []byte) (*breeze.Options, []breeze.HookLoadConfig, error) {
	c := new(config)

	if len(b) == 0 {
		return nil, nil, nil
	}

	if b[0] == '{' {
		if err := json.Unmarshal(b, c); err != nil {
			return nil, nil, err
		}
	} else {
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, nil, err
		}
	}

	o := &breeze.Options{
		MaxClientIDLen: c.Options.MaxClientIDLen,
		RetryInterval:  time.Duration(c.Options.RetryIntervalSeconds) * time.Second,
		CacheACL:       c.Options.CacheACL,
		ACLCacheSize:   c.Options.ACLCacheSize,
		MailboxSize:    c.Options.MailboxSize,
	}

	return o, c.HookConfigs.ToHooks(), nil
}
