// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2026 breeze-mqtt

// Package bolt provides a storage hook which records session, subscription
// and will events in a boltdb file. Records are observational; inflight
// state is never restored into a session.
package bolt

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"go.etcd.io/bbolt"

	"github.com/breeze-mqtt/breeze"
	"github.com/breeze-mqtt/breeze/hooks/storage"
	"github.com/breeze-mqtt/breeze/packets"
)

var (
	// ErrDBNotOpen indicates the boltdb file is not open.
	ErrDBNotOpen = errors.New("boltdb not open")
)

const (
	// defaultDbFile is the default file path for the boltdb file.
	defaultDbFile = ".bolt"

	// defaultTimeout is the default time to hold a connection to the file.
	defaultTimeout = 250 * time.Millisecond

	// defaultBucket is the default bucket records are stored in.
	defaultBucket = "breeze"
)

// clientKey returns a primary key for a client.
func clientKey(cl *breeze.Session) string {
	return storage.ClientKey + "_" + cl.ID
}

// subscriptionKey returns a primary key for a subscription.
func subscriptionKey(cl *breeze.Session, filter string) string {
	return storage.SubscriptionKey + "_" + cl.ID + ":" + filter
}

// willKey returns a primary key for a will message.
func willKey(cl *breeze.Session) string {
	return storage.WillKey + "_" + cl.ID
}

// inflightKey returns a primary key for an inflight message.
func inflightKey(cl *breeze.Session, pk packets.Packet) string {
	return storage.InflightKey + "_" + cl.ID + ":" + pk.FormatID()
}

// Options contains configuration settings for the bolt instance.
type Options struct {
	Options *bbolt.Options `yaml:"-" json:"-"`
	Bucket  string         `yaml:"bucket" json:"bucket"`
	Path    string         `yaml:"path" json:"path"`
}

// Hook is a persistent storage hook using a boltdb file store as a
// backend.
type Hook struct {
	breeze.HookBase
	config *Options
	db     *bbolt.DB
}

// ID returns the id of the hook.
func (h *Hook) ID() string {
	return "bolt-db"
}

// Provides indicates which hook methods this hook provides.
func (h *Hook) Provides(b byte) bool {
	return bytes.Contains([]byte{
		breeze.OnSessionEstablished,
		breeze.OnDisconnect,
		breeze.OnSubscribed,
		breeze.OnUnsubscribed,
		breeze.OnQosPublish,
		breeze.OnQosComplete,
		breeze.OnWillSent,
	}, []byte{b})
}

// Init initializes and connects to the boltdb instance.
func (h *Hook) Init(config any) error {
	if _, ok := config.(*Options); !ok && config != nil {
		return breeze.ErrInvalidConfigType
	}

	if config == nil {
		config = new(Options)
	}

	h.config = config.(*Options)
	if h.config.Options == nil {
		h.config.Options = &bbolt.Options{
			Timeout: defaultTimeout,
		}
	}

	if len(h.config.Path) == 0 {
		h.config.Path = defaultDbFile
	}

	if len(h.config.Bucket) == 0 {
		h.config.Bucket = defaultBucket
	}

	db, err := bbolt.Open(h.config.Path, 0600, h.config.Options)
	if err != nil {
		return err
	}
	h.db = db

	return h.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(h.config.Bucket))
		return err
	})
}

// Stop closes the boltdb instance.
func (h *Hook) Stop() error {
	if h.db == nil {
		return nil
	}

	err := h.db.Close()
	h.db = nil
	return err
}

// setJSON stores a JSON-encoded record by key.
func (h *Hook) setJSON(key string, v any) error {
	if h.db == nil {
		return ErrDBNotOpen
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return h.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(h.config.Bucket)).Put([]byte(key), data)
	})
}

// delKey removes a record by key.
func (h *Hook) delKey(key string) error {
	if h.db == nil {
		return ErrDBNotOpen
	}

	return h.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(h.config.Bucket)).Delete([]byte(key))
	})
}

// getJSON reads a JSON-encoded record by key into v, returning false if
// the key is absent.
func (h *Hook) getJSON(key string, v any) (bool, error) {
	if h.db == nil {
		return false, ErrDBNotOpen
	}

	var data []byte
	err := h.db.View(func(tx *bbolt.Tx) error {
		if raw := tx.Bucket([]byte(h.config.Bucket)).Get([]byte(key)); raw != nil {
			data = append(data, raw...)
		}
		return nil
	})
	if err != nil || data == nil {
		return false, err
	}

	return true, json.Unmarshal(data, v)
}

// OnSessionEstablished stores a record of the connected client.
func (h *Hook) OnSessionEstablished(cl *breeze.Session, pk packets.Packet) {
	err := h.setJSON(clientKey(cl), storage.Client{
		ID:              cl.ID,
		Remote:          cl.Remote(),
		Username:        cl.Username,
		Clean:           cl.CleanSession,
		ProtocolVersion: cl.ProtocolVersion,
		Keepalive:       cl.Keepalive,
		ConnectedAt:     cl.ConnectedAt,
	})
	if err != nil {
		h.Log.Error("failed to store client record", "error", err, "client", cl.ID)
	}
}

// OnDisconnect updates the client record with the disconnection time.
func (h *Hook) OnDisconnect(cl *breeze.Session, err error) {
	if cl.ID == "" {
		return
	}

	var record storage.Client
	ok, gerr := h.getJSON(clientKey(cl), &record)
	if gerr != nil || !ok {
		return
	}

	record.DisconnectedAt = time.Now().Unix()
	if serr := h.setJSON(clientKey(cl), record); serr != nil {
		h.Log.Error("failed to update client record", "error", serr, "client", cl.ID)
	}
}

// OnSubscribed stores a record for each granted subscription.
func (h *Hook) OnSubscribed(cl *breeze.Session, pk packets.Packet, reasonCodes []byte) {
	for i, sub := range pk.Filters {
		if i < len(reasonCodes) && reasonCodes[i] == packets.QosFailure {
			continue
		}

		err := h.setJSON(subscriptionKey(cl, sub.Filter), storage.Subscription{
			Client: cl.ID,
			Filter: sub.Filter,
			Qos:    sub.Qos,
		})
		if err != nil {
			h.Log.Error("failed to store subscription record", "error", err, "client", cl.ID)
		}
	}
}

// OnUnsubscribed removes the records of the removed subscriptions.
func (h *Hook) OnUnsubscribed(cl *breeze.Session, pk packets.Packet) {
	for _, sub := range pk.Filters {
		if err := h.delKey(subscriptionKey(cl, sub.Filter)); err != nil {
			h.Log.Error("failed to delete subscription record", "error", err, "client", cl.ID)
		}
	}
}

// OnQosPublish stores a record of a QoS 1 message issued to the client.
func (h *Hook) OnQosPublish(cl *breeze.Session, pk packets.Packet, sent int64, resends int) {
	err := h.setJSON(inflightKey(cl, pk), storage.Message{
		Client:    cl.ID,
		TopicName: pk.TopicName,
		Payload:   pk.Payload,
		Qos:       pk.FixedHeader.Qos,
		PacketID:  pk.PacketID,
		Sent:      sent,
	})
	if err != nil {
		h.Log.Error("failed to store inflight record", "error", err, "client", cl.ID)
	}
}

// OnQosComplete removes the record of an acknowledged message.
func (h *Hook) OnQosComplete(cl *breeze.Session, pk packets.Packet) {
	if err := h.delKey(inflightKey(cl, pk)); err != nil {
		h.Log.Error("failed to delete inflight record", "error", err, "client", cl.ID)
	}
}

// OnWillSent stores a record of an emitted will message.
func (h *Hook) OnWillSent(cl *breeze.Session, pk packets.Packet) {
	err := h.setJSON(willKey(cl), storage.Message{
		Client:    cl.ID,
		TopicName: pk.TopicName,
		Payload:   pk.Payload,
		Qos:       pk.FixedHeader.Qos,
		Retain:    pk.FixedHeader.Retain,
	})
	if err != nil {
		h.Log.Error("failed to store will record", "error", err, "client", cl.ID)
	}
}
