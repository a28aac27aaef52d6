// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var boltBucket = []byte("quickr1")

// BoltKV stores all keys in one bucket of a BoltDB file.
//
// The database is opened per operation rather than held open, so a second
// quickr1 process (say, "history list" while a chat is running) only waits
// for the file lock instead of failing outright.
type BoltKV struct {
	Path    string
	Timeout time.Duration
}

// NewBoltKV creates the parent directory and verifies the file can be opened.
func NewBoltKV(path string) (*BoltKV, error) {
	if path == "" {
		return nil, errors.New("bolt store needs a file path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	kv := &BoltKV{Path: path, Timeout: 2 * time.Second}

	db, err := kv.open()
	if err != nil {
		return nil, err
	}
	if err := db.Close(); err != nil {
		return nil, err
	}
	return kv, nil
}

func (b *BoltKV) open() (*bolt.DB, error) {
	db, err := bolt.Open(b.Path, 0o600, &bolt.Options{Timeout: b.Timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt store: %w", err)
	}
	return db, nil
}

func (b *BoltKV) Get(key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	db, err := b.open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	var out []byte
	err = db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		if bucket == nil {
			return ErrNotFound
		}
		v := bucket.Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		// v is only valid for the life of the transaction.
		out = append([]byte(nil), v...)
		return nil
	})
	return out, err
}

func (b *BoltKV) Set(key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	db, err := b.open()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(boltBucket)
		if err != nil {
			return err
		}
		if value == nil {
			value = []byte{}
		}
		return bucket.Put([]byte(key), value)
	})
}

func (b *BoltKV) Delete(key string) error {
	db, err := b.open()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(key))
	})
}

func (b *BoltKV) Keys() ([]string, error) {
	db, err := b.open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	var keys []string
	err = db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		if bucket == nil {
			return nil
		}
		// Bolt iterates in byte order, so keys come back sorted.
		return bucket.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

// Close is a no-op; the database is only open during an operation.
func (b *BoltKV) Close() error {
	return nil
}
