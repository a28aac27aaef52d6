// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Keys under which quickr1 state is persisted.
const (
	KeyConversations = "conversations"
	KeySidebarState  = "sidebarState"
	KeyTheme         = "theme"
)

// =============================================================================
// ERRORS
// =============================================================================

// StorageError represents a storage-related error.
// It can be compared using errors.Is.
type StorageError struct {
	Message string
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing storage errors.
func (e *StorageError) Is(target error) bool {
	t, ok := target.(*StorageError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// Sentinel errors. Use errors.Is to check for them.
var (
	ErrNotFound   = &StorageError{Message: "key not found"}
	ErrInvalidKey = &StorageError{Message: "invalid key"}
	ErrClosed     = &StorageError{Message: "store closed"}
)

// =============================================================================
// KV INTERFACE
// =============================================================================

// KV is a minimal string-keyed byte store. Set must be atomic from a
// reader's point of view: a concurrent or later Get sees the old value or
// the new one, never a mix. Get returns ErrNotFound for missing keys.
type KV interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Keys() ([]string, error)
	Close() error
}

// validateKey rejects keys that cannot be used as file names.
func validateKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\:`) || strings.ContainsRune(key, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Open returns the KV backend named by backend ("file", "bolt", "sqlite" or
// "memory") rooted at path.
func Open(backend, path string) (KV, error) {
	switch strings.ToLower(backend) {
	case "", "file":
		return NewFileKV(path)
	case "bolt":
		return NewBoltKV(path)
	case "sqlite":
		return NewSQLiteKV(path)
	case "memory":
		return NewMemoryKV(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// =============================================================================
// MEMORY KV
// =============================================================================

// MemoryKV keeps values in process memory. It is used by tests and by the
// "memory" backend for throwaway sessions.
type MemoryKV struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// NewMemoryKV creates an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

func (m *MemoryKV) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryKV) Set(key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.data, key)
	return nil
}

func (m *MemoryKV) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryKV) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
