// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"sync"

	"github.com/jeranaias/quickr1/internal/model"
	"golang.org/x/time/rate"
)

// Saver writes conversation snapshots in the background.
//
// Snapshots go into a single-slot mailbox: a newer snapshot replaces one that
// has not been written yet, so a burst of streamed fragments costs at most a
// few writes. Writes are paced by a token bucket. Close writes whatever is
// still pending before returning.
type Saver struct {
	store   *Store
	limiter *rate.Limiter

	// writeMu is held from taking a snapshot until it is written, so
	// snapshots land in the order they were taken.
	writeMu sync.Mutex

	mu      sync.Mutex
	pending []*model.Conversation
	queued  bool
	closed  bool
	writes  int

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSaver starts a saver writing to store at most perSecond times a second.
// perSecond <= 0 disables pacing.
func NewSaver(store *Store, perSecond float64) *Saver {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Saver{
		store:   store,
		limiter: rate.NewLimiter(limit, 1),
		wake:    make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

// Enqueue schedules convs to be saved and returns immediately. The caller
// must not mutate convs afterwards; pass a snapshot. After Close the
// snapshot is written before Enqueue returns.
func (s *Saver) Enqueue(convs []*model.Conversation) {
	s.mu.Lock()
	s.pending = convs
	s.queued = true
	closed := s.closed
	s.mu.Unlock()

	if closed {
		s.store.logger.Warn("saver closed, writing snapshot synchronously")
		s.flush()
		return
	}

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Writes returns how many snapshots have been written so far.
func (s *Saver) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Close stops the background goroutine and writes the last pending snapshot.
func (s *Saver) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	<-s.done
	s.flush()
	return nil
}

func (s *Saver) run() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
		}
		if err := s.limiter.Wait(s.ctx); err != nil {
			// Canceled while waiting; Close flushes.
			return
		}
		s.flush()
	}
}

// flush writes the pending snapshot, if any.
func (s *Saver) flush() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if !s.queued {
		s.mu.Unlock()
		return
	}
	convs := s.pending
	s.pending = nil
	s.queued = false
	s.mu.Unlock()

	s.store.SaveConversations(convs)

	s.mu.Lock()
	s.writes++
	s.mu.Unlock()
}
