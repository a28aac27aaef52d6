// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"sync"
)

// cancelManager holds the cancel function of the running turn. Cancel is
// called from signal handlers and UI goroutines while Submit runs elsewhere.
type cancelManager struct {
	mu         sync.Mutex
	cancelFunc context.CancelFunc
}

func newCancelManager() *cancelManager {
	return &cancelManager{}
}

// setCancelFunc stores the cancel function for a new turn.
func (cm *cancelManager) setCancelFunc(fn context.CancelFunc) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.cancelFunc = fn
}

// cancel invokes the stored function. Safe to call with no turn running.
func (cm *cancelManager) cancel() {
	cm.mu.Lock()
	fn := cm.cancelFunc
	cm.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// clear cancels the context, releasing its resources, and forgets it.
func (cm *cancelManager) clear() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.cancelFunc != nil {
		cm.cancelFunc()
		cm.cancelFunc = nil
	}
}
