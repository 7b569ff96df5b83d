package stream

import (
	"sync"
	"time"
)

// Reconnect backoff constants
const (
	baseReconnectDelay = 1000 * time.Millisecond
	maxReconnectDelay  = 30000 * time.Millisecond
)

// -----------------------------------------------------------------------------

// ReconnectDelay computes the reconnect delay for the given attempt count:
// min(30000ms, 1000ms * 2^attempts).
func ReconnectDelay(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}

	delay := baseReconnectDelay
	for i := 0; i < attempts; i++ {
		delay *= 2
		if delay >= maxReconnectDelay {
			return maxReconnectDelay
		}
	}
	return delay
}

// -----------------------------------------------------------------------------

// backoffScheduler owns the single in-flight reconnect timer. Scheduling while
// a timer is already pending is a no-op, so repeated disconnect signals never
// stack reconnects.
type backoffScheduler struct {
	mu      sync.Mutex
	timer   *time.Timer
	pending bool
}

// -----------------------------------------------------------------------------

// Schedule arranges fn to run after delay. Returns false if a reconnect is
// already pending.
func (b *backoffScheduler) Schedule(delay time.Duration, fn func()) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pending {
		return false
	}

	b.pending = true
	b.timer = time.AfterFunc(delay, func() {
		b.mu.Lock()
		b.pending = false
		b.mu.Unlock()
		fn()
	})
	return true
}

// -----------------------------------------------------------------------------

// Pending reports whether a reconnect timer is outstanding.
func (b *backoffScheduler) Pending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

// -----------------------------------------------------------------------------

// Stop cancels any outstanding timer.
func (b *backoffScheduler) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.timer != nil {
		b.timer.Stop()
	}
	b.pending = false
}
