package stream

import (
	"sync"
	"time"

	"vessel-tracker/src/logger"
)

// -----------------------------------------------------------------------------

// inactivityMonitor emits a heartbeat log for every interval that passes
// without stream traffic. The elapsed counter resets on every parsed message
// and on each fresh subscription. One monitor lives per Open connection; it is
// torn down when the connection leaves Open so no ticker leaks across
// reconnects.
type inactivityMonitor struct {
	logger   *logger.Logger
	interval time.Duration

	mu      sync.Mutex
	elapsed int

	done     chan struct{}
	stopOnce sync.Once
}

// -----------------------------------------------------------------------------

func newInactivityMonitor(interval time.Duration, log *logger.Logger) *inactivityMonitor {
	return &inactivityMonitor{
		logger:   log,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// -----------------------------------------------------------------------------

// Start runs the heartbeat loop until Stop is called.
func (m *inactivityMonitor) Start() {
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-m.done:
				return
			case <-ticker.C:
				m.mu.Lock()
				m.elapsed++
				elapsed := m.elapsed
				m.mu.Unlock()

				m.logger.Info("No stream traffic for %v (heartbeat)", time.Duration(elapsed)*m.interval)
			}
		}
	}()
}

// -----------------------------------------------------------------------------

// Reset zeroes the elapsed counter.
func (m *inactivityMonitor) Reset() {
	m.mu.Lock()
	m.elapsed = 0
	m.mu.Unlock()
}

// -----------------------------------------------------------------------------

// Elapsed returns how many full intervals passed without traffic.
func (m *inactivityMonitor) Elapsed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.elapsed
}

// -----------------------------------------------------------------------------

// Stop tears the monitor down. Safe to call more than once.
func (m *inactivityMonitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)
	})
}
