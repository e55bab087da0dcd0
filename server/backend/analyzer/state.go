package analyzer

import (
	"sync"
	"time"

	"github.com/crisisdesk/alertdeck/server/backend"
)

// StatusTracker records the connection lifecycle for status reporting.
// The manager's event loop is the only writer; any goroutine may read.
type StatusTracker struct {
	mu     sync.RWMutex
	status backend.Status
}

// NewStatusTracker creates a tracker in the idle state
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{
		status: backend.Status{State: backend.StateIdle},
	}
}

// SaveURL stores the streaming endpoint currently targeted
func (s *StatusTracker) SaveURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.URL = url
}

// SaveConnecting records the start of a connection attempt
func (s *StatusTracker) SaveConnecting() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.State = backend.StateConnecting
	s.status.Connected = false
}

// SaveConnected records a successful open, resetting failures and the last error
func (s *StatusTracker) SaveConnected(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.State = backend.StateOpen
	s.status.Connected = true
	s.status.LastConnected = t
	s.status.ConsecutiveFailures = 0
	s.status.LastError = ""
}

// SaveClosed records a close or failed attempt and returns the new failure count
func (s *StatusTracker) SaveClosed(t time.Time, reason string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.State = backend.StateClosed
	s.status.Connected = false
	s.status.LastClosed = t
	s.status.LastError = reason
	s.status.ConsecutiveFailures++

	return s.status.ConsecutiveFailures
}

// IncrementReconnects counts a scheduled reconnect and returns the total
func (s *StatusTracker) IncrementReconnects() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.ReconnectAttempts++
	return s.status.ReconnectAttempts
}

// ResetFailures clears failure tracking, used when the target URL changes
func (s *StatusTracker) ResetFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.ConsecutiveFailures = 0
	s.status.LastError = ""
}

// SaveFinal records teardown; no further transitions follow
func (s *StatusTracker) SaveFinal(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Connected {
		s.status.LastClosed = t
	}
	s.status.State = backend.StateClosed
	s.status.Connected = false
	s.status.Final = true
}

// Connected reports whether the stream is open
func (s *StatusTracker) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.status.Connected
}

// Snapshot returns a copy of the current status
func (s *StatusTracker) Snapshot() backend.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.status
}
