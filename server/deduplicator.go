package main

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DeduplicationCacheTTL is how long a notified alert ID is remembered
	DeduplicationCacheTTL = 24 * time.Hour

	// DeduplicationCleanupInterval is how often expired entries are removed
	DeduplicationCleanupInterval = 10 * time.Minute
)

// Deduplicator remembers which alert IDs have already been notified, so a
// replacement of the same alert is not posted twice.
type Deduplicator struct {
	logger      *zap.SugaredLogger
	seenAlerts  map[string]time.Time
	mu          sync.Mutex
	now         func() time.Time
	stopCleanup chan struct{}
	cleanupDone chan struct{}
	stopOnce    sync.Once
}

// NewDeduplicator creates a new deduplicator and starts the cleanup loop
func NewDeduplicator(logger *zap.SugaredLogger) *Deduplicator {
	d := &Deduplicator{
		logger:      logger,
		seenAlerts:  make(map[string]time.Time),
		now:         time.Now,
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}

	go d.cleanupLoop()

	return d
}

// RecordAlert atomically checks whether alertID is new and marks it as seen.
// Returns false for an ID recorded within the TTL.
func (d *Deduplicator) RecordAlert(alertID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seenAlerts[alertID]; exists {
		return false
	}

	d.seenAlerts[alertID] = d.now()
	return true
}

// Forget drops every recorded ID. Called when the store is cleared so a
// re-sent alert is notified again.
func (d *Deduplicator) Forget() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seenAlerts = make(map[string]time.Time)
}

func (d *Deduplicator) cleanupLoop() {
	ticker := time.NewTicker(DeduplicationCleanupInterval)
	defer ticker.Stop()
	defer close(d.cleanupDone)

	for {
		select {
		case <-ticker.C:
			d.cleanup()
		case <-d.stopCleanup:
			return
		}
	}
}

// cleanup removes entries older than DeduplicationCacheTTL
func (d *Deduplicator) cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	expired := 0

	for alertID, seenTime := range d.seenAlerts {
		if now.Sub(seenTime) > DeduplicationCacheTTL {
			delete(d.seenAlerts, alertID)
			expired++
		}
	}

	if expired > 0 {
		d.logger.Debugw("Cleaned up expired deduplication cache entries",
			"expired", expired,
			"remaining", len(d.seenAlerts))
	}
}

// Stop stops the cleanup goroutine and waits for it to finish
func (d *Deduplicator) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopCleanup)
	})
	<-d.cleanupDone
}
