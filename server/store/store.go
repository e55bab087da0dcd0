// Package store holds the authoritative in-memory alert collection.
package store

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crisisdesk/alertdeck/server/backend"
	"github.com/crisisdesk/alertdeck/server/metrics"
	"github.com/crisisdesk/alertdeck/server/view"
)

// ChangeKind describes a store mutation.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeReplaced ChangeKind = "replaced"
	ChangeCleared  ChangeKind = "cleared"
)

// Change is delivered to subscribers after every mutation.
type Change struct {
	Kind ChangeKind `json:"kind"`

	// Alert is the stored record; zero for ChangeCleared
	Alert backend.Alert `json:"alert"`

	// Size is the collection size after the change
	Size int `json:"size"`
}

// Store keeps alerts most-recent-first. Ingest and Clear are the only
// mutations. Writes are serialized and subscribers see changes in the order
// they were applied; reads run concurrently with each other.
type Store struct {
	// writeMu serializes mutation plus notification; mu guards the data
	writeMu sync.Mutex
	mu      sync.RWMutex
	alerts  []backend.Alert

	listeners    map[int]func(Change)
	nextListener int

	now   func() time.Time
	newID func() string
}

// New creates an empty store
func New() *Store {
	return &Store{
		listeners: make(map[int]func(Change)),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Ingest adds alert or replaces the entry with the same ID in place.
// A missing ID is generated and a zero ReceivedAt is stamped with the current
// time. The record as stored is returned.
func (s *Store) Ingest(alert backend.Alert) backend.Alert {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	stored := alert.Clone()
	stored.ID = strings.TrimSpace(stored.ID)
	if stored.ID == "" {
		stored.ID = s.newID()
	}
	if stored.ReceivedAt.IsZero() {
		stored.ReceivedAt = s.now()
	}

	kind := ChangeAdded

	s.mu.Lock()
	replaced := false
	for i := range s.alerts {
		if s.alerts[i].ID == stored.ID {
			s.alerts[i] = stored
			replaced = true
			break
		}
	}
	if replaced {
		kind = ChangeReplaced
	} else {
		s.alerts = append([]backend.Alert{stored}, s.alerts...)
	}
	size := len(s.alerts)
	stats := view.ComputeStats(s.alerts)
	s.mu.Unlock()

	recordStats(stats)
	s.notify(Change{Kind: kind, Alert: stored.Clone(), Size: size})

	return stored.Clone()
}

// Clear removes every alert
func (s *Store) Clear() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.alerts = nil
	s.mu.Unlock()

	recordStats(view.Stats{})
	s.notify(Change{Kind: ChangeCleared})
}

// Read returns a copy of the collection in store order
func (s *Store) Read() []backend.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alerts := make([]backend.Alert, len(s.alerts))
	for i, alert := range s.alerts {
		alerts[i] = alert.Clone()
	}
	return alerts
}

// Get returns the alert with id
func (s *Store) Get(id string) (backend.Alert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, alert := range s.alerts {
		if alert.ID == id {
			return alert.Clone(), true
		}
	}
	return backend.Alert{}, false
}

// Len returns the number of stored alerts
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.alerts)
}

// Stats counts the current alerts per urgency tier
func (s *Store) Stats() view.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return view.ComputeStats(s.alerts)
}

// Subscribe registers fn for every subsequent change and returns a function
// that removes it. fn runs on the writer's goroutine; it may read the store
// but must not call Ingest or Clear.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify(change Change) {
	s.mu.RLock()
	listeners := make([]func(Change), 0, len(s.listeners))
	for id := 0; id < s.nextListener; id++ {
		if fn, ok := s.listeners[id]; ok {
			listeners = append(listeners, fn)
		}
	}
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(change)
	}
}

func recordStats(stats view.Stats) {
	metrics.StoredAlerts.WithLabelValues(string(backend.TierCritical)).Set(float64(stats.Critical))
	metrics.StoredAlerts.WithLabelValues(string(backend.TierMedium)).Set(float64(stats.Medium))
	metrics.StoredAlerts.WithLabelValues(string(backend.TierLow)).Set(float64(stats.Low))
}
