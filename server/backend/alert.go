package backend

import "time"

// LocationConfidence states how sure the analysis backend is about an alert's location.
// It is only meaningful when the alert carries at least one place name.
type LocationConfidence string

const (
	ConfidenceHigh LocationConfidence = "high"
	ConfidenceLow  LocationConfidence = "low"
)

// Known resource status values. The set is open; backends may report others.
const (
	ResourceAvailable = "available"
	ResourceActive    = "active"
	ResourceBusy      = "busy"
)

// Resource is a responder or asset reference embedded in an alert.
// Copies are owned by the alert that carries them.
type Resource struct {
	// Name is the display name of the responder or asset
	Name string `json:"name"`

	// Type is the need category the resource serves (e.g., "medical", "rescue")
	Type string `json:"type"`

	// ETA is free text as reported by the backend, not necessarily a duration
	ETA string `json:"eta"`

	// Status is the reported availability (e.g., "available", "active", "busy")
	Status string `json:"status"`
}

// Alert is one reported or submitted emergency event.
// An alert is never mutated after it is ingested; updates replace the whole record.
type Alert struct {
	// ID is unique within the store. Assigned locally when the backend omits it.
	ID string `json:"id"`

	// Message is the free-text description of the emergency
	Message string `json:"message"`

	// UrgencyScore is non-negative; higher is more urgent
	UrgencyScore int `json:"urgencyScore"`

	// UrgencyReasons lists the keywords that contributed to the score (display only)
	UrgencyReasons []string `json:"urgencyReasons,omitempty"`

	// Location is an ordered list of place names; empty when unknown
	Location []string `json:"location"`

	// LocationConfidence is empty when the backend did not know the location
	LocationConfidence LocationConfidence `json:"locationConfidence,omitempty"`

	// Needs holds need categories in first-seen order without duplicates
	Needs []string `json:"needs"`

	// PeopleAffected is nil when the count is unknown
	PeopleAffected *int `json:"peopleAffected,omitempty"`

	// MatchedResources are the responders the backend matched to this alert
	MatchedResources []Resource `json:"matchedResources"`

	// ResourceLog explains the matching decision
	ResourceLog string `json:"resourceLog,omitempty"`

	// ReceivedAt is the local ingest time, used for recency ordering
	ReceivedAt time.Time `json:"receivedAt"`
}

// Tier returns the urgency tier of the alert.
func (a Alert) Tier() Tier {
	return Classify(a.UrgencyScore)
}

// HasLocation reports whether the alert names at least one place.
func (a Alert) HasLocation() bool {
	return len(a.Location) > 0
}

// Clone returns a deep copy so the store never shares slices with a producer.
func (a Alert) Clone() Alert {
	clone := a

	if a.UrgencyReasons != nil {
		clone.UrgencyReasons = append([]string(nil), a.UrgencyReasons...)
	}
	if a.Location != nil {
		clone.Location = append([]string(nil), a.Location...)
	}
	if a.Needs != nil {
		clone.Needs = append([]string(nil), a.Needs...)
	}
	if a.MatchedResources != nil {
		clone.MatchedResources = append([]Resource(nil), a.MatchedResources...)
	}
	if a.PeopleAffected != nil {
		people := *a.PeopleAffected
		clone.PeopleAffected = &people
	}

	return clone
}
