package analyzer

import (
	"strings"
	"time"

	"github.com/crisisdesk/alertdeck/server/backend"
)

// NormalizeAlert converts a decoded backend record into a backend.Alert stamped with receivedAt.
func NormalizeAlert(alert Alert, receivedAt time.Time) backend.Alert {
	normalized := backend.Alert{
		ID:           strings.TrimSpace(alert.ID),
		Message:      alert.Message,
		UrgencyScore: *alert.UrgencyScore,
		ResourceLog:  alert.ResourceLog,
		ReceivedAt:   receivedAt,
	}

	normalized.Location = cleanList(alert.Location)

	// "unknown" and empty both mean the backend could not place the alert
	switch backend.LocationConfidence(alert.LocationConfidence) {
	case backend.ConfidenceHigh, backend.ConfidenceLow:
		if len(normalized.Location) > 0 {
			normalized.LocationConfidence = backend.LocationConfidence(alert.LocationConfidence)
		}
	}

	// Needs form a set; keep first-seen order for display
	normalized.Needs = uniqueList(alert.Needs)

	if len(alert.UrgencyReasons) > 0 {
		normalized.UrgencyReasons = cleanList(alert.UrgencyReasons)
	}

	if alert.PeopleAffected != nil {
		people := *alert.PeopleAffected
		normalized.PeopleAffected = &people
	}

	normalized.MatchedResources = make([]backend.Resource, 0, len(alert.MatchedResources))
	for _, resource := range alert.MatchedResources {
		normalized.MatchedResources = append(normalized.MatchedResources, NormalizeResource(resource))
	}

	return normalized
}

// NormalizeResource converts a backend resource record.
func NormalizeResource(resource Resource) backend.Resource {
	return backend.Resource{
		Name:   strings.TrimSpace(resource.Name),
		Type:   strings.TrimSpace(resource.Type),
		ETA:    strings.TrimSpace(resource.ETA),
		Status: strings.ToLower(strings.TrimSpace(resource.Status)),
	}
}

// cleanList trims entries and drops empty ones. It never returns nil.
func cleanList(items []string) []string {
	cleaned := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			cleaned = append(cleaned, item)
		}
	}
	return cleaned
}

// uniqueList is cleanList with case-insensitive duplicates removed.
func uniqueList(items []string) []string {
	seen := make(map[string]bool, len(items))
	unique := make([]string, 0, len(items))

	for _, item := range cleanList(items) {
		key := strings.ToLower(item)
		if !seen[key] {
			unique = append(unique, item)
			seen[key] = true
		}
	}

	return unique
}
