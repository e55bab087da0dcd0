// Package view holds the read-only projections computed from the alert store.
// Every function takes the store contents in store order and allocates its own
// result; nothing here is cached or mutated.
package view

import (
	"sort"

	"github.com/crisisdesk/alertdeck/server/backend"
)

// Stats counts alerts per urgency tier.
type Stats struct {
	Critical int `json:"critical"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Total    int `json:"total"`
}

// Count returns the number of alerts in tier.
func (s Stats) Count(tier backend.Tier) int {
	switch tier {
	case backend.TierCritical:
		return s.Critical
	case backend.TierMedium:
		return s.Medium
	default:
		return s.Low
	}
}

// Allocation is one (alert, matched resource) pair.
type Allocation struct {
	AlertID      string           `json:"alertId"`
	AlertMessage string           `json:"alertMessage"`
	UrgencyScore int              `json:"urgencyScore"`
	Tier         backend.Tier     `json:"tier"`
	Resource     backend.Resource `json:"resource"`
	ResourceLog  string           `json:"resourceLog,omitempty"`
}

// ComputeStats classifies every alert. Critical+Medium+Low always equals len(alerts).
func ComputeStats(alerts []backend.Alert) Stats {
	stats := Stats{Total: len(alerts)}
	for _, alert := range alerts {
		switch alert.Tier() {
		case backend.TierCritical:
			stats.Critical++
		case backend.TierMedium:
			stats.Medium++
		default:
			stats.Low++
		}
	}
	return stats
}

// ByUrgency returns the alerts sorted by urgency score, highest first.
// Equal scores keep their store order.
func ByUrgency(alerts []backend.Alert) []backend.Alert {
	sorted := make([]backend.Alert, len(alerts))
	copy(sorted, alerts)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].UrgencyScore > sorted[j].UrgencyScore
	})

	return sorted
}

// Allocations flattens every matched resource of every alert into one row,
// in store order and then resource order.
func Allocations(alerts []backend.Alert) []Allocation {
	rows := make([]Allocation, 0)
	for _, alert := range alerts {
		for _, resource := range alert.MatchedResources {
			rows = append(rows, Allocation{
				AlertID:      alert.ID,
				AlertMessage: alert.Message,
				UrgencyScore: alert.UrgencyScore,
				Tier:         alert.Tier(),
				Resource:     resource,
				ResourceLog:  alert.ResourceLog,
			})
		}
	}
	return rows
}

// FilterTier returns the alerts in tier, keeping their relative order.
func FilterTier(alerts []backend.Alert, tier backend.Tier) []backend.Alert {
	filtered := make([]backend.Alert, 0)
	for _, alert := range alerts {
		if alert.Tier() == tier {
			filtered = append(filtered, alert)
		}
	}
	return filtered
}
