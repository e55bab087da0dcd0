package backend

import "time"

// Constants for backend behavior and defaults
const (
	// DefaultURL is the analysis backend base URL used until configured otherwise
	DefaultURL = "http://localhost:8000"

	// AlertsPath is the streaming endpoint, reached over ws/wss
	AlertsPath = "/alerts"

	// AnalyzePath is the one-shot analysis endpoint
	AnalyzePath = "/analyze"

	// ResourcesPath is the read-only resource registry endpoint
	ResourcesPath = "/resources"

	// DefaultReconnectDelay is the fixed wait between a dropped stream and the next attempt
	DefaultReconnectDelay = 3 * time.Second

	// RequestTimeout bounds one-shot analysis and registry requests
	RequestTimeout = 10 * time.Second
)
